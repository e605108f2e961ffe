package disasm

import (
	"testing"

	"golang.org/x/arch/x86/x86asm"
)

func TestFrameSize(t *testing.T) {
	other := Inst{Op: OpOther}
	tests := []struct {
		name      string
		insts     []Inst
		wantAlloc int64
		wantEnd   int
	}{
		{"empty", nil, 0, 0},
		{"sub only", []Inst{subRSP(0x20), other}, 0x20, 1},
		{"push push sub", []Inst{push(x86asm.RBX), push(x86asm.RSI), subRSP(0x48), other}, 0x58, 3},
		{"frame pointer", []Inst{push(x86asm.RBP), mov(RegOp(x86asm.RBP), RegOp(x86asm.RSP)), subRSP(0x10), other}, 0x18, 3},
		{"all prologue", []Inst{push(x86asm.RBX), subRSP(0x20)}, 0x28, 2},
		{"no prologue", []Inst{other, subRSP(0x20)}, 0, 0},
		{"stops at store", []Inst{subRSP(0x20), mov(MemOp(x86asm.RSP, 8), RegOp(x86asm.RBX)), push(x86asm.RDI)}, 0x20, 1},
		{"sub other register", []Inst{{Op: OpSub, Args: [2]Operand{RegOp(x86asm.RAX), ImmOp(8)}}}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alloc, end := FrameSize(tt.insts)
			if alloc != tt.wantAlloc || end != tt.wantEnd {
				t.Errorf("FrameSize = (%#x, %d), want (%#x, %d)", alloc, end, tt.wantAlloc, tt.wantEnd)
			}
		})
	}
}
