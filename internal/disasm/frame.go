package disasm

import "golang.org/x/arch/x86/x86asm"

// FrameSize scans the prologue and returns the local stack allocation in
// bytes together with the index of the first non-prologue instruction.
//
// Recognized prologue shapes:
//
//	push <reg>         +8
//	sub rsp, <imm>     +imm
//	mov <reg>, <reg>   frame pointer setup, +0
func FrameSize(insts []Inst) (alloc int64, end int) {
	for end < len(insts) {
		inst := insts[end]
		switch {
		case inst.Op == OpPush && inst.Dst().Kind == OperandReg:
			alloc += 8
		case inst.Op == OpSub && inst.Dst().Kind == OperandReg &&
			inst.Dst().Reg == x86asm.RSP && inst.Src().Kind == OperandImm:
			alloc += inst.Src().Imm
		case inst.Op == OpMove && inst.Dst().Kind == OperandReg && inst.Src().Kind == OperandReg:
		default:
			return alloc, end
		}
		end++
	}
	return alloc, end
}
