package disasm

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// Op is the mnemonic category of a decoded instruction. Only the shapes the
// provenance tracker models get their own category.
type Op uint8

const (
	OpOther Op = iota
	OpMove
	OpLEA
	OpXor
	OpCall
	OpPush
	OpSub
	OpRet
)

var opNames = [...]string{
	OpOther: "other",
	OpMove:  "mov",
	OpLEA:   "lea",
	OpXor:   "xor",
	OpCall:  "call",
	OpPush:  "push",
	OpSub:   "sub",
	OpRet:   "ret",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// OperandKind tags an Operand.
type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandReg
	OperandMem
	OperandImm
)

// Mem is a memory operand: [Base + Index*scale + Disp]. Scale is not kept;
// nothing downstream reads it.
type Mem struct {
	Base  x86asm.Reg
	Index x86asm.Reg
	Disp  int64
}

// Operand is one instruction operand. Exactly one of Reg, Mem, Imm is
// meaningful, selected by Kind.
type Operand struct {
	Kind OperandKind
	Reg  x86asm.Reg
	Mem  Mem
	Imm  int64
}

// RegOp, MemOp and ImmOp build operands.
func RegOp(r x86asm.Reg) Operand { return Operand{Kind: OperandReg, Reg: r} }

func MemOp(base x86asm.Reg, disp int64) Operand {
	return Operand{Kind: OperandMem, Mem: Mem{Base: base, Disp: disp}}
}

func ImmOp(v int64) Operand { return Operand{Kind: OperandImm, Imm: v} }

// stackSlot reports whether the operand is [rsp + disp] with no index
// register, and returns disp.
func (o Operand) stackSlot() (int64, bool) {
	if o.Kind != OperandMem || o.Mem.Base != x86asm.RSP || o.Mem.Index != 0 {
		return 0, false
	}
	return o.Mem.Disp, true
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandReg:
		return o.Reg.String()
	case OperandMem:
		s := "["
		if o.Mem.Base != 0 {
			s += o.Mem.Base.String()
		}
		if o.Mem.Index != 0 {
			s += "+" + o.Mem.Index.String()
		}
		if o.Mem.Disp != 0 || s == "[" {
			if o.Mem.Disp < 0 {
				s += fmt.Sprintf("-0x%x", -o.Mem.Disp)
			} else if s == "[" {
				s += fmt.Sprintf("0x%x", o.Mem.Disp)
			} else {
				s += fmt.Sprintf("+0x%x", o.Mem.Disp)
			}
		}
		return s + "]"
	case OperandImm:
		return fmt.Sprintf("0x%x", o.Imm)
	}
	return ""
}

// Inst is a decoded x86-64 instruction reduced to what the analysis needs.
type Inst struct {
	Addr     uint64
	Len      int
	Op       Op
	Args     [2]Operand
	Target   uint64 // resolved absolute target for direct calls
	Indirect bool   // call through register or memory
	Text     string // full disassembly line (Intel syntax)
}

// Dst and Src return the first and second operand.
func (i Inst) Dst() Operand { return i.Args[0] }
func (i Inst) Src() Operand { return i.Args[1] }
