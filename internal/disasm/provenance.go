package disasm

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// CanonReg is a general-purpose register with all width aliases folded
// together: AL, AX, EAX and RAX are all RegRAX.
type CanonReg uint8

const (
	RegRAX CanonReg = iota
	RegRCX
	RegRDX
	RegRBX
	RegRSP
	RegRBP
	RegRSI
	RegRDI
	RegR8
	RegR9
	RegR10
	RegR11
	RegR12
	RegR13
	RegR14
	RegR15

	numCanonRegs
)

// Register file size is fixed by the enumeration above.
var _ [16]struct{} = [numCanonRegs]struct{}{}

func (r CanonReg) String() string {
	if r < numCanonRegs {
		return (x86asm.RAX + x86asm.Reg(r)).String()
	}
	return fmt.Sprintf("reg(%d)", uint8(r))
}

// Canon folds an x86asm register onto its canonical 64-bit identity.
// Returns false for non general-purpose registers (RIP, segment, vector).
func Canon(r x86asm.Reg) (CanonReg, bool) {
	switch {
	case r >= x86asm.AL && r <= x86asm.BL:
		return CanonReg(r - x86asm.AL), true
	case r >= x86asm.AH && r <= x86asm.BH:
		return CanonReg(r - x86asm.AH), true
	case r >= x86asm.SPB && r <= x86asm.DIB:
		return RegRSP + CanonReg(r-x86asm.SPB), true
	case r >= x86asm.R8B && r <= x86asm.R15B:
		return RegR8 + CanonReg(r-x86asm.R8B), true
	case r >= x86asm.AX && r <= x86asm.R15W:
		return CanonReg(r - x86asm.AX), true
	case r >= x86asm.EAX && r <= x86asm.R15L:
		return CanonReg(r - x86asm.EAX), true
	case r >= x86asm.RAX && r <= x86asm.R15:
		return CanonReg(r - x86asm.RAX), true
	}
	return 0, false
}

// OriginKind tags an Origin.
type OriginKind uint8

const (
	OriginUnknown OriginKind = iota
	OriginParam
	OriginImmediate
	OriginStackParam
)

var originKindNames = [...]string{
	OriginUnknown:    "unknown",
	OriginParam:      "param",
	OriginImmediate:  "immediate",
	OriginStackParam: "stack_param",
}

func (k OriginKind) String() string {
	if int(k) < len(originKindNames) {
		return originKindNames[k]
	}
	return fmt.Sprintf("origin(%d)", uint8(k))
}

// Origin is the symbolic source of a register's or stack slot's content.
// It is a plain value; every write stores a fresh copy. The zero value is
// Unknown.
type Origin struct {
	Kind  OriginKind
	Value int64  // parameter index or immediate, by Kind
	Tick  uint64 // program-order sequence number of the write
}

// Param is the n-th (1-based) register-passed parameter.
func Param(n int) Origin { return Origin{Kind: OriginParam, Value: int64(n)} }

// Immediate is a literal constant.
func Immediate(v int64) Origin { return Origin{Kind: OriginImmediate, Value: v} }

// StackParam is a caller-supplied stack argument.
func StackParam(n int) Origin { return Origin{Kind: OriginStackParam, Value: int64(n)} }

// Unknown is the absence of provenance.
var Unknown = Origin{}

// At returns a copy of o stamped with tick.
func (o Origin) At(tick uint64) Origin {
	o.Tick = tick
	return o
}

// Known reports whether o carries provenance.
func (o Origin) Known() bool { return o.Kind != OriginUnknown }

// ParamIndex returns n for Param(n).
func (o Origin) ParamIndex() (int, bool) {
	if o.Kind != OriginParam {
		return 0, false
	}
	return int(o.Value), true
}

// Imm returns v for Immediate(v).
func (o Origin) Imm() (int64, bool) {
	if o.Kind != OriginImmediate {
		return 0, false
	}
	return o.Value, true
}

// Same reports whether o and p name the same source, ignoring Tick.
func (o Origin) Same(p Origin) bool { return o.Kind == p.Kind && o.Value == p.Value }

func (o Origin) String() string {
	switch o.Kind {
	case OriginParam:
		return fmt.Sprintf("param%d", o.Value)
	case OriginImmediate:
		return fmt.Sprintf("immediate:0x%x", o.Value)
	case OriginStackParam:
		return fmt.Sprintf("stack_param%d", o.Value)
	}
	return "unknown"
}

// State is the provenance of every general-purpose register and every
// rsp-relative stack slot written so far in one function body.
type State struct {
	regs  [numCanonRegs]Origin
	stack map[int64]Origin
}

// NewState returns an empty state: every location is Unknown.
func NewState() *State {
	return &State{stack: make(map[int64]Origin)}
}

// Reg returns the provenance of r.
func (s *State) Reg(r CanonReg) Origin {
	if r >= numCanonRegs {
		return Unknown
	}
	return s.regs[r]
}

// SetReg overwrites the provenance of r.
func (s *State) SetReg(r CanonReg, o Origin) {
	if r >= numCanonRegs {
		return
	}
	s.regs[r] = o
}

// Slot returns the provenance of [rsp+disp], and whether the slot has
// been written.
func (s *State) Slot(disp int64) (Origin, bool) {
	o, ok := s.stack[disp]
	return o, ok
}

// SetSlot overwrites the provenance of [rsp+disp]. Writing Unknown drops
// the entry.
func (s *State) SetSlot(disp int64, o Origin) {
	if !o.Known() {
		delete(s.stack, disp)
		return
	}
	s.stack[disp] = o
}
