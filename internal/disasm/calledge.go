package disasm

// Microsoft x64 calling convention: the first four integer arguments
// travel in RCX, RDX, R8, R9.
var argRegs = [4]CanonReg{RegRCX, RegRDX, RegR8, RegR9}

const (
	secondArgReg = RegRDX
	thirdArgReg  = RegR8

	// callerSideOffset is the return address plus the 0x20-byte shadow
	// space the caller reserves above the callee's frame.
	callerSideOffset = 0x28
)

// CallSite is the argument provenance captured at one call instruction.
type CallSite struct {
	Addr      uint64
	Target    uint64 // zero when Indirect
	Indirect  bool
	Tick      uint64
	SecondArg Origin // RDX at the call
	ThirdArg  Origin // R8 at the call

	// ArgIndex is ThirdArg reduced to a parameter index: Param(n) gives n,
	// Immediate(0) gives 0. HasArgIndex is false otherwise.
	ArgIndex    int
	HasArgIndex bool
}

// Tracker walks one function body in program order and maintains register
// and stack-slot provenance. A Tracker is single use.
type Tracker struct {
	state *State
	alloc int64
	tick  uint64
	sites []CallSite
}

// NewTracker returns a tracker for a function whose prologue allocates
// alloc bytes, with the argument registers seeded as Param(1)..Param(4).
func NewTracker(alloc int64) *Tracker {
	t := &Tracker{state: NewState(), alloc: alloc}
	for i, r := range argRegs {
		t.state.SetReg(r, Param(i+1).At(0))
	}
	return t
}

// State exposes the live provenance state.
func (t *Tracker) State() *State { return t.state }

// Sites returns the call sites captured so far, in program order.
func (t *Tracker) Sites() []CallSite { return t.sites }

// Step applies one instruction. Shapes outside the model leave the state
// untouched.
func (t *Tracker) Step(inst Inst) {
	t.tick++

	switch inst.Op {
	case OpMove, OpLEA:
		src, ok := t.source(inst)
		if !ok {
			return
		}
		t.write(inst.Dst(), src.At(t.tick))

	case OpXor:
		dst, src := inst.Dst(), inst.Src()
		// Only xor of a register with itself zeroes it; xor dh, dl does not.
		if dst.Kind != OperandReg || src.Kind != OperandReg || dst.Reg != src.Reg {
			return
		}
		d, ok := Canon(dst.Reg)
		if !ok {
			return
		}
		t.state.SetReg(d, Immediate(0).At(t.tick))

	case OpCall:
		t.sites = append(t.sites, t.capture(inst))
	}
}

// source computes the provenance a move or lea transfers. ok is false for
// shapes outside the model.
func (t *Tracker) source(inst Inst) (Origin, bool) {
	src := inst.Src()
	switch src.Kind {
	case OperandReg:
		r, ok := Canon(src.Reg)
		if !ok {
			return Unknown, false
		}
		return t.state.Reg(r), true

	case OperandMem:
		if inst.Op != OpMove {
			return Unknown, false
		}
		disp, ok := src.stackSlot()
		if !ok {
			return Unknown, false
		}
		if o, ok := t.state.Slot(disp); ok {
			return o, true
		}
		return t.stackParam(disp), true

	case OperandImm:
		if inst.Op != OpMove {
			return Unknown, false
		}
		return Immediate(src.Imm), true
	}
	return Unknown, false
}

// stackParam synthesizes the provenance of an unwritten stack slot. Slots
// at or above the caller-side boundary hold the caller's stack arguments.
func (t *Tracker) stackParam(disp int64) Origin {
	base := t.alloc + callerSideOffset
	if disp < base {
		return Unknown
	}
	n := (disp-base)/8 - 4
	if n < 1 {
		return Unknown
	}
	return StackParam(int(n))
}

// write stores o into a register or stack-slot destination.
func (t *Tracker) write(dst Operand, o Origin) {
	switch dst.Kind {
	case OperandReg:
		if r, ok := Canon(dst.Reg); ok {
			t.state.SetReg(r, o)
		}
	case OperandMem:
		if disp, ok := dst.stackSlot(); ok {
			t.state.SetSlot(disp, o)
		}
	}
}

func (t *Tracker) capture(inst Inst) CallSite {
	cs := CallSite{
		Addr:      inst.Addr,
		Target:    inst.Target,
		Indirect:  inst.Indirect,
		Tick:      t.tick,
		SecondArg: t.state.Reg(secondArgReg),
		ThirdArg:  t.state.Reg(thirdArgReg),
	}
	if n, ok := cs.ThirdArg.ParamIndex(); ok {
		cs.ArgIndex, cs.HasArgIndex = n, true
	} else if v, ok := cs.ThirdArg.Imm(); ok && v == 0 {
		cs.ArgIndex, cs.HasArgIndex = 0, true
	}
	return cs
}

// AnalyzeCalls sizes the prologue, then tracks provenance over the whole
// body and returns one CallSite per call instruction. At most
// opts.MaxSteps instructions are scanned.
func AnalyzeCalls(insts []Inst, opts Options) []CallSite {
	sites, _ := AnalyzeCallsLimit(insts, opts)
	return sites
}

// AnalyzeCallsLimit is AnalyzeCalls that also reports whether the scan
// stopped at the step cap before reaching the end of insts.
func AnalyzeCallsLimit(insts []Inst, opts Options) (sites []CallSite, truncated bool) {
	if len(insts) == 0 {
		return nil, false
	}
	maxSteps := opts.EffectiveMaxSteps()
	if len(insts) > maxSteps {
		insts = insts[:maxSteps]
		truncated = true
	}

	alloc, _ := FrameSize(insts)
	t := NewTracker(alloc)
	for _, inst := range insts {
		t.Step(inst)
	}
	return t.Sites(), truncated
}
