package disasm

import "fmt"

// CallAnnotator annotates call instructions with the callee name and the
// argument provenance captured at that call. names may be nil.
func CallAnnotator(sites []CallSite, names SymbolLookup) Annotator {
	anns := make(map[uint64]string, len(sites))
	for _, cs := range sites {
		callee := cs.TargetString()
		if !cs.Indirect && names != nil {
			if n, ok := names(cs.Target); ok {
				callee = n
			}
		}
		s := fmt.Sprintf("%s(rdx=%s, r8=%s)", callee, cs.SecondArg, cs.ThirdArg)
		if cs.HasArgIndex {
			s += fmt.Sprintf(" arg=%d", cs.ArgIndex)
		}
		anns[cs.Addr] = s
	}
	return func(inst Inst) string {
		return anns[inst.Addr]
	}
}

// ProvenanceAnnotator replays the tracker over insts and annotates every
// instruction that assigned known provenance to a register or stack slot.
// Prologue instructions are tagged with the running allocation.
func ProvenanceAnnotator(insts []Inst) Annotator {
	anns := make(map[uint64]string)

	alloc, end := FrameSize(insts)
	var running int64
	for _, inst := range insts[:end] {
		switch inst.Op {
		case OpPush:
			running += 8
		case OpSub:
			running += inst.Src().Imm
		default:
			continue
		}
		anns[inst.Addr] = fmt.Sprintf("frame %#x/%#x", running, alloc)
	}

	t := NewTracker(alloc)
	for _, inst := range insts {
		t.Step(inst)
		if _, done := anns[inst.Addr]; done {
			continue
		}
		switch inst.Op {
		case OpMove, OpLEA, OpXor:
		default:
			continue
		}
		dst := inst.Dst()
		var o Origin
		var loc string
		switch dst.Kind {
		case OperandReg:
			r, ok := Canon(dst.Reg)
			if !ok {
				continue
			}
			o, loc = t.State().Reg(r), r.String()
		case OperandMem:
			disp, ok := dst.stackSlot()
			if !ok {
				continue
			}
			o, _ = t.State().Slot(disp)
			loc = fmt.Sprintf("[rsp+%#x]", disp)
		default:
			continue
		}
		if o.Known() && o.Tick == t.tick {
			anns[inst.Addr] = fmt.Sprintf("%s = %s", loc, o)
		}
	}

	return func(inst Inst) string {
		return anns[inst.Addr]
	}
}
