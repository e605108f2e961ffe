// Package schema rebuilds FlatBuffers table layouts from the call sites of
// a compiled Create<Type> function, and types the recovered fields from
// method metadata.
package schema

import (
	"errors"
	"fmt"
	"sort"

	"fbsdump/internal/disasm"
	"fbsdump/internal/meta"
)

// State is the reconstructor's position in the StartObject/EndObject bracket.
type State uint8

const (
	StateIdle State = iota
	StateStarted
	StateFinished
)

var stateNames = [...]string{"idle", "started", "finished"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", s)
}

// OutcomeKind is the typed result of one reconstruction.
type OutcomeKind uint8

const (
	// OutcomeComplete: the bracket finished and every setter call mapped.
	OutcomeComplete OutcomeKind = iota
	// OutcomePartial: failures were recorded, or the bracket never closed.
	OutcomePartial
	// OutcomeNotRecognized: no StartObject call was seen.
	OutcomeNotRecognized
	// OutcomeFallback: the mapping came from parameter order.
	OutcomeFallback
)

var outcomeNames = [...]string{"complete", "partial", "not_recognized", "fallback"}

func (k OutcomeKind) String() string {
	if int(k) < len(outcomeNames) {
		return outcomeNames[k]
	}
	return fmt.Sprintf("outcome(%d)", k)
}

func (k OutcomeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *OutcomeKind) UnmarshalText(b []byte) error {
	for i, name := range outcomeNames {
		if string(b) == name {
			*k = OutcomeKind(i)
			return nil
		}
	}
	return fmt.Errorf("schema: unknown outcome %q", b)
}

// Confidence grades how a mapping was obtained.
type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
)

// AddrSet is a set of code addresses.
type AddrSet map[uint64]struct{}

func NewAddrSet(addrs ...uint64) AddrSet {
	s := make(AddrSet, len(addrs))
	for _, a := range addrs {
		s[a] = struct{}{}
	}
	return s
}

func (s AddrSet) Has(a uint64) bool {
	_, ok := s[a]
	return ok
}

// Builder holds the StartObject and EndObject addresses.
type Builder = meta.Builder

// FieldMapping maps a table slot to the 1-based index of the create
// function parameter that supplies it. Parameter 1 is the builder.
type FieldMapping map[int]int

// Slots returns the slot indices in ascending order.
func (m FieldMapping) Slots() []int {
	slots := make([]int, 0, len(m))
	for s := range m {
		slots = append(slots, s)
	}
	sort.Ints(slots)
	return slots
}

// Names resolves each slot to its parameter name. Indices outside params
// are omitted.
func (m FieldMapping) Names(params []meta.Param) map[int]string {
	out := make(map[int]string, len(m))
	for slot, idx := range m {
		if idx >= 1 && idx <= len(params) {
			out[slot] = params[idx-1].Name
		}
	}
	return out
}

// Outcome is the result of ReconstructTable or FallbackPositional.
type Outcome struct {
	Kind       OutcomeKind
	State      State
	Declared   int
	Collected  int
	Mapping    FieldMapping
	Failures   []CallFailure
	Diags      []Diag
	Confidence Confidence
}

// Err summarizes the outcome as an error: ErrPatternNotRecognized when the
// bracket was never opened, the joined call failures (plus ErrUnterminated
// if the bracket never closed) for a partial outcome, nil otherwise.
func (o Outcome) Err() error {
	switch o.Kind {
	case OutcomeNotRecognized:
		return ErrPatternNotRecognized
	case OutcomePartial:
		errs := make([]error, 0, len(o.Failures)+1)
		for _, f := range o.Failures {
			errs = append(errs, f)
		}
		if o.State != StateFinished {
			errs = append(errs, ErrUnterminated)
		}
		return errors.Join(errs...)
	}
	return nil
}

// ReconstructTable runs the StartObject/EndObject state machine over the
// call sites of one create function.
//
// While idle every call other than StartObject is skipped. StartObject's
// second argument, when a literal, is the declared field count. Once
// started, EndObject or typeEnd finishes the table; calls to addresses not
// in setters are skipped, as are setter calls beyond the declared count.
// Each remaining call maps its literal slot (second argument) to its
// parameter index (third argument), or records a CallFailure.
//
// typeEnd is the type's own End<Name> helper; zero means none.
func ReconstructTable(sites []disasm.CallSite, setters AddrSet, b Builder, typeEnd uint64) Outcome {
	out := Outcome{
		State:      StateIdle,
		Mapping:    make(FieldMapping),
		Confidence: ConfidenceHigh,
	}
	var diags Diags

scan:
	for _, cs := range sites {
		switch out.State {
		case StateIdle:
			if cs.Indirect || cs.Target != b.StartObject {
				continue
			}
			if v, ok := cs.SecondArg.Imm(); ok && v > 0 {
				out.Declared = int(v)
			}
			out.State = StateStarted

		case StateStarted:
			if cs.Indirect {
				diags.Add(cs.Addr, DiagIndirectCall, "indirect call inside object bracket skipped")
				continue
			}
			if cs.Target == b.EndObject || (typeEnd != 0 && cs.Target == typeEnd) {
				out.State = StateFinished
				break scan
			}
			if !setters.Has(cs.Target) || out.Collected >= out.Declared {
				continue
			}
			slot, ok := cs.SecondArg.Imm()
			if !ok {
				out.Failures = append(out.Failures, CallFailure{Addr: cs.Addr, Target: cs.Target, Err: ErrUnresolvedSlotIndex})
				continue
			}
			if !cs.HasArgIndex {
				out.Failures = append(out.Failures, CallFailure{Addr: cs.Addr, Target: cs.Target, Err: ErrUnresolvedArgumentMapping})
				continue
			}
			if prev, dup := out.Mapping[int(slot)]; dup {
				diags.Addf(cs.Addr, DiagDupSlot, "slot %d remapped from param %d to %d", slot, prev, cs.ArgIndex)
			}
			out.Mapping[int(slot)] = cs.ArgIndex
			out.Collected++
		}
	}

	out.Diags = diags.Items()
	switch {
	case out.State == StateIdle:
		out.Kind = OutcomeNotRecognized
		out.Confidence = ""
	case out.State == StateFinished && len(out.Failures) == 0:
		out.Kind = OutcomeComplete
	default:
		out.Kind = OutcomePartial
	}
	return out
}
