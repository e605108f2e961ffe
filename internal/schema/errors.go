package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrPatternNotRecognized means no StartObject call was seen. The
	// caller should fall back to positional reconstruction.
	ErrPatternNotRecognized = errors.New("schema: pattern not recognized")

	// ErrUnresolvedArgumentMapping means a setter's value argument did not
	// reduce to a parameter index.
	ErrUnresolvedArgumentMapping = errors.New("schema: unresolved argument mapping")

	// ErrUnresolvedSlotIndex means a setter's slot argument was not a literal.
	ErrUnresolvedSlotIndex = errors.New("schema: unresolved slot index")

	// ErrUnterminated means StartObject was seen but neither EndObject nor
	// the type's end helper followed.
	ErrUnterminated = errors.New("schema: object not finished")
)

// CallFailure is one setter call that could not be mapped.
type CallFailure struct {
	Addr   uint64 `json:"addr"`
	Target uint64 `json:"target"`
	Err    error  `json:"-"`
}

func (f CallFailure) Error() string {
	return fmt.Sprintf("call at 0x%x to 0x%x: %v", f.Addr, f.Target, f.Err)
}

func (f CallFailure) Unwrap() error { return f.Err }
