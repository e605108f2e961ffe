package schema

import "fmt"

// DiagKind classifies a diagnostic message.
type DiagKind string

const (
	DiagIndirectCall DiagKind = "indirect_call"
	DiagParamRange   DiagKind = "param_range"
	DiagNoAccessor   DiagKind = "no_accessor"
	DiagTruncated    DiagKind = "truncated"
	DiagNoCreate     DiagKind = "no_create"
	DiagNoEnd        DiagKind = "no_end"
	DiagDupSlot      DiagKind = "dup_slot"
)

// Diag records a non-fatal finding about one type.
type Diag struct {
	Addr uint64   `json:"addr"`
	Kind DiagKind `json:"kind"`
	Msg  string   `json:"msg"`
}

func (d Diag) String() string {
	return fmt.Sprintf("[%s] 0x%x: %s", d.Kind, d.Addr, d.Msg)
}

// Diags accumulates diagnostics.
type Diags struct {
	items []Diag
}

func (d *Diags) Add(addr uint64, kind DiagKind, msg string) {
	d.items = append(d.items, Diag{Addr: addr, Kind: kind, Msg: msg})
}

func (d *Diags) Addf(addr uint64, kind DiagKind, format string, args ...any) {
	d.items = append(d.items, Diag{Addr: addr, Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

func (d *Diags) Items() []Diag { return d.items }
func (d *Diags) Len() int      { return len(d.items) }

// Mode controls how partial reconstructions are treated.
type Mode int

const (
	ModeBestEffort Mode = iota // keep partial mappings, accumulate diags
	ModeStrict                 // a partial mapping fails the type
)

func (m Mode) String() string {
	if m == ModeStrict {
		return "strict"
	}
	return "best-effort"
}

// ParseMode accepts "strict" or "best-effort".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "strict":
		return ModeStrict, nil
	case "best-effort", "besteffort", "":
		return ModeBestEffort, nil
	}
	return ModeBestEffort, fmt.Errorf("schema: unknown mode %q", s)
}
