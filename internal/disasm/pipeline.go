package disasm

import "fmt"

// CallSiteRecord is one line in call_sites.jsonl.
type CallSiteRecord struct {
	Func      string       `json:"func"`
	PC        string       `json:"pc"`
	Target    string       `json:"target"`           // "0x..." or "<dynamic>"
	Callee    string       `json:"callee,omitempty"` // resolved name
	SecondArg OriginRecord `json:"second_arg"`
	ThirdArg  OriginRecord `json:"third_arg"`
	ArgIndex  *int         `json:"arg_index,omitempty"`
}

// OriginRecord is the JSON form of an Origin.
type OriginRecord struct {
	Kind  string `json:"kind"`
	Value int64  `json:"value,omitempty"`
}

// Record converts cs into its JSONL form. lookup may be nil.
func (cs CallSite) Record(funcName string, lookup SymbolLookup) CallSiteRecord {
	rec := CallSiteRecord{
		Func:      funcName,
		PC:        fmt.Sprintf("0x%x", cs.Addr),
		Target:    cs.TargetString(),
		SecondArg: cs.SecondArg.Record(),
		ThirdArg:  cs.ThirdArg.Record(),
	}
	if !cs.Indirect && lookup != nil {
		if name, ok := lookup(cs.Target); ok {
			rec.Callee = name
		}
	}
	if cs.HasArgIndex {
		idx := cs.ArgIndex
		rec.ArgIndex = &idx
	}
	return rec
}

// TargetString renders the call target the way listings show it.
func (cs CallSite) TargetString() string {
	if cs.Indirect {
		return "<dynamic>"
	}
	return fmt.Sprintf("0x%x", cs.Target)
}

// Record converts o into its JSON form.
func (o Origin) Record() OriginRecord {
	return OriginRecord{Kind: o.Kind.String(), Value: o.Value}
}
