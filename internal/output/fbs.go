package output

import (
	"fmt"
	"sort"
	"strings"

	"fbsdump/internal/schema"
)

// FormatFBS renders a schema as FlatBuffers IDL. Enums come first, then
// tables, both in schema order; a namespace statement is emitted whenever
// the namespace changes. Fields are listed by ascending slot.
func FormatFBS(s *schema.Schema) string {
	var b strings.Builder
	b.WriteString("// Generated by fbsdump. Do not edit.\n")

	ns := "\x00"
	setNS := func(n string) {
		if n == ns {
			return
		}
		ns = n
		if n != "" {
			fmt.Fprintf(&b, "\nnamespace %s;\n", n)
		}
	}

	for _, e := range s.Enums {
		setNS(e.Namespace)
		values := append([]schema.EnumValue(nil), e.Values...)
		sort.SliceStable(values, func(i, j int) bool { return values[i].Value < values[j].Value })

		fmt.Fprintf(&b, "\nenum %s : %s {\n", e.Name, e.Underlying)
		for _, v := range values {
			fmt.Fprintf(&b, "  %s = %d,\n", v.Name, v.Value)
		}
		b.WriteString("}\n")
	}

	for _, t := range s.Tables {
		setNS(t.Namespace)
		b.WriteByte('\n')
		switch {
		case t.NoCreate:
			b.WriteString("// no create method, fields unknown\n")
		case t.Confidence == schema.ConfidenceLow:
			b.WriteString("// low confidence: field order follows create parameters\n")
		case len(t.Failures) > 0:
			fmt.Fprintf(&b, "// partial: %d setter calls unresolved\n", len(t.Failures))
		}
		fmt.Fprintf(&b, "table %s {\n", t.Name)
		for _, f := range t.Fields {
			typ := f.Type
			if f.Vector {
				typ = "[" + typ + "]"
			}
			if t.Confidence == schema.ConfidenceHigh {
				fmt.Fprintf(&b, "  %s:%s; // slot %d\n", f.Name, typ, f.Slot)
			} else {
				fmt.Fprintf(&b, "  %s:%s;\n", f.Name, typ)
			}
		}
		b.WriteString("}\n")
	}
	return b.String()
}
