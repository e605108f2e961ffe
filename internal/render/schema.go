package render

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"fbsdump/internal/schema"
)

// maxLabel bounds node titles; long namespaces are common in game builds.
const maxLabel = 48

// SchemaDOT renders a recovered schema where each table and enum is one node
// and edges are field references to other tables, structs and enums.
// Parallel references between the same pair collapse into one edge whose
// width and label carry the count. Referenced types absent from the schema
// are drawn as dashed stubs. maxNodes limits rendered tables (0 = all),
// keeping those with the most references.
func SchemaDOT(s *schema.Schema, title string, t Theme, maxNodes int) string {
	type refEdge struct {
		from, to string
		kind     schema.FieldKind
		vector   bool
	}
	counts := make(map[refEdge]int)
	involvement := make(map[string]int)
	for _, tbl := range s.Tables {
		name := tbl.FullName()
		for _, f := range tbl.Fields {
			switch f.Kind {
			case schema.KindTable, schema.KindStruct, schema.KindEnum:
			default:
				continue
			}
			counts[refEdge{name, f.Ref, f.Kind, f.Vector}]++
			involvement[name]++
			involvement[f.Ref]++
		}
	}

	renderSet := make(map[string]bool)
	ranked := make([]*schema.Table, len(s.Tables))
	copy(ranked, s.Tables)
	sort.SliceStable(ranked, func(i, j int) bool {
		return involvement[ranked[i].FullName()] > involvement[ranked[j].FullName()]
	})
	if maxNodes > 0 && len(ranked) > maxNodes {
		ranked = ranked[:maxNodes]
	}
	for _, tbl := range ranked {
		renderSet[tbl.FullName()] = true
	}

	var b strings.Builder
	b.WriteString("digraph schema {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  splines=true;\n")
	b.WriteString("  nodesep=0.5;\n")
	b.WriteString("  ranksep=0.8;\n")
	fmt.Fprintf(&b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(&b, "  node [shape=rect, style=\"filled,rounded\", fillcolor=%q, color=%q, penwidth=0.5, fontname=\"Helvetica Neue,Helvetica,Arial\", fontsize=10, fontcolor=%q, height=0.4, margin=\"0.15,0.08\"];\n",
		t.NodeFill, t.NodeBorder, t.TextColor)
	fmt.Fprintf(&b, "  edge [penwidth=0.5, arrowsize=0.5, arrowhead=vee, color=%q];\n", t.EdgeTable)
	if title != "" {
		fmt.Fprintf(&b, "  labelloc=t;\n  labeljust=l;\n")
		fmt.Fprintf(&b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"8\" color=\"%s\">%s</font>>;\n",
			t.TextColor, dotEscape(title))
	}
	b.WriteByte('\n')

	maxFields := 1
	for _, tbl := range ranked {
		if n := len(tbl.Fields); n > maxFields {
			maxFields = n
		}
	}
	// Tables keep schema order so output is stable.
	for _, tbl := range s.Tables {
		name := tbl.FullName()
		if !renderSet[name] {
			continue
		}
		n := len(tbl.Fields)
		height := 0.4 + 0.3*math.Log2(float64(n)+1)/math.Log2(float64(maxFields)+1)
		label := fmt.Sprintf("<<font point-size=\"10\">%s</font><br/><font point-size=\"7\" color=\"%s\">%s</font>>",
			dotEscape(truncLabel(name, maxLabel)), t.ExternalText, tableSubtitle(tbl))

		attrs := ""
		switch {
		case tbl.NoCreate:
			attrs = fmt.Sprintf(", fillcolor=%q, style=\"filled,rounded,dashed\"", t.NoCreateFill)
		case tbl.Confidence == schema.ConfidenceLow:
			attrs = fmt.Sprintf(", fillcolor=%q", t.LowFill)
		case len(tbl.Failures) > 0 || tbl.Outcome == schema.OutcomePartial:
			attrs = fmt.Sprintf(", fillcolor=%q", t.PartialFill)
		}
		fmt.Fprintf(&b, "  %s [label=%s, height=%.2f%s];\n", dotID(name), label, height, attrs)
	}

	enums := make(map[string]bool, len(s.Enums))
	for _, e := range s.Enums {
		name := e.FullName()
		enums[name] = true
		if involvement[name] == 0 {
			continue
		}
		label := fmt.Sprintf("<<font point-size=\"10\">%s</font><br/><font point-size=\"7\" color=\"%s\">enum : %s, %d values</font>>",
			dotEscape(truncLabel(name, maxLabel)), t.ExternalText, dotEscape(e.Underlying), len(e.Values))
		fmt.Fprintf(&b, "  %s [label=%s, shape=rect, style=filled, fillcolor=%q];\n", dotID(name), label, t.EnumFill)
	}

	edges := make([]refEdge, 0, len(counts))
	for e := range counts {
		if renderSet[e.from] {
			edges = append(edges, e)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		a, c := edges[i], edges[j]
		if a.from != c.from {
			return a.from < c.from
		}
		if a.to != c.to {
			return a.to < c.to
		}
		if a.kind != c.kind {
			return a.kind < c.kind
		}
		return !a.vector && c.vector
	})

	// Stubs for references leaving the rendered set.
	stubbed := make(map[string]bool)
	for _, e := range edges {
		if renderSet[e.to] || enums[e.to] || stubbed[e.to] {
			continue
		}
		stubbed[e.to] = true
		fmt.Fprintf(&b, "  %s [label=%q, style=\"rounded,dashed\", fontcolor=%q];\n",
			dotID(e.to), truncLabel(e.to, maxLabel), t.ExternalText)
	}
	b.WriteByte('\n')

	maxCount := 1
	for _, e := range edges {
		if c := counts[e]; c > maxCount {
			maxCount = c
		}
	}
	for _, e := range edges {
		count := counts[e]
		color := t.EdgeTable
		switch {
		case e.vector:
			color = t.EdgeVector
		case e.kind == schema.KindStruct:
			color = t.EdgeStruct
		case e.kind == schema.KindEnum:
			color = t.EdgeEnum
		}
		pw := 0.5 + 2.0*math.Log2(float64(count)+1)/math.Log2(float64(maxCount)+1)
		attrs := fmt.Sprintf("color=%q, penwidth=%.1f", color, pw)
		if e.vector {
			attrs += ", arrowhead=veevee"
		}
		if count > 1 {
			attrs += fmt.Sprintf(", label=<<font point-size=\"7\" color=\"%s\">%d</font>>",
				t.ExternalText, count)
		}
		fmt.Fprintf(&b, "  %s -> %s [%s];\n", dotID(e.from), dotID(e.to), attrs)
	}

	b.WriteString("}\n")
	return b.String()
}

func tableSubtitle(tbl *schema.Table) string {
	if tbl.NoCreate {
		return "no create method"
	}
	sub := fmt.Sprintf("%d fields", len(tbl.Fields))
	if tbl.Confidence == schema.ConfidenceLow {
		sub += ", positional"
	}
	if n := len(tbl.Failures); n > 0 {
		sub += fmt.Sprintf(", %d unresolved", n)
	}
	return sub
}
