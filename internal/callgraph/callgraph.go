// Package callgraph maps create-function call sequences and schema type
// references onto lattice graphs.
package callgraph

import (
	"github.com/zboralski/lattice"

	"fbsdump/internal/disasm"
	"fbsdump/internal/schema"
)

// FuncInfo holds the call sites of one create function.
type FuncInfo struct {
	Name  string
	Sites []disasm.CallSite
}

// BuildCallGraph constructs a lattice.Graph from create functions. Each
// function becomes a node and each direct call an edge to the callee's
// name, or its address when names cannot resolve it. Indirect calls are
// skipped.
func BuildCallGraph(funcs []FuncInfo, names disasm.SymbolLookup) *lattice.Graph {
	g := &lattice.Graph{}
	for _, f := range funcs {
		g.Nodes = append(g.Nodes, f.Name)
		for _, cs := range f.Sites {
			if cs.Indirect {
				continue
			}
			g.Edges = append(g.Edges, lattice.Edge{
				Caller: f.Name,
				Callee: calleeName(cs, names),
			})
		}
	}
	g.Dedup()
	return g
}

// BuildSchemaGraph constructs a lattice.Graph with one node per table and
// enum and an edge for every field that references another table, struct
// or enum.
func BuildSchemaGraph(s *schema.Schema) *lattice.Graph {
	g := &lattice.Graph{}
	for _, e := range s.Enums {
		g.Nodes = append(g.Nodes, e.FullName())
	}
	for _, t := range s.Tables {
		name := t.FullName()
		g.Nodes = append(g.Nodes, name)
		for _, f := range t.Fields {
			switch f.Kind {
			case schema.KindTable, schema.KindStruct, schema.KindEnum:
				g.Edges = append(g.Edges, lattice.Edge{Caller: name, Callee: f.Ref})
			}
		}
	}
	g.Dedup()
	return g
}

func calleeName(cs disasm.CallSite, names disasm.SymbolLookup) string {
	if !cs.Indirect && names != nil {
		if n, ok := names(cs.Target); ok {
			return n
		}
	}
	return cs.TargetString()
}
