package callgraph

import (
	"fmt"

	"github.com/zboralski/lattice"

	"fbsdump/internal/disasm"
)

// BuildCFG constructs a lattice.CFGGraph with one create-sequence function
// per FuncInfo.
func BuildCFG(funcs []FuncInfo, names disasm.SymbolLookup) *lattice.CFGGraph {
	cg := &lattice.CFGGraph{}
	for _, f := range funcs {
		cg.Funcs = append(cg.Funcs, BuildCreateCFG(f.Name, f.Sites, names))
	}
	return cg
}

// BuildCreateCFG builds a single-block lattice.FuncCFG listing every call
// of a create function in program order, each labelled with the callee and
// the captured slot and value provenance. A function without calls has no
// blocks.
func BuildCreateCFG(name string, sites []disasm.CallSite, names disasm.SymbolLookup) *lattice.FuncCFG {
	lcfg := &lattice.FuncCFG{Name: name}
	if len(sites) == 0 {
		return lcfg
	}
	calls := make([]lattice.CallSite, 0, len(sites))
	for i, cs := range sites {
		calls = append(calls, lattice.CallSite{Offset: i, Callee: callLabel(cs, names)})
	}
	lcfg.Blocks = append(lcfg.Blocks, &lattice.BasicBlock{
		ID:    0,
		Start: 0,
		End:   len(sites),
		Term:  true,
		Calls: calls,
	})
	return lcfg
}

// callLabel renders "callee(slot, value)" using the compact origin form:
// literals as numbers, parameters as pN, caller stack slots as sN.
func callLabel(cs disasm.CallSite, names disasm.SymbolLookup) string {
	return fmt.Sprintf("%s(%s, %s)", calleeName(cs, names), shortOrigin(cs.SecondArg), shortOrigin(cs.ThirdArg))
}

func shortOrigin(o disasm.Origin) string {
	switch o.Kind {
	case disasm.OriginParam:
		return fmt.Sprintf("p%d", o.Value)
	case disasm.OriginImmediate:
		return fmt.Sprintf("%d", o.Value)
	case disasm.OriginStackParam:
		return fmt.Sprintf("s%d", o.Value)
	}
	return "?"
}
