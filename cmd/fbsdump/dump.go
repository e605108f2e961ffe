package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/apex/log"
	lrender "github.com/zboralski/lattice/render"

	"fbsdump/internal/callgraph"
	"fbsdump/internal/disasm"
	"fbsdump/internal/dump"
	"fbsdump/internal/output"
	"fbsdump/internal/render"
	"fbsdump/internal/schema"
)

func cmdDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	cf := addCommonFlags(fs)
	outDir := fs.String("out", "", "output directory")
	graph := fs.Bool("graph", false, "write schema, call graph and per-type CFG DOT files")
	asm := fs.Bool("asm", false, "write an annotated listing per create function")
	maxNodes := fs.Int("max-nodes", 0, "max tables in schema.dot (0 = all)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *outDir == "" {
		return fmt.Errorf("--out is required")
	}
	s, err := cf.open(true)
	if err != nil {
		return err
	}
	d, err := s.dumper()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	types := s.types()
	fmt.Fprintf(os.Stderr, "%d FlatBuffers types (%s image, %d bytes)\n", len(types), s.img.Format, s.img.Size())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	sch, results, err := d.DumpAll(ctx, types)
	if err != nil {
		return fmt.Errorf("dump: %w", err)
	}
	sch.Namespace = s.cfg.Namespace

	if err := output.WriteFBS(*outDir, sch); err != nil {
		return fmt.Errorf("write schema.fbs: %w", err)
	}
	if err := output.WriteSchemaJSON(*outDir, sch); err != nil {
		return fmt.Errorf("write schema.json: %w", err)
	}
	if err := output.WriteTablesJSONL(*outDir, sch.Tables); err != nil {
		return fmt.Errorf("write tables.jsonl: %w", err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s/schema.fbs (%d tables, %d enums)\n", *outDir, len(sch.Tables), len(sch.Enums))

	var recs []disasm.CallSiteRecord
	var funcs []callgraph.FuncInfo
	for _, r := range results {
		create := r.Type.CreateMethod()
		if create == nil {
			continue
		}
		name := funcName(r.Type, create)
		for _, cs := range r.Sites {
			recs = append(recs, cs.Record(name, s.names))
		}
		funcs = append(funcs, callgraph.FuncInfo{Name: name, Sites: r.Sites})
	}
	if err := output.WriteCallSitesJSONL(*outDir, recs); err != nil {
		return fmt.Errorf("write call_sites.jsonl: %w", err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s/call_sites.jsonl (%d calls)\n", *outDir, len(recs))

	if *graph {
		if err := writeGraphs(*outDir, sch, funcs, s, *maxNodes); err != nil {
			return err
		}
	}
	if *asm {
		if err := writeListings(*outDir, d, results, s); err != nil {
			return err
		}
	}

	return summarize(results, d.Options.Mode)
}

func writeGraphs(dir string, sch *schema.Schema, funcs []callgraph.FuncInfo, s *session, maxNodes int) error {
	if err := output.WriteDOT(dir, "schema", render.SchemaDOT(sch, "schema", render.NASA, maxNodes)); err != nil {
		return fmt.Errorf("write schema.dot: %w", err)
	}
	refs := callgraph.BuildSchemaGraph(sch)
	if err := output.WriteDOT(dir, "refs", lrender.DOT(refs, "type references")); err != nil {
		return fmt.Errorf("write refs.dot: %w", err)
	}
	cg := callgraph.BuildCallGraph(funcs, s.names)
	if err := output.WriteDOT(dir, "callgraph", lrender.DOT(cg, "create call graph")); err != nil {
		return fmt.Errorf("write callgraph.dot: %w", err)
	}
	var n int
	for _, f := range funcs {
		if len(f.Sites) == 0 {
			continue
		}
		cfg := callgraph.BuildCFG([]callgraph.FuncInfo{f}, s.names)
		if err := output.WriteDOT(dir, "cfg/"+f.Name, lrender.DOTCFG(cfg, f.Name)); err != nil {
			return fmt.Errorf("write cfg %s: %w", f.Name, err)
		}
		n++
	}
	fmt.Fprintf(os.Stderr, "wrote %s/schema.dot, refs.dot, callgraph.dot and %d CFGs\n", dir, n)
	return nil
}

func writeListings(dir string, d *dump.Dumper, results []dump.TypeResult, s *session) error {
	n := 0
	for _, r := range results {
		create := r.Type.CreateMethod()
		if create == nil {
			continue
		}
		insts, err := d.Decode(create)
		if err != nil {
			// Already reported through the result.
			continue
		}
		anns := []disasm.Annotator{disasm.CallAnnotator(r.Sites, s.names), disasm.ProvenanceAnnotator(insts)}
		if err := output.WriteASM(dir, fileName(r.Type), insts, s.names, anns...); err != nil {
			return fmt.Errorf("write asm %s: %w", r.Type.FullName(), err)
		}
		n++
	}
	fmt.Fprintf(os.Stderr, "wrote %d listings to %s/asm\n", n, dir)
	return nil
}

// summarize prints per-outcome counts and every failed type. Failures are
// fatal only in strict mode.
func summarize(results []dump.TypeResult, mode schema.Mode) error {
	counts := make(map[string]int)
	var failed, diags int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			log.WithField("type", r.Type.FullName()).WithError(r.Err).Warn("type failed")
			continue
		case r.Table != nil && r.Table.NoCreate:
			counts["no_create"]++
		default:
			counts[r.Outcome.Kind.String()]++
		}
		diags += len(r.Outcome.Diags)
	}

	fmt.Fprintf(os.Stderr, "\n%d types: %d complete, %d partial, %d fallback, %d no create, %d failed\n",
		len(results), counts["complete"], counts["partial"], counts["fallback"], counts["no_create"], failed)
	if diags > 0 {
		fmt.Fprintf(os.Stderr, "diagnostics: %d issues (see tables.jsonl)\n", diags)
	}
	if failed > 0 && mode == schema.ModeStrict {
		return fmt.Errorf("%d types failed in strict mode", failed)
	}
	return nil
}
