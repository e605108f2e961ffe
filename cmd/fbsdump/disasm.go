package main

import (
	"flag"
	"fmt"

	"fbsdump/internal/disasm"
)

func cmdDisasm(args []string) error {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	cf := addCommonFlags(fs)
	typeName := fs.String("type", "", "type whose create function to list (full or short name)")
	method := fs.String("method", "", "list this method of the type instead")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *typeName == "" {
		return fmt.Errorf("--type is required")
	}
	s, err := cf.open(true)
	if err != nil {
		return err
	}
	d, err := s.dumper()
	if err != nil {
		return err
	}
	t, err := s.findType(*typeName)
	if err != nil {
		return err
	}

	m := t.CreateMethod()
	if *method != "" {
		m = t.Method(*method)
	}
	if m == nil {
		return fmt.Errorf("%s has no method to list", t.FullName())
	}

	insts, err := d.Decode(m)
	if err != nil {
		return err
	}
	sites := disasm.AnalyzeCalls(insts, disasm.Options{MaxSteps: s.cfg.MaxSteps})
	alloc, end := disasm.FrameSize(insts)

	fmt.Printf("; %s at %s, %d params\n", funcName(t, m), m.RVA, len(m.Params))
	fmt.Printf("; frame %#x over %d prologue instructions, %d calls\n", alloc, end, len(sites))
	fmt.Print(disasm.Format(insts, s.names, disasm.CallAnnotator(sites, s.names), disasm.ProvenanceAnnotator(insts)))
	return nil
}
