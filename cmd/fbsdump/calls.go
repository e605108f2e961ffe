package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/apex/log"

	"fbsdump/internal/disasm"
	"fbsdump/internal/meta"
	"fbsdump/internal/output"
)

func cmdCalls(args []string) error {
	fs := flag.NewFlagSet("calls", flag.ExitOnError)
	cf := addCommonFlags(fs)
	typeName := fs.String("type", "", "only this type (full or short name)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := cf.open(true)
	if err != nil {
		return err
	}
	d, err := s.dumper()
	if err != nil {
		return err
	}

	types := s.types()
	if *typeName != "" {
		t, err := s.findType(*typeName)
		if err != nil {
			return err
		}
		types = []*meta.Type{t}
	}

	var recs []disasm.CallSiteRecord
	for _, t := range types {
		create := t.CreateMethod()
		if create == nil {
			continue
		}
		insts, err := d.Decode(create)
		if err != nil {
			log.WithField("type", t.FullName()).WithError(err).Warn("decode failed")
			continue
		}
		name := funcName(t, create)
		for _, cs := range disasm.AnalyzeCalls(insts, disasm.Options{MaxSteps: s.cfg.MaxSteps}) {
			recs = append(recs, cs.Record(name, s.names))
		}
	}
	if err := output.EncodeJSONL(os.Stdout, recs); err != nil {
		return fmt.Errorf("write calls: %w", err)
	}
	return nil
}
