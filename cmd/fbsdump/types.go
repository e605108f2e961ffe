package main

import (
	"flag"
	"fmt"
)

func cmdTypes(args []string) error {
	fs := flag.NewFlagSet("types", flag.ExitOnError)
	cf := addCommonFlags(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := cf.open(false)
	if err != nil {
		return err
	}

	types := s.types()
	for _, t := range types {
		create := t.CreateMethod()
		if create == nil {
			fmt.Printf("%-48s  %-12s  -\n", t.FullName(), "no create")
			continue
		}
		end := "-"
		if m := t.EndMethod(); m != nil {
			end = m.RVA.String()
		}
		fmt.Printf("%-48s  %-12s  %d params, end %s\n", t.FullName(), create.RVA, len(create.Params), end)
	}
	fmt.Printf("%d types\n", len(types))
	return nil
}
