// Package dump drives schema recovery over every FlatBuffers type of an
// image: decode the create function, track call arguments, reconstruct
// the table and type its fields.
package dump

import (
	"context"
	"fmt"
	"runtime"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"

	"fbsdump/internal/disasm"
	"fbsdump/internal/meta"
	"fbsdump/internal/schema"
)

// DefaultMaxFuncBytes caps the bytes read for one create function.
const DefaultMaxFuncBytes = 64 << 10

// CodeSource serves method bytes. *imagex.Image implements it.
type CodeSource interface {
	CodeAt(rva, offset uint64, max int) ([]byte, error)
}

// Options controls a dump run.
type Options struct {
	Mode             schema.Mode
	Workers          int // 0 = GOMAXPROCS
	MaxSteps         int // per function; 0 = disasm default
	MaxFuncBytes     int // 0 = DefaultMaxFuncBytes
	StripUnderscores bool
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (o Options) maxFuncBytes() int {
	if o.MaxFuncBytes > 0 {
		return o.MaxFuncBytes
	}
	return DefaultMaxFuncBytes
}

// Dumper holds the per-image inputs shared by every type. All fields are
// read-only during a run.
type Dumper struct {
	Resolver meta.Resolver
	Image    CodeSource
	Builder  schema.Builder
	Options  Options
}

// TypeResult is the outcome for one type. Table is nil when Err is set.
type TypeResult struct {
	Type    *meta.Type
	Table   *schema.Table
	Enums   []*meta.Type
	Sites   []disasm.CallSite
	Outcome schema.Outcome
	Err     error
}

// Decode returns the instructions of a method.
func (d *Dumper) Decode(m *meta.Method) ([]disasm.Inst, error) {
	code, err := d.Image.CodeAt(uint64(m.RVA), uint64(m.Offset), d.Options.maxFuncBytes())
	if err != nil {
		return nil, fmt.Errorf("dump: %s at %s: %w", m.Name, m.RVA, err)
	}
	return disasm.Decode(code, disasm.Options{BaseAddr: uint64(m.RVA), MaxSteps: d.Options.MaxSteps}), nil
}

// DumpType recovers one table. It never panics on malformed input; every
// problem lands in the result's Err, Failures or Diags.
func (d *Dumper) DumpType(t *meta.Type) TypeResult {
	ctx := log.WithField("type", t.FullName())
	res := TypeResult{Type: t}

	create := t.CreateMethod()
	if create == nil {
		ctx.Debug("no create method")
		res.Table = schema.EmptyTable(t)
		return res
	}

	insts, err := d.Decode(create)
	if err != nil {
		res.Err = err
		return res
	}
	res.Sites = disasm.AnalyzeCalls(insts, disasm.Options{MaxSteps: d.Options.MaxSteps})

	setterAddrs, err := meta.SetterAddrs(d.Resolver, create)
	if err != nil {
		ctx.WithError(err).Warn("builder setters unresolved")
	}
	var typeEnd uint64
	end := t.EndMethod()
	if end != nil {
		typeEnd = uint64(end.RVA)
	}

	out := schema.ReconstructTable(res.Sites, schema.NewAddrSet(setterAddrs...), d.Builder, typeEnd)
	if disasm.Truncated(insts) {
		ctx.WithField("insts", len(insts)).Warn("no ret before scan limit")
		out.Diags = append(out.Diags, schema.Diag{
			Addr: uint64(create.RVA),
			Kind: schema.DiagTruncated,
			Msg:  fmt.Sprintf("no ret within %d instructions", len(insts)),
		})
	}
	if end == nil {
		out.Diags = append(out.Diags, schema.Diag{Addr: uint64(create.RVA), Kind: schema.DiagNoEnd, Msg: "no End" + t.Name + " method"})
	}

	switch out.Kind {
	case schema.OutcomeNotRecognized:
		ctx.Debug("builder pattern not recognized, using parameter order")
		diags := out.Diags
		out = schema.FallbackPositional(create.Params)
		out.Diags = append(diags, out.Diags...)
	case schema.OutcomePartial:
		ctx.WithFields(log.Fields{
			"failures":  len(out.Failures),
			"collected": out.Collected,
			"declared":  out.Declared,
		}).Debug("partial mapping")
		if d.Options.Mode == schema.ModeStrict {
			res.Outcome = out
			res.Err = fmt.Errorf("dump: %s: %w", t.FullName(), out.Err())
			return res
		}
	}
	res.Outcome = out

	res.Table, res.Enums = schema.BuildTable(t, create, out, d.Resolver, schema.FieldOptions{
		StripUnderscores: d.Options.StripUnderscores,
	})
	ctx.Debugf("%d fields (%s)", len(res.Table.Fields), out.Kind)
	return res
}

// DumpAll runs DumpType over types in parallel and merges the tables and
// enums in input order. One type's error never stops the others; the
// returned error is only set when ctx is cancelled.
func (d *Dumper) DumpAll(ctx context.Context, types []*meta.Type) (*schema.Schema, []TypeResult, error) {
	results := make([]TypeResult, len(types))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.Options.workers())
	for i, t := range types {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = d.DumpType(t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, results, err
	}
	return Merge(results), results, nil
}

// Merge collects the tables of successful results and their enums,
// deduplicated by full name, first occurrence wins.
func Merge(results []TypeResult) *schema.Schema {
	s := &schema.Schema{Tables: []*schema.Table{}, Enums: []*schema.Enum{}}
	seen := make(map[string]bool)
	for _, r := range results {
		if r.Err != nil || r.Table == nil {
			continue
		}
		s.Tables = append(s.Tables, r.Table)
		for _, e := range r.Enums {
			name := e.FullName()
			if seen[name] {
				continue
			}
			seen[name] = true
			s.Enums = append(s.Enums, schema.BuildEnum(e))
		}
	}
	return s
}
