package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/apex/log"

	"fbsdump/internal/config"
	"fbsdump/internal/disasm"
	"fbsdump/internal/dump"
	"fbsdump/internal/imagex"
	"fbsdump/internal/meta"
	"fbsdump/internal/schema"
)

// commonFlags are shared by every subcommand. Zero values leave the
// configuration file untouched.
type commonFlags struct {
	meta       *string
	image      *string
	config     *string
	namespace  *string
	iface      *string
	strict     *bool
	bestEffort *bool
	keepUnders *bool
	workers    *int
	maxSteps   *int
	verbose    *bool
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		meta:       fs.String("meta", "", "method metadata file (YAML or JSON)"),
		image:      fs.String("image", "", "PE, ELF or raw x86-64 image"),
		config:     fs.String("config", "", "optional YAML configuration"),
		namespace:  fs.String("namespace", "", "restrict to one namespace"),
		iface:      fs.String("interface", "", "FlatBuffers marker interface"),
		strict:     fs.Bool("strict", false, "fail a type whose mapping is partial"),
		bestEffort: fs.Bool("best-effort", false, "keep partial mappings (default)"),
		keepUnders: fs.Bool("keep-underscores", false, "keep underscores in field names"),
		workers:    fs.Int("workers", 0, "parallel types (0 = GOMAXPROCS)"),
		maxSteps:   fs.Int("max-steps", 0, "per-function instruction cap"),
		verbose:    fs.Bool("v", false, "debug logging"),
	}
}

// session is everything a subcommand needs after flag handling.
type session struct {
	cfg   *config.Config
	idx   *meta.Index
	img   *imagex.Image
	names disasm.SymbolLookup
}

// open loads the configuration, applies flag overrides, then reads the
// metadata and, when needImage is set, the image.
func (f *commonFlags) open(needImage bool) (*session, error) {
	if *f.verbose {
		log.SetLevel(log.DebugLevel)
	}
	if *f.meta == "" {
		return nil, fmt.Errorf("--meta is required")
	}
	if needImage && *f.image == "" {
		return nil, fmt.Errorf("--image is required")
	}

	cfg, err := config.Load(*f.config)
	if err != nil {
		return nil, err
	}
	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	idx, err := meta.Load(*f.meta)
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}
	s := &session{cfg: cfg, idx: idx, names: methodNames(idx)}
	if needImage {
		if s.img, err = imagex.Open(*f.image); err != nil {
			return nil, fmt.Errorf("open image: %w", err)
		}
		log.WithFields(log.Fields{
			"format":   s.img.Format,
			"sections": len(s.img.Sections),
			"size":     s.img.Size(),
		}).Debug("image loaded")
	}
	return s, nil
}

func (f *commonFlags) apply(cfg *config.Config) {
	if *f.namespace != "" {
		cfg.Namespace = *f.namespace
	}
	if *f.iface != "" {
		cfg.Interface = *f.iface
	}
	switch {
	case *f.strict:
		cfg.Mode = schema.ModeStrict.String()
	case *f.bestEffort:
		cfg.Mode = schema.ModeBestEffort.String()
	}
	if *f.keepUnders {
		strip := false
		cfg.StripUnderscores = &strip
	}
	if *f.workers > 0 {
		cfg.Workers = *f.workers
	}
	if *f.maxSteps > 0 {
		cfg.MaxSteps = *f.maxSteps
	}
}

// types returns the FlatBuffers types in scope.
func (s *session) types() []*meta.Type {
	return meta.FlatBufferTypes(s.idx, s.cfg.Interface, s.cfg.Namespace)
}

// findType matches a full name first, then a short name.
func (s *session) findType(name string) (*meta.Type, error) {
	var short *meta.Type
	for _, t := range s.types() {
		if t.FullName() == name {
			return t, nil
		}
		if short == nil && t.Name == name {
			short = t
		}
	}
	if short == nil {
		return nil, fmt.Errorf("%w: %s", meta.ErrNoType, name)
	}
	return short, nil
}

func (s *session) dumper() (*dump.Dumper, error) {
	b, err := s.cfg.ResolveBuilder(s.idx)
	if err != nil {
		return nil, fmt.Errorf("resolve builder: %w", err)
	}
	mode, err := schema.ParseMode(s.cfg.Mode)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"start_object": fmt.Sprintf("0x%x", b.StartObject),
		"end_object":   fmt.Sprintf("0x%x", b.EndObject),
		"mode":         mode,
	}).Debug("builder resolved")
	return &dump.Dumper{
		Resolver: s.idx,
		Image:    s.img,
		Builder:  b,
		Options: dump.Options{
			Mode:             mode,
			Workers:          s.cfg.Workers,
			MaxSteps:         s.cfg.MaxSteps,
			MaxFuncBytes:     s.cfg.MaxFuncBytes,
			StripUnderscores: s.cfg.Strip(),
		},
	}, nil
}

// methodNames maps every method RVA in the metadata to "Type.Method".
// The first declaration wins when two methods share an RVA.
func methodNames(res meta.Resolver) disasm.SymbolLookup {
	names := make(map[uint64]string)
	for _, t := range res.Types() {
		if t == nil {
			continue
		}
		for _, m := range t.Methods {
			if m.RVA == 0 {
				continue
			}
			if _, ok := names[uint64(m.RVA)]; !ok {
				names[uint64(m.RVA)] = t.Name + "." + m.Name
			}
		}
	}
	return disasm.PlaceholderLookup(names)
}

// funcName is the trace label of a type's create function.
func funcName(t *meta.Type, m *meta.Method) string {
	return t.FullName() + "." + m.Name
}

// fileName turns a type's full name into a flat file name.
func fileName(t *meta.Type) string {
	return strings.NewReplacer("/", "_", "\\", "_", "<", "_", ">", "_", "`", "_").Replace(t.FullName())
}
