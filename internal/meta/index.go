package meta

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Well-known FlatBuffers runtime names.
const (
	DefaultInterface   = "FlatBuffers.IFlatbufferObject"
	DefaultBuilderType = "FlatBuffers.FlatBufferBuilder"

	StringOffsetType = "FlatBuffers.StringOffset"
	VectorOffsetType = "FlatBuffers.VectorOffset"
	OffsetType       = "FlatBuffers.Offset"
)

var (
	ErrNoType   = errors.New("meta: type not found")
	ErrNoMethod = errors.New("meta: method not found")
	ErrDupType  = errors.New("meta: duplicate type")
)

// Resolver answers metadata queries. Implementations must be safe for
// concurrent reads.
type Resolver interface {
	// Types returns every type in declaration order.
	Types() []*Type
	// Lookup finds a type by full name.
	Lookup(fullName string) (*Type, bool)
}

// Document is the on-disk metadata layout.
type Document struct {
	Types []*Type `yaml:"types"`
}

// Index is an immutable Resolver over a Document.
type Index struct {
	types  []*Type
	byName map[string]*Type
}

// NewIndex builds an index. Type references are parsed eagerly so later
// lookups never fail on syntax.
func NewIndex(types []*Type) (*Index, error) {
	idx := &Index{types: types, byName: make(map[string]*Type, len(types))}
	for _, t := range types {
		if t == nil {
			continue
		}
		name := t.FullName()
		if _, dup := idx.byName[name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDupType, name)
		}
		if err := t.resolveRefs(); err != nil {
			return nil, err
		}
		idx.byName[name] = t
	}
	return idx, nil
}

// Parse decodes a YAML or JSON metadata document.
func Parse(data []byte) (*Index, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("meta: decode: %w", err)
	}
	return NewIndex(doc.Types)
}

// Load reads and parses a metadata file.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("meta: read: %w", err)
	}
	return Parse(data)
}

func (idx *Index) Types() []*Type { return idx.types }

func (idx *Index) Lookup(fullName string) (*Type, bool) {
	t, ok := idx.byName[fullName]
	return t, ok
}

// FlatBufferTypes returns the types implementing iface, optionally
// restricted to one namespace, with duplicate short names dropped (first
// declaration wins). Enums and structs are excluded.
func FlatBufferTypes(res Resolver, iface, namespace string) []*Type {
	if iface == "" {
		iface = DefaultInterface
	}
	seen := make(map[string]bool)
	var out []*Type
	for _, t := range res.Types() {
		if t == nil || t.IsEnum() || !t.Implements(iface) {
			continue
		}
		if namespace != "" && t.Namespace != namespace {
			continue
		}
		if seen[t.Name] {
			continue
		}
		seen[t.Name] = true
		out = append(out, t)
	}
	return out
}

// Builder holds the addresses of the builder primitives bracketing a table.
type Builder struct {
	StartObject uint64
	EndObject   uint64
}

// ResolveBuilder finds StartObject and EndObject on the builder type.
func ResolveBuilder(res Resolver, builderType string) (Builder, error) {
	if builderType == "" {
		builderType = DefaultBuilderType
	}
	bt, ok := res.Lookup(builderType)
	if !ok {
		return Builder{}, fmt.Errorf("%w: %s", ErrNoType, builderType)
	}
	start := bt.Method("StartObject")
	if start == nil {
		return Builder{}, fmt.Errorf("%w: %s.StartObject", ErrNoMethod, builderType)
	}
	end := bt.Method("EndObject")
	if end == nil {
		return Builder{}, fmt.Errorf("%w: %s.EndObject", ErrNoMethod, builderType)
	}
	return Builder{StartObject: uint64(start.RVA), EndObject: uint64(end.RVA)}, nil
}

// SetterMethods returns the methods of the create method's builder
// parameter type: the helpers a create function calls to write fields.
// Methods without an address are skipped.
func SetterMethods(res Resolver, create *Method) ([]*Method, error) {
	if create == nil || len(create.Params) == 0 {
		return nil, fmt.Errorf("%w: create method has no builder parameter", ErrNoMethod)
	}
	name := create.Params[0].Ref.Name
	if name == "" {
		name = create.Params[0].Type
	}
	bt, ok := res.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoType, name)
	}
	var out []*Method
	for _, m := range bt.Methods {
		if m.RVA != 0 {
			out = append(out, m)
		}
	}
	return out, nil
}

// SetterAddrs is SetterMethods reduced to addresses.
func SetterAddrs(res Resolver, create *Method) ([]uint64, error) {
	ms, err := SetterMethods(res, create)
	if err != nil {
		return nil, err
	}
	addrs := make([]uint64, len(ms))
	for i, m := range ms {
		addrs[i] = uint64(m.RVA)
	}
	return addrs, nil
}
