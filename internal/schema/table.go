package schema

import (
	"strings"

	"fbsdump/internal/meta"
)

// FieldKind classifies a field's resolved type.
type FieldKind string

const (
	KindScalar  FieldKind = "scalar"
	KindString  FieldKind = "string"
	KindEnum    FieldKind = "enum"
	KindTable   FieldKind = "table"
	KindStruct  FieldKind = "struct"
	KindUnknown FieldKind = "unknown"
)

// scalarTypes maps runtime primitive types to FlatBuffers scalar names.
var scalarTypes = map[string]string{
	"System.Boolean": "bool",
	"System.SByte":   "byte",
	"System.Byte":    "ubyte",
	"System.Int16":   "short",
	"System.UInt16":  "ushort",
	"System.Int32":   "int",
	"System.UInt32":  "uint",
	"System.Int64":   "long",
	"System.UInt64":  "ulong",
	"System.Single":  "float",
	"System.Double":  "double",
	"System.String":  "string",
}

// Field is one recovered table field. Type is the IDL type name, Ref the
// runtime type it came from, Param the 1-based create parameter.
type Field struct {
	Slot   int       `json:"slot"`
	Name   string    `json:"name"`
	Type   string    `json:"type"`
	Ref    string    `json:"ref"`
	Kind   FieldKind `json:"kind"`
	Vector bool      `json:"vector,omitempty"`
	Param  int       `json:"param"`
}

// Table is one recovered table.
type Table struct {
	Namespace  string      `json:"namespace"`
	Name       string      `json:"name"`
	Outcome    OutcomeKind `json:"outcome"`
	Confidence Confidence  `json:"confidence,omitempty"`
	Declared   int         `json:"declared"`
	Fields     []Field     `json:"fields"`
	Failures   []string    `json:"failures,omitempty"`
	Diags      []Diag      `json:"diags,omitempty"`
	NoCreate   bool        `json:"no_create,omitempty"`
}

func (t *Table) FullName() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// EnumValue is one enum member.
type EnumValue struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Enum is one enum referenced by a table field.
type Enum struct {
	Namespace  string      `json:"namespace"`
	Name       string      `json:"name"`
	Underlying string      `json:"underlying"`
	Values     []EnumValue `json:"values"`
}

func (e *Enum) FullName() string {
	if e.Namespace == "" {
		return e.Name
	}
	return e.Namespace + "." + e.Name
}

// Schema is the result of dumping one image.
type Schema struct {
	Namespace string   `json:"namespace,omitempty"`
	Tables    []*Table `json:"tables"`
	Enums     []*Enum  `json:"enums"`
}

// FieldOptions controls field naming.
type FieldOptions struct {
	StripUnderscores bool
}

// EmptyTable is the table emitted for a type without a create method.
func EmptyTable(t *meta.Type) *Table {
	return &Table{
		Namespace: t.Namespace,
		Name:      t.Name,
		Outcome:   OutcomeNotRecognized,
		Fields:    []Field{},
		NoCreate:  true,
		Diags:     []Diag{{Kind: DiagNoCreate, Msg: "no Create" + t.Name + " method"}},
	}
}

// BuildTable types the fields of a reconstruction outcome from the create
// method's parameters. It returns the table and the enum types its fields
// reference, in field order without duplicates.
func BuildTable(t *meta.Type, create *meta.Method, out Outcome, res meta.Resolver, opts FieldOptions) (*Table, []*meta.Type) {
	tbl := &Table{
		Namespace:  t.Namespace,
		Name:       t.Name,
		Outcome:    out.Kind,
		Confidence: out.Confidence,
		Declared:   out.Declared,
		Fields:     []Field{},
	}
	for _, f := range out.Failures {
		tbl.Failures = append(tbl.Failures, f.Error())
	}
	diags := Diags{items: append([]Diag(nil), out.Diags...)}

	var enums []*meta.Type
	seen := make(map[*meta.Type]bool)
	for _, slot := range out.Mapping.Slots() {
		idx := out.Mapping[slot]
		if idx < 2 || idx > len(create.Params) {
			diags.Addf(uint64(create.RVA), DiagParamRange, "slot %d: parameter %d outside 2..%d", slot, idx, len(create.Params))
			continue
		}
		f, enum := typeField(t, create.Params[idx-1], res, opts, &diags, uint64(create.RVA))
		f.Slot, f.Param = slot, idx
		tbl.Fields = append(tbl.Fields, f)
		if enum != nil && !seen[enum] {
			seen[enum] = true
			enums = append(enums, enum)
		}
	}
	tbl.Diags = diags.Items()
	return tbl, enums
}

// typeField rewrites a parameter into a field. Offset wrappers are
// resolved to the type of the accessor method named after the field.
func typeField(t *meta.Type, p meta.Param, res meta.Resolver, opts FieldOptions, diags *Diags, addr uint64) (Field, *meta.Type) {
	ref := p.Ref
	if ref.Name == "" {
		ref = meta.TypeRef{Name: p.Type}
	}
	name := p.Name
	var f Field

	if ref.IsGeneric() {
		ref = ref.Args[0]
	}
	switch ref.Name {
	case meta.StringOffsetType:
		ref = meta.TypeRef{Name: "System.String"}
		name = strings.ReplaceAll(strings.TrimSuffix(name, "Offset"), "_", "")
	case meta.VectorOffsetType, meta.OffsetType:
		want := strings.ReplaceAll(strings.TrimSuffix(name, "Offset"), "_", "")
		m := t.MethodFold(want)
		if m == nil || m.ReturnRef.Name == "" {
			diags.Addf(addr, DiagNoAccessor, "field %s: no accessor %s", p.Name, want)
			break
		}
		f.Vector = ref.Name == meta.VectorOffsetType
		ref = m.ReturnRef
		name = m.Name
	}
	if ref.IsGeneric() {
		ref = ref.Args[0]
	}
	if opts.StripUnderscores {
		name = strings.ReplaceAll(name, "_", "")
	}

	f.Name = name
	f.Ref = ref.Name
	var enum *meta.Type
	switch {
	case ref.Name == "System.String":
		f.Kind, f.Type = KindString, "string"
	case scalarTypes[ref.Name] != "":
		f.Kind, f.Type = KindScalar, scalarTypes[ref.Name]
	default:
		f.Kind, f.Type = KindUnknown, ref.Short()
		if rt, ok := res.Lookup(ref.Name); ok {
			switch rt.Kind {
			case meta.KindEnum:
				f.Kind = KindEnum
				enum = rt
			case meta.KindStruct:
				f.Kind = KindStruct
			default:
				f.Kind = KindTable
			}
		}
	}
	return f, enum
}

// BuildEnum converts an enum type. Non-integral or missing underlying
// types default to int.
func BuildEnum(t *meta.Type) *Enum {
	e := &Enum{
		Namespace:  t.Namespace,
		Name:       t.Name,
		Underlying: "int",
		Values:     make([]EnumValue, 0, len(t.Constants)),
	}
	if s, ok := scalarTypes[t.Underlying]; ok && isIntegral(s) {
		e.Underlying = s
	}
	for _, c := range t.Constants {
		e.Values = append(e.Values, EnumValue{Name: c.Name, Value: c.Value})
	}
	return e
}

func isIntegral(s string) bool {
	switch s {
	case "byte", "ubyte", "short", "ushort", "int", "uint", "long", "ulong":
		return true
	}
	return false
}
