// Package meta holds the method and type metadata of an IL2CPP image and
// the FlatBuffers-specific lookups built on it.
package meta

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind classifies a type.
type Kind string

const (
	KindClass  Kind = "class"
	KindStruct Kind = "struct"
	KindEnum   Kind = "enum"
)

// Addr is a code address. It decodes from a YAML/JSON integer or from a
// "0x..." string.
type Addr uint64

func (a *Addr) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("meta: line %d: address must be a scalar", value.Line)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(value.Value), 0, 64)
	if err != nil {
		return fmt.Errorf("meta: line %d: address %q: %w", value.Line, value.Value, err)
	}
	*a = Addr(v)
	return nil
}

func (a Addr) String() string { return fmt.Sprintf("0x%x", uint64(a)) }

// Param is one declared method parameter.
type Param struct {
	Name string  `yaml:"name" json:"name"`
	Type string  `yaml:"type" json:"type"`
	Ref  TypeRef `yaml:"-" json:"-"`
}

// Method is one method with its compiled location.
type Method struct {
	Name    string  `yaml:"name"`
	RVA     Addr    `yaml:"rva"`
	Offset  Addr    `yaml:"offset"`
	Static  bool    `yaml:"static"`
	Public  bool    `yaml:"public"`
	Params  []Param `yaml:"params"`
	Returns string  `yaml:"returns"`

	ReturnRef TypeRef `yaml:"-"`
}

// Constant is one enum member.
type Constant struct {
	Name  string `yaml:"name"`
	Value int64  `yaml:"value"`
}

// Type is one class, struct or enum.
type Type struct {
	Namespace  string     `yaml:"namespace"`
	Name       string     `yaml:"name"`
	Kind       Kind       `yaml:"kind"`
	Interfaces []string   `yaml:"interfaces"`
	Underlying string     `yaml:"underlying"` // enums only
	Constants  []Constant `yaml:"constants"`  // enums only
	Methods    []*Method  `yaml:"methods"`
}

// FullName is Namespace.Name, or Name for the global namespace.
func (t *Type) FullName() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

func (t *Type) IsEnum() bool { return t.Kind == KindEnum }

// Implements reports whether t lists iface among its interfaces.
func (t *Type) Implements(iface string) bool {
	for _, i := range t.Interfaces {
		if i == iface {
			return true
		}
	}
	return false
}

// Method returns the first method named name.
func (t *Type) Method(name string) *Method {
	for _, m := range t.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// MethodFold returns the first method whose name equals name ignoring case.
func (t *Type) MethodFold(name string) *Method {
	for _, m := range t.Methods {
		if strings.EqualFold(m.Name, name) {
			return m
		}
	}
	return nil
}

// CreateMethod returns the static public Create<Name>(builder, ...) method,
// or nil if the type has none.
func (t *Type) CreateMethod() *Method {
	want := "Create" + t.Name
	for _, m := range t.Methods {
		if m.Name == want && m.Static && m.Public &&
			len(m.Params) > 1 && m.Params[0].Name == "builder" {
			return m
		}
	}
	return nil
}

// EndMethod returns End<Name>, or nil.
func (t *Type) EndMethod() *Method {
	return t.Method("End" + t.Name)
}

// resolveRefs parses every type string of t.
func (t *Type) resolveRefs() error {
	for _, m := range t.Methods {
		for i := range m.Params {
			ref, err := ParseTypeRef(m.Params[i].Type)
			if err != nil {
				return fmt.Errorf("%s.%s param %s: %w", t.FullName(), m.Name, m.Params[i].Name, err)
			}
			m.Params[i].Ref = ref
		}
		if m.Returns != "" {
			ref, err := ParseTypeRef(m.Returns)
			if err != nil {
				return fmt.Errorf("%s.%s return: %w", t.FullName(), m.Name, err)
			}
			m.ReturnRef = ref
		}
	}
	return nil
}
