package meta

import (
	"fmt"
	"strings"
)

// TypeRef is a parsed type reference such as
// "FlatBuffers.Offset<MX.Data.CharacterExcel>".
type TypeRef struct {
	Name string
	Args []TypeRef
}

// IsGeneric reports whether r has generic arguments.
func (r TypeRef) IsGeneric() bool { return len(r.Args) > 0 }

// Short returns the name without its namespace.
func (r TypeRef) Short() string {
	if i := strings.LastIndexByte(r.Name, '.'); i >= 0 {
		return r.Name[i+1:]
	}
	return r.Name
}

func (r TypeRef) String() string {
	if !r.IsGeneric() {
		return r.Name
	}
	parts := make([]string, len(r.Args))
	for i, a := range r.Args {
		parts[i] = a.String()
	}
	return r.Name + "<" + strings.Join(parts, ",") + ">"
}

// ParseTypeRef parses "Name" or "Name<Arg, Arg<...>>".
func ParseTypeRef(s string) (TypeRef, error) {
	p := typeRefParser{s: s}
	ref, err := p.parse()
	if err != nil {
		return TypeRef{}, err
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return TypeRef{}, fmt.Errorf("meta: type %q: trailing input at %d", s, p.pos)
	}
	return ref, nil
}

type typeRefParser struct {
	s   string
	pos int
}

func (p *typeRefParser) skipSpace() {
	for p.pos < len(p.s) && p.s[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeRefParser) parse() (TypeRef, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.s) && !strings.ContainsRune("<>, ", rune(p.s[p.pos])) {
		p.pos++
	}
	if p.pos == start {
		return TypeRef{}, fmt.Errorf("meta: type %q: expected name at %d", p.s, p.pos)
	}
	ref := TypeRef{Name: p.s[start:p.pos]}

	p.skipSpace()
	if p.pos >= len(p.s) || p.s[p.pos] != '<' {
		return ref, nil
	}
	p.pos++
	for {
		arg, err := p.parse()
		if err != nil {
			return TypeRef{}, err
		}
		ref.Args = append(ref.Args, arg)
		p.skipSpace()
		if p.pos >= len(p.s) {
			return TypeRef{}, fmt.Errorf("meta: type %q: unterminated generic", p.s)
		}
		switch p.s[p.pos] {
		case ',':
			p.pos++
		case '>':
			p.pos++
			return ref, nil
		default:
			return TypeRef{}, fmt.Errorf("meta: type %q: unexpected %q at %d", p.s, p.s[p.pos], p.pos)
		}
	}
}
