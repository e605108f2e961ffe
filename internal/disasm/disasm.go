// Package disasm decodes x86-64 function bodies and recovers call-argument
// provenance from them.
package disasm

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// SymbolLookup resolves an address to a symbolic name. Returns ("", false) if unknown.
type SymbolLookup func(addr uint64) (name string, ok bool)

// Options controls decoding and analysis limits.
type Options struct {
	BaseAddr uint64       // address of the first byte in the code slice
	MaxSteps int          // maximum instructions to decode or scan; 0 = DefaultMaxSteps
	Symbols  SymbolLookup // optional symbol resolver for listings
}

// DefaultMaxSteps bounds a single function body. IL2CPP create functions
// are a few hundred instructions at most.
const DefaultMaxSteps = 1 << 16

// EffectiveMaxSteps returns MaxSteps or the default.
func (o Options) EffectiveMaxSteps() int {
	if o.MaxSteps > 0 {
		return o.MaxSteps
	}
	return DefaultMaxSteps
}

// Decode decodes x86-64 instructions from code until the first RET, the end
// of data, or MaxSteps instructions, whichever comes first. The RET is
// included. Undecodable bytes are emitted as one-byte OpOther entries so
// addresses stay contiguous.
func Decode(code []byte, opts Options) []Inst {
	maxSteps := opts.EffectiveMaxSteps()
	var result []Inst

	offset := 0
	for offset < len(code) && len(result) < maxSteps {
		addr := opts.BaseAddr + uint64(offset)

		// ENDBR64 (f3 0f 1e fa) is not known to x86asm.
		if offset+4 <= len(code) &&
			code[offset] == 0xf3 && code[offset+1] == 0x0f &&
			code[offset+2] == 0x1e && code[offset+3] == 0xfa {
			result = append(result, Inst{Addr: addr, Len: 4, Op: OpOther, Text: "endbr64"})
			offset += 4
			continue
		}

		xi, err := x86asm.Decode(code[offset:], 64)
		if err != nil {
			result = append(result, Inst{
				Addr: addr,
				Len:  1,
				Op:   OpOther,
				Text: fmt.Sprintf(".byte 0x%02x", code[offset]),
			})
			offset++
			continue
		}

		inst := convert(xi, addr)
		inst.Text = x86asm.IntelSyntax(xi, addr, symname(opts.Symbols))
		result = append(result, inst)
		offset += xi.Len

		if inst.Op == OpRet {
			break
		}
	}
	return result
}

// Truncated reports whether Decode stopped before reaching a ret, either at
// MaxSteps or at the end of the supplied bytes.
func Truncated(insts []Inst) bool {
	return len(insts) == 0 || insts[len(insts)-1].Op != OpRet
}

// convert maps an x86asm instruction onto Inst.
func convert(xi x86asm.Inst, addr uint64) Inst {
	inst := Inst{Addr: addr, Len: xi.Len}

	switch xi.Op {
	case x86asm.MOV:
		inst.Op = OpMove
	case x86asm.LEA:
		inst.Op = OpLEA
	case x86asm.XOR:
		inst.Op = OpXor
	case x86asm.CALL:
		inst.Op = OpCall
	case x86asm.PUSH:
		inst.Op = OpPush
	case x86asm.SUB:
		inst.Op = OpSub
	case x86asm.RET:
		inst.Op = OpRet
	default:
		inst.Op = OpOther
	}

	for i := 0; i < len(inst.Args) && i < len(xi.Args); i++ {
		switch a := xi.Args[i].(type) {
		case x86asm.Reg:
			inst.Args[i] = RegOp(a)
		case x86asm.Mem:
			inst.Args[i] = Operand{Kind: OperandMem, Mem: Mem{Base: a.Base, Index: a.Index, Disp: a.Disp}}
		case x86asm.Imm:
			inst.Args[i] = ImmOp(int64(a))
		}
	}

	if inst.Op == OpCall {
		if rel, ok := xi.Args[0].(x86asm.Rel); ok {
			inst.Target = addr + uint64(xi.Len) + uint64(int64(rel))
		} else {
			inst.Indirect = true
		}
	}
	return inst
}

func symname(lookup SymbolLookup) x86asm.SymLookup {
	if lookup == nil {
		return nil
	}
	return func(addr uint64) (string, uint64) {
		if name, ok := lookup(addr); ok {
			return name, addr
		}
		return "", 0
	}
}

// Annotator returns an optional inline comment for an instruction.
// Empty string means no annotation.
type Annotator func(inst Inst) string

// Format renders instructions as stable text output.
// Each line: <addr>  <disasm>  ; <comments>
// Annotators are checked in order; first non-empty result is used.
func Format(insts []Inst, lookup SymbolLookup, annotators ...Annotator) string {
	var b strings.Builder
	for _, inst := range insts {
		fmt.Fprintf(&b, "0x%08x  ", inst.Addr)
		b.WriteString(inst.Text)
		commented := false
		if lookup != nil {
			if name, ok := lookup(inst.Addr); ok {
				fmt.Fprintf(&b, "  ; <%s>", name)
				commented = true
			}
		}
		if !commented {
			for _, ann := range annotators {
				if s := ann(inst); s != "" {
					fmt.Fprintf(&b, "  ; %s", s)
					break
				}
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// PlaceholderLookup returns a SymbolLookup over a fixed address → name map.
func PlaceholderLookup(names map[uint64]string) SymbolLookup {
	return func(addr uint64) (string, bool) {
		if name, ok := names[addr]; ok {
			return name, true
		}
		return "", false
	}
}
