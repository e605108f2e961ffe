package disasm

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/arch/x86/x86asm"
)

func mov(dst, src Operand) Inst  { return Inst{Op: OpMove, Args: [2]Operand{dst, src}} }
func xor(r x86asm.Reg) Inst      { return Inst{Op: OpXor, Args: [2]Operand{RegOp(r), RegOp(r)}} }
func push(r x86asm.Reg) Inst     { return Inst{Op: OpPush, Args: [2]Operand{RegOp(r)}} }
func subRSP(n int64) Inst        { return Inst{Op: OpSub, Args: [2]Operand{RegOp(x86asm.RSP), ImmOp(n)}} }
func call(addr, target uint64) Inst {
	return Inst{Addr: addr, Op: OpCall, Target: target}
}

func TestCanon(t *testing.T) {
	tests := []struct {
		reg  x86asm.Reg
		want CanonReg
	}{
		{x86asm.DL, RegRDX},
		{x86asm.DH, RegRDX},
		{x86asm.DX, RegRDX},
		{x86asm.EDX, RegRDX},
		{x86asm.RDX, RegRDX},
		{x86asm.R8B, RegR8},
		{x86asm.R8W, RegR8},
		{x86asm.R8L, RegR8},
		{x86asm.R8, RegR8},
		{x86asm.SPB, RegRSP},
		{x86asm.DIB, RegRDI},
		{x86asm.R15L, RegR15},
		{x86asm.ECX, RegRCX},
	}
	for _, tt := range tests {
		got, ok := Canon(tt.reg)
		if !ok || got != tt.want {
			t.Errorf("Canon(%s) = %s, %v; want %s", tt.reg, got, ok, tt.want)
		}
	}

	if _, ok := Canon(x86asm.RIP); ok {
		t.Error("Canon(RIP) should not be a general-purpose register")
	}
	if _, ok := Canon(x86asm.X0); ok {
		t.Error("Canon(X0) should not be a general-purpose register")
	}
}

func TestAnalyzeCallsEmpty(t *testing.T) {
	if sites := AnalyzeCalls(nil, Options{}); len(sites) != 0 {
		t.Fatalf("got %d sites for empty input", len(sites))
	}
}

func TestAnalyzeCallsSeedsParams(t *testing.T) {
	sites := AnalyzeCalls([]Inst{call(0x10, 0x100)}, Options{})
	if len(sites) != 1 {
		t.Fatalf("got %d sites, want 1", len(sites))
	}
	cs := sites[0]
	if !cs.SecondArg.Same(Param(2)) || !cs.ThirdArg.Same(Param(3)) {
		t.Errorf("seeded args = %s, %s", cs.SecondArg, cs.ThirdArg)
	}
	if !cs.HasArgIndex || cs.ArgIndex != 3 {
		t.Errorf("arg index = %d (%v), want 3", cs.ArgIndex, cs.HasArgIndex)
	}
	if cs.Addr != 0x10 || cs.Target != 0x100 || cs.Tick != 1 {
		t.Errorf("site = %+v", cs)
	}
}

func TestAnalyzeCallsParamThroughCopy(t *testing.T) {
	// r8 holds param3 on entry; stash it in rbx, clobber r8, restore from rbx.
	insts := []Inst{
		mov(RegOp(x86asm.RBX), RegOp(x86asm.R8)),
		mov(RegOp(x86asm.R8L), ImmOp(7)),
		mov(RegOp(x86asm.R8), RegOp(x86asm.RBX)),
		call(0x20, 0x200),
	}
	sites := AnalyzeCalls(insts, Options{})
	if len(sites) != 1 {
		t.Fatalf("got %d sites, want 1", len(sites))
	}
	if !sites[0].HasArgIndex || sites[0].ArgIndex != 3 {
		t.Errorf("arg index = %d (%v), want 3", sites[0].ArgIndex, sites[0].HasArgIndex)
	}
}

func TestAnalyzeCallsStackSpill(t *testing.T) {
	// rdx (param2) spilled to [rsp+0x30], then reloaded into r8d.
	insts := []Inst{
		subRSP(0x38),
		mov(MemOp(x86asm.RSP, 0x30), RegOp(x86asm.RDX)),
		mov(RegOp(x86asm.EDX), ImmOp(4)),
		mov(RegOp(x86asm.R8L), MemOp(x86asm.RSP, 0x30)),
		call(0x30, 0x300),
	}
	sites := AnalyzeCalls(insts, Options{})
	cs := sites[0]
	if v, ok := cs.SecondArg.Imm(); !ok || v != 4 {
		t.Errorf("second arg = %s, want immediate 4", cs.SecondArg)
	}
	if !cs.HasArgIndex || cs.ArgIndex != 2 {
		t.Errorf("arg index = %d (%v), want 2", cs.ArgIndex, cs.HasArgIndex)
	}
}

func TestAnalyzeCallsCallerStackParameter(t *testing.T) {
	// alloc = 0x20; ((0xB0 - (0x20+0x28)) / 8) - 4 = 9
	insts := []Inst{
		subRSP(0x20),
		mov(RegOp(x86asm.R8), MemOp(x86asm.RSP, 0xB0)),
		call(0x40, 0x400),
	}
	sites := AnalyzeCalls(insts, Options{})
	cs := sites[0]
	if !cs.ThirdArg.Same(StackParam(9)) {
		t.Errorf("third arg = %s, want stack_param9", cs.ThirdArg)
	}
	if cs.HasArgIndex {
		t.Errorf("stack parameter must not reduce to an arg index, got %d", cs.ArgIndex)
	}
}

func TestAnalyzeCallsUnwrittenLocalIsUnknown(t *testing.T) {
	insts := []Inst{
		subRSP(0x40),
		mov(RegOp(x86asm.R8), MemOp(x86asm.RSP, 0x10)),
		call(0x50, 0x500),
	}
	cs := AnalyzeCalls(insts, Options{})[0]
	if cs.ThirdArg.Known() || cs.HasArgIndex {
		t.Errorf("third arg = %s (index %v), want unknown", cs.ThirdArg, cs.HasArgIndex)
	}
}

func TestAnalyzeCallsSelfXor(t *testing.T) {
	for _, r := range []x86asm.Reg{x86asm.R8L, x86asm.R8, x86asm.EDX} {
		insts := []Inst{
			// Make the prior provenance Unknown first.
			mov(RegOp(x86asm.RDX), MemOp(x86asm.RSP, 0x8)),
			mov(RegOp(x86asm.R8), MemOp(x86asm.RSP, 0x8)),
			xor(r),
			call(0x60, 0x600),
		}
		cs := AnalyzeCalls(insts, Options{})[0]
		c, _ := Canon(r)
		got := cs.ThirdArg
		if c == RegRDX {
			got = cs.SecondArg
		}
		if !got.Same(Immediate(0)) {
			t.Errorf("xor %s: got %s, want immediate 0", r, got)
		}
	}
}

func TestAnalyzeCallsXorDifferentRegsIgnored(t *testing.T) {
	tests := []struct {
		name     string
		dst, src x86asm.Reg
	}{
		{"different registers", x86asm.R8L, x86asm.EAX},
		// Both fold onto RDX but the result is not zero.
		{"aliases of one register", x86asm.DH, x86asm.DL},
		{"different widths", x86asm.EDX, x86asm.DX},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insts := []Inst{
				{Op: OpXor, Args: [2]Operand{RegOp(tt.dst), RegOp(tt.src)}},
				call(0x70, 0x700),
			}
			cs := AnalyzeCalls(insts, Options{})[0]
			if !cs.SecondArg.Same(Param(2)) {
				t.Errorf("second arg = %s, want param2 unchanged", cs.SecondArg)
			}
			if !cs.ThirdArg.Same(Param(3)) {
				t.Errorf("third arg = %s, want param3 unchanged", cs.ThirdArg)
			}
		})
	}
}

func TestAnalyzeCallsOtherShapesKeepState(t *testing.T) {
	insts := []Inst{
		{Op: OpOther, Args: [2]Operand{RegOp(x86asm.R8), ImmOp(1)}}, // add r8, 1
		{Op: OpLEA, Args: [2]Operand{RegOp(x86asm.R8), MemOp(x86asm.RSP, 0x20)}},
		mov(RegOp(x86asm.R8), MemOp(x86asm.RAX, 0x10)),
		call(0x80, 0x800),
	}
	cs := AnalyzeCalls(insts, Options{})[0]
	if !cs.ThirdArg.Same(Param(3)) {
		t.Errorf("third arg = %s, want param3 unchanged", cs.ThirdArg)
	}
}

func TestAnalyzeCallsIndirect(t *testing.T) {
	insts := []Inst{{Addr: 0x90, Op: OpCall, Indirect: true}}
	cs := AnalyzeCalls(insts, Options{})[0]
	if !cs.Indirect || cs.Target != 0 || cs.TargetString() != "<dynamic>" {
		t.Errorf("site = %+v", cs)
	}
}

func TestAnalyzeCallsCapturesAreIndependent(t *testing.T) {
	insts := []Inst{
		mov(RegOp(x86asm.EDX), ImmOp(1)),
		call(0x10, 0x100),
		mov(RegOp(x86asm.EDX), ImmOp(2)),
		call(0x20, 0x100),
	}
	sites := AnalyzeCalls(insts, Options{})
	if v, _ := sites[0].SecondArg.Imm(); v != 1 {
		t.Errorf("first capture mutated: %s", sites[0].SecondArg)
	}
	if v, _ := sites[1].SecondArg.Imm(); v != 2 {
		t.Errorf("second capture = %s", sites[1].SecondArg)
	}
	if sites[0].Tick >= sites[1].Tick {
		t.Errorf("ticks not increasing: %d, %d", sites[0].Tick, sites[1].Tick)
	}
}

func TestAnalyzeCallsLimit(t *testing.T) {
	insts := []Inst{call(0x1, 0x10), call(0x2, 0x10), call(0x3, 0x10)}
	sites, truncated := AnalyzeCallsLimit(insts, Options{MaxSteps: 2})
	if !truncated || len(sites) != 2 {
		t.Errorf("got %d sites truncated=%v, want 2 true", len(sites), truncated)
	}
	sites, truncated = AnalyzeCallsLimit(insts, Options{})
	if truncated || len(sites) != 3 {
		t.Errorf("got %d sites truncated=%v, want 3 false", len(sites), truncated)
	}
}

// TestLastWriteWins drives random move/xor sequences and checks every
// register against a naive last-write-wins model.
func TestLastWriteWins(t *testing.T) {
	regs := []x86asm.Reg{
		x86asm.RAX, x86asm.EAX, x86asm.RCX, x86asm.ECX, x86asm.RDX, x86asm.EDX,
		x86asm.RBX, x86asm.R8, x86asm.R8L, x86asm.R9, x86asm.R9W, x86asm.R10,
	}
	rng := rand.New(rand.NewSource(1))

	for iter := 0; iter < 200; iter++ {
		ref := map[CanonReg]Origin{
			RegRCX: Param(1), RegRDX: Param(2), RegR8: Param(3), RegR9: Param(4),
		}
		var insts []Inst
		for n := 0; n < 1+rng.Intn(30); n++ {
			dst := regs[rng.Intn(len(regs))]
			d, _ := Canon(dst)
			switch rng.Intn(3) {
			case 0:
				src := regs[rng.Intn(len(regs))]
				s, _ := Canon(src)
				insts = append(insts, mov(RegOp(dst), RegOp(src)))
				ref[d] = ref[s]
			case 1:
				v := rng.Int63n(64)
				insts = append(insts, mov(RegOp(dst), ImmOp(v)))
				ref[d] = Immediate(v)
			case 2:
				insts = append(insts, xor(dst))
				ref[d] = Immediate(0)
			}
		}

		tr := NewTracker(0)
		for _, inst := range insts {
			tr.Step(inst)
		}
		for r := CanonReg(0); r < numCanonRegs; r++ {
			got, want := tr.State().Reg(r), ref[r]
			if !got.Same(want) {
				t.Fatalf("iter %d: %s = %s, want %s", iter, r, got, want)
			}
		}
	}
}

func TestAnalyzeCallsIdempotent(t *testing.T) {
	insts := Decode(createBody, Options{BaseAddr: 0x1000})
	a := AnalyzeCalls(insts, Options{})
	b := AnalyzeCalls(insts, Options{})
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("second run differs (-first +second):\n%s", diff)
	}
}
