package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"fbsdump/internal/disasm"
	"fbsdump/internal/schema"
)

func testSchema() *schema.Schema {
	return &schema.Schema{
		Enums: []*schema.Enum{{
			Namespace:  "Game",
			Name:       "Element",
			Underlying: "ubyte",
			Values:     []schema.EnumValue{{Name: "Ice", Value: 1}, {Name: "Fire", Value: 0}},
		}},
		Tables: []*schema.Table{
			{
				Namespace:  "Game",
				Name:       "Monster",
				Outcome:    schema.OutcomeComplete,
				Confidence: schema.ConfidenceHigh,
				Fields: []schema.Field{
					{Slot: 0, Name: "Name", Type: "string", Kind: schema.KindString, Param: 2},
					{Slot: 2, Name: "Drops", Type: "Item", Kind: schema.KindTable, Vector: true, Param: 3},
				},
			},
			{
				Namespace:  "Game",
				Name:       "Weapon",
				Outcome:    schema.OutcomeFallback,
				Confidence: schema.ConfidenceLow,
				Fields:     []schema.Field{{Slot: 0, Name: "Element", Type: "Element", Kind: schema.KindEnum, Param: 2}},
			},
			{Namespace: "Other", Name: "Empty", NoCreate: true, Fields: []schema.Field{}},
		},
	}
}

func TestFormatFBS(t *testing.T) {
	want := `// Generated by fbsdump. Do not edit.

namespace Game;

enum Element : ubyte {
  Fire = 0,
  Ice = 1,
}

table Monster {
  Name:string; // slot 0
  Drops:[Item]; // slot 2
}

// low confidence: field order follows create parameters
table Weapon {
  Element:Element;
}

namespace Other;

// no create method, fields unknown
table Empty {
}
`
	if diff := cmp.Diff(want, FormatFBS(testSchema())); diff != "" {
		t.Errorf("FormatFBS mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatFBSPartial(t *testing.T) {
	s := &schema.Schema{Tables: []*schema.Table{{
		Name:       "T",
		Confidence: schema.ConfidenceHigh,
		Failures:   []string{"a", "b"},
		Fields:     []schema.Field{},
	}}}
	got := FormatFBS(s)
	if !strings.Contains(got, "// partial: 2 setter calls unresolved\ntable T {") {
		t.Errorf("missing partial marker:\n%s", got)
	}
	if strings.Contains(got, "namespace") {
		t.Errorf("global namespace should not emit a statement:\n%s", got)
	}
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()
	s := testSchema()

	if err := WriteSchemaJSON(dir, s); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "schema.json"))
	if err != nil {
		t.Fatal(err)
	}
	var back schema.Schema
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("schema.json: %v", err)
	}
	if len(back.Tables) != 3 || back.Tables[0].Fields[1].Name != "Drops" {
		t.Errorf("schema.json tables = %+v", back.Tables)
	}
	if !bytes.Contains(data, []byte(`"outcome": "fallback"`)) {
		t.Errorf("outcome not rendered as text:\n%s", data)
	}

	if err := WriteTablesJSONL(dir, s.Tables); err != nil {
		t.Fatal(err)
	}
	if n := countLines(t, filepath.Join(dir, "tables.jsonl")); n != 3 {
		t.Errorf("tables.jsonl has %d lines, want 3", n)
	}

	recs := []disasm.CallSiteRecord{{Func: "CreateMonster", PC: "0x100d"}, {Func: "CreateMonster", PC: "0x1017"}}
	if err := WriteCallSitesJSONL(dir, recs); err != nil {
		t.Fatal(err)
	}
	if n := countLines(t, filepath.Join(dir, "call_sites.jsonl")); n != 2 {
		t.Errorf("call_sites.jsonl has %d lines, want 2", n)
	}

	if err := WriteFBS(dir, s); err != nil {
		t.Fatal(err)
	}
	if err := WriteDOT(dir, "cfg/Monster", "digraph {}\n"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "cfg", "Monster.dot")); err != nil {
		t.Errorf("cfg/Monster.dot: %v", err)
	}
	if err := WriteASM(dir, "Monster", []disasm.Inst{{Addr: 0x10, Text: "ret"}}, nil); err != nil {
		t.Fatal(err)
	}
	asm, err := os.ReadFile(filepath.Join(dir, "asm", "Monster.txt"))
	if err != nil || string(asm) != "0x00000010  ret\n" {
		t.Errorf("asm = %q, %v", asm, err)
	}
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var v map[string]any
		if err := json.Unmarshal(sc.Bytes(), &v); err != nil {
			t.Errorf("%s line %d: %v", path, n+1, err)
		}
		n++
	}
	return n
}
