// Package output writes recovered schemas and call-site traces to files.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"fbsdump/internal/disasm"
	"fbsdump/internal/schema"
)

// WriteSchemaJSON writes the whole schema to schema.json.
func WriteSchemaJSON(dir string, s *schema.Schema) error {
	return writeJSON(filepath.Join(dir, "schema.json"), s)
}

// WriteTablesJSONL writes one table per line to tables.jsonl.
func WriteTablesJSONL(dir string, tables []*schema.Table) error {
	return writeJSONL(filepath.Join(dir, "tables.jsonl"), tables)
}

// WriteCallSitesJSONL writes one call-site record per line to call_sites.jsonl.
func WriteCallSitesJSONL(dir string, recs []disasm.CallSiteRecord) error {
	return writeJSONL(filepath.Join(dir, "call_sites.jsonl"), recs)
}

// WriteFBS writes the schema as FlatBuffers IDL to schema.fbs.
func WriteFBS(dir string, s *schema.Schema) error {
	path := filepath.Join(dir, "schema.fbs")
	return os.WriteFile(path, []byte(FormatFBS(s)), 0644)
}

// WriteDOT writes a DOT graph to <name>.dot. name may contain path
// separators (e.g. "cfg/Monster") for directory grouping.
func WriteDOT(dir, name, dot string) error {
	path := filepath.Join(dir, name+".dot")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("output: mkdir %s: %w", filepath.Dir(path), err)
	}
	return os.WriteFile(path, []byte(dot), 0644)
}

// WriteASM writes an annotated listing to asm/<name>.txt.
func WriteASM(dir, name string, insts []disasm.Inst, lookup disasm.SymbolLookup, annotators ...disasm.Annotator) error {
	path := filepath.Join(dir, "asm", name+".txt")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("output: mkdir asm: %w", err)
	}
	text := disasm.Format(insts, lookup, annotators...)
	return os.WriteFile(path, []byte(text), 0644)
}

// EncodeJSONL writes items to w, one JSON document per line.
func EncodeJSONL[T any](w io.Writer, items []T) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, it := range items {
		if err := enc.Encode(it); err != nil {
			return fmt.Errorf("output: encode: %w", err)
		}
	}
	return bw.Flush()
}

func writeJSONL[T any](path string, items []T) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	if err := EncodeJSONL(f, items); err != nil {
		return fmt.Errorf("output: %s: %w", path, err)
	}
	return f.Close()
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("output: encode %s: %w", path, err)
	}
	return nil
}
