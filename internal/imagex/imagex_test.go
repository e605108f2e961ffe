package imagex

import (
	"bytes"
	"debug/elf"
	"debug/pe"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

var code = []byte{0x53, 0x48, 0x83, 0xec, 0x20, 0xc3}

// buildELF returns a minimal ELF64 with one PT_LOAD mapping vaddr 0x1000
// to file offset 0x100.
func buildELF(t *testing.T, machine elf.Machine) []byte {
	t.Helper()
	var buf bytes.Buffer
	hdr := elf.Header64{
		Type:      uint16(elf.ET_DYN),
		Machine:   uint16(machine),
		Version:   uint32(elf.EV_CURRENT),
		Phoff:     64,
		Ehsize:    64,
		Phentsize: 56,
		Phnum:     1,
		Shentsize: 64,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	prog := elf.Prog64{
		Type:   uint32(elf.PT_LOAD),
		Flags:  uint32(elf.PF_R | elf.PF_X),
		Off:    0x100,
		Vaddr:  0x1000,
		Filesz: uint64(len(code)),
		Memsz:  0x100,
		Align:  0x1000,
	}
	if err := binary.Write(&buf, binary.LittleEndian, hdr); err != nil {
		t.Fatal(err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, prog); err != nil {
		t.Fatal(err)
	}
	buf.Write(make([]byte, 0x100-buf.Len()))
	buf.Write(code)
	return buf.Bytes()
}

// buildPE returns a minimal PE with one .text section at RVA 0x1000, file
// offset 0x200.
func buildPE(t *testing.T, machine uint16) []byte {
	t.Helper()
	dos := make([]byte, 0x80)
	copy(dos, "MZ")
	binary.LittleEndian.PutUint32(dos[0x3c:], 0x80)

	var buf bytes.Buffer
	buf.Write(dos)
	buf.WriteString("PE\x00\x00")
	fh := pe.FileHeader{Machine: machine, NumberOfSections: 1}
	if err := binary.Write(&buf, binary.LittleEndian, fh); err != nil {
		t.Fatal(err)
	}
	sh := pe.SectionHeader32{
		VirtualSize:      0x100,
		VirtualAddress:   0x1000,
		SizeOfRawData:    uint32(len(code)),
		PointerToRawData: 0x200,
	}
	copy(sh.Name[:], ".text")
	if err := binary.Write(&buf, binary.LittleEndian, sh); err != nil {
		t.Fatal(err)
	}
	buf.Write(make([]byte, 0x200-buf.Len()))
	buf.Write(code)
	return buf.Bytes()
}

func TestParseELF(t *testing.T) {
	img, err := Parse(buildELF(t, elf.EM_X86_64))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if img.Format != FormatELF || len(img.Sections) != 1 {
		t.Fatalf("image = %s with %d sections", img.Format, len(img.Sections))
	}
	got, err := img.CodeAt(0x1000, 0, 64)
	if err != nil {
		t.Fatalf("CodeAt: %v", err)
	}
	if !bytes.Equal(got, code) {
		t.Errorf("CodeAt = % x, want % x", got, code)
	}
	if _, err := img.CodeAt(0x1080, 0, 8); !errors.Is(err, ErrNoSection) {
		t.Errorf("bss RVA: %v, want ErrNoSection", err)
	}
	if _, err := img.CodeAt(0x9000, 0, 8); !errors.Is(err, ErrNoSection) {
		t.Errorf("unmapped RVA: %v, want ErrNoSection", err)
	}
}

func TestParseELFWrongMachine(t *testing.T) {
	if _, err := Parse(buildELF(t, elf.EM_AARCH64)); !errors.Is(err, ErrNotX86_64) {
		t.Errorf("got %v, want ErrNotX86_64", err)
	}
}

func TestParsePE(t *testing.T) {
	img, err := Parse(buildPE(t, pe.IMAGE_FILE_MACHINE_AMD64))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if img.Format != FormatPE || img.Sections[0].Name != ".text" {
		t.Fatalf("image = %+v", img.Sections)
	}
	off, err := img.Offset(0x1002)
	if err != nil || off != 0x202 {
		t.Errorf("Offset(0x1002) = 0x%x, %v; want 0x202", off, err)
	}
	got, err := img.CodeAt(0x1000, 0, 2)
	if err != nil || !bytes.Equal(got, code[:2]) {
		t.Errorf("CodeAt = % x, %v", got, err)
	}
}

func TestParsePEWrongMachine(t *testing.T) {
	if _, err := Parse(buildPE(t, pe.IMAGE_FILE_MACHINE_I386)); !errors.Is(err, ErrNotX86_64) {
		t.Errorf("got %v, want ErrNotX86_64", err)
	}
}

func TestRawImage(t *testing.T) {
	img, err := Parse(code)
	if err != nil {
		t.Fatal(err)
	}
	if img.Format != FormatRaw || img.Size() != len(code) {
		t.Fatalf("image = %s size %d", img.Format, img.Size())
	}
	tests := []struct {
		rva, off uint64
		max      int
		want     []byte
	}{
		{1, 0, 4, code[1:5]},
		{0, 2, 0, code[2:]},
		{0, 5, 100, code[5:]},
	}
	for _, tt := range tests {
		got, err := img.CodeAt(tt.rva, tt.off, tt.max)
		if err != nil || !bytes.Equal(got, tt.want) {
			t.Errorf("CodeAt(%d, %d, %d) = % x, %v; want % x", tt.rva, tt.off, tt.max, got, err, tt.want)
		}
	}
	if _, err := img.CodeAt(0, uint64(len(code)), 1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("past end: %v, want ErrOutOfRange", err)
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "code.bin")
	if err := os.WriteFile(path, code, 0o644); err != nil {
		t.Fatal(err)
	}
	img, err := Open(path)
	if err != nil || img.Size() != len(code) {
		t.Fatalf("Open = %v, %v", img, err)
	}
	if _, err := Open(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Open of missing file succeeded")
	}
}
