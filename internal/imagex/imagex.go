// Package imagex loads x86-64 PE, ELF or raw code images into memory and
// serves code bytes by RVA or file offset.
package imagex

import (
	"bytes"
	"debug/elf"
	"debug/pe"
	"errors"
	"fmt"
	"os"
)

var (
	ErrNotX86_64  = errors.New("imagex: not an x86-64 image")
	ErrNoSection  = errors.New("imagex: no section covers address")
	ErrOutOfRange = errors.New("imagex: offset past end of image")
)

// Format identifies the container an image was parsed from.
type Format string

const (
	FormatPE  Format = "pe"
	FormatELF Format = "elf"
	FormatRaw Format = "raw"
)

// Section maps a range of RVAs to file offsets.
type Section struct {
	Name     string
	RVA      uint64
	Size     uint64 // in memory
	Offset   uint64
	FileSize uint64
}

// Image is an in-memory code image. It is read-only after Parse and safe
// for concurrent use.
type Image struct {
	Format   Format
	Sections []Section
	data     []byte
}

// Open reads path into memory and parses it.
func Open(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("imagex: open: %w", err)
	}
	return Parse(data)
}

// Parse detects the container format from the magic bytes. Data that is
// neither PE nor ELF is treated as a raw image where RVA equals offset.
func Parse(data []byte) (*Image, error) {
	switch {
	case bytes.HasPrefix(data, []byte("MZ")):
		return parsePE(data)
	case bytes.HasPrefix(data, []byte(elf.ELFMAG)):
		return parseELF(data)
	}
	return &Image{Format: FormatRaw, data: data}, nil
}

func parsePE(data []byte) (*Image, error) {
	f, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imagex: pe: %w", err)
	}
	defer f.Close()
	if f.Machine != pe.IMAGE_FILE_MACHINE_AMD64 {
		return nil, fmt.Errorf("%w: pe machine 0x%x", ErrNotX86_64, f.Machine)
	}
	img := &Image{Format: FormatPE, data: data}
	for _, s := range f.Sections {
		img.Sections = append(img.Sections, Section{
			Name:     s.Name,
			RVA:      uint64(s.VirtualAddress),
			Size:     uint64(s.VirtualSize),
			Offset:   uint64(s.Offset),
			FileSize: uint64(s.Size),
		})
	}
	return img, nil
}

func parseELF(data []byte) (*Image, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imagex: elf: %w", err)
	}
	defer f.Close()
	if f.Class != elf.ELFCLASS64 || f.Machine != elf.EM_X86_64 {
		return nil, fmt.Errorf("%w: elf %s %s", ErrNotX86_64, f.Class, f.Machine)
	}
	img := &Image{Format: FormatELF, data: data}
	for i, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		img.Sections = append(img.Sections, Section{
			Name:     fmt.Sprintf("load%d", i),
			RVA:      p.Vaddr,
			Size:     p.Memsz,
			Offset:   p.Off,
			FileSize: p.Filesz,
		})
	}
	return img, nil
}

// Size returns the image size in bytes.
func (img *Image) Size() int { return len(img.data) }

// Offset converts an RVA to a file offset. Raw images map RVAs to
// themselves.
func (img *Image) Offset(rva uint64) (uint64, error) {
	if img.Format == FormatRaw {
		return rva, nil
	}
	for _, s := range img.Sections {
		if rva >= s.RVA && rva < s.RVA+s.Size {
			delta := rva - s.RVA
			if delta >= s.FileSize {
				return 0, fmt.Errorf("%w: RVA 0x%x is in the uninitialized tail of %s", ErrNoSection, rva, s.Name)
			}
			return s.Offset + delta, nil
		}
	}
	return 0, fmt.Errorf("%w: RVA 0x%x", ErrNoSection, rva)
}

// CodeAt returns up to max bytes of code for a method. A non-zero offset
// is used as is; otherwise rva is translated through the sections. The
// returned slice aliases the image and must not be modified.
func (img *Image) CodeAt(rva, offset uint64, max int) ([]byte, error) {
	if offset == 0 {
		var err error
		if offset, err = img.Offset(rva); err != nil {
			return nil, err
		}
	}
	if offset >= uint64(len(img.data)) {
		return nil, fmt.Errorf("%w: 0x%x >= 0x%x", ErrOutOfRange, offset, len(img.data))
	}
	end := uint64(len(img.data))
	if max > 0 && offset+uint64(max) < end {
		end = offset + uint64(max)
	}
	return img.data[offset:end:end], nil
}
