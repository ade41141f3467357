// Package module identifies the game image: where it is loaded, how large it
// is, when it was linked and which build variant it is.
package module

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Binject/debug/pe"

	"github.com/nmhfix/nmhfix/internal/layout"
	"github.com/nmhfix/nmhfix/internal/memory"
	"github.com/nmhfix/nmhfix/internal/scan"
)

var (
	ErrUnsupported = errors.New("not supported on this platform")
	ErrNot32Bit    = errors.New("not a 32-bit PE image")
)

// Image is a PE image laid out as the loader maps it: every section at its
// RVA from Base.
type Image struct {
	Name      string
	Path      string
	Base      uintptr
	Size      uint32
	Timestamp uint32
	Imports   []string
	Data      []byte
}

// Region returns a scannable view of the image.
func (m *Image) Region() scan.Region {
	return scan.FromBytes(m.Base, m.Data)
}

// Memory returns typed access to the image contents.
func (m *Image) Memory() *memory.Image {
	return &memory.Image{Base: m.Base, Data: m.Data}
}

// Variant is the build variant detected from the image imports.
func (m *Image) Variant() layout.Variant {
	return DetectVariant(m.Imports)
}

var debugRuntime = regexp.MustCompile(`^(msvcr|msvcp|vcruntime)[0-9_]*d\.dll$`)

// IsDebugRuntime reports whether lib is a debug build of the MSVC runtime.
func IsDebugRuntime(lib string) bool {
	lib = strings.ToLower(lib)
	return lib == "ucrtbased.dll" || debugRuntime.MatchString(lib)
}

// DetectVariant picks Debug for images linked against a debug C runtime.
func DetectVariant(imports []string) layout.Variant {
	for _, lib := range imports {
		if IsDebugRuntime(lib) {
			return layout.Debug
		}
	}
	return layout.Release
}

// ResolveVariant returns override when set, otherwise the detected variant.
func ResolveVariant(override *layout.Variant, m *Image) layout.Variant {
	if override != nil {
		return *override
	}
	return m.Variant()
}

// FromMapped describes an image that is already mapped, from a view of its
// memory starting at base.
func FromMapped(path string, base uintptr, data []byte) (*Image, error) {
	f, err := pe.NewFileFromMemory(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse mapped image: %w", err)
	}
	defer f.Close()

	m := &Image{
		Name: filepath.Base(path),
		Path: path,
		Base: base,
		Data: data,
	}
	if err := describe(m, f); err != nil {
		return nil, err
	}
	return m, nil
}

// Map lays out the raw bytes of a PE file the way the loader would, based at
// the image's preferred address.
func Map(path string, raw []byte) (*Image, error) {
	f, err := pe.NewFile(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer f.Close()

	oh, ok := f.OptionalHeader.(*pe.OptionalHeader32)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrNot32Bit)
	}

	data := make([]byte, oh.SizeOfImage)
	copy(data, raw[:min(int(oh.SizeOfHeaders), len(raw))])

	for _, s := range f.Sections {
		if s.VirtualAddress >= oh.SizeOfImage {
			continue
		}
		section, err := s.Data()
		if err != nil {
			return nil, fmt.Errorf("read section %s: %w", s.Name, err)
		}
		if s.VirtualSize > 0 && int(s.VirtualSize) < len(section) {
			section = section[:s.VirtualSize]
		}
		copy(data[s.VirtualAddress:], section)
	}

	m := &Image{
		Name: filepath.Base(path),
		Path: path,
		Base: uintptr(oh.ImageBase),
		Data: data,
	}
	if err := describe(m, f); err != nil {
		return nil, err
	}
	return m, nil
}

// Open reads and maps the PE file at path.
func Open(path string) (*Image, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Map(path, raw)
}

func describe(m *Image, f *pe.File) error {
	oh, ok := f.OptionalHeader.(*pe.OptionalHeader32)
	if !ok {
		return fmt.Errorf("%s: %w", m.Name, ErrNot32Bit)
	}
	m.Size = oh.SizeOfImage
	m.Timestamp = f.FileHeader.TimeDateStamp

	symbols, err := f.ImportedSymbols()
	if err != nil {
		return fmt.Errorf("read imports: %w", err)
	}
	m.Imports = libraries(symbols)
	return nil
}

// libraries extracts the DLL names from "symbol:dll" import entries.
func libraries(symbols []string) []string {
	var libs []string
	seen := make(map[string]bool)
	for _, s := range symbols {
		i := strings.LastIndexByte(s, ':')
		if i < 0 {
			continue
		}
		lib := strings.ToLower(s[i+1:])
		if !seen[lib] {
			seen[lib] = true
			libs = append(libs, lib)
		}
	}
	return libs
}
