// Package layout describes where fields live inside the host's structures.
//
// The debug and release builds of the game lay out the same structures
// differently. Each build has its own table, chosen once at attach, and
// fields are always looked up by name.
package layout

import (
	"fmt"
	"strings"

	"github.com/nmhfix/nmhfix/internal/memory"
)

type Variant int

const (
	Release Variant = iota
	Debug
)

func (v Variant) String() string {
	switch v {
	case Release:
		return "release"
	case Debug:
		return "debug"
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// ParseVariant accepts "release" or "debug", in any case.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "release":
		return Release, nil
	case "debug":
		return Debug, nil
	}
	return Release, fmt.Errorf("unknown build variant %q", s)
}

type Field int

const (
	// Viewport rectangle recomputed by the renderer. Depending on how it is
	// read the pairs are (position, size) or (min, max).
	ViewMinX Field = iota
	ViewMinY
	ViewMaxX
	ViewMaxY

	// Destination rectangle of a cinematic.
	MovieMinX
	MovieMinY
	MovieMaxX
	MovieMaxY

	// Code offset from the start of SetViewport to the instruction that
	// loads the HUD viewport width.
	SetViewportWidth
)

var fieldNames = map[Field]string{
	ViewMinX:         "ViewMinX",
	ViewMinY:         "ViewMinY",
	ViewMaxX:         "ViewMaxX",
	ViewMaxY:         "ViewMaxY",
	MovieMinX:        "MovieMinX",
	MovieMinY:        "MovieMinY",
	MovieMaxX:        "MovieMaxX",
	MovieMaxY:        "MovieMaxY",
	SetViewportWidth: "SetViewportWidth",
}

func (f Field) String() string {
	if s, ok := fieldNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

// Table maps fields to offsets for one build.
type Table struct {
	variant Variant
	offsets map[Field]uintptr
}

var tables = map[Variant]Table{
	Release: {
		variant: Release,
		offsets: map[Field]uintptr{
			ViewMinX:         0xc8,
			ViewMinY:         0xcc,
			ViewMaxX:         0xd0,
			ViewMaxY:         0xd4,
			MovieMinX:        0x18,
			MovieMinY:        0x1c,
			MovieMaxX:        0x20,
			MovieMaxY:        0x24,
			SetViewportWidth: 0x60,
		},
	},
	Debug: {
		variant: Debug,
		offsets: map[Field]uintptr{
			ViewMinX:         0x10,
			ViewMinY:         0x14,
			ViewMaxX:         0x18,
			ViewMaxY:         0x1c,
			MovieMinX:        0x18,
			MovieMinY:        0x1c,
			MovieMaxX:        0x20,
			MovieMaxY:        0x24,
			SetViewportWidth: 0x62,
		},
	},
}

// For returns the table for v. Unknown variants get the release table.
func For(v Variant) Table {
	if t, ok := tables[v]; ok {
		return t
	}
	return tables[Release]
}

func (t Table) Variant() Variant {
	return t.variant
}

// Offset returns the offset of f. Asking for a field the table does not
// define is a programming error.
func (t Table) Offset(f Field) uintptr {
	off, ok := t.offsets[f]
	if !ok {
		panic(fmt.Sprintf("layout: %v has no %v", t.variant, f))
	}
	return off
}

// View reads fields of one structure instance.
type View struct {
	Mem   memory.Memory
	Table Table
	Base  uintptr
}

func (t Table) View(m memory.Memory, base uintptr) View {
	return View{Mem: m, Table: t, Base: base}
}

func (v View) Addr(f Field) uintptr {
	return v.Base + v.Table.Offset(f)
}

func (v View) Int32(f Field) (int32, error) {
	return v.Mem.ReadInt32(v.Addr(f))
}

func (v View) SetInt32(f Field, x int32) error {
	return v.Mem.WriteInt32(v.Addr(f), x)
}
