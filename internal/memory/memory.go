// Package memory reads and writes typed values in the host process.
package memory

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unsafe"
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrOutOfRange     = errors.New("address out of range")
)

// Memory is little-endian access to a 32-bit address space.
type Memory interface {
	ReadInt32(addr uintptr) (int32, error)
	WriteInt32(addr uintptr, v int32) error
	ReadFloat32(addr uintptr) (float32, error)
	WriteFloat32(addr uintptr, v float32) error
}

// Windows never maps the first 64KB, so anything below it is a null
// pointer plus a field offset.
const nullRegion = 0x10000

// Process accesses the memory of the current process directly. Accesses to
// unmapped memory outside the null region fault; callers run inside a hook
// callback, which recovers from faults.
type Process struct{}

func check(addr uintptr) error {
	if addr < nullRegion {
		return fmt.Errorf("%w: %#x", ErrInvalidAddress, addr)
	}
	return nil
}

func (Process) ReadInt32(addr uintptr) (int32, error) {
	if err := check(addr); err != nil {
		return 0, err
	}
	return *(*int32)(unsafe.Pointer(addr)), nil
}

func (Process) WriteInt32(addr uintptr, v int32) error {
	if err := check(addr); err != nil {
		return err
	}
	*(*int32)(unsafe.Pointer(addr)) = v
	return nil
}

func (Process) ReadFloat32(addr uintptr) (float32, error) {
	if err := check(addr); err != nil {
		return 0, err
	}
	return *(*float32)(unsafe.Pointer(addr)), nil
}

func (Process) WriteFloat32(addr uintptr, v float32) error {
	if err := check(addr); err != nil {
		return err
	}
	*(*float32)(unsafe.Pointer(addr)) = v
	return nil
}

// Image is a copy of memory as it would appear at Base. It backs offline
// signature resolution and tests.
type Image struct {
	Base uintptr
	Data []byte
}

func NewImage(base uintptr, size int) *Image {
	return &Image{Base: base, Data: make([]byte, size)}
}

func (m *Image) slice(addr uintptr, n int) ([]byte, error) {
	if addr < m.Base || addr-m.Base+uintptr(n) > uintptr(len(m.Data)) {
		return nil, fmt.Errorf("%w: %#x", ErrOutOfRange, addr)
	}
	off := addr - m.Base
	return m.Data[off : off+uintptr(n)], nil
}

func (m *Image) ReadInt32(addr uintptr) (int32, error) {
	b, err := m.slice(addr, 4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (m *Image) WriteInt32(addr uintptr, v int32) error {
	b, err := m.slice(addr, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, uint32(v))
	return nil
}

func (m *Image) ReadFloat32(addr uintptr) (float32, error) {
	b, err := m.slice(addr, 4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

func (m *Image) WriteFloat32(addr uintptr, v float32) error {
	b, err := m.slice(addr, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return nil
}

// CallTarget decodes the destination of a rel32 displacement stored at addr,
// where next is the address of the following instruction.
func CallTarget(m Memory, addr, next uintptr) (uintptr, error) {
	rel, err := m.ReadInt32(addr)
	if err != nil {
		return 0, err
	}
	return next + uintptr(int64(rel)), nil
}

// Absolute reads a 32-bit absolute address stored at addr, as found in
// instructions with a disp32 operand.
func Absolute(m Memory, addr uintptr) (uintptr, error) {
	v, err := m.ReadInt32(addr)
	if err != nil {
		return 0, err
	}
	return uintptr(uint32(v)), nil
}
