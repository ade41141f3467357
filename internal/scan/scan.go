// Package scan locates code in a loaded image by byte signature.
package scan

import (
	"bytes"
	"errors"
	"unsafe"
)

var ErrNotFound = errors.New("pattern not found")

// Scan returns the offset of the first window of buf matching sig, or -1.
// The scan never reads past the end of buf.
func Scan(buf []byte, sig Signature) int {
	n := sig.Len()
	if n == 0 || len(buf) < n {
		return -1
	}
	last := len(buf) - n

	a := sig.anchor()
	if a < 0 {
		return 0
	}

	// Jump between occurrences of the first fixed byte instead of testing
	// every offset.
	for i := 0; i <= last; {
		j := bytes.IndexByte(buf[i+a:last+a+1], sig.data[a])
		if j < 0 {
			return -1
		}
		i += j
		if sig.matchAt(buf, i) {
			return i
		}
		i++
	}
	return -1
}

// Region is a read-only view of a mapped image.
type Region struct {
	Base uintptr
	data []byte
}

// NewRegion wraps size bytes of live memory at base. The memory must stay
// mapped and readable for the life of the Region.
func NewRegion(base uintptr, size int) Region {
	if base == 0 || size <= 0 {
		return Region{Base: base}
	}
	return Region{
		Base: base,
		data: unsafe.Slice((*byte)(unsafe.Pointer(base)), size),
	}
}

// FromBytes makes a Region out of a copy of an image, as if it had been
// loaded at base.
func FromBytes(base uintptr, data []byte) Region {
	return Region{Base: base, data: data}
}

func (r Region) Size() int {
	return len(r.data)
}

func (r Region) Contains(addr uintptr) bool {
	return addr >= r.Base && addr-r.Base < uintptr(len(r.data))
}

// Find returns the address of the first match of sig in the region.
func (r Region) Find(sig Signature) (uintptr, error) {
	if sig.Len() == 0 {
		return 0, ErrEmptySignature
	}
	off := Scan(r.data, sig)
	if off < 0 {
		return 0, ErrNotFound
	}
	return r.Base + uintptr(off), nil
}

// Offset returns addr relative to the region base, for "exe+rva" style logs.
func (r Region) Offset(addr uintptr) uintptr {
	return addr - r.Base
}
