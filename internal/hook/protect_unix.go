//go:build unix

package hook

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	mprotectExec = unix.PROT_EXEC
	mprotectRX   = unix.PROT_READ | unix.PROT_EXEC
	mprotectRWX  = unix.PROT_READ | unix.PROT_WRITE | unix.PROT_EXEC
)

// protectPages sets prot on the pages at start. mprotect cannot report the
// previous protection; code pages are assumed to have been read/execute.
func protectPages(start, size uintptr, prot int) (int, error) {
	region := unsafe.Slice((*byte)(unsafe.Pointer(start)), size)
	if err := unix.Mprotect(region, prot); err != nil {
		return 0, err
	}
	return mprotectRX, nil
}
