package hook

import (
	"fmt"
	"os"
	"unsafe"
)

// pageRange returns the whole pages covering n bytes at addr.
func pageRange(addr uintptr, n int) (start, size uintptr) {
	ps := uintptr(os.Getpagesize())
	start = addr &^ (ps - 1)
	end := (addr + uintptr(n) + ps - 1) &^ (ps - 1)
	return start, end - start
}

// writeCode copies data over code at addr. The pages are made writable for
// the copy and then get their previous protection back.
func writeCode(addr uintptr, data []byte) error {
	start, size := pageRange(addr, len(data))
	old, err := protectPages(start, size, mprotectRWX)
	if err != nil {
		return fmt.Errorf("unable to make code writable: %w", err)
	}
	defer protectPages(start, size, old)

	copy(unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(data)), data)
	return nil
}
