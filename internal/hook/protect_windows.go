//go:build windows

package hook

import "golang.org/x/sys/windows"

const (
	mprotectExec = windows.PAGE_EXECUTE
	mprotectRX   = windows.PAGE_EXECUTE_READ
	mprotectRWX  = windows.PAGE_EXECUTE_READWRITE

	mmapFlags = 0
)

// protectPages sets prot on the pages at start and returns the protection
// they had before.
func protectPages(start, size uintptr, prot int) (int, error) {
	var old uint32
	if err := windows.VirtualProtect(start, size, uint32(prot), &old); err != nil {
		return 0, err
	}
	return int(old), nil
}
