package module

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/nmhfix/nmhfix/internal/geometry"
)

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procGetSystemMetrics = user32.NewProc("GetSystemMetrics")
)

const (
	smCXScreen = 0
	smCYScreen = 1
)

// Current describes the executable of the current process.
func Current() (*Image, error) {
	var h windows.Handle
	if err := windows.GetModuleHandleEx(0, nil, &h); err != nil {
		return nil, fmt.Errorf("GetModuleHandleEx: %w", err)
	}

	buf := make([]uint16, windows.MAX_LONG_PATH)
	n, err := windows.GetModuleFileName(h, &buf[0], uint32(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("GetModuleFileName: %w", err)
	}
	path := windows.UTF16ToString(buf[:n])

	base := uintptr(h)
	size, err := imageSize(base)
	if err != nil {
		return nil, err
	}
	return FromMapped(path, base, unsafe.Slice((*byte)(unsafe.Pointer(base)), size))
}

// imageSize reads SizeOfImage from the headers of an image mapped at base.
func imageSize(base uintptr) (uint32, error) {
	if *(*[2]byte)(unsafe.Pointer(base)) != [2]byte{'M', 'Z'} {
		return 0, fmt.Errorf("%#x: no DOS header", base)
	}
	lfanew := *(*uint32)(unsafe.Pointer(base + 0x3c))
	if lfanew >= 1024 {
		return 0, fmt.Errorf("%#x: PE offset %d out of range", base, lfanew)
	}
	if *(*[4]byte)(unsafe.Pointer(base + uintptr(lfanew))) != [4]byte{'P', 'E', 0, 0} {
		return 0, fmt.Errorf("%#x: no PE signature", base)
	}
	// SizeOfImage is 56 bytes into the optional header, which follows the
	// 4 byte signature and the 20 byte file header.
	return *(*uint32)(unsafe.Pointer(base + uintptr(lfanew) + 24 + 56)), nil
}

// Desktop returns the primary display size.
func Desktop() (geometry.Resolution, error) {
	w, _, _ := procGetSystemMetrics.Call(smCXScreen)
	h, _, _ := procGetSystemMetrics.Call(smCYScreen)
	if w == 0 || h == 0 {
		if err := procGetSystemMetrics.Find(); err != nil {
			return geometry.Resolution{}, err
		}
		return geometry.Resolution{}, fmt.Errorf("GetSystemMetrics returned %dx%d", w, h)
	}
	return geometry.Resolution{Width: int(w), Height: int(h)}, nil
}

// ReadProcess copies the main image of another process.
func ReadProcess(pid uint32, path string) (*Image, error) {
	p, err := windows.OpenProcess(windows.PROCESS_QUERY_INFORMATION|windows.PROCESS_VM_READ, false, pid)
	if err != nil {
		return nil, fmt.Errorf("OpenProcess %d: %w", pid, err)
	}
	defer windows.CloseHandle(p)

	var (
		mod    windows.Handle
		needed uint32
	)
	if err := windows.EnumProcessModules(p, &mod, uint32(unsafe.Sizeof(mod)), &needed); err != nil {
		return nil, fmt.Errorf("EnumProcessModules: %w", err)
	}

	var info windows.ModuleInfo
	if err := windows.GetModuleInformation(p, mod, &info, uint32(unsafe.Sizeof(info))); err != nil {
		return nil, fmt.Errorf("GetModuleInformation: %w", err)
	}

	data := make([]byte, info.SizeOfImage)
	var read uintptr
	if err := windows.ReadProcessMemory(p, info.BaseOfDll, &data[0], uintptr(len(data)), &read); err != nil {
		return nil, fmt.Errorf("ReadProcessMemory: %w", err)
	}
	return FromMapped(path, info.BaseOfDll, data[:read])
}
