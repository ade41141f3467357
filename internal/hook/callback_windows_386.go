package hook

import (
	"sync"

	"golang.org/x/sys/windows"
)

var dispatchOnce = sync.OnceValue(func() uintptr {
	return windows.NewCallback(dispatch)
})

// dispatcher returns the address of a stdcall function that stubs can call
// from any thread.
func dispatcher() (uintptr, error) {
	return dispatchOnce(), nil
}
