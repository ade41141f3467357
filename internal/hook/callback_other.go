//go:build !(windows && 386)

package hook

// Stubs are 32-bit x86 and call back through a stdcall thunk, which only
// exists for windows/386.
func dispatcher() (uintptr, error) {
	return 0, ErrUnsupported
}
