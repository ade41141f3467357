// Package hook installs mid-function hooks in 32-bit x86 code.
//
// A hook overwrites the start of an instruction with a jump to a stub. The
// stub saves the registers into a Context, calls back into Go, restores the
// registers (including any changes the callback made) and then runs the
// displaced instructions before jumping back. The code at the hooked address
// otherwise behaves as if the hook did not exist.
package hook

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"unsafe"
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrAlreadyHooked  = errors.New("address already hooked")
	ErrUnrelocatable  = errors.New("instruction cannot be relocated")
	ErrUnsupported    = errors.New("hooks are not supported on this platform")
	ErrNotInstalled   = errors.New("hook not installed")
	ErrOutOfRange     = errors.New("target out of rel32 range")
)

// Callback is called on the thread that reached the hook, before the
// instruction at the hooked address runs. It must not block and must not
// call into code that passes through the same site.
type Callback func(ctx *Context)

type State int32

const (
	Armed State = iota
	Installed
	Failed
	Removed
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Installed:
		return "installed"
	case Failed:
		return "failed"
	case Removed:
		return "removed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Hook is one hooked address.
type Hook struct {
	id       uint32
	name     string
	addr     uintptr
	callback Callback
	state    atomic.Int32

	original []byte
	stub     []byte

	calls  atomic.Uint64
	faults atomic.Uint64
}

func (h *Hook) Name() string { return h.name }
func (h *Hook) Addr() uintptr { return h.addr }
func (h *Hook) State() State { return State(h.state.Load()) }
func (h *Hook) Calls() uint64 { return h.calls.Load() }
func (h *Hook) Faults() uint64 { return h.faults.Load() }
func (h *Hook) setState(s State) { h.state.Store(int32(s)) }

// Stub returns the address of the hook's stub, or 0 if it has none.
func (h *Hook) Stub() uintptr {
	if len(h.stub) == 0 {
		return 0
	}
	return addrOf(h.stub)
}

// Interceptor owns every hook it installs.
type Interceptor struct {
	mu       sync.Mutex
	stubs    *arena
	dispatch uintptr
	hooks    map[uintptr]*Hook
}

// New returns an Interceptor for the current process. It returns
// ErrUnsupported anywhere other than windows/386.
func New() (*Interceptor, error) {
	d, err := dispatcher()
	if err != nil {
		return nil, err
	}
	return newInterceptor(d), nil
}

func newInterceptor(dispatch uintptr) *Interceptor {
	return &Interceptor{
		stubs:    stubArena,
		dispatch: dispatch,
		hooks:    map[uintptr]*Hook{},
	}
}

// Install hooks addr. The returned Hook is never nil: when err is non-nil its
// state is Failed and the code at addr has not been modified.
func (i *Interceptor) Install(name string, addr uintptr, cb Callback) (*Hook, error) {
	h := &Hook{name: name, addr: addr, callback: cb}

	err := i.install(h)
	if err != nil {
		h.setState(Failed)
		return h, fmt.Errorf("hook %s at %#x: %w", name, addr, err)
	}
	return h, nil
}

func (i *Interceptor) install(h *Hook) error {
	if h.addr == 0 || h.callback == nil {
		return ErrInvalidAddress
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.hooks[h.addr]; ok {
		return ErrAlreadyHooked
	}

	code, err := readCode(h.addr, maxStolen)
	if err != nil {
		return err
	}
	n, err := stealLength(code)
	if err != nil {
		return err
	}
	if i.overlaps(h.addr, n) {
		return ErrAlreadyHooked
	}
	h.original = append([]byte(nil), code[:n]...)

	register(h)

	err = i.buildStub(h)
	if err != nil {
		unregister(h)
		return err
	}

	patch, err := jumpPatch(h.addr, h.Stub(), n)
	if err == nil {
		err = writeCode(h.addr, patch)
	}
	if err != nil {
		unregister(h)
		i.freeStub(h)
		return err
	}

	h.setState(Installed)
	i.hooks[h.addr] = h
	return nil
}

// overlaps reports whether [addr, addr+n) intersects the displaced bytes of
// an existing hook.
func (i *Interceptor) overlaps(addr uintptr, n int) bool {
	for a, h := range i.hooks {
		if addr < a+uintptr(len(h.original)) && a < addr+uintptr(n) {
			return true
		}
	}
	return false
}

func (i *Interceptor) buildStub(h *Hook) error {
	buf, err := i.stubs.place(stubCapacity, func(addr uintptr) ([]byte, error) {
		return stub(h.original, h.addr, addr, h.id, i.dispatch)
	})
	if err != nil {
		return err
	}
	h.stub = buf
	return nil
}

func (i *Interceptor) freeStub(h *Hook) {
	if h.stub == nil {
		return
	}
	if err := i.stubs.release(h.stub); err == nil {
		h.stub = nil
	}
}

// Remove restores the original code at the hook's address. The stub stays
// allocated because a thread may still be running it. It finds no callback
// and continues into the original code.
func (i *Interceptor) Remove(h *Hook) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if h == nil || h.State() != Installed || i.hooks[h.addr] != h {
		return ErrNotInstalled
	}

	err := writeCode(h.addr, h.original)
	if err != nil {
		return fmt.Errorf("hook %s at %#x: %w", h.name, h.addr, err)
	}

	h.setState(Removed)
	delete(i.hooks, h.addr)
	unregister(h)
	return nil
}

// Hooks returns the installed hooks.
func (i *Interceptor) Hooks() []*Hook {
	i.mu.Lock()
	defer i.mu.Unlock()

	hooks := make([]*Hook, 0, len(i.hooks))
	for _, h := range i.hooks {
		hooks = append(hooks, h)
	}
	return hooks
}

// Close removes every hook. Errors are collected rather than stopping the
// removal of the remaining hooks.
func (i *Interceptor) Close() error {
	var errs []error
	for _, h := range i.Hooks() {
		if err := i.Remove(h); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Patch overwrites code at addr with data.
func (i *Interceptor) Patch(addr uintptr, data []byte) error {
	if addr == 0 || len(data) == 0 {
		return ErrInvalidAddress
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.overlaps(addr, len(data)) {
		return ErrAlreadyHooked
	}
	return writeCode(addr, data)
}

// readCode copies n bytes from addr. A fault while reading is reported as
// ErrInvalidAddress.
func readCode(addr uintptr, n int) (code []byte, err error) {
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		if r := recover(); r != nil {
			code, err = nil, fmt.Errorf("%w: %v", ErrInvalidAddress, r)
		}
	}()

	code = make([]byte, n)
	copy(code, unsafe.Slice((*byte)(unsafe.Pointer(addr)), n))
	return code, nil
}
