package hook

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/pboyd/malloc"
)

var errStubTooLarge = errors.New("stub does not fit its block")

// arena is executable memory for stubs. It is only writable while place or
// release holds the lock.
type arena struct {
	mu      sync.Mutex
	once    sync.Once
	heap    *malloc.Arena
	protect func(int) error
	err     error
}

func (a *arena) open() error {
	a.once.Do(func() {
		be := stubBackend()
		a.protect = func(int) error { return nil }
		if p, ok := be.(malloc.ProtectedArenaBackend); ok {
			a.protect = p.Protect
		}

		a.heap = malloc.NewArena(uint64(stubCapacity)*16, malloc.Backend(be))
		if a.heap == nil {
			a.err = errors.New("unable to initialize stub arena")
		}
	})
	return a.err
}

// stubBackend maps executable pages. On linux/amd64 they are below 4GB.
func stubBackend() malloc.ArenaBackend {
	return malloc.MmapBackend(malloc.MmapProt(mprotectExec), malloc.MmapFlags(mmapFlags))
}

// place allocates a block of size bytes and fills it with the code build
// returns for the block's address. The rest of the block is INT3.
func (a *arena) place(size int, build func(addr uintptr) ([]byte, error)) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.open(); err != nil {
		return nil, err
	}
	if err := a.protect(mprotectRWX); err != nil {
		return nil, fmt.Errorf("unprotect stub arena: %w", err)
	}
	defer a.protect(mprotectRX)

	buf, err := malloc.MallocSlice[byte](a.heap, size)
	if err != nil {
		return nil, err
	}

	code, err := build(addrOf(buf))
	if err == nil && len(code) > len(buf) {
		err = fmt.Errorf("%w: %d > %d bytes", errStubTooLarge, len(code), len(buf))
	}
	if err != nil {
		malloc.FreeSlice(a.heap, buf)
		return nil, err
	}

	for n := copy(buf, code); n < len(buf); n++ {
		buf[n] = opcodeINT3
	}
	return buf, nil
}

// release returns a block from place to the arena.
func (a *arena) release(buf []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.heap == nil {
		return errors.New("release before place")
	}
	if err := a.protect(mprotectRWX); err != nil {
		return fmt.Errorf("unprotect stub arena: %w", err)
	}
	defer a.protect(mprotectRX)

	malloc.FreeSlice(a.heap, buf)
	return nil
}

// Every Interceptor shares one arena, so all stubs sit in one region.
var stubArena = &arena{}

func addrOf(buf []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
}
