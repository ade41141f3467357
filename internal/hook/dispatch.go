package hook

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"unsafe"

	"k8s.io/klog/v2"
)

// Hooks are found by id on every call, from arbitrary threads. The table is
// copied on write so lookups never lock.
var (
	tableMu sync.Mutex
	table   atomic.Pointer[[]*Hook]
)

func register(h *Hook) {
	tableMu.Lock()
	defer tableMu.Unlock()

	var hooks []*Hook
	if old := table.Load(); old != nil {
		hooks = append(hooks, (*old)...)
	}
	// Slot 0 is never used so a zeroed id cannot match.
	if len(hooks) == 0 {
		hooks = append(hooks, nil)
	}
	h.id = uint32(len(hooks))
	hooks = append(hooks, h)
	table.Store(&hooks)
}

func unregister(h *Hook) {
	tableMu.Lock()
	defer tableMu.Unlock()

	old := table.Load()
	if old == nil || int(h.id) >= len(*old) {
		return
	}
	hooks := append([]*Hook(nil), (*old)...)
	hooks[h.id] = nil
	table.Store(&hooks)
}

func lookup(id uint32) *Hook {
	hooks := table.Load()
	if hooks == nil || int(id) >= len(*hooks) {
		return nil
	}
	return (*hooks)[id]
}

// dispatch is the single entry point every stub calls.
func dispatch(id, ctx uintptr) uintptr {
	if ctx == 0 {
		return 0
	}
	if h := lookup(uint32(id)); h != nil {
		h.invoke((*Context)(unsafe.Pointer(ctx)))
	}
	return 0
}

// invoke runs the callback against a copy of ctx. The copy is written back
// only if the callback returns normally, so a callback that panics or faults
// leaves the registers as they were.
func (h *Hook) invoke(ctx *Context) {
	if h.State() != Installed {
		return
	}
	h.calls.Add(1)

	scratch := *ctx
	if !h.run(&scratch) {
		return
	}
	scratch.EIP = ctx.EIP
	scratch.ESP = ctx.ESP
	*ctx = scratch
}

func (h *Hook) run(ctx *Context) (ok bool) {
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		if r := recover(); r != nil {
			ok = false
			if h.faults.Add(1) == 1 {
				klog.ErrorS(nil, "Hook callback failed, leaving context untouched", "hook", h.name, "address", fmt.Sprintf("%#x", h.addr), "panic", r)
			}
		}
	}()

	h.callback(ctx)
	return true
}
