// Package driver implements the individual fixes. Each driver locates its
// sites by signature, then installs hooks or byte patches there. A driver
// that cannot find or hook a site stays inert without affecting the others.
package driver

import (
	"errors"
	"fmt"

	"github.com/nmhfix/nmhfix/internal/config"
	"github.com/nmhfix/nmhfix/internal/geometry"
	"github.com/nmhfix/nmhfix/internal/hook"
	"github.com/nmhfix/nmhfix/internal/layout"
	"github.com/nmhfix/nmhfix/internal/logging"
	"github.com/nmhfix/nmhfix/internal/memory"
	"github.com/nmhfix/nmhfix/internal/scan"
)

var (
	ErrPatternNotFound = errors.New("pattern scan failed")
	ErrHookInstall     = errors.New("hook install failed")
)

// Virtual resolution the game lays out its 2D elements in.
const (
	VirtualWidth  = 854
	VirtualHeight = 480
)

// Capability is something a driver makes available to drivers installed
// after it.
type Capability string

// LiveResolution means the geometry engine follows the game's resolution.
const LiveResolution Capability = "live-resolution"

// Hooker installs code hooks and byte patches. *hook.Interceptor is the
// production implementation.
type Hooker interface {
	Install(name string, addr uintptr, cb hook.Callback) (*hook.Hook, error)
	Remove(h *hook.Hook) error
	Patch(addr uintptr, data []byte) error
}

type Driver interface {
	Name() string
	Enabled(c config.Config) bool
	Requires() []Capability
	Provides() []Capability
	// Install is called once. It returns an error wrapping
	// ErrPatternNotFound or ErrHookInstall if the driver could not be
	// installed, in which case it has left the game unmodified.
	Install(env *Env) error
}

// Env is what drivers install against.
type Env struct {
	// Module names the image in log messages.
	Module string

	Region   scan.Region
	Hooks    Hooker
	Mem      memory.Memory
	Geometry *geometry.Engine
	Layout   layout.Table
	Config   config.Config
	Log      logging.Recorder
}

func (e *Env) info(format string, args ...any) {
	e.Log.Record(logging.Info, fmt.Sprintf(format, args...))
}

// find locates site and returns the address to act on.
func (e *Env) find(site Site) (uintptr, error) {
	addr, err := e.Region.Find(site.Signature)
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %w", site.Name, ErrPatternNotFound, err)
	}
	e.info("%s: Address is %s+%x", site.Name, e.Module, e.Region.Offset(addr))
	return addr + site.Offset, nil
}

// findAll locates every site or none.
func (e *Env) findAll(sites ...Site) ([]uintptr, error) {
	addrs := make([]uintptr, len(sites))
	var errs []error
	for i, s := range sites {
		addr, err := e.find(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		addrs[i] = addr
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return addrs, nil
}

type hookSpec struct {
	name     string
	addr     uintptr
	callback hook.Callback
}

// installAll installs every hook in specs or, on the first failure, removes
// the ones already installed.
func (e *Env) installAll(specs ...hookSpec) error {
	installed := make([]*hook.Hook, 0, len(specs))
	for _, s := range specs {
		h, err := e.Hooks.Install(s.name, s.addr, s.callback)
		if err != nil {
			for _, h := range installed {
				_ = e.Hooks.Remove(h)
			}
			return fmt.Errorf("%s: %w: %w", s.name, ErrHookInstall, err)
		}
		installed = append(installed, h)
	}
	return nil
}

// current returns the geometry hooks should act on, or false before any
// resolution is known.
func (e *Env) current() (geometry.Geometry, bool) {
	g := e.Geometry.Load()
	return g, g.Valid()
}

type base struct {
	name     string
	requires []Capability
	provides []Capability
}

func (b base) Name() string { return b.name }
func (b base) Requires() []Capability { return b.requires }
func (b base) Provides() []Capability { return b.provides }

// All returns every driver in installation order.
func All() []Driver {
	return []Driver{
		NewIntroSkip(),
		NewResolution(),
		NewViewport(),
		NewOcclusionAspect(),
		NewShadowAspect(),
		NewCinematic(),
		NewFOV(),
		NewHUD(),
	}
}
