// Package geometry keeps the current resolution and the values derived from
// it.
package geometry

import (
	"fmt"
	"math"
	"sync/atomic"
)

// NativeAspect is the aspect ratio the game's assets and UI were made for.
const NativeAspect = float32(16) / 9

// Resolution is the size of the game's viewport in pixels.
type Resolution struct {
	Width  int
	Height int
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

func (r Resolution) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// Geometry is an immutable snapshot of a resolution and everything derived
// from it.
type Geometry struct {
	Resolution

	AspectRatio      float32
	AspectMultiplier float32

	// HUD safe area: the largest native aspect rectangle centered in the
	// viewport.
	HUDWidth        float32
	HUDHeight       float32
	HUDWidthOffset  float32
	HUDHeightOffset float32
}

// Wider reports whether the viewport is wider than native.
func (g Geometry) Wider(native float32) bool {
	return g.AspectRatio > native
}

// Narrower reports whether the viewport is narrower than native.
func (g Geometry) Narrower(native float32) bool {
	return g.AspectRatio < native
}

// Recompute derives a Geometry from res. res.Height must be positive.
//
// Every intermediate is converted to float32 explicitly so the compiler
// cannot fuse operations, which keeps the result bit-identical between
// calls and platforms.
func Recompute(res Resolution, native float32) Geometry {
	w := float32(res.Width)
	h := float32(res.Height)

	g := Geometry{Resolution: res}
	g.AspectRatio = w / h
	g.AspectMultiplier = g.AspectRatio / native

	if g.AspectRatio >= native {
		g.HUDHeight = h
		g.HUDWidth = float32(h * native)
		g.HUDHeightOffset = 0
		g.HUDWidthOffset = float32(w-g.HUDWidth) / 2
	} else {
		g.HUDWidth = w
		g.HUDHeight = float32(w / native)
		g.HUDWidthOffset = 0
		g.HUDHeightOffset = float32(h-g.HUDHeight) / 2
	}
	return g
}

var (
	pi32         = float32(math.Pi)
	degToHalfRad = pi32 / 360
	halfRadToDeg = 360 / pi32
)

// ReprojectFOV converts a field of view in degrees that was computed for
// native to the same view at aspect. Every step is rounded to float32, as
// the game computes it, so the result matches the game's own value bit for
// bit.
func ReprojectFOV(fov, aspect, native float32) float32 {
	t := float32(math.Tan(float64(fov * degToHalfRad)))
	a := float32(math.Atan(float64(t / aspect * native)))
	return a * halfRadToDeg
}

// Engine publishes the current Geometry. Readers always get a complete
// snapshot: the resolution and its derived values are swapped in together.
type Engine struct {
	native  float32
	current atomic.Pointer[Geometry]
}

func NewEngine(native float32) *Engine {
	return &Engine{native: native}
}

func (e *Engine) Native() float32 {
	return e.native
}

// Load returns the current snapshot. Before the first Seed or Observe it is
// the zero Geometry.
func (e *Engine) Load() Geometry {
	if g := e.current.Load(); g != nil {
		return *g
	}
	return Geometry{}
}

// Seed sets the baseline resolution unconditionally.
func (e *Engine) Seed(res Resolution) Geometry {
	g := Recompute(res, e.native)
	e.current.Store(&g)
	return g
}

// Observe records res. If it differs from the current resolution, or there
// is none yet, the Geometry is recomputed and published and changed is true.
// Invalid resolutions are ignored.
func (e *Engine) Observe(res Resolution) (g Geometry, changed bool) {
	if !res.Valid() {
		return e.Load(), false
	}

	for {
		old := e.current.Load()
		if old != nil && old.Resolution == res {
			return *old, false
		}
		next := Recompute(res, e.native)
		if e.current.CompareAndSwap(old, &next) {
			return next, true
		}
	}
}
