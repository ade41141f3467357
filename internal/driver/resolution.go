package driver

import (
	"fmt"
	"sync/atomic"

	"github.com/nmhfix/nmhfix/internal/config"
	"github.com/nmhfix/nmhfix/internal/geometry"
	"github.com/nmhfix/nmhfix/internal/hook"
	"github.com/nmhfix/nmhfix/internal/layout"
	"github.com/nmhfix/nmhfix/internal/logging"
)

// Resolution follows the viewport rectangle the renderer recomputes and
// feeds it to the geometry engine. It is the only writer of the current
// resolution.
type Resolution struct {
	base
	// changes counts distinct resolutions seen, for the log cap.
	changes atomic.Int64
}

func NewResolution() *Resolution {
	return &Resolution{base: base{
		name:     "resolution-capture",
		provides: []Capability{LiveResolution},
	}}
}

// Enabled reports whether any feature depends on the live resolution.
func (*Resolution) Enabled(c config.Config) bool {
	return c.FixResolution || c.FixAspect || c.FixFOV || c.FixHUD
}

func (d *Resolution) Install(env *Env) error {
	addr, err := env.find(resolutionSite)
	if err != nil {
		return err
	}
	return env.installAll(hookSpec{resolutionSite.Name, addr, func(ctx *hook.Context) {
		d.capture(env, ctx)
	}})
}

func (d *Resolution) capture(env *Env, ctx *hook.Context) {
	if ctx.ESI == 0 {
		return
	}
	view := env.Layout.View(env.Mem, uintptr(ctx.ESI))

	var rect [4]int32
	for i, f := range []layout.Field{layout.ViewMinX, layout.ViewMinY, layout.ViewMaxX, layout.ViewMaxY} {
		v, err := view.Int32(f)
		if err != nil {
			return
		}
		rect[i] = v
	}
	minX, minY, maxX, maxY := rect[0], rect[1], rect[2], rect[3]

	var res geometry.Resolution
	if env.Config.FixResolution {
		// Move the viewport to the origin, keeping its size.
		maxX += minX
		maxY += minY
		for _, w := range []struct {
			f layout.Field
			v int32
		}{
			{layout.ViewMaxX, maxX},
			{layout.ViewMaxY, maxY},
			{layout.ViewMinX, 0},
			{layout.ViewMinY, 0},
		} {
			if err := view.SetInt32(w.f, w.v); err != nil {
				return
			}
		}
		res = geometry.Resolution{Width: int(maxX), Height: int(maxY)}
	} else {
		res = geometry.Resolution{Width: int(maxX - minX), Height: int(maxY - minY)}
	}

	g, changed := env.Geometry.Observe(res)
	if changed {
		d.logChange(env, g)
	}
}

func (d *Resolution) logChange(env *Env, g geometry.Geometry) {
	n := d.changes.Add(1)
	limit := int64(env.Config.ResolutionLogLimit)
	switch {
	case limit == 0 || n <= limit:
		env.Log.Record(logging.Info, fmt.Sprintf(
			"Current Resolution: Resolution: %s aspectRatio: %g aspectMultiplier: %g hudWidth: %g hudHeight: %g hudWidthOffset: %g hudHeightOffset: %g",
			g.Resolution, g.AspectRatio, g.AspectMultiplier, g.HUDWidth, g.HUDHeight, g.HUDWidthOffset, g.HUDHeightOffset))
	case n == limit+1:
		env.Log.Record(logging.Info, fmt.Sprintf(
			"Current Resolution: logged %d changes, not logging further changes", limit))
	}
}
