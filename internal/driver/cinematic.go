package driver

import (
	"github.com/nmhfix/nmhfix/internal/config"
	"github.com/nmhfix/nmhfix/internal/hook"
	"github.com/nmhfix/nmhfix/internal/layout"
)

// Cinematic letterboxes or pillarboxes cinematics to the native aspect
// ratio. Its two sites only work together, so it installs both or neither.
type Cinematic struct {
	base
}

func NewCinematic() *Cinematic {
	return &Cinematic{base{
		name:     "cinematic",
		requires: []Capability{LiveResolution},
	}}
}

func (*Cinematic) Enabled(c config.Config) bool {
	return c.FixHUD
}

func (d *Cinematic) Install(env *Env) error {
	addrs, err := env.findAll(movieAspectSite, movieSizeSite)
	if err != nil {
		return err
	}
	return env.installAll(
		hookSpec{movieAspectSite.Name, addrs[0], func(ctx *hook.Context) {
			d.aspect(env, ctx)
		}},
		hookSpec{movieSizeSite.Name, addrs[1], func(ctx *hook.Context) {
			d.size(env, ctx)
		}},
	)
}

func (d *Cinematic) aspect(env *Env, ctx *hook.Context) {
	g, ok := env.current()
	if ok && g.AspectRatio != env.Geometry.Native() {
		ctx.XMM[0].F32[0] = env.Geometry.Native()
	}
}

// size rewrites the destination rectangle in EAX to the HUD safe area.
func (d *Cinematic) size(env *Env, ctx *hook.Context) {
	g, ok := env.current()
	if !ok || ctx.EAX == 0 {
		return
	}
	view := env.Layout.View(env.Mem, uintptr(ctx.EAX))
	native := env.Geometry.Native()

	switch {
	case g.Wider(native):
		if view.SetInt32(layout.MovieMaxX, int32(int(g.HUDWidth)+int(g.HUDWidthOffset))) != nil {
			return
		}
		_ = view.SetInt32(layout.MovieMinX, int32(g.HUDWidthOffset))
	case g.Narrower(native):
		if view.SetInt32(layout.MovieMaxY, int32(int(g.HUDHeight)+int(g.HUDHeightOffset))) != nil {
			return
		}
		_ = view.SetInt32(layout.MovieMinY, int32(g.HUDHeightOffset))
	}
}
