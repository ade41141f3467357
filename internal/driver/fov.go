package driver

import (
	"github.com/nmhfix/nmhfix/internal/config"
	"github.com/nmhfix/nmhfix/internal/geometry"
	"github.com/nmhfix/nmhfix/internal/hook"
)

// FOV widens the vertical field of view on displays narrower than native,
// so the horizontal extent matches what the game shows at 16:9.
type FOV struct {
	base
}

func NewFOV() *FOV {
	return &FOV{base{
		name:     "fov",
		requires: []Capability{LiveResolution},
	}}
}

func (*FOV) Enabled(c config.Config) bool {
	return c.FixFOV
}

func (d *FOV) Install(env *Env) error {
	addr, err := env.find(fovSite)
	if err != nil {
		return err
	}
	return env.installAll(hookSpec{fovSite.Name, addr, func(ctx *hook.Context) {
		g, ok := env.current()
		native := env.Geometry.Native()
		if ok && g.Narrower(native) {
			ctx.XMM[0].F32[0] = geometry.ReprojectFOV(ctx.XMM[0].F32[0], g.AspectRatio, native)
		}
	}})
}
