package driver

import (
	"github.com/nmhfix/nmhfix/internal/config"
	"github.com/nmhfix/nmhfix/internal/hook"
)

// OcclusionAspect fixes the aspect ratio used for occlusion culling. The
// value written depends on config.OcclusionPolicy.
type OcclusionAspect struct {
	base
}

func NewOcclusionAspect() *OcclusionAspect {
	return &OcclusionAspect{base{
		name:     "occlusion-aspect",
		requires: []Capability{LiveResolution},
	}}
}

func (*OcclusionAspect) Enabled(c config.Config) bool {
	return c.FixAspect
}

func (d *OcclusionAspect) Install(env *Env) error {
	addr, err := env.find(occlusionAspectSite)
	if err != nil {
		return err
	}
	policy := env.Config.OcclusionAspect
	return env.installAll(hookSpec{occlusionAspectSite.Name, addr, func(ctx *hook.Context) {
		if policy == config.OcclusionUnity {
			ctx.XMM[0].F32[0] = 1
			return
		}
		if g, ok := env.current(); ok {
			ctx.XMM[0].F32[0] = g.AspectRatio
		}
	}})
}

// ShadowAspect fixes the aspect ratio of the shadow map projection.
type ShadowAspect struct {
	base
}

func NewShadowAspect() *ShadowAspect {
	return &ShadowAspect{base{
		name:     "shadow-aspect",
		requires: []Capability{LiveResolution},
	}}
}

func (*ShadowAspect) Enabled(c config.Config) bool {
	return c.FixAspect
}

func (d *ShadowAspect) Install(env *Env) error {
	addr, err := env.find(shadowAspectSite)
	if err != nil {
		return err
	}
	return env.installAll(hookSpec{shadowAspectSite.Name, addr, func(ctx *hook.Context) {
		if g, ok := env.current(); ok {
			ctx.XMM[0].F32[0] = g.AspectRatio
		}
	}})
}
