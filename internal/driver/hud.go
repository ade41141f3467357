package driver

import (
	"fmt"
	"sync/atomic"

	"github.com/nmhfix/nmhfix/internal/config"
	"github.com/nmhfix/nmhfix/internal/hook"
	"github.com/nmhfix/nmhfix/internal/layout"
	"github.com/nmhfix/nmhfix/internal/memory"
)

// HUD keeps 2D elements inside the native aspect safe area on displays
// wider than native. SetViewport brackets HUD rendering: the HUD viewport is
// widened on entry and restored before the 3D viewport is set, and the
// orthographic projection built in between is scaled back to the safe area.
type HUD struct {
	base
	rendering atomic.Bool
}

func NewHUD() *HUD {
	return &HUD{base: base{
		name:     "hud",
		requires: []Capability{LiveResolution},
	}}
}

func (*HUD) Enabled(c config.Config) bool {
	return c.FixHUD && c.HUDSafeArea
}

// RenderingHUD reports whether a thread is between the two SetViewport
// hooks.
func (d *HUD) RenderingHUD() bool {
	return d.rendering.Load()
}

func (d *HUD) Install(env *Env) error {
	matches, err := env.findAll(setViewportSite, hudBackgroundSite, drawBoxSite, mtxOrthoSite)
	if err != nil {
		return err
	}

	// call rel32 at match+7, so the displacement is at +8 and the next
	// instruction at +0xc.
	setViewport, err := memory.CallTarget(env.Mem, matches[0]+0x8, matches[0]+0xc)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", setViewportSite.Name, ErrPatternNotFound, err)
	}
	background, err := memory.Absolute(env.Mem, matches[1]+0x4)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", hudBackgroundSite.Name, ErrPatternNotFound, err)
	}
	drawBox, err := memory.CallTarget(env.Mem, matches[2]+0x4, matches[2]+0x8)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", drawBoxSite.Name, ErrPatternNotFound, err)
	}
	setViewportWidth := setViewport + env.Layout.Offset(layout.SetViewportWidth)

	env.info("%s: Function address is %s+%x", setViewportSite.Name, env.Module, env.Region.Offset(setViewport))
	env.info("%s: Width: Address is %s+%x", hudBackgroundSite.Name, env.Module, env.Region.Offset(background))
	env.info("%s: Function address is %s+%x", drawBoxSite.Name, env.Module, env.Region.Offset(drawBox))

	native := env.Geometry.Native()
	return env.installAll(
		hookSpec{setViewportSite.Name, setViewport, func(ctx *hook.Context) {
			d.rendering.Store(true)
			if g, ok := env.current(); ok && g.Wider(native) {
				ctx.XMM[3].F32[0] = VirtualHeight * g.AspectRatio
			}
		}},
		hookSpec{setViewportSite.Name + " Width", setViewportWidth, func(ctx *hook.Context) {
			if g, ok := env.current(); ok && g.Wider(native) {
				ctx.XMM[3].F32[0] = VirtualWidth
			}
			d.rendering.Store(false)
		}},
		hookSpec{drawBoxSite.Name, drawBox, func(ctx *hook.Context) {
			if g, ok := env.current(); ok && g.Wider(native) {
				_ = env.Mem.WriteFloat32(background, VirtualHeight*g.AspectRatio)
			}
		}},
		hookSpec{mtxOrthoSite.Name, matches[3], func(ctx *hook.Context) {
			if !d.rendering.Load() {
				return
			}
			if g, ok := env.current(); ok && g.Wider(native) {
				ctx.XMM[3].F32[0] = -1 / g.AspectMultiplier
			}
		}},
	)
}
