package driver

import (
	"github.com/nmhfix/nmhfix/internal/config"
	"github.com/nmhfix/nmhfix/internal/hook"
)

// Viewport loads the virtual width where the game would compute its own
// viewport width from the window size.
type Viewport struct {
	base
}

func NewViewport() *Viewport {
	return &Viewport{base{name: "viewport"}}
}

func (*Viewport) Enabled(c config.Config) bool {
	return c.FixResolution
}

func (d *Viewport) Install(env *Env) error {
	addr, err := env.find(viewportSite)
	if err != nil {
		return err
	}
	return env.installAll(hookSpec{viewportSite.Name, addr, func(ctx *hook.Context) {
		ctx.EAX = VirtualWidth
	}})
}
