package driver

import (
	"fmt"

	"github.com/nmhfix/nmhfix/internal/config"
)

// IntroSkip sets the game's logo skip flag so it starts at the title screen.
type IntroSkip struct {
	base
}

func NewIntroSkip() *IntroSkip {
	return &IntroSkip{base{name: "intro-skip"}}
}

func (*IntroSkip) Enabled(c config.Config) bool {
	return c.SkipIntro
}

func (d *IntroSkip) Install(env *Env) error {
	addr, err := env.find(introSkipSite)
	if err != nil {
		return err
	}
	// Immediate operand of the store to inLogoSkip.
	if err := env.Hooks.Patch(addr, []byte{0x01}); err != nil {
		return fmt.Errorf("%s: %w: %w", introSkipSite.Name, ErrHookInstall, err)
	}
	env.info("%s: Patched instruction.", introSkipSite.Name)
	return nil
}
