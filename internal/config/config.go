// Package config loads the fix's feature flags from NMHFix.ini.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
	"k8s.io/klog/v2"

	"github.com/nmhfix/nmhfix/internal/layout"
)

// FileName is looked up beside the host executable.
const FileName = "NMHFix.ini"

var ErrMissing = errors.New("config file not found")

// OcclusionPolicy selects the value written at the occlusion aspect site.
type OcclusionPolicy int

const (
	// OcclusionUnity writes 1.0.
	OcclusionUnity OcclusionPolicy = iota
	// OcclusionLive writes the live aspect ratio.
	OcclusionLive
)

func (p OcclusionPolicy) String() string {
	if p == OcclusionLive {
		return "live"
	}
	return "unity"
}

// DefaultResolutionLogLimit caps how many resolution changes are logged.
const DefaultResolutionLogLimit = 10

type Config struct {
	SkipIntro     bool
	FixResolution bool
	FixAspect     bool
	FixFOV        bool
	FixHUD        bool

	// HUDSafeArea enables the HUD width and offset sites. It only has an
	// effect together with FixHUD.
	HUDSafeArea bool

	OcclusionAspect OcclusionPolicy

	Verbosity int
	// ResolutionLogLimit of 0 logs every change.
	ResolutionLogLimit int

	// Variant is set when the build variant is forced instead of detected.
	Variant *layout.Variant
}

// Default returns the configuration used when nothing is loaded: every
// feature off.
func Default() Config {
	return Config{
		OcclusionAspect:    OcclusionUnity,
		ResolutionLogLimit: DefaultResolutionLogLimit,
	}
}

// Path returns where the config file is expected for an executable in dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Load reads path. A missing file returns Default and an error wrapping
// ErrMissing. Values that fail to parse keep their defaults and are logged.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), fmt.Errorf("%s: %w", path, ErrMissing)
		}
		return Default(), err
	}
	return Parse(data)
}

// Parse reads an INI document.
func Parse(data []byte) (Config, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		Insensitive:      true,
		AllowBooleanKeys: true,
	}, data)
	if err != nil {
		return Default(), fmt.Errorf("parse config: %w", err)
	}

	c := Default()
	p := parser{file: f}

	c.SkipIntro = p.boolean("Skip Intro", "Enabled", c.SkipIntro)
	c.FixResolution = p.boolean("Fix Resolution", "Enabled", c.FixResolution)
	c.FixAspect = p.boolean("Fix Aspect Ratio", "Enabled", c.FixAspect)
	c.FixFOV = p.boolean("Fix FOV", "Enabled", c.FixFOV)
	c.FixHUD = p.boolean("Fix HUD", "Enabled", c.FixHUD)
	c.HUDSafeArea = p.boolean("Fix HUD", "SafeArea", c.HUDSafeArea)

	switch v := p.str("Fix Aspect Ratio", "OcclusionAspect"); v {
	case "", "unity":
	case "live":
		c.OcclusionAspect = OcclusionLive
	default:
		p.warn("Fix Aspect Ratio", "OcclusionAspect", v)
	}

	c.Verbosity = p.integer("Logging", "Verbosity", c.Verbosity)
	c.ResolutionLogLimit = p.integer("Logging", "ResolutionLogLimit", c.ResolutionLogLimit)
	if c.ResolutionLogLimit < 0 {
		p.warn("Logging", "ResolutionLogLimit", fmt.Sprint(c.ResolutionLogLimit))
		c.ResolutionLogLimit = DefaultResolutionLogLimit
	}

	switch v := p.str("Build", "Variant"); v {
	case "", "auto":
	default:
		variant, err := layout.ParseVariant(v)
		if err != nil {
			p.warn("Build", "Variant", v)
			break
		}
		c.Variant = &variant
	}

	return c, nil
}

// Log writes the effective configuration.
func (c Config) Log() {
	klog.InfoS("Config parse", "skipIntro", c.SkipIntro, "fixResolution", c.FixResolution,
		"fixAspect", c.FixAspect, "occlusionAspect", c.OcclusionAspect.String(),
		"fixFOV", c.FixFOV, "fixHUD", c.FixHUD, "hudSafeArea", c.HUDSafeArea)
	variant := "auto"
	if c.Variant != nil {
		variant = c.Variant.String()
	}
	klog.V(1).InfoS("Config parse", "verbosity", c.Verbosity,
		"resolutionLogLimit", c.ResolutionLogLimit, "variant", variant)
}

type parser struct {
	file *ini.File
}

func (p parser) key(section, name string) *ini.Key {
	s, err := p.file.GetSection(section)
	if err != nil || !s.HasKey(name) {
		return nil
	}
	return s.Key(name)
}

func (p parser) str(section, name string) string {
	k := p.key(section, name)
	if k == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(k.String()))
}

func (p parser) boolean(section, name string, def bool) bool {
	k := p.key(section, name)
	if k == nil {
		return def
	}
	v, err := k.Bool()
	if err != nil {
		p.warn(section, name, k.String())
		return def
	}
	return v
}

func (p parser) integer(section, name string, def int) int {
	k := p.key(section, name)
	if k == nil {
		return def
	}
	v, err := k.Int()
	if err != nil {
		p.warn(section, name, k.String())
		return def
	}
	return v
}

func (parser) warn(section, name, value string) {
	klog.Warningf("Config parse: [%s] %s: invalid value %q, using default", section, name, value)
}
