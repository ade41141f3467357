package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"k8s.io/klog/v2"

	"github.com/nmhfix/nmhfix/internal/config"
	"github.com/nmhfix/nmhfix/internal/driver"
	"github.com/nmhfix/nmhfix/internal/fix"
	"github.com/nmhfix/nmhfix/internal/geometry"
	"github.com/nmhfix/nmhfix/internal/layout"
	"github.com/nmhfix/nmhfix/internal/logging"
	"github.com/nmhfix/nmhfix/internal/memory"
	"github.com/nmhfix/nmhfix/internal/module"
)

const (
	fixName    = "NMHFix"
	fixVersion = "0.7.0"
)

// hooker is a driver.Hooker that can undo everything it installed.
type hooker interface {
	driver.Hooker
	Close() error
}

// platform is what attach needs from the host process.
type platform struct {
	image   func() (*module.Image, error)
	desktop func() (geometry.Resolution, error)
	hooks   func() (hooker, error)
	mem     memory.Memory
}

type session struct {
	hooks   hooker
	reports []fix.Report
}

var (
	mu      sync.Mutex
	current *session
)

// attach installs the fix into the host process. An error means nothing
// was installed.
func attach(p platform) (*session, error) {
	img, err := p.image()
	if err != nil {
		return nil, fmt.Errorf("module identity: %w", err)
	}
	dir := filepath.Dir(img.Path)

	logPath, err := logging.Setup(dir, 0)
	if err != nil {
		return nil, fmt.Errorf("log setup: %w", err)
	}
	log := logging.Klog{}
	klog.Info("----------")
	klog.Infof("%s v%s loaded.", fixName, fixVersion)
	klog.Info("----------")
	klog.Infof("Path to logfile: %s", logPath)
	klog.Info("----------")

	cfgPath := config.Path(dir)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		klog.ErrorS(err, "Could not load config file", "path", cfgPath)
		logging.Flush()
		return nil, err
	}
	klog.Infof("Path to config file: %s", cfgPath)
	if err := logging.SetVerbosity(cfg.Verbosity); err != nil {
		klog.ErrorS(err, "Could not set log verbosity")
	}
	cfg.Log()

	variant := module.ResolveVariant(cfg.Variant, img)
	klog.Infof("Module Name: %s", img.Name)
	klog.Infof("Module Path: %s", dir)
	klog.Infof("Module Address: %#x", img.Base)
	klog.Infof("Module Timestamp: %d", img.Timestamp)
	klog.Infof("Build Variant: %s", variant)
	klog.Info("----------")

	engine := geometry.NewEngine(geometry.NativeAspect)
	res, err := p.desktop()
	if err != nil {
		klog.ErrorS(err, "Could not read desktop dimensions")
	} else {
		engine.Seed(res)
		klog.Infof("Desktop Resolution: %s", res)
	}

	hooks, err := p.hooks()
	if err != nil {
		klog.ErrorS(err, "Could not create hook interceptor")
		logging.Flush()
		return nil, err
	}

	env := &driver.Env{
		Module:   img.Name,
		Region:   img.Region(),
		Hooks:    hooks,
		Mem:      p.mem,
		Geometry: engine,
		Layout:   layout.For(variant),
		Config:   cfg,
		Log:      log,
	}
	reports := fix.Default().Run(env)
	fix.Summary(log, reports)
	logging.Flush()

	return &session{hooks: hooks, reports: reports}, nil
}

// detach removes every hook.
func (s *session) detach() error {
	err := s.hooks.Close()
	if err != nil {
		klog.ErrorS(err, "Could not remove all hooks")
	}
	logging.Flush()
	return err
}

func start(p platform) {
	mu.Lock()
	defer mu.Unlock()

	s, err := attach(p)
	if err != nil {
		return
	}
	current = s
}

func stop() error {
	mu.Lock()
	defer mu.Unlock()

	if current == nil {
		return errNotAttached
	}
	err := current.detach()
	current = nil
	return err
}

var errNotAttached = errors.New("not attached")
