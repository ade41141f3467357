// Package fix installs the drivers in order and reports what each one did.
package fix

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/nmhfix/nmhfix/internal/driver"
	"github.com/nmhfix/nmhfix/internal/logging"
)

// Status is where a driver ended up. Drivers only move forward:
// NotInstalled, then ScanAttempted, then Installed or ScanFailed.
type Status int

const (
	NotInstalled Status = iota
	ScanAttempted
	Installed
	ScanFailed
	// Disabled drivers are never scanned for.
	Disabled
)

var statusNames = map[Status]string{
	NotInstalled:  "not installed",
	ScanAttempted: "scan attempted",
	Installed:     "installed",
	ScanFailed:    "scan failed",
	Disabled:      "disabled",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "Status(" + strconv.Itoa(int(s)) + ")"
}

type Report struct {
	Name   string
	Status Status
	Err    error
}

// Registry is an ordered list of drivers whose requirements are satisfied by
// the drivers before them.
type Registry struct {
	drivers []driver.Driver
}

// NewRegistry panics if a driver requires a capability no earlier driver
// provides.
func NewRegistry(drivers ...driver.Driver) *Registry {
	provided := make(map[driver.Capability]bool)
	for _, d := range drivers {
		for _, c := range d.Requires() {
			if !provided[c] {
				panic(fmt.Sprintf("fix: driver %s requires %s, which no earlier driver provides", d.Name(), c))
			}
		}
		for _, c := range d.Provides() {
			provided[c] = true
		}
	}
	return &Registry{drivers: drivers}
}

// Default returns the registry of every driver.
func Default() *Registry {
	return NewRegistry(driver.All()...)
}

func (r *Registry) Drivers() []driver.Driver {
	return r.drivers
}

// Run installs every enabled driver, once. Drivers whose requirements
// failed to install still run against the seeded geometry.
func (r *Registry) Run(env *driver.Env) []Report {
	reports := make([]Report, 0, len(r.drivers))
	for _, d := range r.drivers {
		rep := Report{Name: d.Name(), Status: NotInstalled}
		if !d.Enabled(env.Config) {
			rep.Status = Disabled
			reports = append(reports, rep)
			continue
		}

		rep.Status = ScanAttempted
		if err := install(d, env); err != nil {
			rep.Status = ScanFailed
			rep.Err = err
			env.Log.Record(logging.Warning, err.Error())
		} else {
			rep.Status = Installed
		}
		reports = append(reports, rep)
	}
	return reports
}

// install keeps a panicking driver from taking down the others.
func install(d driver.Driver, env *driver.Env) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %w: %v", d.Name(), errInstallPanic, r)
		}
	}()
	return d.Install(env)
}

var errInstallPanic = errors.New("driver panicked")

// Summary logs one line per driver.
func Summary(log logging.Recorder, reports []Report) {
	for _, r := range reports {
		level := logging.Info
		if r.Status == ScanFailed {
			level = logging.Warning
		}
		log.Record(level, fmt.Sprintf("%s: %s", r.Name, r.Status))
	}
}
