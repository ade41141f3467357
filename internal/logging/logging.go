// Package logging routes diagnostics to the fix's log file and provides the
// Recorder sink the drivers report through.
package logging

import (
	"flag"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"k8s.io/klog/v2"
)

// FileName is created beside the host executable.
const FileName = "NMHFix.log"

type Level int

const (
	Info Level = iota
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "Level(" + strconv.Itoa(int(l)) + ")"
	}
}

// Recorder receives diagnostic events.
type Recorder interface {
	Record(level Level, msg string)
}

// Klog records through klog.
type Klog struct{}

func (Klog) Record(level Level, msg string) {
	switch level {
	case Warning:
		klog.WarningDepth(1, msg)
	case Error:
		klog.ErrorDepth(1, msg)
	default:
		klog.InfoDepth(1, msg)
	}
}

// Setup points klog at dir/NMHFix.log. Nothing goes to stderr: an injected
// module has no console.
func Setup(dir string, verbosity int) (string, error) {
	path := filepath.Join(dir, FileName)

	fs := flag.NewFlagSet("nmhfix", flag.ContinueOnError)
	klog.InitFlags(fs)

	settings := []struct{ name, value string }{
		{"v", strconv.Itoa(verbosity)},
		{"log_file", path},
		{"logtostderr", "false"},
		{"alsologtostderr", "false"},
		{"stderrthreshold", "FATAL"},
		{"skip_log_headers", "true"},
	}
	for _, s := range settings {
		if err := fs.Set(s.name, s.value); err != nil {
			return "", fmt.Errorf("error setting klog flag %s: %w", s.name, err)
		}
	}

	return path, nil
}

// SetVerbosity changes the klog -v level after Setup.
func SetVerbosity(verbosity int) error {
	fs := flag.NewFlagSet("nmhfix", flag.ContinueOnError)
	klog.InitFlags(fs)
	if err := fs.Set("v", strconv.Itoa(verbosity)); err != nil {
		return fmt.Errorf("error setting klog flag v: %w", err)
	}
	return nil
}

// Flush writes any buffered log lines.
func Flush() {
	klog.Flush()
}

type Event struct {
	Level   Level
	Message string
}

// Buffer keeps events in memory.
type Buffer struct {
	mu     sync.Mutex
	events []Event
}

func (b *Buffer) Record(level Level, msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, Event{Level: level, Message: msg})
}

// Events returns a copy of everything recorded so far.
func (b *Buffer) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.events...)
}

// Count returns how many events were recorded at level.
func (b *Buffer) Count(level Level) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, e := range b.events {
		if e.Level == level {
			n++
		}
	}
	return n
}
