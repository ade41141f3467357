//go:build windows && 386

// Command nmhfix is the fix itself, built as a DLL that the game loads:
//
//	GOOS=windows GOARCH=386 CGO_ENABLED=1 go build -buildmode=c-shared -o NMHFix.asi ./cmd/nmhfix
package main

import "C"

import (
	"github.com/nmhfix/nmhfix/internal/hook"
	"github.com/nmhfix/nmhfix/internal/memory"
	"github.com/nmhfix/nmhfix/internal/module"
)

// The Go runtime runs init on its own thread when the DLL is loaded, so
// nothing here holds the loader lock.
func init() {
	go start(platform{
		image:   module.Current,
		desktop: module.Desktop,
		hooks: func() (hooker, error) {
			i, err := hook.New()
			if err != nil {
				return nil, err
			}
			return i, nil
		},
		mem: memory.Process{},
	})
}

// NMHFixDetach removes every hook. It returns 1 on success.
//
//export NMHFixDetach
func NMHFixDetach() C.int {
	if err := stop(); err != nil {
		return 0
	}
	return 1
}

func main() {}
