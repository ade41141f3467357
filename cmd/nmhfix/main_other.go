//go:build !(windows && 386)

package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "nmhfix is a DLL: build it for windows/386 with -buildmode=c-shared")
	os.Exit(1)
}
