package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmhfix/nmhfix/internal/driver"
	"github.com/nmhfix/nmhfix/internal/module"
)

// imageWith returns an image containing a concrete instance of each
// signature, 0x100 bytes apart.
func imageWith(sites []driver.Site) *module.Image {
	m := &module.Image{Name: "game.exe", Base: 0x400000, Data: make([]byte, 0x10000)}
	for i, s := range sites {
		off := 0x1000 + i*0x100
		for j, tok := range strings.Fields(s.Signature.String()) {
			b := byte(0x90)
			if tok != "??" {
				b = hexByte(tok)
			}
			m.Data[off+j] = b
		}
	}
	return m
}

func hexByte(s string) byte {
	const digits = "0123456789ABCDEF"
	return byte(strings.IndexByte(digits, s[0])<<4 | strings.IndexByte(digits, s[1]))
}

func TestList(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"list"})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, len(driver.Sites()))
	assert.Equal(t, "Skip Intro: C7 ?? ?? 00 00 00 00 C6 ?? ?? 00 C6 ?? ?? ?? ?? ?? 00 C7 ?? ?? ?? ?? ?? ?? ?? ?? ??", lines[0])
}

func TestFile_Missing(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"file", "does-not-exist.exe"})
	assert.Error(t, cmd.Execute())
}

func TestReport(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, report(&out, imageWith(driver.Sites())))

	s := out.String()
	assert.Contains(t, s, "Module Name: game.exe\n")
	assert.Contains(t, s, "Build Variant: release\n")
	assert.Contains(t, s, "Skip Intro: game.exe+1000\n")
	assert.Contains(t, s, "HUD: MTXOrtho: game.exe+1b00\n")
	assert.Contains(t, s, "SetViewport width offset: 0x60\n")
	assert.NotContains(t, s, "not found")
}

func TestReport_NotFound(t *testing.T) {
	sites := driver.Sites()
	var out bytes.Buffer
	err := report(&out, imageWith(sites[:len(sites)-1]))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of")
	assert.Contains(t, out.String(), sites[len(sites)-1].Name+": not found\n")
}
