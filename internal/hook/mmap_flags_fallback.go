//go:build unix && !(linux && amd64)

package hook

const mmapFlags = 0
