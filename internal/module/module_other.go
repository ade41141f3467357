//go:build !windows

package module

import "github.com/nmhfix/nmhfix/internal/geometry"

func Current() (*Image, error) {
	return nil, ErrUnsupported
}

func Desktop() (geometry.Resolution, error) {
	return geometry.Resolution{}, ErrUnsupported
}

func ReadProcess(pid uint32, path string) (*Image, error) {
	return nil, ErrUnsupported
}
