package scan

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrEmptySignature = errors.New("empty signature")
	ErrBadSignature   = errors.New("malformed signature")
)

// Signature is a byte template where some positions match any byte.
type Signature struct {
	data []byte
	mask []bool // true means the byte at the same index must match
}

// ParseSignature parses the usual IDA style notation: space separated hex
// bytes, with "?" or "??" for wildcards.
//
//	8B ?? ?? ?? ?? ?? 6A ?? E8
func ParseSignature(s string) (Signature, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Signature{}, ErrEmptySignature
	}

	sig := Signature{
		data: make([]byte, len(fields)),
		mask: make([]bool, len(fields)),
	}
	for i, f := range fields {
		if f == "?" || f == "??" {
			continue
		}
		x, err := strconv.ParseUint(f, 16, 8)
		if err != nil {
			return Signature{}, fmt.Errorf("%w: token %d %q", ErrBadSignature, i, f)
		}
		sig.data[i] = byte(x)
		sig.mask[i] = true
	}
	return sig, nil
}

// MustParse is like ParseSignature but panics on error. It's meant for
// package level signature tables.
func MustParse(s string) Signature {
	sig, err := ParseSignature(s)
	if err != nil {
		panic(fmt.Sprintf("scan: %q: %v", s, err))
	}
	return sig
}

func (s Signature) Len() int {
	return len(s.data)
}

// Wildcards returns the number of positions that match any byte.
func (s Signature) Wildcards() int {
	n := 0
	for _, m := range s.mask {
		if !m {
			n++
		}
	}
	return n
}

func (s Signature) String() string {
	var sb strings.Builder
	for i := range s.data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if !s.mask[i] {
			sb.WriteString("??")
			continue
		}
		fmt.Fprintf(&sb, "%02X", s.data[i])
	}
	return sb.String()
}

// matchAt reports whether the signature matches buf starting at off. The
// caller guarantees off+len(s.data) <= len(buf).
func (s Signature) matchAt(buf []byte, off int) bool {
	for j, b := range s.data {
		if s.mask[j] && buf[off+j] != b {
			return false
		}
	}
	return true
}

// anchor returns the index of the first non-wildcard byte, or -1 if the
// signature is all wildcards.
func (s Signature) anchor() int {
	for i, m := range s.mask {
		if m {
			return i
		}
	}
	return -1
}
