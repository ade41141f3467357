package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSignature(t *testing.T) {
	assert := assert.New(t)

	sig, err := ParseSignature("8B ?? ?? 6a ? E8")
	require.NoError(t, err)
	assert.Equal(6, sig.Len())
	assert.Equal(3, sig.Wildcards())
	assert.Equal("8B ?? ?? 6A ?? E8", sig.String())
}

func TestParseSignature_Errors(t *testing.T) {
	cases := map[string]error{
		"":         ErrEmptySignature,
		"   ":      ErrEmptySignature,
		"8B ZZ":    ErrBadSignature,
		"8B 100":   ErrBadSignature,
		"8B ?? -1": ErrBadSignature,
	}

	for input, want := range cases {
		t.Run(input, func(t *testing.T) {
			_, err := ParseSignature(input)
			assert.ErrorIs(t, err, want)
		})
	}
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("GG") })
	assert.NotPanics(t, func() { MustParse("C7 ?? ?? 00") })
}

func TestScan(t *testing.T) {
	cases := map[string]struct {
		buf  []byte
		sig  string
		want int
	}{
		"match at start": {
			buf:  []byte{0x8b, 0x01, 0x02, 0x6a},
			sig:  "8B ?? ?? 6A",
			want: 0,
		},
		"first of several matches": {
			buf:  []byte{0x00, 0x8b, 0xff, 0x6a, 0x8b, 0xee, 0x6a},
			sig:  "8B ?? 6A",
			want: 1,
		},
		"match at end": {
			buf:  []byte{0x00, 0x00, 0x00, 0x66, 0x0f, 0x12},
			sig:  "66 0F ??",
			want: 3,
		},
		"leading wildcard": {
			buf:  []byte{0x90, 0x90, 0x11, 0xc3},
			sig:  "?? ?? C3",
			want: 1,
		},
		"anchor byte repeats before match": {
			buf:  []byte{0xc7, 0x00, 0xc7, 0xc7, 0x05, 0x00},
			sig:  "C7 05",
			want: 3,
		},
		"no match": {
			buf:  []byte{0x8b, 0x01, 0x02, 0x6b},
			sig:  "8B ?? ?? 6A",
			want: -1,
		},
		"partial match truncated by end of buffer": {
			buf:  []byte{0x00, 0x00, 0x8b, 0x01},
			sig:  "8B ?? ?? 6A",
			want: -1,
		},
		"buffer shorter than signature": {
			buf:  []byte{0x8b},
			sig:  "8B ?? ?? 6A",
			want: -1,
		},
		"empty buffer": {
			buf:  nil,
			sig:  "??",
			want: -1,
		},
		"all wildcards": {
			buf:  []byte{1, 2, 3},
			sig:  "?? ??",
			want: 0,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, Scan(tc.buf, MustParse(tc.sig)))
		})
	}
}

func TestScan_EmptySignature(t *testing.T) {
	assert.Equal(t, -1, Scan([]byte{1, 2, 3}, Signature{}))
}

func TestRegion_Find(t *testing.T) {
	assert := assert.New(t)

	buf := []byte{0xcc, 0xcc, 0xf3, 0x0f, 0x11, 0x44, 0x24, 0xcc}
	r := FromBytes(0x400000, buf)

	addr, err := r.Find(MustParse("F3 0F 11 ?? 24"))
	if assert.NoError(err) {
		assert.Equal(uintptr(0x400002), addr)
		assert.Equal(uintptr(2), r.Offset(addr))
	}

	_, err = r.Find(MustParse("F3 0F 59"))
	assert.ErrorIs(err, ErrNotFound)

	_, err = r.Find(Signature{})
	assert.ErrorIs(err, ErrEmptySignature)

	assert.True(r.Contains(0x400007))
	assert.False(r.Contains(0x400008))
	assert.False(r.Contains(0x3fffff))
}

func TestNewRegion_Empty(t *testing.T) {
	r := NewRegion(0, 100)
	assert.Equal(t, 0, r.Size())

	_, err := r.Find(MustParse("00"))
	assert.ErrorIs(t, err, ErrNotFound)
}
