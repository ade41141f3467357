package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmhfix/nmhfix/internal/memory"
)

func TestTables(t *testing.T) {
	cases := map[Variant]map[Field]uintptr{
		Release: {ViewMinX: 0xc8, ViewMaxY: 0xd4, MovieMaxX: 0x20, SetViewportWidth: 0x60},
		Debug:   {ViewMinX: 0x10, ViewMaxY: 0x1c, MovieMaxX: 0x20, SetViewportWidth: 0x62},
	}

	for v, fields := range cases {
		t.Run(v.String(), func(t *testing.T) {
			table := For(v)
			assert.Equal(t, v, table.Variant())
			for f, want := range fields {
				assert.Equal(t, want, table.Offset(f), f.String())
			}
		})
	}
}

func TestTables_Complete(t *testing.T) {
	for v := range tables {
		for f := range fieldNames {
			assert.NotPanics(t, func() { For(v).Offset(f) }, "%v %v", v, f)
		}
	}
}

func TestFor_Unknown(t *testing.T) {
	assert.Equal(t, Release, For(Variant(7)).Variant())
	assert.Panics(t, func() { For(Release).Offset(Field(99)) })
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant(" Debug ")
	assert.NoError(t, err)
	assert.Equal(t, Debug, v)

	v, err = ParseVariant("release")
	assert.NoError(t, err)
	assert.Equal(t, Release, v)

	_, err = ParseVariant("auto")
	assert.Error(t, err)
}

func TestView(t *testing.T) {
	assert := assert.New(t)

	m := memory.NewImage(0x10000, 0x100)
	view := For(Debug).View(m, 0x10000)

	require.NoError(t, view.SetInt32(ViewMaxX, 1920))
	assert.Equal(uintptr(0x10018), view.Addr(ViewMaxX))

	v, err := m.ReadInt32(0x10018)
	assert.NoError(err)
	assert.Equal(int32(1920), v)

	v, err = view.Int32(ViewMaxX)
	assert.NoError(err)
	assert.Equal(int32(1920), v)
}
