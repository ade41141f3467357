package hook

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestContextLayout(t *testing.T) {
	assert := assert.New(t)

	// 8 XMM registers, the pushed EIP, PUSHFD, then PUSHAD's eight registers.
	assert.Equal(8*16+4+4+8*4, contextSize)

	var ctx Context
	assert.Equal(uintptr(0), unsafe.Offsetof(ctx.XMM))
	assert.Equal(uintptr(128), unsafe.Offsetof(ctx.EIP))
	assert.Equal(uintptr(132), unsafe.Offsetof(ctx.EFLAGS))

	// PUSHAD stores EAX first, so EDI ends up lowest.
	regs := map[string]struct {
		got, want uintptr
	}{
		"EDI": {unsafe.Offsetof(ctx.EDI), 136},
		"ESI": {unsafe.Offsetof(ctx.ESI), 140},
		"EBP": {unsafe.Offsetof(ctx.EBP), 144},
		"ESP": {unsafe.Offsetof(ctx.ESP), 148},
		"EBX": {unsafe.Offsetof(ctx.EBX), 152},
		"EDX": {unsafe.Offsetof(ctx.EDX), 156},
		"ECX": {unsafe.Offsetof(ctx.ECX), 160},
		"EAX": {unsafe.Offsetof(ctx.EAX), 164},
	}
	for name, r := range regs {
		assert.Equal(r.want, r.got, name)
	}
}

func TestVectorLanes(t *testing.T) {
	assert := assert.New(t)

	var v Vector
	v.F32[0] = 1
	assert.Equal(uint32(0x3f800000), v.U32(0))

	v.SetU32(2, 0x40000000)
	assert.Equal(float32(2), v.F32[2])
	assert.Equal(float32(0), v.F32[1])
}
