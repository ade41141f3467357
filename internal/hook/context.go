package hook

import (
	"math"
	"unsafe"
)

// Vector is one 128-bit XMM register.
type Vector struct {
	F32 [4]float32
}

// U32 returns lane i reinterpreted as an integer.
func (v *Vector) U32(i int) uint32 {
	return math.Float32bits(v.F32[i])
}

func (v *Vector) SetU32(i int, x uint32) {
	v.F32[i] = math.Float32frombits(x)
}

// Context is the register file saved by a hook stub. The layout matches the
// order the stub pushes registers, lowest address first, and must not be
// changed without changing the stub.
//
// Writes to any field except EIP and ESP are loaded back into the CPU before
// the original instructions run. EIP is the hooked address.
type Context struct {
	XMM    [8]Vector
	EIP    uint32
	EFLAGS uint32
	EDI    uint32
	ESI    uint32
	EBP    uint32
	ESP    uint32
	EBX    uint32
	EDX    uint32
	ECX    uint32
	EAX    uint32
}

const contextSize = int(unsafe.Sizeof(Context{}))

// Offsets of the saved areas from the stack pointer after the stub's
// prologue. They follow from the Context layout.
var (
	xmmSaveOffset = int(unsafe.Offsetof(Context{}.XMM))
	xmmSaveSize   = int(unsafe.Sizeof(Context{}.XMM))
	eipSaveOffset = int(unsafe.Offsetof(Context{}.EIP))
)
