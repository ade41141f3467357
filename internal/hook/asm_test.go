package hook

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"
)

type decoded struct {
	x86asm.Inst
	addr uintptr
}

// target returns the absolute destination of a relative branch.
func (d decoded) target() uintptr {
	rel := d.Args[0].(x86asm.Rel)
	return d.addr + uintptr(d.Len) + uintptr(int64(rel))
}

func decodeAll(t *testing.T, code []byte, base uintptr) []decoded {
	t.Helper()

	var out []decoded
	for i := 0; i < len(code); {
		inst, err := x86asm.Decode(code[i:], 32)
		require.NoError(t, err, "offset %d", i)
		out = append(out, decoded{Inst: inst, addr: base + uintptr(i)})
		i += inst.Len
	}
	return out
}

func TestStealLength(t *testing.T) {
	cases := map[string]struct {
		code []byte
		want int
		err  error
	}{
		"exact": {
			code: []byte{0x8b, 0x45, 0x08, 0x6a, 0x01}, // mov eax,[ebp+8]; push 1
			want: 5,
		},
		"overhang": {
			code: []byte{0x55, 0x8b, 0xec, 0x83, 0xec, 0x10}, // push ebp; mov ebp,esp; sub esp,0x10
			want: 6,
		},
		"single long instruction": {
			code: []byte{0xf3, 0x0f, 0x11, 0x44, 0x24, 0x10}, // movss [esp+0x10],xmm0
			want: 6,
		},
		"rel32 call": {
			code: []byte{0xe8, 0x10, 0x00, 0x00, 0x00},
			want: 5,
		},
		"return too early": {
			code: []byte{0x90, 0xc3, 0xcc, 0xcc, 0xcc},
			err:  ErrUnrelocatable,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			n, err := stealLength(tc.code)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			if assert.NoError(t, err) {
				assert.Equal(t, tc.want, n)
			}
		})
	}
}

func TestStealLength_Truncated(t *testing.T) {
	_, err := stealLength([]byte{0x8b})
	assert.Error(t, err)
}

func TestJumpPatch(t *testing.T) {
	assert := assert.New(t)

	patch, err := jumpPatch(0x401000, 0x402000, 7)
	if assert.NoError(err) {
		assert.Equal(byte(opcodeJMP), patch[0])
		assert.Equal(uint32(0x402000-0x401005), binary.LittleEndian.Uint32(patch[1:]))
		assert.Equal([]byte{opcodeINT3, opcodeINT3}, patch[5:])
	}

	_, err = jumpPatch(0x401000, 0x402000, 4)
	assert.Error(err)

	_, err = jumpPatch(0, math.MaxUint32, 5)
	assert.ErrorIs(err, ErrOutOfRange)
}

func TestRelocate(t *testing.T) {
	const (
		site = uintptr(0x401000)
		dest = uintptr(0x10000000)
	)

	cases := map[string]struct {
		code   []byte
		op     x86asm.Op
		target uintptr
		size   int
	}{
		"call rel32": {
			code:   []byte{0xe8, 0xfb, 0x0f, 0x00, 0x00}, // call 0x402000
			op:     x86asm.CALL,
			target: 0x402000,
			size:   5,
		},
		"jmp rel8 widened": {
			code:   []byte{0xeb, 0x10, 0x90, 0x90, 0x90},
			op:     x86asm.JMP,
			target: site + 2 + 0x10,
			size:   5,
		},
		"jcc rel8 widened": {
			code:   []byte{0x74, 0x20, 0x90, 0x90, 0x90},
			op:     x86asm.JE,
			target: site + 2 + 0x20,
			size:   6,
		},
		"jcc rel32": {
			code:   []byte{0x0f, 0x85, 0x00, 0x01, 0x00, 0x00},
			op:     x86asm.JNE,
			target: site + 6 + 0x100,
			size:   6,
		},
		"backwards to site": {
			code:   []byte{0xeb, 0xfe, 0x90, 0x90, 0x90},
			op:     x86asm.JMP,
			target: site,
			size:   5,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			out, err := relocate(tc.code, site, dest)
			require.NoError(t, err)

			insts := decodeAll(t, out, dest)
			first := insts[0]
			assert.Equal(tc.op, first.Op)
			assert.Equal(tc.size, first.Len)
			assert.Equal(tc.target, first.target())

			// Whatever followed the branch is copied as is.
			assert.Equal(tc.code[len(tc.code)-(len(out)-first.Len):], out[first.Len:])
		})
	}
}

func TestRelocate_Plain(t *testing.T) {
	code := []byte{0x8b, 0x45, 0x08, 0x6a, 0x01}
	out, err := relocate(code, 0x401000, 0x10000000)
	if assert.NoError(t, err) {
		assert.Equal(t, code, out)
	}
}

func TestRelocate_Errors(t *testing.T) {
	cases := map[string][]byte{
		"loop":               {0xe2, 0x10, 0x90, 0x90, 0x90},
		"jecxz":              {0xe3, 0x10, 0x90, 0x90, 0x90},
		"into displaced code": {0x74, 0x01, 0x90, 0x90, 0x90},
	}

	for name, code := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := relocate(code, 0x401000, 0x10000000)
			assert.ErrorIs(t, err, ErrUnrelocatable)
		})
	}
}

func TestStub(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	const (
		site     = uintptr(0x401000)
		base     = uintptr(0x10000000)
		id       = 7
		dispatch = uintptr(0x12345678)
	)
	stolen := []byte{0x8b, 0x45, 0x08, 0x6a, 0x01}

	code, err := stub(stolen, site, base, id, dispatch)
	require.NoError(err)
	require.LessOrEqual(len(code), stubCapacity)

	insts := decodeAll(t, code, base)
	ops := make([]x86asm.Op, len(insts))
	for i, inst := range insts {
		ops[i] = inst.Op
	}

	movdqu8 := []x86asm.Op{
		x86asm.MOVDQU, x86asm.MOVDQU, x86asm.MOVDQU, x86asm.MOVDQU,
		x86asm.MOVDQU, x86asm.MOVDQU, x86asm.MOVDQU, x86asm.MOVDQU,
	}
	var want []x86asm.Op
	want = append(want, x86asm.PUSHAD, x86asm.PUSHFD, x86asm.PUSH, x86asm.SUB)
	want = append(want, movdqu8...)
	want = append(want, x86asm.CLD, x86asm.MOV, x86asm.PUSH, x86asm.PUSH, x86asm.MOV, x86asm.CALL)
	want = append(want, movdqu8...)
	want = append(want, x86asm.ADD, x86asm.POPFD, x86asm.POPAD)
	want = append(want, x86asm.MOV, x86asm.PUSH, x86asm.JMP)
	require.Equal(want, ops)

	assert.Equal(x86asm.Imm(site), insts[2].Args[0])
	assert.Equal(x86asm.Imm(xmmSaveSize), insts[3].Args[1])
	assert.Equal(x86asm.Imm(id), insts[15].Args[0])
	assert.Equal(x86asm.Imm(dispatch), insts[16].Args[1])
	assert.Equal(x86asm.EAX, insts[17].Args[0])

	// The restore covers the XMM area and the pushed EIP.
	assert.Equal(x86asm.Imm(contextSize-4*9), insts[26].Args[1])

	// XMM registers are stored in order, 16 bytes apart.
	for n := 0; n < 8; n++ {
		store := insts[4+n]
		mem := store.Args[0].(x86asm.Mem)
		assert.Equal(x86asm.ESP, mem.Base)
		assert.Equal(int64(16*n), mem.Disp)
		assert.Equal(x86asm.X0+x86asm.Reg(n), store.Args[1])

		load := insts[18+n]
		assert.Equal(x86asm.X0+x86asm.Reg(n), load.Args[0])
	}

	last := insts[len(insts)-1]
	assert.Equal(site+uintptr(len(stolen)), last.target())
}

// disassemble renders code one instruction per line.
func disassemble(code []byte, baseAddr uintptr) (string, error) {
	var buf bytes.Buffer

	for i := 0; i < len(code); {
		instruction, err := x86asm.Decode(code[i:], 32)
		if err != nil {
			return "", fmt.Errorf("decode error at offset %d: %w", i, err)
		}
		fmt.Fprintf(&buf, "0x%08x\t%-20s\t%s\n", baseAddr+uintptr(i), hex.EncodeToString(code[i:i+instruction.Len]), instruction.String())

		i += instruction.Len
	}

	return buf.String(), nil
}

func TestDisassemble(t *testing.T) {
	out, err := disassemble([]byte{0x55, 0x8b, 0xec}, 0x401000)
	if assert.NoError(t, err) {
		assert.Contains(t, out, "0x00401000")
		assert.Contains(t, out, "0x00401001")
	}
}
