package hook

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"golang.org/x/arch/x86/x86asm"
)

const (
	opcodeCALLrel = 0xe8 // CALL rel32
	opcodeJMP     = 0xe9 // JMP rel32
	opcodeINT3    = 0xcc
	opcodeJccRel  = 0x80 // second byte of 0F 8x Jcc rel32

	opcodePUSHAD  = 0x60
	opcodePOPAD   = 0x61
	opcodePUSHFD  = 0x9c
	opcodePOPFD   = 0x9d
	opcodePUSHimm = 0x68
	opcodePUSHeax = 0x50
	opcodeMOVeax  = 0xb8
	opcodeCLD     = 0xfc

	jumpSize = 5 // 1 byte opcode + 4 byte displacement

	// Longest run of instructions that can be displaced by the jump: four
	// bytes of the first instruction fall short, plus one maximum length
	// instruction.
	maxStolen = jumpSize - 1 + 15

	// Upper bound on a stub: fixed prologue and epilogue plus relocated
	// instructions, each of which grows to at most 6 bytes or stays the same.
	stubCapacity = 256
)

// Jcc condition codes, the low nibble of the opcode.
var conditionCodes = map[x86asm.Op]byte{
	x86asm.JO: 0x0, x86asm.JNO: 0x1, x86asm.JB: 0x2, x86asm.JAE: 0x3,
	x86asm.JE: 0x4, x86asm.JNE: 0x5, x86asm.JBE: 0x6, x86asm.JA: 0x7,
	x86asm.JS: 0x8, x86asm.JNS: 0x9, x86asm.JP: 0xa, x86asm.JNP: 0xb,
	x86asm.JL: 0xc, x86asm.JGE: 0xd, x86asm.JLE: 0xe, x86asm.JG: 0xf,
}

// rel32 computes the displacement from the end of an instruction at src to
// dest.
func rel32(src, dest uintptr) (uint32, error) {
	diff := int64(dest) - int64(src)
	if diff < math.MinInt32 || diff > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %#x -> %#x", ErrOutOfRange, src, dest)
	}
	return uint32(int32(diff)), nil
}

// jumpPatch returns the bytes written over a hooked site: JMP rel32 to dest,
// padded with INT3 to size.
func jumpPatch(src, dest uintptr, size int) ([]byte, error) {
	if size < jumpSize {
		return nil, errors.New("buffer too small for jump instruction")
	}
	disp, err := rel32(src+jumpSize, dest)
	if err != nil {
		return nil, err
	}

	buf := bytes.Repeat([]byte{opcodeINT3}, size)
	buf[0] = opcodeJMP
	binary.LittleEndian.PutUint32(buf[1:], disp)
	return buf, nil
}

// stealLength decodes instructions from the start of code until at least a
// jump's worth of bytes is covered and returns their total length.
func stealLength(code []byte) (int, error) {
	n := 0
	for n < jumpSize {
		inst, err := x86asm.Decode(code[n:], 32)
		if err != nil {
			return 0, fmt.Errorf("decode error at offset %d: %w", n, err)
		}
		n += inst.Len

		switch inst.Op {
		case x86asm.RET, x86asm.LRET, x86asm.INT, x86asm.IRET:
			if n < jumpSize {
				return 0, fmt.Errorf("%w: %v at offset %d ends the block", ErrUnrelocatable, inst.Op, n-inst.Len)
			}
		}
	}
	return n, nil
}

// relocate copies the instructions of src, which executed from srcBase, so
// that they behave the same when run from destBase. Relative branches are
// rewritten to their rel32 forms.
func relocate(src []byte, srcBase, destBase uintptr) ([]byte, error) {
	srcEnd := srcBase + uintptr(len(src))
	dest := make([]byte, 0, len(src)+16)

	for i := 0; i < len(src); {
		inst, err := x86asm.Decode(src[i:], 32)
		if err != nil {
			return nil, fmt.Errorf("decode error at offset %d: %w", i, err)
		}
		raw := src[i : i+inst.Len]

		rel, isRel := inst.Args[0].(x86asm.Rel)
		if !isRel {
			dest = append(dest, raw...)
			i += inst.Len
			continue
		}

		target := srcBase + uintptr(i+inst.Len) + uintptr(int64(rel))
		if target > srcBase && target < srcEnd {
			return nil, fmt.Errorf("%w: branch at offset %d targets displaced bytes", ErrUnrelocatable, i)
		}

		var head []byte
		switch inst.Op {
		case x86asm.CALL:
			head = []byte{opcodeCALLrel}
		case x86asm.JMP:
			head = []byte{opcodeJMP}
		default:
			cc, ok := conditionCodes[inst.Op]
			if !ok {
				// LOOP, JECXZ and friends only have rel8 forms.
				return nil, fmt.Errorf("%w: %v at offset %d", ErrUnrelocatable, inst.Op, i)
			}
			head = []byte{0x0f, opcodeJccRel | cc}
		}

		end := destBase + uintptr(len(dest)+len(head)+4)
		disp, err := rel32(end, target)
		if err != nil {
			return nil, fmt.Errorf("offset %d: %w", i, err)
		}
		dest = append(dest, head...)
		dest = binary.LittleEndian.AppendUint32(dest, disp)

		i += inst.Len
	}

	return dest, nil
}

// stub returns the machine code executed in place of the hooked site:
//
//	PUSHAD
//	PUSHFD
//	PUSH  <site>
//	SUB   ESP, 0x80
//	MOVDQU [ESP+16*n], XMMn          ; n = 0..7
//	CLD
//	MOV   EAX, ESP
//	PUSH  EAX                        ; *Context
//	PUSH  <id>
//	MOV   EAX, <dispatch>
//	CALL  EAX                        ; stdcall, pops its arguments
//	MOVDQU XMMn, [ESP+16*n]
//	ADD   ESP, 0x84
//	POPFD
//	POPAD
//	<relocated instructions>
//	JMP   <site+len(stolen)>
//
// base is the address the stub will execute from.
func stub(stolen []byte, site, base uintptr, id uint32, dispatch uintptr) ([]byte, error) {
	buf := make([]byte, 0, stubCapacity)

	buf = append(buf, opcodePUSHAD, opcodePUSHFD)
	buf = append(buf, opcodePUSHimm)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(site))
	buf = subESP(buf, xmmSaveSize)
	for n := 0; n < 8; n++ {
		buf = movdqu(buf, 0x7f, n, xmmSaveOffset+16*n)
	}

	buf = append(buf, opcodeCLD)
	buf = append(buf, 0x89, 0xe0) // MOV EAX, ESP
	buf = append(buf, opcodePUSHeax)
	buf = append(buf, opcodePUSHimm)
	buf = binary.LittleEndian.AppendUint32(buf, id)
	buf = append(buf, opcodeMOVeax)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(dispatch))
	buf = append(buf, 0xff, 0xd0) // CALL EAX

	for n := 0; n < 8; n++ {
		buf = movdqu(buf, 0x6f, n, xmmSaveOffset+16*n)
	}
	buf = addESP(buf, eipSaveOffset+4)
	buf = append(buf, opcodePOPFD, opcodePOPAD)

	moved, err := relocate(stolen, site, base+uintptr(len(buf)))
	if err != nil {
		return nil, err
	}
	buf = append(buf, moved...)

	back, err := rel32(base+uintptr(len(buf)+jumpSize), site+uintptr(len(stolen)))
	if err != nil {
		return nil, err
	}
	buf = append(buf, opcodeJMP)
	buf = binary.LittleEndian.AppendUint32(buf, back)

	if len(buf) > stubCapacity {
		return nil, fmt.Errorf("stub is %d bytes, capacity is %d", len(buf), stubCapacity)
	}
	return buf, nil
}

// movdqu encodes MOVDQU between XMMn and [ESP+disp8]. op is 0x7f for a
// store and 0x6f for a load.
func movdqu(buf []byte, op byte, n, disp int) []byte {
	return append(buf, 0xf3, 0x0f, op, 0x44|byte(n)<<3, 0x24, byte(disp))
}

func subESP(buf []byte, n int) []byte {
	buf = append(buf, 0x81, 0xec)
	return binary.LittleEndian.AppendUint32(buf, uint32(n))
}

func addESP(buf []byte, n int) []byte {
	buf = append(buf, 0x81, 0xc4)
	return binary.LittleEndian.AppendUint32(buf, uint32(n))
}
