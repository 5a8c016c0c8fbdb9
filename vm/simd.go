package vm

import (
	"encoding/binary"

	"github.com/csx64/csx64/isa"
)

const (
	vecCount = 32
	vecBytes = 64
)

// VPU holds the 32 vector registers, each 64 bytes wide, addressable as
// lanes of 8/16/32/64-bit integers or 32/64-bit floats, plus the MXCSR
// control/status word.
type VPU struct {
	regs   [vecCount][vecBytes]byte
	MXCSR  uint32
}

func (v *VPU) Init() {
	v.regs = [vecCount][vecBytes]byte{}
	v.MXCSR = 0x1F80
}

func laneCount(elemSize isa.SizeCode) int {
	return vecBytes / elemSize.Bytes()
}

// LaneUint reads lane i (0-indexed) of register reg at the given element
// size as an unsigned integer.
func (v *VPU) LaneUint(reg int, elemSize isa.SizeCode, i int) uint64 {
	n := elemSize.Bytes()
	b := v.regs[reg][i*n : i*n+n]
	switch n {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	default:
		return binary.LittleEndian.Uint64(b)
	}
}

// SetLaneUint writes val into lane i of register reg at the given element
// size.
func (v *VPU) SetLaneUint(reg int, elemSize isa.SizeCode, i int, val uint64) {
	n := elemSize.Bytes()
	b := v.regs[reg][i*n : i*n+n]
	switch n {
	case 1:
		b[0] = byte(val)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(val))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(val))
	default:
		binary.LittleEndian.PutUint64(b, val)
	}
}

// AllOnes returns the all-ones pattern of elemSize bytes, the IEEE
// comparison "true" result.
func AllOnes(elemSize isa.SizeCode) uint64 {
	switch elemSize {
	case isa.Size8:
		return 0xFF
	case isa.Size16:
		return 0xFFFF
	case isa.Size32:
		return 0xFFFFFFFF
	default:
		return 0xFFFFFFFFFFFFFFFF
	}
}

// Aligned reports whether addr is aligned to the full vector width, the
// requirement of the SIMD move form's alignment-required modes.
func Aligned(addr uint64) bool { return addr%vecBytes == 0 }
