package vm

import (
	"math"

	"github.com/csx64/csx64/isa"
)

func laneToFloat(v uint64, size isa.SizeCode) float64 {
	if size == isa.Size32 {
		return float64(math.Float32frombits(uint32(v)))
	}
	return math.Float64frombits(v)
}

func floatToLane(v float64, size isa.SizeCode) uint64 {
	if size == isa.Size32 {
		return uint64(math.Float32bits(float32(v)))
	}
	return math.Float64bits(v)
}

// simdOperand names a vector register or a memory address holding a full
// vector (move/binary forms) or a scalar lane.
type simdOperand struct {
	IsMem bool
	Addr  uint64
	Reg   int
}

func (c *CPU) fetchSIMDOperand() (simdOperand, bool) {
	b, ok := c.fetchByte()
	if !ok {
		return simdOperand{}, false
	}
	if b&0x80 == 0 {
		return simdOperand{Reg: int(b & 0x1F)}, true
	}
	a, ok := c.fetchAddress()
	if !ok {
		return simdOperand{}, false
	}
	return simdOperand{IsMem: true, Addr: c.resolveAddress(a)}, true
}

func (c *CPU) readSIMDBytes(o simdOperand) ([]byte, bool) {
	if o.IsMem {
		b, ok := c.Mem.ReadBytes(o.Addr, vecBytes)
		if !ok {
			c.fail(OutOfBounds)
			return nil, false
		}
		return b, true
	}
	out := make([]byte, vecBytes)
	copy(out, c.VPU.regs[o.Reg][:])
	return out, true
}

func (c *CPU) writeSIMDBytes(o simdOperand, data []byte) bool {
	if o.IsMem {
		if !c.Mem.WriteBytes(o.Addr, data) {
			c.fail(AccessViolation)
			return false
		}
		return true
	}
	copy(c.VPU.regs[o.Reg][:], data)
	return true
}

// execVPUMove runs MOVAPS: reg<-reg, reg<-mem, or mem<-reg, trapping
// AlignmentViolation on an unaligned memory operand (the move form is
// always alignment-required in this implementation).
func (c *CPU) execVPUMove() bool {
	settingsByte, ok := c.fetchByte()
	if !ok {
		return true
	}
	settings := isa.DecodeSIMDSettings(settingsByte)
	dest, ok := c.fetchSIMDOperand()
	if !ok {
		return true
	}
	src, ok := c.fetchSIMDOperand()
	if !ok {
		return true
	}
	if dest.IsMem && !Aligned(dest.Addr) || src.IsMem && !Aligned(src.Addr) {
		c.fail(AlignmentViolation)
		return true
	}
	data, ok := c.readSIMDBytes(src)
	if !ok {
		return true
	}
	if settings.HasMask {
		existing, ok := c.readSIMDBytes(dest)
		if !ok {
			return true
		}
		mask := c.GetReg(isa.RCX, isa.Size64, false)
		n := laneCount(settings.ElemSize)
		sz := settings.ElemSize.Bytes()
		for i := 0; i < n; i++ {
			if mask&(1<<uint(i)) == 0 {
				if settings.ZeroMask {
					for k := 0; k < sz; k++ {
						data[i*sz+k] = 0
					}
				} else {
					copy(data[i*sz:i*sz+sz], existing[i*sz:i*sz+sz])
				}
			}
		}
	}
	return !c.writeSIMDBytes(dest, data)
}

// execVPUBinary runs the ALU family (ADDPS, SUBPS, ANDPS, ..., CMPPS) over
// every lane at the settings byte's element size.
func (c *CPU) execVPUBinary(name string) bool {
	settingsByte, ok := c.fetchByte()
	if !ok {
		return true
	}
	settings := isa.DecodeSIMDSettings(settingsByte)
	dest, ok := c.fetchSIMDOperand()
	if !ok {
		return true
	}
	src, ok := c.fetchSIMDOperand()
	if !ok {
		return true
	}
	destReg := dest.Reg
	n := laneCount(settings.ElemSize)
	lanes := n
	if settings.Scalar {
		lanes = 1
	}
	for i := 0; i < lanes; i++ {
		a := c.VPU.LaneUint(destReg, settings.ElemSize, i)
		var b uint64
		if src.IsMem {
			bb, ok := c.Mem.ReadUint(src.Addr+uint64(i*settings.ElemSize.Bytes()), uint64(settings.ElemSize.Bytes()))
			if !ok {
				c.fail(OutOfBounds)
				return true
			}
			b = bb
		} else {
			b = c.VPU.LaneUint(src.Reg, settings.ElemSize, i)
		}
		var res uint64
		if name == "cmpps" {
			res = cmpPredicate(settings.Mode, laneToFloat(a, settings.ElemSize), laneToFloat(b, settings.ElemSize), settings.ElemSize)
		} else {
			res = simdLaneOp(name, a, b, settings.ElemSize)
		}
		c.VPU.SetLaneUint(destReg, settings.ElemSize, i, res)
	}
	return false
}

// cmpPredicate implements a representative slice of the IEEE compare
// predicate table (equal/less-than/less-equal/unordered), selected by the
// settings byte's mode field; the "true" result is all-ones of the lane.
func cmpPredicate(mode byte, a, b float64, size isa.SizeCode) uint64 {
	var take bool
	switch mode & 0x3 {
	case 0:
		take = a == b
	case 1:
		take = a < b
	case 2:
		take = a <= b
	default:
		take = math.IsNaN(a) || math.IsNaN(b)
	}
	if take {
		return AllOnes(size)
	}
	return 0
}

func simdLaneOp(name string, a, b uint64, size isa.SizeCode) uint64 {
	switch name {
	case "addps":
		return floatLaneOp(a, b, size, func(x, y float64) float64 { return x + y })
	case "subps":
		return floatLaneOp(a, b, size, func(x, y float64) float64 { return x - y })
	case "mulps":
		return floatLaneOp(a, b, size, func(x, y float64) float64 { return x * y })
	case "divps":
		return floatLaneOp(a, b, size, func(x, y float64) float64 { return x / y })
	case "andps":
		return a & b
	case "orps":
		return a | b
	case "xorps":
		return a ^ b
	case "paddq":
		return a + b
	case "psubq":
		return a - b
	case "pand":
		return a & b
	case "por":
		return a | b
	case "pxor":
		return a ^ b
	}
	return a
}

func floatLaneOp(a, b uint64, size isa.SizeCode, f func(x, y float64) float64) uint64 {
	fa, fb := laneToFloat(a, size), laneToFloat(b, size)
	return floatToLane(f(fa, fb), size)
}
