package vm

import (
	"math"

	"github.com/csx64/csx64/isa"
)

// fpuOperand is a fetched FPU operand: either ST(i) or a memory address
// holding a 32/64-bit float (or, for FILD/FIST, a signed integer).
type fpuOperand struct {
	IsMem bool
	Addr  uint64
	STIdx int
	Size  isa.SizeCode // memory operand width only
}

func (c *CPU) fetchFPUOperand() (fpuOperand, bool) {
	b, ok := c.fetchByte()
	if !ok {
		return fpuOperand{}, false
	}
	isMem := b&0x80 != 0
	if !isMem {
		return fpuOperand{STIdx: int(b & 0x7)}, true
	}
	size := isa.SizeCode(b & 0x3)
	a, ok := c.fetchAddress()
	if !ok {
		return fpuOperand{}, false
	}
	return fpuOperand{IsMem: true, Addr: c.resolveAddress(a), Size: size}, true
}

func (c *CPU) readFPUFloat(o fpuOperand) (float64, bool) {
	if !o.IsMem {
		v, err := c.FPU.Read(o.STIdx)
		if err != nil {
			c.fail(err.(RuntimeError))
			return 0, false
		}
		return v, true
	}
	switch o.Size {
	case isa.Size32:
		v, ok := c.Mem.ReadUint(o.Addr, 4)
		if !ok {
			c.fail(OutOfBounds)
			return 0, false
		}
		return float64(math.Float32frombits(uint32(v))), true
	default:
		v, ok := c.Mem.ReadUint(o.Addr, 8)
		if !ok {
			c.fail(OutOfBounds)
			return 0, false
		}
		return math.Float64frombits(v), true
	}
}

func (c *CPU) readFPUInt(o fpuOperand) (int64, bool) {
	n := uint64(o.Size.Bytes())
	v, ok := c.Mem.ReadUint(o.Addr, n)
	if !ok {
		c.fail(OutOfBounds)
		return 0, false
	}
	return SignExtend(v, o.Size), true
}

func (c *CPU) writeFPUInt(o fpuOperand, v int64) bool {
	if !c.Mem.WriteUint(o.Addr, uint64(o.Size.Bytes()), uint64(v)) {
		c.fail(AccessViolation)
		return false
	}
	return true
}

// execFPU runs one FormatFPU instruction.
func (c *CPU) execFPU(name string) bool {
	switch name {
	case "fld":
		o, ok := c.fetchFPUOperand()
		if !ok {
			return true
		}
		v, ok := c.readFPUFloat(o)
		if !ok {
			return true
		}
		if err := c.FPU.Push(v); err != nil {
			c.fail(err.(RuntimeError))
			return true
		}
		return false
	case "fild":
		o, ok := c.fetchFPUOperand()
		if !ok {
			return true
		}
		v, ok := c.readFPUInt(o)
		if !ok {
			return true
		}
		if err := c.FPU.Push(float64(v)); err != nil {
			c.fail(err.(RuntimeError))
			return true
		}
		return false
	case "fstp", "fist":
		o, ok := c.fetchFPUOperand()
		if !ok {
			return true
		}
		v, err := c.FPU.Pop()
		if err != nil {
			c.fail(err.(RuntimeError))
			return true
		}
		if name == "fist" {
			return !c.writeFPUInt(o, int64(c.FPU.rounded(v)))
		}
		return !c.storeFPUFloat(o, v)
	case "fadd", "fmul", "fsub", "fdiv":
		return c.execFPUArith(name)
	case "fcom", "fcomp":
		return c.execFPUCompare(name == "fcomp")
	case "fchs":
		return c.execFPUUnary(func(v float64) float64 { return -v })
	case "fabs":
		return c.execFPUUnary(math.Abs)
	case "fsqrt":
		return c.execFPUUnary(math.Sqrt)
	case "frndint":
		return c.execFPUUnary(c.FPU.rounded)
	case "fsin":
		return c.execFPUUnary(math.Sin)
	case "fcos":
		return c.execFPUUnary(math.Cos)
	case "f2xm1":
		return c.execFPUUnary(func(v float64) float64 { return math.Exp2(v) - 1 })
	case "fpatan":
		y, err := c.FPU.Pop()
		if err != nil {
			c.fail(err.(RuntimeError))
			return true
		}
		x, err := c.FPU.Pop()
		if err != nil {
			c.fail(err.(RuntimeError))
			return true
		}
		if err := c.FPU.Push(math.Atan2(y, x)); err != nil {
			c.fail(err.(RuntimeError))
			return true
		}
		c.randomizeFlag(FlagAF)
		return false
	case "fxch":
		o, ok := c.fetchFPUOperand()
		if !ok {
			return true
		}
		a, errA := c.FPU.Read(0)
		b, errB := c.FPU.Read(o.STIdx)
		if errA != nil || errB != nil {
			c.fail(FPUStackUnderflow)
			return true
		}
		c.FPU.Store(0, b)
		c.FPU.Store(o.STIdx, a)
		return false
	}
	c.fail(UnknownOp)
	return true
}

func (c *CPU) storeFPUFloat(o fpuOperand, v float64) bool {
	var ok bool
	switch o.Size {
	case isa.Size32:
		ok = c.Mem.WriteUint(o.Addr, 4, uint64(math.Float32bits(float32(v))))
	default:
		ok = c.Mem.WriteUint(o.Addr, 8, math.Float64bits(v))
	}
	if !ok {
		c.fail(AccessViolation)
	}
	return ok
}

func (c *CPU) execFPUUnary(f func(float64) float64) bool {
	v, err := c.FPU.Read(0)
	if err != nil {
		c.fail(err.(RuntimeError))
		return true
	}
	if err := c.FPU.Store(0, f(v)); err != nil {
		c.fail(err.(RuntimeError))
		return true
	}
	c.randomizeFlag(FlagAF)
	return false
}

func (c *CPU) execFPUArith(name string) bool {
	o, ok := c.fetchFPUOperand()
	if !ok {
		return true
	}
	src, ok := c.readFPUFloat(o)
	if !ok {
		return true
	}
	dst, err := c.FPU.Read(0)
	if err != nil {
		c.fail(err.(RuntimeError))
		return true
	}
	var res float64
	switch name {
	case "fadd":
		res = dst + src
	case "fsub":
		res = dst - src
	case "fmul":
		res = dst * src
	case "fdiv":
		if src == 0 {
			c.fail(ArithmeticError)
			return true
		}
		res = dst / src
	}
	if err := c.FPU.Store(0, res); err != nil {
		c.fail(err.(RuntimeError))
		return true
	}
	return false
}

func (c *CPU) execFPUCompare(pop bool) bool {
	o, ok := c.fetchFPUOperand()
	if !ok {
		return true
	}
	src, ok := c.readFPUFloat(o)
	if !ok {
		return true
	}
	dst, err := c.FPU.Read(0)
	if err != nil {
		c.fail(err.(RuntimeError))
		return true
	}
	c.FPU.clearCond()
	switch {
	case math.IsNaN(dst) || math.IsNaN(src):
		c.FPU.FSW |= fswC0 | fswC2 | fswC3
		c.fail(ArithmeticError)
		return true
	case dst > src:
		// C0=C2=C3=0
	case dst < src:
		c.FPU.FSW |= fswC0
	default:
		c.FPU.FSW |= fswC3
	}
	if pop {
		if _, err := c.FPU.Pop(); err != nil {
			c.fail(err.(RuntimeError))
			return true
		}
	}
	return false
}
