package vm

import "github.com/csx64/csx64/isa"

// GetReg reads register reg at the given size; high selects the AH/BH/CH/DH
// view, which only exists at Size8 for the first four registers.
func (c *CPU) GetReg(reg isa.Register, size isa.SizeCode, high bool) uint64 {
	v := c.R[reg]
	if high {
		return (v >> 8) & 0xFF
	}
	switch size {
	case isa.Size8:
		return v & 0xFF
	case isa.Size16:
		return v & 0xFFFF
	case isa.Size32:
		return v & 0xFFFFFFFF
	default:
		return v
	}
}

// SetReg writes val into register reg at the given size. Per the real
// architecture's contract, a 32-bit write zero-extends into the full
// 64-bit register; 8/16-bit writes preserve the untouched high bits.
func (c *CPU) SetReg(reg isa.Register, size isa.SizeCode, high bool, val uint64) {
	if high {
		c.R[reg] = (c.R[reg] &^ 0xFF00) | ((val & 0xFF) << 8)
		return
	}
	switch size {
	case isa.Size8:
		c.R[reg] = (c.R[reg] &^ 0xFF) | (val & 0xFF)
	case isa.Size16:
		c.R[reg] = (c.R[reg] &^ 0xFFFF) | (val & 0xFFFF)
	case isa.Size32:
		c.R[reg] = val & 0xFFFFFFFF
	default:
		c.R[reg] = val
	}
}

// SignExtend sign-extends the low size bytes of val to a full 64-bit value.
func SignExtend(val uint64, size isa.SizeCode) int64 {
	switch size {
	case isa.Size8:
		return int64(int8(val))
	case isa.Size16:
		return int64(int16(val))
	case isa.Size32:
		return int64(int32(val))
	default:
		return int64(val)
	}
}
