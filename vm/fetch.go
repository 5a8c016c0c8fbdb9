package vm

import "github.com/csx64/csx64/isa"

// fetchByte reads one byte at RIP and advances it, failing OutOfBounds if
// execution runs off the end of memory.
func (c *CPU) fetchByte() (byte, bool) {
	b, ok := c.Mem.ReadBytes(c.RIP, 1)
	if !ok {
		c.fail(OutOfBounds)
		return 0, false
	}
	c.RIP++
	return b[0], true
}

func (c *CPU) fetchUint(size isa.SizeCode) (uint64, bool) {
	n := uint64(size.Bytes())
	v, ok := c.Mem.ReadUint(c.RIP, n)
	if !ok {
		c.fail(OutOfBounds)
		return 0, false
	}
	c.RIP += n
	return v, true
}

func (c *CPU) fetchAddress() (isa.Address, bool) {
	pos := c.RIP
	a, err := isa.DecodeAddressAdv(c.Mem.RawView(), &pos)
	if err != nil {
		c.fail(OutOfBounds)
		return isa.Address{}, false
	}
	c.RIP = pos
	return a, true
}

// resolveAddress computes the effective address an isa.Address denotes
// given the current register file.
func (c *CPU) resolveAddress(a isa.Address) uint64 {
	addr := uint64(a.Imm)
	if a.HasReg1 {
		addr += c.R[a.Reg1] * uint64(a.Mult)
	}
	if a.HasReg2 {
		addr += c.R[a.Reg2]
	}
	return addr
}

// operand is a fetched source or destination: either a register (Reg,
// High) or a resolved memory address (IsMem, Addr).
type operand struct {
	IsMem bool
	Addr  uint64
	Reg   isa.Register
	High  bool
}

func (c *CPU) readOperand(o operand, size isa.SizeCode) (uint64, bool) {
	if o.IsMem {
		v, ok := c.Mem.ReadUint(o.Addr, uint64(size.Bytes()))
		if !ok {
			c.fail(OutOfBounds)
			return 0, false
		}
		return v, true
	}
	return c.GetReg(o.Reg, size, o.High), true
}

func (c *CPU) writeOperand(o operand, size isa.SizeCode, val uint64) bool {
	if o.IsMem {
		if !c.Mem.WriteUint(o.Addr, uint64(size.Bytes()), val) {
			c.fail(AccessViolation)
			return false
		}
		return true
	}
	c.SetReg(o.Reg, size, o.High, val)
	return true
}

// fetchUnaryDest decodes the shared binary/unary/ternary settings byte and
// returns the destination operand with the decoded settings; any source
// operand is left for the caller to fetch.
func (c *CPU) fetchUnaryDest() (operand, isa.BinarySettings, bool) {
	b, ok := c.fetchByte()
	if !ok {
		return operand{}, isa.BinarySettings{}, false
	}
	s := isa.DecodeBinarySettings(b)
	return c.fetchDestOperand(s)
}

func (c *CPU) fetchDestOperand(s isa.BinarySettings) (operand, isa.BinarySettings, bool) {
	isMem := s.Mode == isa.ModeMemReg || s.Mode == isa.ModeMemImm
	if !isMem {
		regByte, ok := c.fetchByte()
		if !ok {
			return operand{}, s, false
		}
		reg := isa.Register(regByte)
		return operand{Reg: reg, High: s.High}, s, true
	}
	a, ok := c.fetchAddress()
	if !ok {
		return operand{}, s, false
	}
	return operand{IsMem: true, Addr: c.resolveAddress(a)}, s, true
}

// fetchBinarySource decodes the source half of a binary-format
// instruction: a register, an immediate, or a memory address, depending
// on s.Mode.
func (c *CPU) fetchBinarySource(s isa.BinarySettings) (operand, bool) {
	switch s.Mode {
	case isa.ModeRegReg, isa.ModeMemReg:
		regByte, ok := c.fetchByte()
		if !ok {
			return operand{}, false
		}
		return operand{Reg: isa.Register(regByte), High: s.High}, true
	case isa.ModeRegImm, isa.ModeMemImm:
		v, ok := c.fetchUint(s.Size)
		if !ok {
			return operand{}, false
		}
		return operand{Reg: 0, High: false, IsMem: false, Addr: v}, true
	case isa.ModeRegMem:
		a, ok := c.fetchAddress()
		if !ok {
			return operand{}, false
		}
		return operand{IsMem: true, Addr: c.resolveAddress(a)}, true
	}
	c.fail(UndefinedBehavior)
	return operand{}, false
}

// srcValue reads the value denoted by a fetchBinarySource result; for the
// two immediate modes the value was already stashed in Addr.
func (c *CPU) srcValue(o operand, s isa.BinarySettings, immMode bool) (uint64, bool) {
	if immMode {
		return o.Addr, true
	}
	return c.readOperand(o, s.Size)
}
