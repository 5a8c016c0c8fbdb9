package vm

import "github.com/csx64/csx64/isa"

// execIO runs IN/OUT: a port number (fetched as a 16-bit immediate), a
// size code byte, and a register byte: IN's destination for the value the
// host-supplied hook returns, OUT's source for the value passed to it.
func (c *CPU) execIO(isIn bool) bool {
	port, ok := c.fetchUint(isa.Size16)
	if !ok {
		return true
	}
	sizeByte, ok := c.fetchByte()
	if !ok {
		return true
	}
	size := isa.SizeCode(sizeByte & 0x3)
	regByte, ok := c.fetchByte()
	if !ok {
		return true
	}
	reg := isa.Register(regByte)

	if isIn {
		if c.IO.In == nil {
			c.fail(UnhandledSyscall)
			return true
		}
		c.SetReg(reg, size, false, c.IO.In(uint16(port), size))
		return false
	}
	if c.IO.Out == nil {
		c.fail(UnhandledSyscall)
		return true
	}
	c.IO.Out(uint16(port), size, c.GetReg(reg, size, false))
	return false
}
