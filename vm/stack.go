package vm

import "github.com/csx64/csx64/isa"

// push decrements RSP by 8 and stores v, failing with StackOverflow if the
// new RSP would fall below stack_barrier.
func (c *CPU) push(v uint64) bool {
	next := c.R[isa.RSP] - 8
	if next < c.Mem.StackBarrier {
		c.fail(StackOverflow)
		return false
	}
	if !c.Mem.WriteUint(next, 8, v) {
		c.fail(AccessViolation)
		return false
	}
	c.R[isa.RSP] = next
	return true
}

// pop reads 8 bytes at RSP and advances it, failing with StackOverflow if
// RSP is already below the stack barrier.
func (c *CPU) pop() (uint64, bool) {
	if c.R[isa.RSP] < c.Mem.StackBarrier {
		c.fail(StackOverflow)
		return 0, false
	}
	v, ok := c.Mem.ReadUint(c.R[isa.RSP], 8)
	if !ok {
		c.fail(OutOfBounds)
		return 0, false
	}
	c.R[isa.RSP] += 8
	return v, true
}
