package vm

import "github.com/csx64/csx64/isa"

func (c *CPU) execMov() bool {
	b, ok := c.fetchByte()
	if !ok {
		return true
	}
	s := isa.DecodeBinarySettings(b)
	if s.High && s.Size != isa.Size8 {
		return c.undefinedOrContinue()
	}
	dest, _, ok := c.fetchDestOperand(s)
	if !ok {
		return true
	}
	immMode := s.Mode == isa.ModeRegImm || s.Mode == isa.ModeMemImm
	srcOp, ok := c.fetchBinarySource(s)
	if !ok {
		return true
	}
	v, ok := c.srcValue(srcOp, s, immMode)
	if !ok {
		return true
	}
	return !c.writeOperand(dest, s.Size, v)
}

// execMovxX runs MOVZX/MOVSX: a smaller source operand zero- or
// sign-extended into a wider destination. The settings byte's Size field
// names the destination width; the source width rides in the low two
// bits of the following byte (reusing the shift-count encoding space,
// since this format never needs a shift count of its own).
func (c *CPU) execMovxX(signed bool) bool {
	b, ok := c.fetchByte()
	if !ok {
		return true
	}
	s := isa.DecodeBinarySettings(b)
	srcSizeByte, ok := c.fetchByte()
	if !ok {
		return true
	}
	srcSize := isa.SizeCode(srcSizeByte & 0x3)

	dest, _, ok := c.fetchDestOperand(s)
	if !ok {
		return true
	}
	var srcOp operand
	if s.Mode == isa.ModeRegMem {
		a, ok := c.fetchAddress()
		if !ok {
			return true
		}
		srcOp = operand{IsMem: true, Addr: c.resolveAddress(a)}
	} else {
		regByte, ok := c.fetchByte()
		if !ok {
			return true
		}
		srcOp = operand{Reg: isa.Register(regByte)}
	}
	v, ok := c.readOperand(srcOp, srcSize)
	if !ok {
		return true
	}
	var widened uint64
	if signed {
		widened = uint64(SignExtend(v, srcSize))
	} else {
		widened = v
	}
	return !c.writeOperand(dest, s.Size, widened)
}

func (c *CPU) execXchg() bool {
	b, ok := c.fetchByte()
	if !ok {
		return true
	}
	s := isa.DecodeBinarySettings(b)
	dest, _, ok := c.fetchDestOperand(s)
	if !ok {
		return true
	}
	regByte, ok := c.fetchByte()
	if !ok {
		return true
	}
	other := operand{Reg: isa.Register(regByte), High: s.High}

	a, ok := c.readOperand(dest, s.Size)
	if !ok {
		return true
	}
	b2, ok := c.readOperand(other, s.Size)
	if !ok {
		return true
	}
	if !c.writeOperand(dest, s.Size, b2) {
		return true
	}
	return !c.writeOperand(other, s.Size, a)
}

func (c *CPU) execMovcc(cond func(*CPU) bool) bool {
	b, ok := c.fetchByte()
	if !ok {
		return true
	}
	s := isa.DecodeBinarySettings(b)
	dest, _, ok := c.fetchDestOperand(s)
	if !ok {
		return true
	}
	immMode := s.Mode == isa.ModeRegImm || s.Mode == isa.ModeMemImm
	srcOp, ok := c.fetchBinarySource(s)
	if !ok {
		return true
	}
	if !cond(c) {
		return false
	}
	v, ok := c.srcValue(srcOp, s, immMode)
	if !ok {
		return true
	}
	return !c.writeOperand(dest, s.Size, v)
}

func (c *CPU) execStack(isPush bool) bool {
	b, ok := c.fetchByte()
	if !ok {
		return true
	}
	s := isa.DecodeBinarySettings(b)
	op, _, ok := c.fetchDestOperand(s)
	if !ok {
		return true
	}
	if isPush {
		v, ok := c.readOperand(op, s.Size)
		if !ok {
			return true
		}
		return !c.push(v)
	}
	v, ok := c.pop()
	if !ok {
		return true
	}
	return !c.writeOperand(op, s.Size, v)
}

func (c *CPU) execLea() bool {
	regByte, ok := c.fetchByte()
	if !ok {
		return true
	}
	a, ok := c.fetchAddress()
	if !ok {
		return true
	}
	c.R[isa.Register(regByte)] = c.resolveAddress(a)
	return false
}

func (c *CPU) execJump(name string) bool {
	target, ok := c.fetchUint(isa.Size64)
	if !ok {
		return true
	}
	take := true
	switch name {
	case "jmp", "call":
		take = true
	case "je":
		take = c.ZF()
	case "jne":
		take = !c.ZF()
	case "jl":
		take = c.SF() != c.OF()
	case "jge":
		take = c.SF() == c.OF()
	case "jle":
		take = c.ZF() || c.SF() != c.OF()
	case "jg":
		take = !c.ZF() && c.SF() == c.OF()
	}
	if !take {
		return false
	}
	if name == "call" {
		if !c.push(c.RIP) {
			return true
		}
	}
	c.RIP = target
	return false
}

func (c *CPU) execRet() bool {
	target, ok := c.pop()
	if !ok {
		return true
	}
	c.RIP = target
	return false
}
