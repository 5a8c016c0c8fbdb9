package vm

import "github.com/csx64/csx64/isa"

// initDispatch builds the 256-entry opcode table once per CPU, closing
// over each mnemonic's name so the exec* families stay format-generic.
func (c *CPU) initDispatch() {
	for _, info := range isa.AllOps() {
		name, format := info.Name, info.Format
		var fn func(*CPU) bool

		switch format {
		case isa.FormatNone:
			fn = noneHandler(name)
		case isa.FormatBinary:
			fn = func(c *CPU) bool { return c.execBinary(name) }
		case isa.FormatUnary:
			fn = func(c *CPU) bool { return c.execUnary(name) }
		case isa.FormatTernary:
			fn = func(c *CPU) bool { return c.execTernary(name) }
		case isa.FormatShift:
			fn = func(c *CPU) bool { return c.execShift(name) }
		case isa.FormatMOV:
			fn = func(c *CPU) bool { return c.execMov() }
		case isa.FormatMOVxX:
			signed := name == "movsx"
			fn = func(c *CPU) bool { return c.execMovxX(signed) }
		case isa.FormatXCHG:
			fn = func(c *CPU) bool { return c.execXchg() }
		case isa.FormatMOVcc:
			cond := movccCond(name)
			fn = func(c *CPU) bool { return c.execMovcc(cond) }
		case isa.FormatStack:
			isPush := name == "push"
			fn = func(c *CPU) bool { return c.execStack(isPush) }
		case isa.FormatJump:
			fn = func(c *CPU) bool { return c.execJump(name) }
		case isa.FormatLea:
			fn = func(c *CPU) bool { return c.execLea() }
		case isa.FormatStringOp:
			fn = stringHandler(name)
		case isa.FormatFPU:
			fn = func(c *CPU) bool { return c.execFPU(name) }
		case isa.FormatVPU:
			isMove := name == "movaps"
			fn = func(c *CPU) bool {
				if isMove {
					return c.execVPUMove()
				}
				return c.execVPUBinary(name)
			}
		case isa.FormatIO:
			isIn := name == "in"
			fn = func(c *CPU) bool { return c.execIO(isIn) }
		default:
			fn = func(c *CPU) bool { c.fail(UnknownOp); return true }
		}
		c.dispatch[info.Opcode] = fn
	}
}

// noneHandler covers the zero-operand opcodes: simple flag/control ops plus
// the two entry points (syscall, ret) that read their own operands from the
// stack or register file rather than the instruction stream.
func noneHandler(name string) func(*CPU) bool {
	switch name {
	case "nop":
		return func(c *CPU) bool { return false }
	case "hlt":
		return func(c *CPU) bool { c.halt(int64(c.R[isa.RAX])); return true }
	case "ret":
		return func(c *CPU) bool { return c.execRet() }
	case "syscall":
		return func(c *CPU) bool { return c.execSyscall() }
	case "clc":
		return func(c *CPU) bool { c.SetCF(false); return false }
	case "stc":
		return func(c *CPU) bool { c.SetCF(true); return false }
	case "cld":
		return func(c *CPU) bool { c.SetDF(false); return false }
	case "std":
		return func(c *CPU) bool { c.SetDF(true); return false }
	case "pushf":
		return func(c *CPU) bool { return !c.push(c.RFLAGS) }
	case "popf":
		return func(c *CPU) bool {
			v, ok := c.pop()
			if !ok {
				return true
			}
			c.RFLAGS = v
			return false
		}
	case "finit":
		return func(c *CPU) bool { c.FPU.Init(); return false }
	}
	return func(c *CPU) bool { c.fail(UnknownOp); return true }
}

// movccCond maps a CMOVcc mnemonic to its condition predicate, mirroring
// the conditional-jump predicates in execJump.
func movccCond(name string) func(*CPU) bool {
	switch name {
	case "cmove":
		return func(c *CPU) bool { return c.ZF() }
	case "cmovne":
		return func(c *CPU) bool { return !c.ZF() }
	case "cmovl":
		return func(c *CPU) bool { return c.SF() != c.OF() }
	case "cmovge":
		return func(c *CPU) bool { return c.SF() == c.OF() }
	}
	return func(c *CPU) bool { return false }
}

// stringHandler dispatches a FormatStringOp row: a bare primitive runs one
// element, a "rep_"/"repe_"/"repne_" row runs the REP-prefixed family.
// instLen is always 1 (the opcode byte alone; string ops carry no further
// operand bytes), which is what execRepStringOp rewinds RIP by when a tick
// boundary interrupts mid-loop.
func stringHandler(name string) func(*CPU) bool {
	if repBase(name) != name {
		return func(c *CPU) bool { return c.execRepStringOp(name, 1) }
	}
	return func(c *CPU) bool { return c.execStringOp(name) }
}
