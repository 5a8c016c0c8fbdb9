package vm

import "github.com/csx64/csx64/isa"

// stringOpSize maps a string-op mnemonic's suffix to its element size.
func stringOpSize(name string) isa.SizeCode {
	switch name[len(name)-1] {
	case 'b':
		return isa.Size8
	case 'w':
		return isa.Size16
	case 'd':
		return isa.Size32
	case 'q':
		return isa.Size64
	}
	return isa.Size8
}

func (c *CPU) stride(size isa.SizeCode) int64 {
	n := int64(size.Bytes())
	if c.DF() {
		return -n
	}
	return n
}

// stepString performs exactly one element-sized iteration of the named
// string primitive.
func (c *CPU) stepString(name string) bool {
	size := stringOpSize(name)
	n := uint64(size.Bytes())
	stride := c.stride(size)

	switch {
	case name[:4] == "movs":
		v, ok := c.Mem.ReadUint(c.R[isa.RSI], n)
		if !ok {
			c.fail(OutOfBounds)
			return true
		}
		if !c.Mem.WriteUint(c.R[isa.RDI], n, v) {
			c.fail(AccessViolation)
			return true
		}
		c.R[isa.RSI] = uint64(int64(c.R[isa.RSI]) + stride)
		c.R[isa.RDI] = uint64(int64(c.R[isa.RDI]) + stride)
	case name[:4] == "cmps":
		a, ok := c.Mem.ReadUint(c.R[isa.RSI], n)
		if !ok {
			c.fail(OutOfBounds)
			return true
		}
		b, ok := c.Mem.ReadUint(c.R[isa.RDI], n)
		if !ok {
			c.fail(OutOfBounds)
			return true
		}
		res := a - b
		cf, of := subCarryOverflow(a, b, res, size.Bytes())
		c.SetCF(cf)
		c.SetOF(of)
		c.updateSZP(res, size.Bytes())
		c.R[isa.RSI] = uint64(int64(c.R[isa.RSI]) + stride)
		c.R[isa.RDI] = uint64(int64(c.R[isa.RDI]) + stride)
	case name[:4] == "lods":
		v, ok := c.Mem.ReadUint(c.R[isa.RSI], n)
		if !ok {
			c.fail(OutOfBounds)
			return true
		}
		c.SetReg(isa.RAX, size, false, v)
		c.R[isa.RSI] = uint64(int64(c.R[isa.RSI]) + stride)
	case name[:4] == "stos":
		v := c.GetReg(isa.RAX, size, false)
		if !c.Mem.WriteUint(c.R[isa.RDI], n, v) {
			c.fail(AccessViolation)
			return true
		}
		c.R[isa.RDI] = uint64(int64(c.R[isa.RDI]) + stride)
	case name[:4] == "scas":
		v, ok := c.Mem.ReadUint(c.R[isa.RDI], n)
		if !ok {
			c.fail(OutOfBounds)
			return true
		}
		a := c.GetReg(isa.RAX, size, false)
		res := a - v
		cf, of := subCarryOverflow(a, v, res, size.Bytes())
		c.SetCF(cf)
		c.SetOF(of)
		c.updateSZP(res, size.Bytes())
		c.R[isa.RDI] = uint64(int64(c.R[isa.RDI]) + stride)
	}
	return false
}

// execStringOp runs a bare (non-REP) string primitive: one element.
func (c *CPU) execStringOp(name string) bool {
	return c.stepString(name)
}

// repBase is the mnemonic a "rep_X"/"repe_X"/"repne_X" row iterates.
func repBase(name string) string {
	switch {
	case len(name) > 4 && name[:4] == "rep_":
		return name[4:]
	case len(name) > 5 && name[:5] == "repe_":
		return name[5:]
	case len(name) > 6 && name[:6] == "repne_":
		return name[6:]
	}
	return name
}

// repKind reports which termination predicate applies, for the
// compare/scan families (REPE stops early on ZF=0, REPNE on ZF=1; plain
// REP/MOVS/STOS never check ZF).
type repKind int

const (
	repPlain repKind = iota
	repWhileEqual
	repWhileNotEqual
)

func repKindOf(name string) repKind {
	switch {
	case len(name) > 4 && name[:4] == "repe":
		return repWhileEqual
	case len(name) > 5 && name[:5] == "repne":
		return repWhileNotEqual
	}
	return repPlain
}

// execRepStringOp runs a REP/REPE/REPNE-prefixed string primitive. When
// OTRF is set the whole iteration completes within this one tick; when
// clear, a single element executes and RIP is rewound by instLen so the
// next tick resumes the same instruction (RCX already reflects the
// decrement, so progress is not lost).
func (c *CPU) execRepStringOp(name string, instLen uint64) bool {
	base := repBase(name)
	kind := repKindOf(name)
	startRIP := c.RIP

	if c.OTRF() {
		for c.R[isa.RCX] != 0 {
			if c.stepString(base) {
				return true
			}
			c.R[isa.RCX]--
			if kind == repWhileEqual && !c.ZF() {
				break
			}
			if kind == repWhileNotEqual && c.ZF() {
				break
			}
		}
		return false
	}

	if c.R[isa.RCX] == 0 {
		return false
	}
	if c.stepString(base) {
		return true
	}
	c.R[isa.RCX]--
	done := c.R[isa.RCX] == 0
	if !done {
		if kind == repWhileEqual && !c.ZF() {
			done = true
		}
		if kind == repWhileNotEqual && c.ZF() {
			done = true
		}
	}
	if !done {
		c.RIP = startRIP - instLen
	}
	return false
}
