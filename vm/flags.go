package vm

// RFLAGS bit positions. The low sixteen plus OF match the real architecture
// one-for-one; FSF and OTRF are our own extensions (bits 48/49, far above
// any bit Intel defines, so a program that happens to probe the real flag
// layout cannot collide with them).
const (
	FlagCF = 1 << 0
	// bit 1 is always 1 (Intel-reserved)
	FlagPF   = 1 << 2
	FlagAF   = 1 << 4
	FlagZF   = 1 << 6
	FlagSF   = 1 << 7
	FlagTF   = 1 << 8
	FlagIF   = 1 << 9
	FlagDF   = 1 << 10
	FlagOF   = 1 << 11
	FlagIOPL = 3 << 12
	FlagNT   = 1 << 14
	FlagRF   = 1 << 16
	FlagVM   = 1 << 17
	FlagAC   = 1 << 18
	FlagVIF  = 1 << 19
	FlagVIP  = 1 << 20
	FlagID   = 1 << 21

	FlagFSF  = 1 << 48 // filesystem-mutation enable
	FlagOTRF = 1 << 49 // one-tick REP
)

// parityTable[b] is true iff the low byte b has an even number of set bits,
// precomputed once rather than folded on every flag update. Exactly 128 of
// its 256 entries are true.
var parityTable [256]bool

func init() {
	for b := 0; b < 256; b++ {
		bits := 0
		for v := b; v != 0; v &= v - 1 {
			bits++
		}
		parityTable[b] = bits%2 == 0
	}
}

func (c *CPU) flagSet(mask uint64, v bool) {
	if v {
		c.RFLAGS |= mask
	} else {
		c.RFLAGS &^= mask
	}
}

func (c *CPU) flagGet(mask uint64) bool { return c.RFLAGS&mask != 0 }

func (c *CPU) SetCF(v bool) { c.flagSet(FlagCF, v) }
func (c *CPU) CF() bool     { return c.flagGet(FlagCF) }
func (c *CPU) SetPF(v bool) { c.flagSet(FlagPF, v) }
func (c *CPU) PF() bool     { return c.flagGet(FlagPF) }
func (c *CPU) SetAF(v bool) { c.flagSet(FlagAF, v) }
func (c *CPU) AF() bool     { return c.flagGet(FlagAF) }
func (c *CPU) SetZF(v bool) { c.flagSet(FlagZF, v) }
func (c *CPU) ZF() bool     { return c.flagGet(FlagZF) }
func (c *CPU) SetSF(v bool) { c.flagSet(FlagSF, v) }
func (c *CPU) SF() bool     { return c.flagGet(FlagSF) }
func (c *CPU) SetTF(v bool) { c.flagSet(FlagTF, v) }
func (c *CPU) TF() bool     { return c.flagGet(FlagTF) }
func (c *CPU) SetIF(v bool) { c.flagSet(FlagIF, v) }
func (c *CPU) IF() bool     { return c.flagGet(FlagIF) }
func (c *CPU) SetDF(v bool) { c.flagSet(FlagDF, v) }
func (c *CPU) DF() bool     { return c.flagGet(FlagDF) }
func (c *CPU) SetOF(v bool) { c.flagSet(FlagOF, v) }
func (c *CPU) OF() bool     { return c.flagGet(FlagOF) }
func (c *CPU) SetFSF(v bool) { c.flagSet(FlagFSF, v) }
func (c *CPU) FSF() bool      { return c.flagGet(FlagFSF) }
func (c *CPU) SetOTRF(v bool) { c.flagSet(FlagOTRF, v) }
func (c *CPU) OTRF() bool      { return c.flagGet(FlagOTRF) }

// maskToSize truncates v to the low n bytes, as every flag-setting
// operation does before inspecting sign/zero/parity.
func maskToSize(v uint64, size int) uint64 {
	switch size {
	case 1:
		return v & 0xFF
	case 2:
		return v & 0xFFFF
	case 4:
		return v & 0xFFFFFFFF
	}
	return v
}

func signBit(v uint64, size int) bool {
	switch size {
	case 1:
		return v&0x80 != 0
	case 2:
		return v&0x8000 != 0
	case 4:
		return v&0x80000000 != 0
	}
	return v&0x8000000000000000 != 0
}

// updateSZP sets ZF, SF, and PF from the masked result, per the
// specification's universal rule that every integer operation derives
// these three flags identically regardless of which op produced the value.
func (c *CPU) updateSZP(result uint64, size int) {
	m := maskToSize(result, size)
	c.SetZF(m == 0)
	c.SetSF(signBit(m, size))
	c.SetPF(parityTable[byte(m)])
}

// randomizeFlag assigns mask a random bit from the session PRNG, used
// wherever Intel leaves a flag explicitly undefined so that no program can
// accidentally come to depend on a fixed value there.
func (c *CPU) randomizeFlag(mask uint64) {
	c.flagSet(mask, c.rng.Intn(2) == 1)
}
