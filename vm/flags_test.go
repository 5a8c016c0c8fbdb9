package vm

import "testing"

func TestParityTableHas128TrueEntries(t *testing.T) {
	count := 0
	for _, v := range parityTable {
		if v {
			count++
		}
	}
	if count != 128 {
		t.Errorf("parityTable: got %d true entries, want 128", count)
	}
}

func TestFlagSetGetRoundTrip(t *testing.T) {
	c := &CPU{}

	c.SetCF(true)
	if !c.CF() {
		t.Error("CF should be set")
	}
	c.SetCF(false)
	if c.CF() {
		t.Error("CF should be clear")
	}

	c.SetZF(true)
	c.SetSF(true)
	if !c.ZF() || !c.SF() {
		t.Error("ZF and SF should both be set independently of CF")
	}

	c.SetFSF(true)
	c.SetOTRF(true)
	if !c.FSF() || !c.OTRF() {
		t.Error("FSF/OTRF should be settable without disturbing the low architectural flags")
	}
	if !c.ZF() || !c.SF() {
		t.Error("setting FSF/OTRF must not clobber unrelated flags")
	}
}

func TestUpdateSZP(t *testing.T) {
	c := &CPU{}
	c.updateSZP(0, 4)
	if !c.ZF() || c.SF() {
		t.Errorf("updateSZP(0): ZF=%v SF=%v, want true/false", c.ZF(), c.SF())
	}

	c.updateSZP(0x80000000, 4)
	if c.ZF() || !c.SF() {
		t.Errorf("updateSZP(0x80000000): ZF=%v SF=%v, want false/true", c.ZF(), c.SF())
	}
}
