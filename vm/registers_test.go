package vm

import (
	"testing"

	"github.com/csx64/csx64/isa"
)

func TestRegisterHighByteView(t *testing.T) {
	c := &CPU{}
	c.R[isa.RAX] = 0x1234
	c.SetReg(isa.RAX, isa.Size8, true, 0xCD)
	if c.R[isa.RAX] != 0xCD34 {
		t.Errorf("SetReg high byte: got 0x%X, want 0xCD34", c.R[isa.RAX])
	}
	if c.GetReg(isa.RAX, isa.Size8, true) != 0xCD {
		t.Errorf("GetReg high byte: got 0x%X, want 0xCD", c.GetReg(isa.RAX, isa.Size8, true))
	}
	// The low byte view must be untouched by the high-byte write.
	if c.GetReg(isa.RAX, isa.Size8, false) != 0x34 {
		t.Errorf("GetReg low byte: got 0x%X, want 0x34", c.GetReg(isa.RAX, isa.Size8, false))
	}
}

func TestSetReg32ZeroExtends(t *testing.T) {
	c := &CPU{}
	c.R[isa.RBX] = 0xFFFFFFFFFFFFFFFF
	c.SetReg(isa.RBX, isa.Size32, false, 0x1)
	if c.R[isa.RBX] != 0x1 {
		t.Errorf("SetReg Size32: got 0x%X, want 0x1 (upper 32 bits must be zeroed)", c.R[isa.RBX])
	}
}

func TestSetReg16Preserves(t *testing.T) {
	c := &CPU{}
	c.R[isa.RCX] = 0x123456789ABCDEF0
	c.SetReg(isa.RCX, isa.Size16, false, 0x0011)
	if c.R[isa.RCX] != 0x123456789ABC0011 {
		t.Errorf("SetReg Size16: got 0x%X, want 0x123456789ABC0011", c.R[isa.RCX])
	}
}

func TestSignExtend(t *testing.T) {
	if got := SignExtend(0xFF, isa.Size8); got != -1 {
		t.Errorf("SignExtend(0xFF, Size8): got %d, want -1", got)
	}
	if got := SignExtend(0x7F, isa.Size8); got != 0x7F {
		t.Errorf("SignExtend(0x7F, Size8): got %d, want 127", got)
	}
}
