package asm

import (
	"testing"

	"github.com/csx64/csx64/isa"
)

func TestParseOperandRegister(t *testing.T) {
	op, err := ParseOperand("eax")
	if err != nil {
		t.Fatalf("ParseOperand: %v", err)
	}
	if op.Kind != OperandReg || op.Reg != isa.RAX || op.RegSize != isa.Size32 {
		t.Errorf("got %+v, want eax (RAX, Size32)", op)
	}
}

func TestParseOperandHighByteRegister(t *testing.T) {
	op, err := ParseOperand("ah")
	if err != nil {
		t.Fatalf("ParseOperand: %v", err)
	}
	if !op.High || op.Reg != isa.RAX || op.RegSize != isa.Size8 {
		t.Errorf("got %+v, want high byte of RAX", op)
	}
}

func TestParseOperandImmediate(t *testing.T) {
	op, err := ParseOperand("1+2*3")
	if err != nil {
		t.Fatalf("ParseOperand: %v", err)
	}
	if op.Kind != OperandImm {
		t.Fatalf("Kind: got %v, want OperandImm", op.Kind)
	}
	v, _, isFloat, err := op.Imm.Evaluate(nil, map[string]bool{})
	if err != nil || isFloat || v != 7 {
		t.Errorf("evaluated value: got %d isFloat=%v err=%v, want 7", v, isFloat, err)
	}
}

func TestParseOperandExplicitSizePrefix(t *testing.T) {
	op, err := ParseOperand("dword 5")
	if err != nil {
		t.Fatalf("ParseOperand: %v", err)
	}
	if !op.HasExplicitSize || op.ExplicitSize != isa.Size32 {
		t.Errorf("got HasExplicitSize=%v ExplicitSize=%v, want true/Size32", op.HasExplicitSize, op.ExplicitSize)
	}
}

func TestParseOperandBareAddress(t *testing.T) {
	op, err := ParseOperand("[rax+8]")
	if err != nil {
		t.Fatalf("ParseOperand: %v", err)
	}
	if op.Kind != OperandMem {
		t.Fatalf("Kind: got %v, want OperandMem", op.Kind)
	}
	ao := op.AddrOp
	if !ao.HasReg1 || ao.Reg1 != isa.RAX || ao.Mult != 1 || ao.HasReg2 {
		t.Errorf("got %+v, want base-only RAX", ao)
	}
	v, _, _, err := ao.Disp.Evaluate(nil, map[string]bool{})
	if err != nil || v != 8 {
		t.Errorf("displacement: got %d err=%v, want 8", v, err)
	}
	if ao.PtrSize != isa.Size64 {
		t.Errorf("PtrSize: got %v, want Size64 (from rax)", ao.PtrSize)
	}
}

func TestParseOperandScaledIndexAddress(t *testing.T) {
	op, err := ParseOperand("[rax+rbx*4+16]")
	if err != nil {
		t.Fatalf("ParseOperand: %v", err)
	}
	ao := op.AddrOp
	if !ao.HasReg1 || !ao.HasReg2 {
		t.Fatalf("expected both registers present, got %+v", ao)
	}
	if ao.Reg1 != isa.RBX || ao.Mult != 4 {
		t.Errorf("scaled register: got reg=%v mult=%d, want RBX/4", ao.Reg1, ao.Mult)
	}
	if ao.Reg2 != isa.RAX {
		t.Errorf("base register: got %v, want RAX", ao.Reg2)
	}
	v, _, _, _ := ao.Disp.Evaluate(nil, map[string]bool{})
	if v != 16 {
		t.Errorf("displacement: got %d, want 16", v)
	}
}

func TestParseOperandScaledIndexFirstInExpression(t *testing.T) {
	op, err := ParseOperand("[rbx*4+rax+16]")
	if err != nil {
		t.Fatalf("ParseOperand: %v", err)
	}
	ao := op.AddrOp
	if ao.Reg1 != isa.RBX || ao.Mult != 4 {
		t.Errorf("scaled register must be Reg1 regardless of source order: got reg=%v mult=%d", ao.Reg1, ao.Mult)
	}
	if ao.Reg2 != isa.RAX {
		t.Errorf("base register: got %v, want RAX", ao.Reg2)
	}
}

func TestParseOperandAddressNoRegisterDefaultsSize64(t *testing.T) {
	op, err := ParseOperand("[0x1000]")
	if err != nil {
		t.Fatalf("ParseOperand: %v", err)
	}
	if op.AddrOp.HasReg1 || op.AddrOp.HasReg2 {
		t.Errorf("expected no registers, got %+v", op.AddrOp)
	}
	if op.AddrOp.PtrSize != isa.Size64 {
		t.Errorf("PtrSize: got %v, want Size64 default", op.AddrOp.PtrSize)
	}
}

func TestParseOperandAddressTooManyRegistersRejected(t *testing.T) {
	if _, err := ParseOperand("[rax+rbx+rcx]"); err == nil {
		t.Error("expected an error for more than two registers in an address")
	}
}

func TestParseOperandAddressTwoScaledRegistersRejected(t *testing.T) {
	if _, err := ParseOperand("[rax*2+rbx*4]"); err == nil {
		t.Error("expected an error for two scaled registers in an address")
	}
}

func TestParseOperandAddressMixedRegisterSizesRejected(t *testing.T) {
	if _, err := ParseOperand("[eax+rbx]"); err == nil {
		t.Error("expected an error for mixed register sizes in an address")
	}
}

func TestParseOperandAddressInvalidMultiplierRejected(t *testing.T) {
	if _, err := ParseOperand("[rax*3]"); err == nil {
		t.Error("expected an error for a non-power-of-two-in-range multiplier")
	}
}
