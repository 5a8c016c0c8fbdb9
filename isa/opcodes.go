package isa

import "strings"

// Format identifies which canonical operand-fetch shape a mnemonic's
// operands are encoded with. The instruction encoder (asm) and the CPU's
// dispatch table (vm) both key off the same opcode byte, so this table is
// the single source of truth for "what bytes follow this opcode".
type Format byte

const (
	FormatNone Format = iota
	FormatBinary
	FormatUnary
	FormatTernary
	FormatShift
	FormatMOV
	FormatMOVxX
	FormatXCHG
	FormatMOVcc
	FormatStack
	FormatJump
	FormatLea
	FormatStringOp
	FormatFPU
	FormatVPU
	FormatIO
)

// OpInfo is one row of the mnemonic table: its on-disk opcode byte and the
// operand shape that follows it.
type OpInfo struct {
	Name   string
	Opcode byte
	Format Format
}

var mnemonicTable = []OpInfo{
	// FormatNone
	{"nop", 0x00, FormatNone},
	{"hlt", 0x01, FormatNone},
	{"ret", 0x02, FormatNone},
	{"syscall", 0x03, FormatNone},
	{"clc", 0x04, FormatNone},
	{"stc", 0x05, FormatNone},
	{"cld", 0x06, FormatNone},
	{"std", 0x07, FormatNone},
	{"pushf", 0x08, FormatNone},
	{"popf", 0x09, FormatNone},
	{"finit", 0x0A, FormatNone},

	// FormatBinary
	{"add", 0x10, FormatBinary},
	{"sub", 0x11, FormatBinary},
	{"and", 0x12, FormatBinary},
	{"or", 0x13, FormatBinary},
	{"xor", 0x14, FormatBinary},
	{"cmp", 0x15, FormatBinary},
	{"test", 0x16, FormatBinary},
	{"adc", 0x17, FormatBinary},
	{"sbb", 0x18, FormatBinary},

	// FormatUnary
	{"inc", 0x20, FormatUnary},
	{"dec", 0x21, FormatUnary},
	{"not", 0x22, FormatUnary},
	{"neg", 0x23, FormatUnary},
	{"cmpz", 0x24, FormatUnary}, // canonical fold of `cmp r, 0`
	{"mul", 0x25, FormatUnary},
	{"imul1", 0x26, FormatUnary},
	{"div", 0x27, FormatUnary},
	{"idiv", 0x28, FormatUnary},

	// FormatTernary
	{"imul3", 0x30, FormatTernary},

	// FormatShift
	{"shl", 0x40, FormatShift},
	{"shr", 0x41, FormatShift},
	{"sar", 0x42, FormatShift},
	{"rol", 0x43, FormatShift},
	{"ror", 0x44, FormatShift},

	// FormatMOV / FormatMOVxX / FormatXCHG / FormatMOVcc
	{"mov", 0x50, FormatMOV},
	{"movzx", 0x51, FormatMOVxX},
	{"movsx", 0x52, FormatMOVxX},
	{"xchg", 0x53, FormatXCHG},
	{"cmove", 0x54, FormatMOVcc},
	{"cmovne", 0x55, FormatMOVcc},
	{"cmovl", 0x56, FormatMOVcc},
	{"cmovge", 0x57, FormatMOVcc},

	// FormatStack
	{"push", 0x60, FormatStack},
	{"pop", 0x61, FormatStack},

	// FormatJump
	{"jmp", 0x70, FormatJump},
	{"call", 0x71, FormatJump},
	{"je", 0x72, FormatJump},
	{"jne", 0x73, FormatJump},
	{"jl", 0x74, FormatJump},
	{"jge", 0x75, FormatJump},
	{"jle", 0x76, FormatJump},
	{"jg", 0x77, FormatJump},

	// FormatLea
	{"lea", 0x7F, FormatLea},

	// FormatStringOp
	{"movsb", 0x80, FormatStringOp},
	{"movsw", 0x81, FormatStringOp},
	{"movsd", 0x82, FormatStringOp},
	{"movsq", 0x83, FormatStringOp},
	{"cmpsb", 0x84, FormatStringOp},
	{"lodsb", 0x86, FormatStringOp},
	{"stosb", 0x87, FormatStringOp},
	{"scasb", 0x88, FormatStringOp},
	{"rep_movsb", 0x90, FormatStringOp},
	{"rep_stosb", 0x91, FormatStringOp},
	{"repe_cmpsb", 0x92, FormatStringOp},
	{"repne_scasb", 0x93, FormatStringOp},

	// FormatFPU
	{"fld", 0xA0, FormatFPU},
	{"fstp", 0xA1, FormatFPU},
	{"fadd", 0xA2, FormatFPU},
	{"fmul", 0xA3, FormatFPU},
	{"fsub", 0xA4, FormatFPU},
	{"fdiv", 0xA5, FormatFPU},
	{"fcom", 0xA6, FormatFPU},
	{"fcomp", 0xA7, FormatFPU},
	{"fchs", 0xA8, FormatFPU},
	{"fabs", 0xA9, FormatFPU},
	{"fsqrt", 0xAA, FormatFPU},
	{"frndint", 0xAB, FormatFPU},
	{"fsin", 0xAC, FormatFPU},
	{"fcos", 0xAD, FormatFPU},
	{"fpatan", 0xAE, FormatFPU},
	{"f2xm1", 0xAF, FormatFPU},
	{"fxch", 0xB0, FormatFPU},
	{"fild", 0xB1, FormatFPU},
	{"fist", 0xB2, FormatFPU},

	// FormatVPU
	{"movaps", 0xC0, FormatVPU},
	{"addps", 0xC1, FormatVPU},
	{"subps", 0xC2, FormatVPU},
	{"mulps", 0xC3, FormatVPU},
	{"divps", 0xC4, FormatVPU},
	{"andps", 0xC5, FormatVPU},
	{"xorps", 0xC6, FormatVPU},
	{"cmpps", 0xC7, FormatVPU},
	{"paddq", 0xC8, FormatVPU},
	{"psubq", 0xC9, FormatVPU},
	{"pand", 0xCA, FormatVPU},
	{"por", 0xCB, FormatVPU},
	{"pxor", 0xCC, FormatVPU},

	// FormatIO
	{"in", 0xE0, FormatIO},
	{"out", 0xE1, FormatIO},
}

var (
	byName    = map[string]OpInfo{}
	byOpcode  [256]*OpInfo
)

func init() {
	for i := range mnemonicTable {
		info := mnemonicTable[i]
		byName[info.Name] = info
		byOpcode[info.Opcode] = &mnemonicTable[i]
	}
}

// Lookup finds a mnemonic's opcode/format row by name (case-insensitive).
func Lookup(mnemonic string) (OpInfo, bool) {
	info, ok := byName[strings.ToLower(mnemonic)]
	return info, ok
}

// LookupOpcode finds a mnemonic's opcode/format row by its on-disk opcode
// byte, for decode-side dispatch.
func LookupOpcode(op byte) (OpInfo, bool) {
	info := byOpcode[op]
	if info == nil {
		return OpInfo{}, false
	}
	return *info, true
}

// AllOps returns every row of the mnemonic table, for callers (the vm
// package's dispatch table builder) that need to wire a handler per opcode
// rather than look one up at decode time.
func AllOps() []OpInfo {
	return mnemonicTable
}
