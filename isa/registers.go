// Package isa holds the binary encoding contract shared by the assembler
// (which emits it) and the virtual CPU (which decodes it): register
// numbering, size codes, the four canonical operand-fetch formats, and the
// address-byte layout. Keeping both ends of the contract in one package is
// the only way they cannot drift apart.
package isa

// SizeCode identifies an operand width. The zero value, Size8, is the
// 8-bit width; it is rejected wherever the specification calls for a
// pointer or address size (size code 0 is invalid there).
type SizeCode byte

const (
	Size8 SizeCode = iota
	Size16
	Size32
	Size64
)

func (s SizeCode) Bytes() int {
	switch s {
	case Size8:
		return 1
	case Size16:
		return 2
	case Size32:
		return 4
	case Size64:
		return 8
	}
	return 0
}

func SizeCodeForBytes(n int) (SizeCode, bool) {
	switch n {
	case 1:
		return Size8, true
	case 2:
		return Size16, true
	case 4:
		return Size32, true
	case 8:
		return Size64, true
	}
	return 0, false
}

// Register is the architectural register number, 0-15, matching RAX..R15.
type Register byte

const (
	RAX Register = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

// registerNames maps every accepted spelling to (register, size, isHigh).
// isHigh selects the AH/BH/CH/DH high-byte view, which only exists for the
// first four registers at 8-bit size.
var registerNames = map[string]struct {
	Reg    Register
	Size   SizeCode
	IsHigh bool
}{
	"al": {RAX, Size8, false}, "ah": {RAX, Size8, true}, "ax": {RAX, Size16, false}, "eax": {RAX, Size32, false}, "rax": {RAX, Size64, false},
	"cl": {RCX, Size8, false}, "ch": {RCX, Size8, true}, "cx": {RCX, Size16, false}, "ecx": {RCX, Size32, false}, "rcx": {RCX, Size64, false},
	"dl": {RDX, Size8, false}, "dh": {RDX, Size8, true}, "dx": {RDX, Size16, false}, "edx": {RDX, Size32, false}, "rdx": {RDX, Size64, false},
	"bl": {RBX, Size8, false}, "bh": {RBX, Size8, true}, "bx": {RBX, Size16, false}, "ebx": {RBX, Size32, false}, "rbx": {RBX, Size64, false},
	"spl": {RSP, Size8, false}, "sp": {RSP, Size16, false}, "esp": {RSP, Size32, false}, "rsp": {RSP, Size64, false},
	"bpl": {RBP, Size8, false}, "bp": {RBP, Size16, false}, "ebp": {RBP, Size32, false}, "rbp": {RBP, Size64, false},
	"sil": {RSI, Size8, false}, "si": {RSI, Size16, false}, "esi": {RSI, Size32, false}, "rsi": {RSI, Size64, false},
	"dil": {RDI, Size8, false}, "di": {RDI, Size16, false}, "edi": {RDI, Size32, false}, "rdi": {RDI, Size64, false},
	"r8b": {R8, Size8, false}, "r8w": {R8, Size16, false}, "r8d": {R8, Size32, false}, "r8": {R8, Size64, false},
	"r9b": {R9, Size8, false}, "r9w": {R9, Size16, false}, "r9d": {R9, Size32, false}, "r9": {R9, Size64, false},
	"r10b": {R10, Size8, false}, "r10w": {R10, Size16, false}, "r10d": {R10, Size32, false}, "r10": {R10, Size64, false},
	"r11b": {R11, Size8, false}, "r11w": {R11, Size16, false}, "r11d": {R11, Size32, false}, "r11": {R11, Size64, false},
	"r12b": {R12, Size8, false}, "r12w": {R12, Size16, false}, "r12d": {R12, Size32, false}, "r12": {R12, Size64, false},
	"r13b": {R13, Size8, false}, "r13w": {R13, Size16, false}, "r13d": {R13, Size32, false}, "r13": {R13, Size64, false},
	"r14b": {R14, Size8, false}, "r14w": {R14, Size16, false}, "r14d": {R14, Size32, false}, "r14": {R14, Size64, false},
	"r15b": {R15, Size8, false}, "r15w": {R15, Size16, false}, "r15d": {R15, Size32, false}, "r15": {R15, Size64, false},
}

// LookupRegister reports whether name is a register name, and if so its
// register number, width, and whether it addresses the AH/BH/CH/DH high
// byte view.
func LookupRegister(name string) (reg Register, size SizeCode, isHigh, ok bool) {
	e, ok := registerNames[name]
	return e.Reg, e.Size, e.IsHigh, ok
}

// IsReserved reports whether name cannot be used as a user label: register
// names and the size/pointer keywords.
func IsReserved(name string) bool {
	if _, ok := registerNames[name]; ok {
		return true
	}
	switch name {
	case "byte", "word", "dword", "qword", "oword", "tword", "zmmword", "ptr":
		return true
	}
	return false
}

// sizeKeywords maps an explicit-size directive keyword to its SizeCode,
// per the assembler's immediate/address parsers.
var sizeKeywords = map[string]SizeCode{
	"byte": Size8, "word": Size16, "dword": Size32, "qword": Size64,
}

func LookupSizeKeyword(name string) (SizeCode, bool) {
	s, ok := sizeKeywords[name]
	return s, ok
}
