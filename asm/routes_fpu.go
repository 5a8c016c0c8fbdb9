package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/csx64/csx64/isa"
)

// fpuOperandSpec is a parsed ST(i)-or-memory FPU operand.
type fpuOperandSpec struct {
	IsMem bool
	Addr  AddrOperand
	STIdx int
	Size  isa.SizeCode
}

// fpuZeroOperand names the mnemonics that act purely on ST(0) and carry
// no operand byte at all.
var fpuZeroOperand = map[string]bool{
	"fchs": true, "fabs": true, "fsqrt": true, "frndint": true,
	"fsin": true, "fcos": true, "f2xm1": true, "fpatan": true,
}

// parseFPUOperand accepts "st"/"st0".."st7"/"st(n)" for a stack register,
// or a memory operand carrying an explicit dword/qword size.
func parseFPUOperand(s string) (fpuOperandSpec, error) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)

	if lower == "st" {
		return fpuOperandSpec{STIdx: 0}, nil
	}
	if strings.HasPrefix(lower, "st(") && strings.HasSuffix(lower, ")") {
		n, err := strconv.Atoi(lower[3 : len(lower)-1])
		if err != nil || n < 0 || n > 7 {
			return fpuOperandSpec{}, fmt.Errorf("invalid ST index %q", s)
		}
		return fpuOperandSpec{STIdx: n}, nil
	}
	if strings.HasPrefix(lower, "st") && len(lower) == 3 {
		if n, err := strconv.Atoi(lower[2:3]); err == nil && n >= 0 && n <= 7 {
			return fpuOperandSpec{STIdx: n}, nil
		}
	}

	op, err := ParseOperand(s)
	if err != nil {
		return fpuOperandSpec{}, err
	}
	if op.Kind != OperandMem {
		return fpuOperandSpec{}, fmt.Errorf("FPU operand must be an ST register or a memory operand")
	}
	if !op.HasExplicitSize || (op.ExplicitSize != isa.Size32 && op.ExplicitSize != isa.Size64) {
		return fpuOperandSpec{}, fmt.Errorf("FPU memory operand requires an explicit dword or qword size")
	}
	return fpuOperandSpec{IsMem: true, Addr: op.AddrOp, Size: op.ExplicitSize}, nil
}

// emitFPUOperand writes the single fpuOperand byte fetchFPUOperand
// expects: high bit set plus a 2-bit size code for memory, or the clear
// high bit plus a 3-bit ST index otherwise.
func (a *Assembler) emitFPUOperand(spec fpuOperandSpec) error {
	if spec.IsMem {
		b := byte(0x80) | (byte(spec.Size) & 0x3)
		a.emitByte(b)
		return a.emitAddress(spec.Addr)
	}
	a.emitByte(byte(spec.STIdx) & 0x7)
	return nil
}

func makeFPURouter(name string, opcode byte) router {
	return func(a *Assembler, line Line) error {
		if fpuZeroOperand[name] {
			if len(line.Args) != 0 {
				return fmt.Errorf("%s takes no operands", name)
			}
			a.emitByte(opcode)
			return nil
		}
		if len(line.Args) != 1 {
			return fmt.Errorf("%s expects exactly one operand", name)
		}
		spec, err := parseFPUOperand(line.Args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		a.emitByte(opcode)
		return a.emitFPUOperand(spec)
	}
}
