package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/csx64/csx64/isa"
)

// simdOperandSpec is a parsed vector-register-or-memory VPU operand.
type simdOperandSpec struct {
	IsMem bool
	Addr  AddrOperand
	Reg   int
}

// parseSIMDOperand accepts "zmm0".."zmm31" for a vector register, or a
// memory operand.
func parseSIMDOperand(s string) (simdOperandSpec, error) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "zmm") {
		if n, err := strconv.Atoi(lower[3:]); err == nil && n >= 0 && n < 32 {
			return simdOperandSpec{Reg: n}, nil
		}
	}
	op, err := ParseOperand(s)
	if err != nil {
		return simdOperandSpec{}, err
	}
	if op.Kind != OperandMem {
		return simdOperandSpec{}, fmt.Errorf("SIMD operand must be a zmm register or a memory operand")
	}
	return simdOperandSpec{IsMem: true, Addr: op.AddrOp}, nil
}

// emitSIMDOperand writes the single simdOperand byte fetchSIMDOperand
// expects: the high bit set for memory (followed by the address), or the
// clear high bit plus a 5-bit register index otherwise.
func (a *Assembler) emitSIMDOperand(spec simdOperandSpec) error {
	if spec.IsMem {
		a.emitByte(0x80)
		return a.emitAddress(spec.Addr)
	}
	a.emitByte(byte(spec.Reg) & 0x1F)
	return nil
}

func elemSizeForSIMD(name string) isa.SizeCode {
	if strings.HasSuffix(name, "ps") {
		return isa.Size32
	}
	return isa.Size64
}

func parseCmpPredicate(s string) (byte, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "eq", "0":
		return 0, nil
	case "lt", "1":
		return 1, nil
	case "le", "2":
		return 2, nil
	case "unord", "3":
		return 3, nil
	}
	return 0, fmt.Errorf("unknown compare predicate %q", s)
}

// makeVPURouter handles the vector move and per-lane ALU family: opcode,
// settings byte, dest operand, src operand (cmpps additionally takes a
// trailing predicate argument folded into the settings byte's mode bits).
func makeVPURouter(name string, opcode byte) router {
	return func(a *Assembler, line Line) error {
		n := 2
		if name == "cmpps" {
			n = 3
		}
		if len(line.Args) != n {
			return fmt.Errorf("%s expects %d operand(s)", name, n)
		}
		destSpec, err := parseSIMDOperand(line.Args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		srcSpec, err := parseSIMDOperand(line.Args[1])
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		var mode byte
		if name == "cmpps" {
			mode, err = parseCmpPredicate(line.Args[2])
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
		settings := isa.SIMDSettings{ElemSize: elemSizeForSIMD(name), Mode: mode}
		a.emitByte(opcode)
		a.emitByte(settings.Encode())
		if err := a.emitSIMDOperand(destSpec); err != nil {
			return err
		}
		return a.emitSIMDOperand(srcSpec)
	}
}

// makeIORouter handles in/out: opcode, a 16-bit port immediate, a 1-byte
// size tag, then the register byte.
func makeIORouter(name string, opcode byte) router {
	isIn := name == "in"
	return func(a *Assembler, line Line) error {
		ops, err := parseOperands(line, 2)
		if err != nil {
			return err
		}
		var regOp, portOp Operand
		if isIn {
			regOp, portOp = ops[0], ops[1]
		} else {
			portOp, regOp = ops[0], ops[1]
		}
		if regOp.Kind != OperandReg {
			return fmt.Errorf("%s: register operand required", name)
		}
		if portOp.Kind != OperandImm {
			return fmt.Errorf("%s: port must be an immediate", name)
		}
		a.emitByte(opcode)
		if err := a.emitImmOrHole(portOp.Imm, isa.Size16); err != nil {
			return err
		}
		a.emitByte(byte(regOp.RegSize) & 0x3)
		a.emitByte(byte(regOp.Reg))
		return nil
	}
}
