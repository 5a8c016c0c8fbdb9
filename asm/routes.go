package asm

import (
	"fmt"

	"github.com/csx64/csx64/expr"
	"github.com/csx64/csx64/isa"
)

// router encodes one instruction line into the current segment.
type router func(a *Assembler, line Line) error

var routers map[string]router

func init() {
	routers = map[string]router{}
	for _, op := range isa.AllOps() {
		name, opcode := op.Name, op.Opcode
		switch op.Format {
		case isa.FormatNone:
			routers[name] = makeNoneRouter(name)
		case isa.FormatBinary:
			routers[name] = makeBinaryRouter(name, opcode)
		case isa.FormatUnary:
			routers[name] = makeUnaryRouter(name, opcode)
		case isa.FormatTernary:
			routers[name] = makeTernaryRouter(opcode)
		case isa.FormatShift:
			routers[name] = makeShiftRouter(opcode)
		case isa.FormatMOV:
			routers[name] = makeMovRouter(opcode)
		case isa.FormatMOVxX:
			routers[name] = makeMovxXRouter(name, opcode)
		case isa.FormatXCHG:
			routers[name] = makeXchgRouter(opcode)
		case isa.FormatMOVcc:
			routers[name] = makeMovccRouter(opcode)
		case isa.FormatStack:
			routers[name] = makeStackRouter(opcode)
		case isa.FormatJump:
			routers[name] = makeJumpRouter(opcode)
		case isa.FormatLea:
			routers[name] = makeLeaRouter(opcode)
		case isa.FormatStringOp:
			routers[name] = makeStringOpRouter(name, opcode)
		case isa.FormatFPU:
			routers[name] = makeFPURouter(name, opcode)
		case isa.FormatVPU:
			routers[name] = makeVPURouter(name, opcode)
		case isa.FormatIO:
			routers[name] = makeIORouter(name, opcode)
		}
	}
}

func parseOperands(line Line, n int) ([]Operand, error) {
	if len(line.Args) != n {
		return nil, fmt.Errorf("%s expects %d operand(s), got %d", line.Op, n, len(line.Args))
	}
	ops := make([]Operand, n)
	for i, arg := range line.Args {
		o, err := ParseOperand(arg)
		if err != nil {
			return nil, err
		}
		ops[i] = o
	}
	return ops, nil
}

func binaryMode(dest, src Operand) (isa.OperandMode, error) {
	switch {
	case dest.Kind == OperandReg && src.Kind == OperandReg:
		return isa.ModeRegReg, nil
	case dest.Kind == OperandReg && src.Kind == OperandImm:
		return isa.ModeRegImm, nil
	case dest.Kind == OperandReg && src.Kind == OperandMem:
		return isa.ModeRegMem, nil
	case dest.Kind == OperandMem && src.Kind == OperandReg:
		return isa.ModeMemReg, nil
	case dest.Kind == OperandMem && src.Kind == OperandImm:
		return isa.ModeMemImm, nil
	}
	return 0, fmt.Errorf("unsupported operand combination")
}

func (a *Assembler) emitBinarySource(src Operand, mode isa.OperandMode, size isa.SizeCode) error {
	switch mode {
	case isa.ModeRegReg, isa.ModeMemReg:
		a.emitByte(byte(src.Reg))
		return nil
	case isa.ModeRegImm, isa.ModeMemImm:
		return a.emitImmOrHole(src.Imm, size)
	case isa.ModeRegMem:
		return a.emitAddress(src.AddrOp)
	}
	return fmt.Errorf("unsupported source operand mode")
}

// makeBinaryRouter handles the shared two-operand form: opcode, settings
// byte, dest operand, source operand. `cmp r, 0` folds to the dedicated
// cmpz opcode, mirroring the decoder's own canonical reduction.
func makeBinaryRouter(name string, opcode byte) router {
	return func(a *Assembler, line Line) error {
		ops, err := parseOperands(line, 2)
		if err != nil {
			return err
		}
		dest, src := ops[0], ops[1]

		if name == "cmp" && src.Kind == OperandImm {
			if v, _, isFloat, err := src.Imm.Evaluate(map[string]*expr.Expr{}, map[string]bool{}); err == nil && !isFloat && v == 0 {
				if cmpz, ok := isa.Lookup("cmpz"); ok {
					return emitUnaryLike(a, "cmpz", cmpz.Opcode, dest)
				}
			}
		}

		mode, err := binaryMode(dest, src)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		size, err := resolveSize(dest, src)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		settings := isa.BinarySettings{Mode: mode, Size: size, High: dest.Kind == OperandReg && dest.High}
		a.emitByte(opcode)
		a.emitByte(settings.Encode())
		if err := a.emitDestOperand(dest); err != nil {
			return err
		}
		return a.emitBinarySource(src, mode, size)
	}
}

func emitUnaryLike(a *Assembler, name string, opcode byte, dest Operand) error {
	size, err := resolveSize(dest)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	mode := isa.ModeRegReg
	if dest.Kind == OperandMem {
		mode = isa.ModeMemReg
	}
	settings := isa.BinarySettings{Mode: mode, Size: size, High: dest.Kind == OperandReg && dest.High}
	a.emitByte(opcode)
	a.emitByte(settings.Encode())
	return a.emitDestOperand(dest)
}

func makeUnaryRouter(name string, opcode byte) router {
	return func(a *Assembler, line Line) error {
		ops, err := parseOperands(line, 1)
		if err != nil {
			return err
		}
		return emitUnaryLike(a, name, opcode, ops[0])
	}
}

// makeTernaryRouter handles imul3: dest (register), src (register or
// memory), imm. Layout: opcode, settings, dest reg byte, immediate, src.
func makeTernaryRouter(opcode byte) router {
	return func(a *Assembler, line Line) error {
		ops, err := parseOperands(line, 3)
		if err != nil {
			return err
		}
		dest, src, imm := ops[0], ops[1], ops[2]
		if dest.Kind != OperandReg {
			return fmt.Errorf("imul3: destination must be a register")
		}
		if imm.Kind != OperandImm {
			return fmt.Errorf("imul3: third operand must be an immediate")
		}
		var mode isa.OperandMode
		switch src.Kind {
		case OperandReg:
			mode = isa.ModeRegReg
		case OperandMem:
			mode = isa.ModeRegMem
		default:
			return fmt.Errorf("imul3: second operand must be a register or memory")
		}
		size, err := resolveSize(dest, src)
		if err != nil {
			return fmt.Errorf("imul3: %w", err)
		}
		settings := isa.BinarySettings{Mode: mode, Size: size, High: dest.High}
		a.emitByte(opcode)
		a.emitByte(settings.Encode())
		a.emitByte(byte(dest.Reg))
		if err := a.emitImmOrHole(imm.Imm, size); err != nil {
			return err
		}
		if src.Kind == OperandMem {
			return a.emitAddress(src.AddrOp)
		}
		a.emitByte(byte(src.Reg))
		return nil
	}
}

// makeShiftRouter handles shl/shr/sar/etc: dest, count (cl or a
// compile-time constant). Layout: opcode, settings, dest, count byte.
func makeShiftRouter(opcode byte) router {
	return func(a *Assembler, line Line) error {
		ops, err := parseOperands(line, 2)
		if err != nil {
			return err
		}
		dest, cnt := ops[0], ops[1]
		size, err := resolveSize(dest)
		if err != nil {
			return fmt.Errorf("shift: %w", err)
		}
		mode := isa.ModeRegReg
		if dest.Kind == OperandMem {
			mode = isa.ModeMemReg
		}
		settings := isa.BinarySettings{Mode: mode, Size: size, High: dest.Kind == OperandReg && dest.High}
		a.emitByte(opcode)
		a.emitByte(settings.Encode())
		if err := a.emitDestOperand(dest); err != nil {
			return err
		}

		var ss isa.ShiftSettings
		switch {
		case cnt.Kind == OperandReg:
			if cnt.Reg != isa.RCX || cnt.RegSize != isa.Size8 || cnt.High {
				return fmt.Errorf("shift: register count operand must be cl")
			}
			ss.UseCL = true
		case cnt.Kind == OperandImm:
			v, _, isFloat, err := cnt.Imm.Evaluate(a.file.Symbols, map[string]bool{})
			if err != nil || isFloat {
				return fmt.Errorf("shift: count must be a compile-time integer constant")
			}
			ss.Count = byte(v) & 0x3F
		default:
			return fmt.Errorf("shift: count operand must be a register or immediate")
		}
		a.emitByte(ss.Encode())
		return nil
	}
}

func makeMovRouter(opcode byte) router {
	return func(a *Assembler, line Line) error {
		ops, err := parseOperands(line, 2)
		if err != nil {
			return err
		}
		dest, src := ops[0], ops[1]
		mode, err := binaryMode(dest, src)
		if err != nil {
			return fmt.Errorf("mov: %w", err)
		}
		size, err := resolveSize(dest, src)
		if err != nil {
			return fmt.Errorf("mov: %w", err)
		}
		settings := isa.BinarySettings{Mode: mode, Size: size, High: dest.Kind == OperandReg && dest.High}
		a.emitByte(opcode)
		a.emitByte(settings.Encode())
		if err := a.emitDestOperand(dest); err != nil {
			return err
		}
		return a.emitBinarySource(src, mode, size)
	}
}

func operandSizeRequired(o Operand, ctx string) (isa.SizeCode, error) {
	if s, ok := operandSize(o); ok {
		return s, nil
	}
	return 0, fmt.Errorf("%s: source operand size must be explicit", ctx)
}

// makeMovxXRouter handles movzx/movsx: dest register (its width is the
// destination size), a one-byte source-width tag, then the source.
func makeMovxXRouter(name string, opcode byte) router {
	return func(a *Assembler, line Line) error {
		ops, err := parseOperands(line, 2)
		if err != nil {
			return err
		}
		dest, src := ops[0], ops[1]
		if dest.Kind != OperandReg {
			return fmt.Errorf("%s: destination must be a register", name)
		}
		srcSize, err := operandSizeRequired(src, name)
		if err != nil {
			return err
		}
		mode := isa.ModeRegReg
		if src.Kind == OperandMem {
			mode = isa.ModeRegMem
		}
		settings := isa.BinarySettings{Mode: mode, Size: dest.RegSize, High: dest.High}
		a.emitByte(opcode)
		a.emitByte(settings.Encode())
		a.emitByte(byte(srcSize) & 0x3)
		a.emitByte(byte(dest.Reg))
		if src.Kind == OperandMem {
			return a.emitAddress(src.AddrOp)
		}
		a.emitByte(byte(src.Reg))
		return nil
	}
}

// makeXchgRouter handles xchg: at most one operand may be memory; the
// other is normalized into the register-byte slot.
func makeXchgRouter(opcode byte) router {
	return func(a *Assembler, line Line) error {
		ops, err := parseOperands(line, 2)
		if err != nil {
			return err
		}
		dest, src := ops[0], ops[1]
		if src.Kind != OperandReg {
			if dest.Kind != OperandReg {
				return fmt.Errorf("xchg: at least one operand must be a register")
			}
			dest, src = src, dest
		}
		size, err := resolveSize(dest, src)
		if err != nil {
			return fmt.Errorf("xchg: %w", err)
		}
		mode := isa.ModeRegReg
		if dest.Kind == OperandMem {
			mode = isa.ModeMemReg
		}
		settings := isa.BinarySettings{Mode: mode, Size: size, High: dest.Kind == OperandReg && dest.High}
		a.emitByte(opcode)
		a.emitByte(settings.Encode())
		if err := a.emitDestOperand(dest); err != nil {
			return err
		}
		a.emitByte(byte(src.Reg))
		return nil
	}
}

// makeMovccRouter handles conditional moves: destination is always a
// register; layout matches mov otherwise.
func makeMovccRouter(opcode byte) router {
	return func(a *Assembler, line Line) error {
		ops, err := parseOperands(line, 2)
		if err != nil {
			return err
		}
		dest, src := ops[0], ops[1]
		if dest.Kind != OperandReg {
			return fmt.Errorf("cmov: destination must be a register")
		}
		mode, err := binaryMode(dest, src)
		if err != nil {
			return fmt.Errorf("cmov: %w", err)
		}
		size, err := resolveSize(dest, src)
		if err != nil {
			return fmt.Errorf("cmov: %w", err)
		}
		settings := isa.BinarySettings{Mode: mode, Size: size, High: dest.High}
		a.emitByte(opcode)
		a.emitByte(settings.Encode())
		a.emitByte(byte(dest.Reg))
		return a.emitBinarySource(src, mode, size)
	}
}

// makeStackRouter handles push/pop: single register-or-memory operand.
func makeStackRouter(opcode byte) router {
	return func(a *Assembler, line Line) error {
		ops, err := parseOperands(line, 1)
		if err != nil {
			return err
		}
		op := ops[0]
		if op.Kind == OperandImm {
			return fmt.Errorf("push/pop: immediate operands are not supported")
		}
		size, err := resolveSize(op)
		if err != nil {
			return fmt.Errorf("push/pop: %w", err)
		}
		mode := isa.ModeRegReg
		if op.Kind == OperandMem {
			mode = isa.ModeMemReg
		}
		settings := isa.BinarySettings{Mode: mode, Size: size, High: op.Kind == OperandReg && op.High}
		a.emitByte(opcode)
		a.emitByte(settings.Encode())
		return a.emitDestOperand(op)
	}
}

// makeJumpRouter handles jmp/call/jcc: opcode followed directly by a bare
// 8-byte absolute target, with no settings byte.
func makeJumpRouter(opcode byte) router {
	return func(a *Assembler, line Line) error {
		ops, err := parseOperands(line, 1)
		if err != nil {
			return err
		}
		op := ops[0]
		if op.Kind != OperandImm {
			return fmt.Errorf("jump target must be a label or immediate expression")
		}
		a.emitByte(opcode)
		return a.emitImmOrHole(op.Imm, isa.Size64)
	}
}

// makeLeaRouter handles lea: destination register, then a bare address
// with no settings byte.
func makeLeaRouter(opcode byte) router {
	return func(a *Assembler, line Line) error {
		ops, err := parseOperands(line, 2)
		if err != nil {
			return err
		}
		dest, src := ops[0], ops[1]
		if dest.Kind != OperandReg {
			return fmt.Errorf("lea: destination must be a register")
		}
		if src.Kind != OperandMem {
			return fmt.Errorf("lea: source must be a memory operand")
		}
		a.emitByte(opcode)
		a.emitByte(byte(dest.Reg))
		return a.emitAddress(src.AddrOp)
	}
}

// makeNoneRouter handles zero-operand control instructions such as
// nop/hlt/ret/syscall: just the opcode byte. String-op mnemonics go
// through makeStringOpRouter instead.
func makeNoneRouter(name string) router {
	return func(a *Assembler, line Line) error {
		if len(line.Args) != 0 {
			return fmt.Errorf("%s takes no operands", name)
		}
		op, _ := isa.Lookup(name)
		a.emitByte(op.Opcode)
		return nil
	}
}

// makeStringOpRouter handles movsb/stosb/rep_movsb/etc: the element size
// and looping behavior live entirely in the mnemonic and runtime state;
// the encoding is the bare opcode byte.
func makeStringOpRouter(name string, opcode byte) router {
	return func(a *Assembler, line Line) error {
		if len(line.Args) != 0 {
			return fmt.Errorf("%s takes no operands", name)
		}
		a.emitByte(opcode)
		return nil
	}
}
