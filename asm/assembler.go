package asm

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/csx64/csx64/expr"
	"github.com/csx64/csx64/isa"
	"github.com/csx64/csx64/obj"
)

// segKind enumerates the four segment directives an assembly source file
// may declare, each at most once. It carries one extra case (segBss)
// beyond obj.Segment, which has no backing byte slice.
type segKind int

const (
	segText segKind = iota
	segRodata
	segData
	segBss
)

// Assembler holds the running state of one source-to-object translation.
type Assembler struct {
	file         *obj.File
	seg          segKind
	segSeen      [4]bool
	lastNonlocal string
	line         uint32
}

// Assemble translates source into a clean object file, or returns the
// first format error encountered, annotated with its source line number.
func Assemble(source, filename string) (*obj.File, error) {
	a := &Assembler{file: obj.New()}
	scanner := bufio.NewScanner(strings.NewReader(source))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := uint32(0)
	for scanner.Scan() {
		lineNo++
		line, err := splitLine(scanner.Text(), lineNo)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		a.line = lineNo
		if err := a.assembleLine(line); err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if len(a.file.Text) == 0 && len(a.file.Rodata) == 0 && len(a.file.Data) == 0 && a.file.BssLen == 0 {
		return nil, fmt.Errorf("%s: %w", filename, asmErr(EmptyFile, lineNo, "file contains no emitted content"))
	}
	if err := a.finish(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return a.file, nil
}

func (a *Assembler) assembleLine(line Line) error {
	if err := a.assembleLineInner(line); err != nil {
		var ae *Error
		if errors.As(err, &ae) {
			return ae
		}
		return asmErr(FormatError, line.Num, "%v", err)
	}
	return nil
}

func (a *Assembler) assembleLineInner(line Line) error {
	if line.Op == "equ" {
		return a.handleEquLine(line)
	}
	if line.Label != "" {
		if err := a.defineLabel(line.Label); err != nil {
			return err
		}
	}
	if line.Op == "" {
		return nil
	}

	switch line.Op {
	case "global":
		return a.handleGlobal(line)
	case "extern":
		return a.handleExtern(line)
	case "segment", "section":
		return a.handleSegment(line)
	case "db":
		return a.handleData(line, isa.Size8)
	case "dw":
		return a.handleData(line, isa.Size16)
	case "dd":
		return a.handleData(line, isa.Size32)
	case "dq":
		return a.handleData(line, isa.Size64)
	case "resb":
		return a.handleRes(line, 1)
	case "resw":
		return a.handleRes(line, 2)
	case "resd":
		return a.handleRes(line, 4)
	case "resq":
		return a.handleRes(line, 8)
	}

	if a.seg == segBss {
		return fmt.Errorf("instructions are not valid in the .bss segment")
	}
	if line.Op == "imul" {
		return a.routeImul(line)
	}
	router, ok := routers[line.Op]
	if !ok {
		return asmErr(UnknownOp, a.line, "unknown instruction %q", line.Op)
	}
	return router(a, line)
}

func (a *Assembler) routeImul(line Line) error {
	var name string
	switch len(line.Args) {
	case 1:
		name = "imul1"
	case 3:
		name = "imul3"
	default:
		return fmt.Errorf("imul requires 1 or 3 operands")
	}
	return routers[name](a, line)
}

func (a *Assembler) handleEquLine(line Line) error {
	if line.Label == "" {
		return asmErr(ArgError, line.Num, "equ requires a label")
	}
	if len(line.Args) != 1 {
		return asmErr(ArgCount, line.Num, "equ takes exactly one argument")
	}
	name, err := a.rewriteAndValidate(line.Label)
	if err != nil {
		return err
	}
	if _, dup := a.file.Symbols[name]; dup {
		return asmErr(SymbolRedefinition, line.Num, "symbol %q redefined", name)
	}
	e, err := parseExprString(line.Args[0])
	if err != nil {
		return asmErr(FormatError, line.Num, "%v", err)
	}
	a.file.Symbols[name] = e
	if !isLocalLabel(line.Label) {
		a.lastNonlocal = name
	}
	return nil
}

func (a *Assembler) defineLabel(label string) error {
	name, err := a.rewriteAndValidate(label)
	if err != nil {
		return err
	}
	if _, dup := a.file.Symbols[name]; dup {
		return asmErr(SymbolRedefinition, a.line, "symbol %q redefined", name)
	}
	a.file.Symbols[name] = expr.Bin(expr.Add, expr.Token(segmentOffsetSymbol(a.seg)), expr.Int(a.offsetInSeg()))
	if !isLocalLabel(label) {
		a.lastNonlocal = name
	}
	return nil
}

func (a *Assembler) rewriteAndValidate(label string) (string, error) {
	if err := validateLabelName(label); err != nil {
		return "", asmErr(InvalidLabel, a.line, "%v", err)
	}
	name, err := resolveLabelName(label, a.lastNonlocal)
	if err != nil {
		return "", asmErr(InvalidLabel, a.line, "%v", err)
	}
	return name, nil
}

// segmentOffsetSymbol names the per-file segment offset symbol (this file's
// absolute base within seg, defined by the linker) that labels are built on.
func segmentOffsetSymbol(seg segKind) string {
	switch seg {
	case segRodata:
		return obj.OffsetRodata
	case segData:
		return obj.OffsetData
	case segBss:
		return obj.OffsetBss
	default:
		return obj.OffsetText
	}
}

func (a *Assembler) offsetInSeg() int64 {
	if a.seg == segBss {
		return int64(a.file.BssLen)
	}
	return int64(len(*a.currentSegBytes()))
}

func (a *Assembler) currentSegBytes() *[]byte {
	switch a.seg {
	case segText:
		return &a.file.Text
	case segRodata:
		return &a.file.Rodata
	case segData:
		return &a.file.Data
	}
	return nil
}

func (a *Assembler) objSeg() obj.Segment {
	switch a.seg {
	case segRodata:
		return obj.SegRodata
	case segData:
		return obj.SegData
	default:
		return obj.SegText
	}
}

func (a *Assembler) handleGlobal(line Line) error {
	for _, name := range line.Args {
		if err := a.file.AddGlobal(strings.TrimSpace(name)); err != nil {
			return err
		}
	}
	return nil
}

func (a *Assembler) handleExtern(line Line) error {
	for _, name := range line.Args {
		if err := a.file.AddExternal(strings.TrimSpace(name)); err != nil {
			return err
		}
	}
	return nil
}

func (a *Assembler) handleSegment(line Line) error {
	if len(line.Args) != 1 {
		return fmt.Errorf("%s requires exactly one argument", line.Op)
	}
	var seg segKind
	switch strings.ToLower(line.Args[0]) {
	case ".text":
		seg = segText
	case ".rodata":
		seg = segRodata
	case ".data":
		seg = segData
	case ".bss":
		seg = segBss
	default:
		return fmt.Errorf("unknown segment %q", line.Args[0])
	}
	if a.segSeen[seg] {
		return fmt.Errorf("segment %s specified more than once", line.Args[0])
	}
	a.segSeen[seg] = true
	a.seg = seg
	a.lastNonlocal = ""
	return nil
}

func isStringLiteral(s string) bool {
	return len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"'
}

func (a *Assembler) handleData(line Line, size isa.SizeCode) error {
	if a.seg == segBss {
		return fmt.Errorf("%s is not valid in the .bss segment", line.Op)
	}
	if len(line.Args) == 0 {
		return fmt.Errorf("%s requires at least one argument", line.Op)
	}
	for _, arg := range line.Args {
		if isStringLiteral(arg) {
			seg := a.currentSegBytes()
			*seg = append(*seg, []byte(arg[1:len(arg)-1])...)
			continue
		}
		e, err := parseExprString(arg)
		if err != nil {
			return err
		}
		if err := a.emitImmOrHole(e, size); err != nil {
			return err
		}
	}
	return nil
}

func (a *Assembler) handleRes(line Line, elemSize uint64) error {
	if len(line.Args) != 1 {
		return fmt.Errorf("%s requires exactly one argument", line.Op)
	}
	if a.seg != segBss {
		return fmt.Errorf("%s is only valid in the .bss segment", line.Op)
	}
	e, err := parseExprString(line.Args[0])
	if err != nil {
		return err
	}
	n, _, isFloat, err := e.Evaluate(a.file.Symbols, map[string]bool{})
	if err != nil || isFloat || n < 0 {
		return fmt.Errorf("%s count must be a non-negative compile-time integer", line.Op)
	}
	a.file.BssLen += uint64(n) * elemSize
	return nil
}

// emitByte appends a single byte to the current segment.
func (a *Assembler) emitByte(b byte) {
	seg := a.currentSegBytes()
	*seg = append(*seg, b)
}

// emitImmOrHole appends a size-byte placeholder for e and immediately
// attempts to resolve it; an expression that cannot yet be evaluated
// (a forward reference or an external symbol) is recorded as a hole for
// the linker to patch later.
func (a *Assembler) emitImmOrHole(e *expr.Expr, size isa.SizeCode) error {
	seg := a.currentSegBytes()
	if seg == nil {
		return fmt.Errorf("cannot emit data into the .bss segment")
	}
	n := size.Bytes()
	if n == 0 {
		return fmt.Errorf("invalid immediate size")
	}
	addr := uint64(len(*seg))
	placeholder := make([]byte, n)
	for i := range placeholder {
		placeholder[i] = 0xFF
	}
	*seg = append(*seg, placeholder...)

	h := &obj.Hole{Address: addr, Size: byte(n), Line: a.line, Expr: e}
	result, err := obj.TryPatchHole(*seg, a.file.Symbols, h)
	if err != nil {
		return err
	}
	if result == obj.PatchUnevaluated {
		a.file.Holes[a.objSeg()] = append(a.file.Holes[a.objSeg()], h)
	}
	return nil
}

// emitAddress writes the settings byte, the optional packed register
// byte, and the optional displacement (immediate or hole) for a memory
// operand, matching isa.EncodeAddress/DecodeAddressAdv byte for byte.
func (a *Assembler) emitAddress(ao AddrOperand) error {
	hasImm := !(ao.HasReg1 || ao.HasReg2) || !(ao.Disp.Kind == expr.KindInt && ao.Disp.IVal == 0)

	var mlog2 byte
	switch ao.Mult {
	case 2:
		mlog2 = 1
	case 4:
		mlog2 = 2
	case 8:
		mlog2 = 3
	}

	settings := byte(0)
	if hasImm {
		settings |= 1 << 7
	}
	settings |= (mlog2 & 0x3) << 4
	settings |= (byte(ao.PtrSize) & 0x3) << 2
	if ao.HasReg1 {
		settings |= 1 << 1
	}
	if ao.HasReg2 {
		settings |= 1 << 0
	}
	a.emitByte(settings)

	if ao.HasReg1 || ao.HasReg2 {
		a.emitByte(byte(ao.Reg1)<<4 | byte(ao.Reg2)&0xF)
	}
	if hasImm {
		return a.emitImmOrHole(ao.Disp, ao.PtrSize)
	}
	return nil
}

// emitDestOperand writes a register byte or a full address, matching
// whichever shape the shared binary/unary/ternary/shift/mov/xchg header
// formats expect for their destination operand.
func (a *Assembler) emitDestOperand(dest Operand) error {
	if dest.Kind == OperandReg {
		a.emitByte(byte(dest.Reg))
		return nil
	}
	return a.emitAddress(dest.AddrOp)
}

// finish runs the end-of-file passes: a final hole-resolution sweep,
// integrity verification, and size minimization.
func (a *Assembler) finish() error {
	for seg := obj.SegText; seg <= obj.SegData; seg++ {
		segBytes := a.file.SegmentBytes(seg)
		remaining, err := obj.ResolveHoles(*segBytes, a.file.Symbols, a.file.Holes[seg])
		if err != nil {
			return err
		}
		a.file.Holes[seg] = remaining
	}
	if err := a.file.CheckIntegrity(); err != nil {
		return err
	}
	a.minimizeSize()
	a.file.Clean = true
	return nil
}

// minimizeSize evaluates every internal symbol eagerly, drops non-global
// symbols that turned out to be concrete values, and renames the
// remainder to short hexadecimal handles.
func (a *Assembler) minimizeSize() {
	for _, def := range a.file.Symbols {
		def.Evaluate(a.file.Symbols, map[string]bool{})
	}

	var drop []string
	for name, def := range a.file.Symbols {
		if _, isGlobal := a.file.Global[name]; isGlobal {
			continue
		}
		if def.IsEvaluated() {
			drop = append(drop, name)
		}
	}
	for _, name := range drop {
		delete(a.file.Symbols, name)
	}

	names := make([]string, 0, len(a.file.Symbols))
	for name := range a.file.Symbols {
		if _, isGlobal := a.file.Global[name]; !isGlobal {
			names = append(names, name)
		}
	}
	for i, name := range names {
		handle := fmt.Sprintf("#%x", i)
		if handle == name {
			continue
		}
		def := a.file.Symbols[name]
		delete(a.file.Symbols, name)
		a.file.Symbols[handle] = def
		a.renameEverywhere(name, handle)
	}
}

func (a *Assembler) renameEverywhere(from, to string) {
	repl := expr.Token(to)
	for _, def := range a.file.Symbols {
		replaceToken(def, from, repl)
	}
	for _, holes := range a.file.Holes {
		for _, h := range holes {
			replaceToken(h.Expr, from, repl)
		}
	}
}
