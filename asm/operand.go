package asm

import (
	"fmt"
	"strings"

	"github.com/csx64/csx64/expr"
	"github.com/csx64/csx64/isa"
)

// OperandKind classifies a parsed instruction operand.
type OperandKind int

const (
	OperandReg OperandKind = iota
	OperandImm
	OperandMem
)

// AddrOperand is the parsed form of a bracketed memory operand: at most
// one base and one scaled index register plus a displacement expression
// (which may still contain unresolved symbols).
type AddrOperand struct {
	HasReg1 bool
	Reg1    isa.Register
	Mult    byte
	HasReg2 bool
	Reg2    isa.Register
	PtrSize isa.SizeCode
	Disp    *expr.Expr
}

// Operand is one fully parsed instruction argument.
type Operand struct {
	Kind    OperandKind
	Reg     isa.Register
	RegSize isa.SizeCode
	High    bool

	Imm             *expr.Expr
	HasExplicitSize bool
	ExplicitSize    isa.SizeCode

	AddrOp AddrOperand
}

// parseExprString tokenizes and parses a complete expression, requiring
// every token to be consumed.
func parseExprString(s string) (*expr.Expr, error) {
	toks, err := tokenizeExpr(s)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("empty expression")
	}
	p := expr.NewParser(toks)
	e, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	if !p.Done() {
		return nil, fmt.Errorf("unexpected trailing tokens in expression %q", s)
	}
	return e, nil
}

// splitSizePrefix consumes an optional leading size keyword (and, for
// address operands, an optional following PTR) from s.
func splitSizePrefix(s string) (isa.SizeCode, bool, string) {
	trimmed := strings.TrimLeft(s, " \t")
	word, rest := splitFirstWord(trimmed)
	size, ok := isa.LookupSizeKeyword(strings.ToLower(word))
	if !ok {
		return 0, false, s
	}
	rest = strings.TrimSpace(rest)
	if w2, r2 := splitFirstWord(rest); strings.EqualFold(w2, "ptr") {
		rest = strings.TrimSpace(r2)
	}
	return size, true, rest
}

// ParseOperand parses one comma-separated instruction argument: a bare
// register, a bracketed memory reference, or an immediate expression,
// each optionally preceded by an explicit size keyword.
func ParseOperand(raw string) (Operand, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Operand{}, fmt.Errorf("empty operand")
	}

	prefixSize, hasPrefixSize, body := splitSizePrefix(s)
	body = strings.TrimSpace(body)
	if body == "" {
		return Operand{}, fmt.Errorf("missing operand after size keyword in %q", raw)
	}

	if idx := strings.IndexByte(body, '['); idx >= 0 {
		if strings.TrimSpace(body[:idx]) != "" {
			return Operand{}, fmt.Errorf("unexpected text before '[' in %q", raw)
		}
		if !strings.HasSuffix(body, "]") {
			return Operand{}, fmt.Errorf("malformed address operand %q", raw)
		}
		inner := body[idx+1 : len(body)-1]
		addr, err := parseAddress(inner)
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OperandMem, AddrOp: addr, HasExplicitSize: hasPrefixSize, ExplicitSize: prefixSize}, nil
	}

	if hasPrefixSize {
		if _, _, _, ok := isa.LookupRegister(strings.ToLower(body)); ok {
			return Operand{}, fmt.Errorf("register %q cannot carry an explicit size prefix", body)
		}
	} else if reg, size, high, ok := isa.LookupRegister(strings.ToLower(body)); ok {
		return Operand{Kind: OperandReg, Reg: reg, RegSize: size, High: high}, nil
	}

	e, err := parseExprString(body)
	if err != nil {
		return Operand{}, fmt.Errorf("bad immediate %q: %w", raw, err)
	}
	return Operand{Kind: OperandImm, Imm: e, HasExplicitSize: hasPrefixSize, ExplicitSize: prefixSize}, nil
}

// collectTokenNames returns the distinct leaf token spellings appearing
// in e, in first-encountered order.
func collectTokenNames(e *expr.Expr) []string {
	seen := map[string]bool{}
	var out []string
	var walk func(n *expr.Expr)
	walk = func(n *expr.Expr) {
		if n == nil {
			return
		}
		if n.Kind == expr.KindToken {
			if !seen[n.Tok] {
				seen[n.Tok] = true
				out = append(out, n.Tok)
			}
			return
		}
		walk(n.Left)
		walk(n.Right)
	}
	walk(e)
	return out
}

// computeMultiplier folds the path from root to a register leaf into its
// net compile-time coefficient: Mul nodes multiply by the sibling's
// constant value, Sub/Neg flip sign, Add passes through unchanged. Any
// other operator wrapping the register is rejected.
func computeMultiplier(path []*expr.Expr) (int64, error) {
	k := int64(1)
	for i := len(path) - 2; i >= 0; i-- {
		parent := path[i]
		child := path[i+1]
		switch parent.Kind {
		case expr.Add:
			// no effect on magnitude or sign
		case expr.Sub:
			if parent.Right == child {
				k = -k
			}
		case expr.Neg:
			k = -k
		case expr.Mul:
			var other *expr.Expr
			if parent.Left == child {
				other = parent.Right
			} else {
				other = parent.Left
			}
			v, _, isFloat, err := other.Evaluate(map[string]*expr.Expr{}, map[string]bool{})
			if err != nil || isFloat {
				return 0, fmt.Errorf("register multiplier must be a compile-time integer constant")
			}
			k *= v
		default:
			return 0, fmt.Errorf("register used under an unsupported operator in an address expression")
		}
	}
	return k, nil
}

// replaceToken replaces every occurrence of the token leaf named tok in e
// with a clone of repl, including the case where e itself is that leaf
// (which expr.Resolve, a children-only rewrite, cannot reach).
func replaceToken(e *expr.Expr, tok string, repl *expr.Expr) {
	if e.Kind == expr.KindToken && e.Tok == tok {
		clone := repl.Clone()
		e.Kind, e.Tok, e.IVal, e.FVal, e.Left, e.Right = clone.Kind, clone.Tok, clone.IVal, clone.FVal, clone.Left, clone.Right
		return
	}
	e.Resolve(tok, repl)
}

func zeroToken(e *expr.Expr, tok string) {
	replaceToken(e, tok, expr.Int(0))
}

func validMult(k int64) (byte, error) {
	switch k {
	case 1, 2, 4, 8:
		return byte(k), nil
	}
	return 0, fmt.Errorf("register multiplier must be 1, 2, 4, or 8, got %d", k)
}

// parseAddress implements the bracketed-expression register-extraction
// algorithm: parse the contents as an ordinary expression, then for every
// CPU register name found, fold its occurrences' multipliers and zero out
// its subtrees, leaving a pure displacement expression.
func parseAddress(inner string) (AddrOperand, error) {
	e, err := parseExprString(inner)
	if err != nil {
		return AddrOperand{}, fmt.Errorf("bad address expression %q: %w", inner, err)
	}

	type regHit struct {
		name string
		reg  isa.Register
		size isa.SizeCode
		mult int64
	}
	var hits []regHit
	for _, name := range collectTokenNames(e) {
		reg, size, high, ok := isa.LookupRegister(strings.ToLower(name))
		if !ok || high {
			continue
		}
		paths := e.FindPath(name)
		var total int64
		for _, path := range paths {
			k, err := computeMultiplier(path)
			if err != nil {
				return AddrOperand{}, fmt.Errorf("address expression %q: %w", inner, err)
			}
			total += k
		}
		hits = append(hits, regHit{name: name, reg: reg, size: size, mult: total})
	}

	if len(hits) > 2 {
		return AddrOperand{}, fmt.Errorf("address expression %q uses more than two registers", inner)
	}
	nonUnit := 0
	for _, h := range hits {
		if h.mult != 1 {
			nonUnit++
		}
	}
	if nonUnit > 1 {
		return AddrOperand{}, fmt.Errorf("address expression %q has more than one scaled register", inner)
	}

	var size isa.SizeCode
	haveSize := false
	for _, h := range hits {
		if h.size == isa.Size8 {
			return AddrOperand{}, fmt.Errorf("address expression %q: an 8-bit register cannot be used in addressing", inner)
		}
		if !haveSize {
			size, haveSize = h.size, true
		} else if size != h.size {
			return AddrOperand{}, fmt.Errorf("address expression %q mixes register sizes", inner)
		}
	}
	if !haveSize {
		size = isa.Size64
	}

	for _, h := range hits {
		zeroToken(e, h.name)
	}

	// The scaled register (if any) always becomes Reg1, since emitAddress
	// only ever encodes a multiplier for Reg1; reorder hits so it comes
	// first regardless of where it appeared in the expression.
	for i, h := range hits {
		if h.mult != 1 && i != 0 {
			hits[0], hits[i] = hits[i], hits[0]
			break
		}
	}

	addr := AddrOperand{PtrSize: size, Disp: e}
	reg1Set, reg2Set := false, false
	for _, h := range hits {
		if !reg1Set {
			m := byte(1)
			if h.mult != 1 {
				var err error
				m, err = validMult(h.mult)
				if err != nil {
					return AddrOperand{}, fmt.Errorf("address expression %q: %w", inner, err)
				}
			}
			addr.HasReg1, addr.Reg1, addr.Mult = true, h.reg, m
			reg1Set = true
		} else if !reg2Set {
			addr.HasReg2, addr.Reg2 = true, h.reg
			reg2Set = true
		}
	}
	return addr, nil
}

// operandSize returns the data width an operand carries on its own: a
// register's alias size, or a memory/immediate operand's explicit size
// keyword if one was given.
func operandSize(o Operand) (isa.SizeCode, bool) {
	switch o.Kind {
	case OperandReg:
		return o.RegSize, true
	case OperandMem, OperandImm:
		if o.HasExplicitSize {
			return o.ExplicitSize, true
		}
	}
	return 0, false
}

// resolveSize determines the single data width an instruction operates
// at from whichever of its operands declare one, erroring on conflicts
// or on a size that cannot be inferred at all.
func resolveSize(ops ...Operand) (isa.SizeCode, error) {
	var size isa.SizeCode
	have := false
	for _, o := range ops {
		if s, ok := operandSize(o); ok {
			if have && s != size {
				return 0, fmt.Errorf("operand size mismatch")
			}
			size, have = s, true
		}
	}
	if !have {
		return 0, fmt.Errorf("instruction size cannot be inferred; add an explicit size keyword")
	}
	return size, nil
}
