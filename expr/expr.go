// Package expr implements the lazy, memoizing expression DAG shared by the
// assembler and linker: unresolved symbolic arithmetic that is evaluated
// once every referenced symbol is known, and rewritten in place as a leaf
// once it succeeds.
package expr

import (
	"fmt"
	"math"
)

// Kind enumerates every distinct node shape an Expr can take.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindToken

	Mul
	Div
	Mod
	Add
	Sub
	SL
	SR
	Less
	LessE
	Great
	GreatE
	Eq
	Neq
	BitAnd
	BitXor
	BitOr
	LogAnd
	LogOr
	NullCoalesce
	Condition
	Pair

	Neg
	BitNot
	LogNot
	IntCast
	FloatCast
)

var binaryKinds = map[Kind]bool{
	Mul: true, Div: true, Mod: true, Add: true, Sub: true, SL: true, SR: true,
	Less: true, LessE: true, Great: true, GreatE: true, Eq: true, Neq: true,
	BitAnd: true, BitXor: true, BitOr: true, LogAnd: true, LogOr: true,
	NullCoalesce: true, Condition: true, Pair: true,
}

var unaryKinds = map[Kind]bool{
	Neg: true, BitNot: true, LogNot: true, IntCast: true, FloatCast: true,
}

// Expr is one node of the expression DAG. Exactly one of the following
// holds: it is an evaluated leaf (Kind is KindInt or KindFloat, no
// children, no token); a token leaf (Kind is KindToken, no children); or
// an operator node with Left set and, for every kind in binaryKinds,
// Right also set.
type Expr struct {
	Kind  Kind
	Tok   string
	IVal  int64
	FVal  float64
	Left  *Expr
	Right *Expr
}

func Int(v int64) *Expr     { return &Expr{Kind: KindInt, IVal: v} }
func Float(v float64) *Expr { return &Expr{Kind: KindFloat, FVal: v} }
func Token(name string) *Expr { return &Expr{Kind: KindToken, Tok: name} }

func Un(op Kind, l *Expr) *Expr {
	if !unaryKinds[op] {
		panic(fmt.Sprintf("expr: %v is not a unary operator", op))
	}
	return &Expr{Kind: op, Left: l}
}

func Bin(op Kind, l, r *Expr) *Expr {
	if !binaryKinds[op] {
		panic(fmt.Sprintf("expr: %v is not a binary operator", op))
	}
	return &Expr{Kind: op, Left: l, Right: r}
}

// Ternary builds Condition(cond, Pair(then, els)), the spec's encoding of
// the `cond ? then : else` operator as two binary nodes.
func Ternary(cond, then, els *Expr) *Expr {
	return Bin(Condition, cond, Bin(Pair, then, els))
}

func (e *Expr) IsEvaluated() bool { return e.Kind == KindInt || e.Kind == KindFloat }
func (e *Expr) IsLeaf() bool      { return e.Kind == KindInt || e.Kind == KindFloat || e.Kind == KindToken }

// Clone makes a deep, independent copy of the subtree.
func (e *Expr) Clone() *Expr {
	if e == nil {
		return nil
	}
	c := &Expr{Kind: e.Kind, Tok: e.Tok, IVal: e.IVal, FVal: e.FVal}
	c.Left = e.Left.Clone()
	c.Right = e.Right.Clone()
	return c
}

// asFloat returns the node's value widened to float64, given it is evaluated.
func (e *Expr) asFloat() float64 {
	if e.Kind == KindFloat {
		return e.FVal
	}
	return float64(e.IVal)
}

func boolExpr(b bool) (int64, float64, bool) {
	if b {
		return 1, 0, false
	}
	return 0, 0, false
}

// Evaluate resolves the node to a concrete (integer or floating) value,
// memoizing the result into the node on success. symbols maps a token name
// to the Expr that defines it (as held by an object file's symbol table);
// visiting tracks token names currently being resolved further up the call
// stack so a cyclic definition is reported as "not yet resolvable" rather
// than looping forever.
func (e *Expr) Evaluate(symbols map[string]*Expr, visiting map[string]bool) (ival int64, fval float64, isFloat bool, err error) {
	switch e.Kind {
	case KindInt:
		return e.IVal, 0, false, nil
	case KindFloat:
		return 0, e.FVal, true, nil
	case KindToken:
		if iv, fv, isf, ok, lerr := parseLiteral(e.Tok); ok {
			if lerr != nil {
				return 0, 0, false, lerr
			}
			e.commit(iv, fv, isf)
			return iv, fv, isf, nil
		}
		def, ok := symbols[e.Tok]
		if !ok {
			return 0, 0, false, fmt.Errorf("unknown symbol %q", e.Tok)
		}
		if visiting[e.Tok] {
			return 0, 0, false, fmt.Errorf("cyclic definition of %q", e.Tok)
		}
		visiting[e.Tok] = true
		iv, fv, isf, derr := def.Evaluate(symbols, visiting)
		delete(visiting, e.Tok)
		if derr != nil {
			return 0, 0, false, derr
		}
		e.commit(iv, fv, isf)
		return iv, fv, isf, nil
	}

	if unaryKinds[e.Kind] {
		li, lf, lisf, err := e.Left.Evaluate(symbols, visiting)
		if err != nil {
			return 0, 0, false, err
		}
		iv, fv, isf := evalUnary(e.Kind, li, lf, lisf)
		e.commit(iv, fv, isf)
		return iv, fv, isf, nil
	}

	// Binary (and ternary, modeled as nested binaries).
	li, lf, lisf, err := e.Left.Evaluate(symbols, visiting)
	if err != nil {
		return 0, 0, false, err
	}
	// Condition/Pair: the spec requires both branches to still evaluate
	// for side-effect symmetry, but only the chosen branch's value and
	// "isFloat"-ness is produced.
	if e.Kind == Condition {
		pair := e.Right
		thenV, thenF, thenIsF, terr := pair.Left.Evaluate(symbols, visiting)
		if terr != nil {
			return 0, 0, false, terr
		}
		elseV, elseF, elseIsF, eerr := pair.Right.Evaluate(symbols, visiting)
		if eerr != nil {
			return 0, 0, false, eerr
		}
		cond := li != 0
		if lisf {
			cond = lf != 0
		}
		var iv, fv int64
		var fv2 float64
		var isf bool
		if cond {
			iv, fv2, isf = thenV, thenF, thenIsF
		} else {
			iv, fv2, isf = elseV, elseF, elseIsF
		}
		_ = fv
		e.commit(iv, fv2, isf)
		return iv, fv2, isf, nil
	}

	ri, rf, risf, err := e.Right.Evaluate(symbols, visiting)
	if err != nil {
		return 0, 0, false, err
	}
	iv, fv, isf, everr := evalBinary(e.Kind, li, lf, lisf, ri, rf, risf)
	if everr != nil {
		return 0, 0, false, everr
	}
	e.commit(iv, fv, isf)
	return iv, fv, isf, nil
}

// commit rewrites the node in place as an evaluated leaf.
func (e *Expr) commit(iv int64, fv float64, isFloat bool) {
	e.Left, e.Right, e.Tok = nil, nil, ""
	if isFloat {
		e.Kind, e.FVal = KindFloat, fv
	} else {
		e.Kind, e.IVal = KindInt, iv
	}
}

func evalUnary(op Kind, li int64, lf float64, lisf bool) (int64, float64, bool) {
	switch op {
	case Neg:
		if lisf {
			return 0, -lf, true
		}
		return -li, 0, false
	case BitNot:
		return ^li, 0, false
	case LogNot:
		v := li == 0
		if lisf {
			v = lf == 0
		}
		iv, fv, isf := boolExpr(v)
		return iv, fv, isf
	case IntCast:
		if lisf {
			return int64(lf), 0, false
		}
		return li, 0, false
	case FloatCast:
		if lisf {
			return 0, lf, true
		}
		return 0, float64(li), true
	}
	panic("expr: unhandled unary op")
}

func evalBinary(op Kind, li int64, lf float64, lisf bool, ri int64, rf float64, risf bool) (int64, float64, bool, error) {
	isFloat := lisf || risf
	lF, rF := lf, rf
	if !lisf {
		lF = float64(li)
	}
	if !risf {
		rF = float64(ri)
	}

	switch op {
	case Mul:
		if isFloat {
			return 0, lF * rF, true, nil
		}
		return li * ri, 0, false, nil
	case Div:
		if isFloat {
			return 0, lF / rF, true, nil
		}
		if ri == 0 {
			return 0, 0, false, nil // faithful reproduction: no early trap
		}
		return li / ri, 0, false, nil
	case Mod:
		if isFloat {
			return 0, math.Remainder(lF, rF), true, nil
		}
		if ri == 0 {
			return 0, 0, false, nil
		}
		return li % ri, 0, false, nil
	case Add:
		if isFloat {
			return 0, lF + rF, true, nil
		}
		return li + ri, 0, false, nil
	case Sub:
		if isFloat {
			return 0, lF - rF, true, nil
		}
		return li - ri, 0, false, nil
	case SL:
		return li << uint(ri), 0, false, nil
	case SR:
		return li >> uint(ri), 0, false, nil
	case Less:
		if isFloat {
			iv, fv, f := boolExpr(lF < rF)
			return iv, fv, f, nil
		}
		iv, fv, f := boolExpr(li < ri)
		return iv, fv, f, nil
	case LessE:
		if isFloat {
			iv, fv, f := boolExpr(lF <= rF)
			return iv, fv, f, nil
		}
		iv, fv, f := boolExpr(li <= ri)
		return iv, fv, f, nil
	case Great:
		if isFloat {
			iv, fv, f := boolExpr(lF > rF)
			return iv, fv, f, nil
		}
		iv, fv, f := boolExpr(li > ri)
		return iv, fv, f, nil
	case GreatE:
		if isFloat {
			iv, fv, f := boolExpr(lF >= rF)
			return iv, fv, f, nil
		}
		iv, fv, f := boolExpr(li >= ri)
		return iv, fv, f, nil
	case Eq:
		if isFloat {
			iv, fv, f := boolExpr(lF == rF)
			return iv, fv, f, nil
		}
		iv, fv, f := boolExpr(li == ri)
		return iv, fv, f, nil
	case Neq:
		if isFloat {
			iv, fv, f := boolExpr(lF != rF)
			return iv, fv, f, nil
		}
		iv, fv, f := boolExpr(li != ri)
		return iv, fv, f, nil
	case BitAnd:
		return li & ri, 0, false, nil
	case BitXor:
		return li ^ ri, 0, false, nil
	case BitOr:
		return li | ri, 0, false, nil
	case LogAnd:
		lb := li != 0
		if lisf {
			lb = lf != 0
		}
		rb := ri != 0
		if risf {
			rb = rf != 0
		}
		iv, fv, f := boolExpr(lb && rb)
		return iv, fv, f, nil
	case LogOr:
		lb := li != 0
		if lisf {
			lb = lf != 0
		}
		rb := ri != 0
		if risf {
			rb = rf != 0
		}
		iv, fv, f := boolExpr(lb || rb)
		return iv, fv, f, nil
	case NullCoalesce:
		if lisf || li != 0 {
			return li, lf, lisf, nil
		}
		return ri, rf, risf, nil
	}
	return 0, 0, false, fmt.Errorf("expr: unhandled binary op %v", op)
}

// FindPath returns, for every occurrence of a KindToken leaf named tok, the
// chain of nodes from the root down to (and including) that leaf.
func (e *Expr) FindPath(tok string) [][]*Expr {
	var out [][]*Expr
	var walk func(n *Expr, path []*Expr)
	walk = func(n *Expr, path []*Expr) {
		if n == nil {
			return
		}
		path = append(path, n)
		if n.Kind == KindToken && n.Tok == tok {
			cp := make([]*Expr, len(path))
			copy(cp, path)
			out = append(out, cp)
			return
		}
		walk(n.Left, path)
		walk(n.Right, path)
	}
	walk(e, nil)
	return out
}

// Find reports whether tok occurs anywhere in the subtree.
func (e *Expr) Find(tok string) bool {
	if e == nil {
		return false
	}
	if e.Kind == KindToken && e.Tok == tok {
		return true
	}
	return e.Left.Find(tok) || e.Right.Find(tok)
}

// Resolve replaces every KindToken leaf named tok, anywhere in the subtree,
// with a clone of repl.
func (e *Expr) Resolve(tok string, repl *Expr) {
	if e == nil {
		return
	}
	if e.Left != nil {
		if e.Left.Kind == KindToken && e.Left.Tok == tok {
			e.Left = repl.Clone()
		} else {
			e.Left.Resolve(tok, repl)
		}
	}
	if e.Right != nil {
		if e.Right.Kind == KindToken && e.Right.Tok == tok {
			e.Right = repl.Clone()
		} else {
			e.Right.Resolve(tok, repl)
		}
	}
}
