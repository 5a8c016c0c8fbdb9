package expr

// PopulateAddSub flattens e into two multisets of leaves {add, sub} such
// that e is structurally equal to (Σadd − Σsub), recursing through Add,
// Sub, and unary Neg; any other node is treated as an opaque leaf of the
// add side (or the sub side, if it was reached through a negation).
func PopulateAddSub(e *Expr) (add, sub []*Expr) {
	var walk func(n *Expr, negated bool)
	walk = func(n *Expr, negated bool) {
		switch {
		case n.Kind == Add:
			walk(n.Left, negated)
			walk(n.Right, negated)
		case n.Kind == Sub:
			walk(n.Left, negated)
			walk(n.Right, !negated)
		case n.Kind == Neg:
			walk(n.Left, !negated)
		default:
			if negated {
				sub = append(sub, n)
			} else {
				add = append(add, n)
			}
		}
	}
	walk(e, false)
	return add, sub
}

// originTerm splits a leaf of the form `S`, `S + k`, or `k + S` into the
// origin token name S and the constant k (0 if bare). ok is false if the
// leaf does not reference S at all, or references it in a shape more
// complex than a single additive constant.
func originTerm(n *Expr, origin string) (k int64, ok bool) {
	if n.Kind == KindToken && n.Tok == origin {
		return 0, true
	}
	if n.Kind != Add {
		return 0, false
	}
	l, r := n.Left, n.Right
	isOrigin := func(x *Expr) bool { return x.Kind == KindToken && x.Tok == origin }
	switch {
	case isOrigin(l) && r.Kind == KindInt:
		return r.IVal, true
	case isOrigin(r) && l.Kind == KindInt:
		return l.IVal, true
	}
	return 0, false
}

// Ptrdiff performs the origin-cancellation reduction described in the
// expression engine's specification: for the named segment-origin token,
// walk paired items from add and sub and, whenever both multisets contain
// a term referencing the origin, cancel the origin contribution from both,
// leaving only the residual integer constants. Returns the reduced
// multisets; entries that did not participate in a cancellation are passed
// through unchanged (as clones, so the caller may freely mutate the
// result).
func Ptrdiff(add, sub []*Expr, origin string) (newAdd, newSub []*Expr) {
	usedAdd := make([]bool, len(add))
	usedSub := make([]bool, len(sub))

	for i := range add {
		if usedAdd[i] {
			continue
		}
		ak, aok := originTerm(add[i], origin)
		if !aok {
			continue
		}
		for j := range sub {
			if usedSub[j] {
				continue
			}
			sk, sok := originTerm(sub[j], origin)
			if !sok {
				continue
			}
			// Cancel the origin from both sides; keep only the residual
			// constants (clone from the list each term actually came
			// from -- add[i]'s constant stays on the add side, sub[j]'s
			// stays on the sub side).
			usedAdd[i], usedSub[j] = true, true
			if ak != 0 {
				newAdd = append(newAdd, Int(ak))
			}
			if sk != 0 {
				newSub = append(newSub, Int(sk))
			}
			break
		}
	}
	for i, n := range add {
		if !usedAdd[i] {
			newAdd = append(newAdd, n.Clone())
		}
	}
	for j, n := range sub {
		if !usedSub[j] {
			newSub = append(newSub, n.Clone())
		}
	}
	return newAdd, newSub
}

// Recombine rebuilds a single Expr equal to (Σadd − Σsub).
func Recombine(add, sub []*Expr) *Expr {
	var sum *Expr
	for _, n := range add {
		if sum == nil {
			sum = n
		} else {
			sum = Bin(Add, sum, n)
		}
	}
	if sum == nil {
		sum = Int(0)
	}
	for _, n := range sub {
		sum = Bin(Sub, sum, n)
	}
	return sum
}
