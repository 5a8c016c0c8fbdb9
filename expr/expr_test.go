package expr

import (
	"bytes"
	"testing"
)

func evalInt(t *testing.T, e *Expr, symbols map[string]*Expr) int64 {
	t.Helper()
	iv, fv, isf, err := e.Evaluate(symbols, map[string]bool{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if isf {
		t.Fatalf("expected integer result, got float %v", fv)
	}
	return iv
}

func TestEvaluate_Arithmetic(t *testing.T) {
	e := Bin(Add, Bin(Mul, Token("3"), Token("4")), Token("5"))
	if got := evalInt(t, e, nil); got != 17 {
		t.Fatalf("3*4+5 = %d, want 17", got)
	}
}

func TestEvaluate_SymbolLookup(t *testing.T) {
	symbols := map[string]*Expr{
		"foo": Bin(Add, Token("foo_base"), Token("2")),
		"foo_base": Token("10"),
	}
	e := Token("foo")
	if got := evalInt(t, e, symbols); got != 12 {
		t.Fatalf("foo = %d, want 12", got)
	}
}

func TestEvaluate_CycleIsError(t *testing.T) {
	symbols := map[string]*Expr{
		"a": Token("b"),
		"b": Token("a"),
	}
	_, _, _, err := Token("a").Evaluate(symbols, map[string]bool{})
	if err == nil {
		t.Fatalf("expected cycle error, got nil")
	}
}

func TestEvaluate_Memoizes(t *testing.T) {
	e := Bin(Add, Token("1"), Token("1"))
	evalInt(t, e, nil)
	if e.Kind != KindInt || e.IVal != 2 {
		t.Fatalf("node was not memoized in place: %+v", e)
	}
}

func TestParser_Precedence(t *testing.T) {
	p := NewParser([]string{"2", "+", "3", "*", "4"})
	e, err := p.ParseExpr()
	if err != nil {
		t.Fatalf("ParseExpr: %v", err)
	}
	if got := evalInt(t, e, nil); got != 14 {
		t.Fatalf("2+3*4 = %d, want 14", got)
	}
}

func TestParser_Ternary(t *testing.T) {
	p := NewParser([]string{"1", "?", "7", ":", "9"})
	e, err := p.ParseExpr()
	if err != nil {
		t.Fatalf("ParseExpr: %v", err)
	}
	if got := evalInt(t, e, nil); got != 7 {
		t.Fatalf("1?7:9 = %d, want 7", got)
	}
}

func TestCharConstant(t *testing.T) {
	iv, _, isf, ok, err := parseLiteral(`'ab'`)
	if err != nil || !ok || isf {
		t.Fatalf("parseLiteral('ab') = %d,%v,%v,%v", iv, ok, isf, err)
	}
	want := int64('a') | int64('b')<<8
	if iv != want {
		t.Fatalf("'ab' = 0x%x, want 0x%x", iv, want)
	}
}

func TestBacktickEscapes(t *testing.T) {
	iv, _, _, ok, err := parseLiteral("`\\x41\\x00`")
	if err != nil || !ok {
		t.Fatalf("parseLiteral backtick: ok=%v err=%v", ok, err)
	}
	if iv != int64('A') {
		t.Fatalf("got 0x%x, want 0x%x", iv, 'A')
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	e := Bin(Add, Token("label"), Bin(Mul, Int(4), Float(2.5)))
	var buf bytes.Buffer
	if err := e.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Kind != Add || got.Left.Kind != KindToken || got.Left.Tok != "label" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Right.Kind != Mul || got.Right.Left.IVal != 4 || got.Right.Right.FVal != 2.5 {
		t.Fatalf("round trip mismatch on right subtree: %+v", got.Right)
	}
}

func TestPopulateAddSubAndPtrdiff(t *testing.T) {
	// (#T + 10) - (#T + 3) should reduce to 10 - 3 after cancelling #T.
	lhs := Bin(Add, Token("#T"), Int(10))
	rhs := Bin(Add, Token("#T"), Int(3))
	e := Bin(Sub, lhs, rhs)

	add, sub := PopulateAddSub(e)
	add, sub = Ptrdiff(add, sub, "#T")

	got := evalInt(t, Recombine(add, sub), nil)
	if got != 7 {
		t.Fatalf("ptrdiff reduction = %d, want 7", got)
	}
	for _, n := range append(append([]*Expr{}, add...), sub...) {
		if n.Find("#T") {
			t.Fatalf("origin token survived reduction: %+v", n)
		}
	}
}

func TestFindPathAndResolve(t *testing.T) {
	e := Bin(Add, Bin(Mul, Int(4), Token("rax")), Token("rax"))
	paths := e.FindPath("rax")
	if len(paths) != 2 {
		t.Fatalf("FindPath found %d occurrences, want 2", len(paths))
	}
	e.Resolve("rax", Int(0))
	if e.Find("rax") {
		t.Fatalf("Resolve left a reference to rax behind: %+v", e)
	}
	if got := evalInt(t, e, nil); got != 0 {
		t.Fatalf("after resolving rax to 0, expr = %d, want 0", got)
	}
}
