package obj

import (
	"bytes"
	"testing"

	"github.com/csx64/csx64/expr"
	"github.com/davecgh/go-spew/spew"
)

func TestRoundTrip_EmptyFile(t *testing.T) {
	f := New()
	f.Clean = true
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := ReadFile(&buf)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	got.Clean = true
	if !f.Equal(got) {
		t.Fatalf("round trip mismatch:\nwant %s\ngot  %s", spew.Sdump(f), spew.Sdump(got))
	}
}

func TestRoundTrip_WithSymbolsAndHoles(t *testing.T) {
	f := New()
	f.TextAlign = 16
	if err := f.AddGlobal("main"); err != nil {
		t.Fatalf("AddGlobal: %v", err)
	}
	f.Symbols["main"] = expr.Bin(expr.Add, expr.Token(OriginText), expr.Int(0))
	f.Text = []byte{0xFF, 0xFF, 0xFF, 0xFF}
	f.Holes[SegText] = []*Hole{{Address: 0, Size: 4, Line: 3, Expr: expr.Token("main")}}
	f.Clean = true

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := ReadFile(&buf)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	got.Clean = true
	if !f.Equal(got) {
		t.Fatalf("round trip mismatch:\nwant %s\ngot  %s", spew.Sdump(f), spew.Sdump(got))
	}
}

func TestGlobalExternalMutualExclusion(t *testing.T) {
	f := New()
	if err := f.AddExternal("foo"); err != nil {
		t.Fatalf("AddExternal: %v", err)
	}
	if err := f.AddGlobal("foo"); err == nil {
		t.Fatalf("expected error declaring a name both global and external")
	}
}

func TestCheckIntegrity_UnknownSymbol(t *testing.T) {
	f := New()
	if err := f.AddGlobal("main"); err != nil {
		t.Fatalf("AddGlobal: %v", err)
	}
	f.Symbols["main"] = expr.Token("mystery")
	if err := f.CheckIntegrity(); err == nil {
		t.Fatalf("expected integrity failure referencing unknown symbol")
	}
}

func TestCheckIntegrity_SyntheticAndExternalAreKnown(t *testing.T) {
	f := New()
	if err := f.AddExternal("printf"); err != nil {
		t.Fatalf("AddExternal: %v", err)
	}
	if err := f.AddGlobal("main"); err != nil {
		t.Fatalf("AddGlobal: %v", err)
	}
	f.Symbols["main"] = expr.Bin(expr.Add, expr.Token(OriginText), expr.Token("printf"))
	if err := f.CheckIntegrity(); err != nil {
		t.Fatalf("CheckIntegrity: %v", err)
	}
}

func TestCheckIntegrity_UndefinedGlobal(t *testing.T) {
	f := New()
	if err := f.AddGlobal("main"); err != nil {
		t.Fatalf("AddGlobal: %v", err)
	}
	if err := f.CheckIntegrity(); err == nil {
		t.Fatalf("expected integrity failure for declared-but-undefined global")
	}
}

func TestTryPatchHole_Resolves(t *testing.T) {
	seg := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	h := &Hole{Address: 0, Size: 4, Line: 1, Expr: expr.Int(0x01020304)}
	result, err := TryPatchHole(seg, nil, h)
	if err != nil || result != PatchNone {
		t.Fatalf("TryPatchHole = %v, %v", result, err)
	}
	want := []byte{0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(seg, want) {
		t.Fatalf("patched bytes = %x, want %x", seg, want)
	}
}

func TestTryPatchHole_Unevaluated(t *testing.T) {
	seg := make([]byte, 4)
	h := &Hole{Address: 0, Size: 4, Line: 1, Expr: expr.Token("later")}
	result, err := TryPatchHole(seg, map[string]*expr.Expr{}, h)
	if err != nil || result != PatchUnevaluated {
		t.Fatalf("TryPatchHole = %v, %v, want Unevaluated/nil", result, err)
	}
}

func TestExecutableRoundTrip(t *testing.T) {
	e := &Executable{TextLen: 2, RodataLen: 1, DataLen: 1, BssLen: 8, Content: []byte{1, 2, 3, 4}}
	var buf bytes.Buffer
	if err := e.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := ReadExecutable(&buf)
	if err != nil {
		t.Fatalf("ReadExecutable: %v", err)
	}
	if got.TextLen != 2 || got.RodataLen != 1 || got.DataLen != 1 || got.BssLen != 8 || !bytes.Equal(got.Content, e.Content) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}
