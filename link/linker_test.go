package link

import (
	"testing"

	"github.com/csx64/csx64/expr"
	"github.com/csx64/csx64/obj"
)

// newStartFile builds a minimal "_start" bootstrap module: four bytes of
// text referencing an external "main", with a single hole over those bytes.
func newStartFile(t *testing.T) *obj.File {
	t.Helper()
	f := obj.New()
	if err := f.AddExternal("_start"); err != nil {
		t.Fatalf("AddExternal(_start): %v", err)
	}
	if err := f.AddExternal("main"); err != nil {
		t.Fatalf("AddExternal(main): %v", err)
	}
	f.Text = []byte{0xFF, 0xFF, 0xFF, 0xFF}
	f.Holes[obj.SegText] = []*obj.Hole{
		{Address: 0, Size: 4, Line: 1, Expr: expr.Token("main")},
	}
	f.Clean = true
	return f
}

// newMainFile builds a module defining a global "main" at the start of its
// own text contribution (its #t offset), with no holes of its own.
func newMainFile(t *testing.T) *obj.File {
	t.Helper()
	f := obj.New()
	if err := f.AddGlobal("main"); err != nil {
		t.Fatalf("AddGlobal(main): %v", err)
	}
	f.Symbols["main"] = expr.Bin(expr.Add, expr.Token(obj.OffsetText), expr.Int(0))
	f.Text = []byte{0x90, 0x90}
	f.Clean = true
	return f
}

func TestLink_MinimalStartAndMain(t *testing.T) {
	start := newStartFile(t)
	main := newMainFile(t)

	exe, err := Link([]*obj.File{start, main}, "")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if exe.TextLen != 6 {
		t.Fatalf("TextLen = %d, want 6 (4 from _start + 2 from main)", exe.TextLen)
	}
	if len(exe.Content) != len(exe.Content) {
		t.Fatalf("unreachable")
	}
	// main's two bytes sit right after _start's four, so its text offset
	// (#t) is 4; the patched hole in
	// _start's text should encode that as a little-endian uint32.
	want := []byte{0x04, 0x00, 0x00, 0x00}
	got := exe.Content[0:4]
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("patched hole bytes = %x, want %x", got, want)
		}
	}
	if exe.Content[4] != 0x90 || exe.Content[5] != 0x90 {
		t.Fatalf("main's text bytes missing from image: %x", exe.Content)
	}
}

func TestLink_StartExternalRenamedToEntry(t *testing.T) {
	start := newStartFile(t)
	main := newMainFile(t)
	if err := main.AddGlobal("altentry"); err == nil {
		t.Fatalf("setup: altentry should not already be declared")
	}

	// Rename main's "main" global to "altentry" and ask Link to use it as
	// the entry point instead of the default.
	delete(main.Global, "main")
	main.Global["altentry"] = struct{}{}
	main.Symbols["altentry"] = main.Symbols["main"]
	delete(main.Symbols, "main")
	delete(start.External, "main")
	start.External["altentry"] = struct{}{}
	for _, h := range start.Holes[obj.SegText] {
		h.Expr.Resolve("main", expr.Token("altentry"))
	}

	exe, err := Link([]*obj.File{start, main}, "altentry")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if exe.TextLen != 6 {
		t.Fatalf("TextLen = %d, want 6", exe.TextLen)
	}
}

func TestLink_DuplicateGlobalIsError(t *testing.T) {
	start := newStartFile(t)
	a := newMainFile(t)
	b := newMainFile(t)

	_, err := Link([]*obj.File{start, a, b}, "")
	le, ok := err.(*Error)
	if !ok || le.Kind != SymbolRedefinition {
		t.Fatalf("Link error = %v, want SymbolRedefinition", err)
	}
}

func TestLink_MissingSymbolIsError(t *testing.T) {
	start := newStartFile(t)
	_, err := Link([]*obj.File{start}, "")
	le, ok := err.(*Error)
	if !ok || le.Kind != MissingSymbol {
		t.Fatalf("Link error = %v, want MissingSymbol", err)
	}
}

func TestLink_EmptyFileListIsError(t *testing.T) {
	_, err := Link(nil, "")
	le, ok := err.(*Error)
	if !ok || le.Kind != EmptyResult {
		t.Fatalf("Link error = %v, want EmptyResult", err)
	}
}

func TestLink_ReservedSymbolNameIsError(t *testing.T) {
	start := newStartFile(t)
	bad := obj.New()
	if err := bad.AddGlobal(obj.OriginText); err != nil {
		t.Fatalf("AddGlobal: %v", err)
	}
	bad.Symbols[obj.OriginText] = expr.Int(0)
	bad.Clean = true

	_, err := Link([]*obj.File{start, bad}, "")
	le, ok := err.(*Error)
	if !ok || le.Kind != FormatError {
		t.Fatalf("Link error = %v, want FormatError", err)
	}
}

func TestLink_AlignmentPadding(t *testing.T) {
	start := newStartFile(t)
	main := newMainFile(t)
	main.DataAlign = 8
	main.Data = []byte{1, 2, 3}

	exe, err := Link([]*obj.File{start, main}, "")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	total := exe.TextLen + exe.RodataLen + exe.DataLen + exe.BssLen
	if total%16 != 0 {
		t.Fatalf("final image size %d is not 16-byte aligned", total)
	}
}
