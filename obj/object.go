// Package obj implements the in-memory and on-disk object-file and
// executable-file containers: segments, holes, symbol tables, and the
// global/external symbol sets that make up an assembled translation unit.
package obj

import (
	"fmt"

	"github.com/csx64/csx64/expr"
	"github.com/samber/lo"
)

// Segment names one of the three byte-backed segments an object file
// carries on disk (bss carries only a length).
type Segment int

const (
	SegText Segment = iota
	SegRodata
	SegData
)

func (s Segment) String() string {
	switch s {
	case SegText:
		return "text"
	case SegRodata:
		return "rodata"
	case SegData:
		return "data"
	}
	return "?"
}

// Synthetic link-time symbol names. The assembler builds labels on the
// per-file segment offsets; the linker defines all of them (origins,
// offsets and the heap pointer) for every included file.
const (
	OriginText   = "#T"
	OriginRodata = "#R"
	OriginData   = "#D"
	OriginBss    = "#B"
	OffsetText   = "#t"
	OffsetRodata = "#r"
	OffsetData   = "#d"
	OffsetBss    = "#b"
	HeapSymbol   = "__heap__"
)

func isSyntheticSymbol(name string) bool {
	switch name {
	case OriginText, OriginRodata, OriginData, OriginBss,
		OffsetText, OffsetRodata, OffsetData, OffsetBss, HeapSymbol:
		return true
	}
	return false
}

// IsReservedLinkName reports whether name is a link-time name no user
// symbol may define.
func IsReservedLinkName(name string) bool { return isSyntheticSymbol(name) }

// File is an assembled (or partially-linked) translation unit.
type File struct {
	Text, Rodata, Data                 []byte
	TextAlign, RodataAlign, DataAlign  uint32
	BssAlign                           uint32
	BssLen                             uint64

	Global   map[string]struct{}
	External map[string]struct{}
	Symbols  map[string]*expr.Expr

	// Holes, indexed by Segment (bss has no byte content, so no holes).
	Holes [3][]*Hole

	Clean bool
}

func New() *File {
	return &File{
		TextAlign: 1, RodataAlign: 1, DataAlign: 1, BssAlign: 1,
		Global:   map[string]struct{}{},
		External: map[string]struct{}{},
		Symbols:  map[string]*expr.Expr{},
	}
}

// SegmentBytes returns the live byte slice for s (not valid for a
// conceptual bss segment, which has no stored bytes).
func (f *File) SegmentBytes(s Segment) *[]byte {
	switch s {
	case SegText:
		return &f.Text
	case SegRodata:
		return &f.Rodata
	case SegData:
		return &f.Data
	}
	return nil
}

// AddGlobal declares name as exported from this file. It is an error for
// a name to be both global and external (the invariant checked here and
// re-checked by CheckIntegrity).
func (f *File) AddGlobal(name string) error {
	if _, ok := f.External[name]; ok {
		return fmt.Errorf("symbol %q cannot be both global and external", name)
	}
	f.Global[name] = struct{}{}
	return nil
}

func (f *File) AddExternal(name string) error {
	if _, ok := f.Global[name]; ok {
		return fmt.Errorf("symbol %q cannot be both global and external", name)
	}
	f.External[name] = struct{}{}
	return nil
}

// CheckIntegrity verifies every leaf token referenced by any symbol or
// hole expression is either a defined internal symbol, a declared
// external, a segment-origin/offset synthetic symbol, or a known reserved
// link-time name, and that every declared global is defined. This is the
// assembler's pre-write integrity pass (spec §4.2).
func (f *File) CheckIntegrity() error {
	known := func(name string) bool {
		if isSyntheticSymbol(name) {
			return true
		}
		if _, ok := f.Symbols[name]; ok {
			return true
		}
		if _, ok := f.External[name]; ok {
			return true
		}
		return false
	}

	var walk func(e *expr.Expr) error
	walk = func(e *expr.Expr) error {
		if e == nil {
			return nil
		}
		if e.Kind == expr.KindToken {
			if _, _, _, litOK, _ := parseLiteralProbe(e.Tok); litOK {
				return nil
			}
			if !known(e.Tok) {
				return fmt.Errorf("unknown symbol %q", e.Tok)
			}
			return nil
		}
		if err := walk(e.Left); err != nil {
			return err
		}
		return walk(e.Right)
	}

	for name, def := range f.Symbols {
		if err := walk(def); err != nil {
			return fmt.Errorf("symbol %q: %w", name, err)
		}
	}
	for _, segHoles := range f.Holes {
		for _, h := range segHoles {
			if err := walk(h.Expr); err != nil {
				return fmt.Errorf("line %d: %w", h.Line, err)
			}
		}
	}
	for name := range f.Global {
		if _, ok := f.Symbols[name]; !ok {
			return fmt.Errorf("global symbol %q is declared but never defined", name)
		}
	}
	return nil
}

// parseLiteralProbe reports whether tok parses as a literal (rather than
// needing a symbol-table lookup); it defers to expr's own literal grammar
// via a round-trip through a throwaway token so CheckIntegrity and
// Evaluate never disagree about what counts as "known".
func parseLiteralProbe(tok string) (int64, float64, bool, bool, error) {
	e := expr.Token(tok)
	iv, fv, isf, err := e.Evaluate(map[string]*expr.Expr{}, map[string]bool{})
	if err == nil {
		return iv, fv, isf, true, nil
	}
	return 0, 0, false, false, nil
}

// GlobalNames and ExternalNames return the name sets as slices (via
// lo.Keys), in Go's unspecified map iteration order.
func (f *File) GlobalNames() []string   { return lo.Keys(f.Global) }
func (f *File) ExternalNames() []string { return lo.Keys(f.External) }
