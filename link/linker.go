// Package link implements the CSX64 linker: merging a reachable set of
// object files (rooted at a `_start` bootstrap module) into a single
// executable image.
package link

import (
	"fmt"
	"sort"

	"github.com/csx64/csx64/expr"
	"github.com/csx64/csx64/obj"
	"github.com/samber/lo"
)

// ErrorKind enumerates the linker's disjoint error taxonomy.
type ErrorKind int

const (
	EmptyResult ErrorKind = iota
	SymbolRedefinition
	MissingSymbol
	FormatError
)

func (k ErrorKind) String() string {
	switch k {
	case EmptyResult:
		return "EmptyResult"
	case SymbolRedefinition:
		return "SymbolRedefinition"
	case MissingSymbol:
		return "MissingSymbol"
	case FormatError:
		return "FormatError"
	}
	return "?"
}

// Error is the linker's error type: a taxonomy kind plus a message.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("link: %s: %s", e.Kind, e.Msg) }

func linkErr(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

const defaultEntry = "main"

// Link merges files (files[0] must be the `_start` bootstrap module) into
// a single executable image, resolving the entry point to entry (or
// "main" if entry is empty), per the eight-step algorithm of the external
// specification.
func Link(files []*obj.File, entry string) (*obj.Executable, error) {
	if len(files) == 0 {
		return nil, linkErr(EmptyResult, "no object files given")
	}
	if entry == "" {
		entry = defaultEntry
	}

	// Step 0: rename `_start`'s external "_start" reference in-place to
	// the chosen entry symbol.
	start := files[0]
	if _, ok := start.External["_start"]; ok {
		delete(start.External, "_start")
		start.External[entry] = struct{}{}
		for _, def := range start.Symbols {
			def.Resolve("_start", expr.Token(entry))
		}
		for _, holes := range start.Holes {
			for _, h := range holes {
				h.Expr.Resolve("_start", expr.Token(entry))
			}
		}
	}

	// Step 1: global name -> file map; duplicates are a hard error.
	globalOwner := map[string]*obj.File{}
	for _, f := range files {
		for _, name := range sortedGlobalNames(f) {
			if _, dup := globalOwner[name]; dup {
				return nil, linkErr(SymbolRedefinition, "symbol %q is defined as global in more than one file", name)
			}
			globalOwner[name] = f
		}
	}

	// Step 2: no file may define a reserved link-time name.
	for _, f := range files {
		for name := range f.Global {
			if obj.IsReservedLinkName(name) {
				return nil, linkErr(FormatError, "file defines reserved link-time name %q", name)
			}
		}
	}

	// Step 3: BFS reachability from the _start file, walking unresolved
	// externals.
	included := []*obj.File{}
	includedSet := map[*obj.File]bool{}
	queue := []*obj.File{start}
	includedSet[start] = true
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		included = append(included, f)
		for name := range f.External {
			owner, ok := globalOwner[name]
			if !ok {
				return nil, linkErr(MissingSymbol, "undefined reference to %q", name)
			}
			if !includedSet[owner] {
				includedSet[owner] = true
				queue = append(queue, owner)
			}
		}
	}
	if len(included) == 0 {
		return nil, linkErr(EmptyResult, "no reachable object files")
	}

	places := make(map[*obj.File]*placement, len(included))

	var textBuf, rodataBuf, dataBuf []byte
	var bssTotal uint64

	padTo := func(buf []byte, align uint32) []byte {
		if align <= 1 {
			return buf
		}
		rem := uint32(len(buf)) % align
		if rem == 0 {
			return buf
		}
		return append(buf, make([]byte, align-rem)...)
	}
	padUint := func(v uint64, align uint32) uint64 {
		if align <= 1 {
			return v
		}
		rem := uint32(v) % align
		if rem == 0 {
			return v
		}
		return v + uint64(align-rem)
	}

	maxRodataAlign, maxDataAlign, maxBssAlign := uint32(1), uint32(1), uint32(1)
	for _, f := range included {
		maxRodataAlign = maxU32(maxRodataAlign, f.RodataAlign)
		maxDataAlign = maxU32(maxDataAlign, f.DataAlign)
		maxBssAlign = maxU32(maxBssAlign, f.BssAlign)
	}

	for _, f := range included {
		textBuf = padTo(textBuf, f.TextAlign)
		rodataBuf = padTo(rodataBuf, f.RodataAlign)
		dataBuf = padTo(dataBuf, f.DataAlign)
		bssTotal = padUint(bssTotal, f.BssAlign)

		places[f] = &placement{
			baseText:   uint64(len(textBuf)),
			baseRodata: uint64(len(rodataBuf)),
			baseData:   uint64(len(dataBuf)),
			baseBss:    bssTotal,
		}
		textBuf = append(textBuf, f.Text...)
		rodataBuf = append(rodataBuf, f.Rodata...)
		dataBuf = append(dataBuf, f.Data...)
		bssTotal += f.BssLen

		f.Clean = false // extended with externals/synthetics below
	}

	// Step 4: pad so rodata/data/bss each start at their maximum
	// observed alignment (absolute position within the final image), and
	// pad the final size to 16 bytes (stack alignment).
	for uint64(len(textBuf))%uint64(maxRodataAlign) != 0 {
		textBuf = append(textBuf, 0)
	}
	textLen := uint64(len(textBuf))
	for (textLen+uint64(len(rodataBuf)))%uint64(maxDataAlign) != 0 {
		rodataBuf = append(rodataBuf, 0)
	}
	rodataLen := uint64(len(rodataBuf))
	for (textLen+rodataLen+uint64(len(dataBuf)))%uint64(maxBssAlign) != 0 {
		dataBuf = append(dataBuf, 0)
	}
	dataLen := uint64(len(dataBuf))
	for (textLen+rodataLen+dataLen+bssTotal)%16 != 0 {
		bssTotal++
	}

	// Step 5: define synthetic symbols per included file.
	for _, f := range included {
		p := places[f]
		f.Symbols[obj.OriginText] = expr.Int(0)
		f.Symbols[obj.OriginRodata] = expr.Int(int64(textLen))
		f.Symbols[obj.OriginData] = expr.Int(int64(textLen + rodataLen))
		f.Symbols[obj.OriginBss] = expr.Int(int64(textLen + rodataLen + dataLen))
		f.Symbols[obj.OffsetText] = expr.Int(int64(p.baseText))
		f.Symbols[obj.OffsetRodata] = expr.Int(int64(textLen) + int64(p.baseRodata))
		f.Symbols[obj.OffsetData] = expr.Int(int64(textLen+rodataLen) + int64(p.baseData))
		f.Symbols[obj.OffsetBss] = expr.Int(int64(textLen+rodataLen+dataLen) + int64(p.baseBss))
		f.Symbols[obj.HeapSymbol] = expr.Int(int64(textLen + rodataLen + dataLen + bssTotal))
	}

	// Step 6: evaluate every global within its own file; inject each
	// external as a local alias for the defining file's (now-evaluated)
	// symbol.
	globalValues := map[string]*expr.Expr{}
	for _, f := range included {
		for name := range f.Global {
			def, ok := f.Symbols[name]
			if !ok {
				return nil, linkErr(MissingSymbol, "global %q has no definition", name)
			}
			if _, _, _, err := def.Evaluate(f.Symbols, map[string]bool{}); err != nil {
				return nil, linkErr(MissingSymbol, "global %q could not be evaluated locally: %v", name, err)
			}
			globalValues[name] = def
		}
	}
	for _, f := range included {
		for name := range f.External {
			val, ok := globalValues[name]
			if !ok {
				return nil, linkErr(MissingSymbol, "undefined reference to %q", name)
			}
			f.Symbols[name] = val.Clone()
		}
	}

	// Step 7: patch every hole in every file.
	for _, f := range included {
		for seg := obj.SegText; seg <= obj.SegData; seg++ {
			segBytes := segmentBytes(f, seg, textBuf, rodataBuf, dataBuf, places[f])
			remaining, err := obj.ResolveHoles(segBytes, f.Symbols, f.Holes[seg])
			if err != nil {
				return nil, linkErr(FormatError, "%v", err)
			}
			if len(remaining) > 0 {
				return nil, linkErr(MissingSymbol, "line %d: hole could not be resolved at link time", remaining[0].Line)
			}
			f.Holes[seg] = nil
		}
	}

	content := make([]byte, 0, len(textBuf)+len(rodataBuf)+len(dataBuf))
	content = append(content, textBuf...)
	content = append(content, rodataBuf...)
	content = append(content, dataBuf...)

	return &obj.Executable{
		TextLen:   textLen,
		RodataLen: rodataLen,
		DataLen:   dataLen,
		BssLen:    bssTotal,
		Content:   content,
	}, nil
}

// placement records where one file's contribution landed within each of
// the three growing segment buffers during step 3's inclusion walk.
type placement struct {
	baseText, baseRodata, baseData, baseBss uint64
}

// segmentBytes returns the slice of the final concatenated buffer that
// corresponds to file f's own contribution to segment seg, so holes can
// be patched in place at their file-relative address.
func segmentBytes(f *obj.File, seg obj.Segment, textBuf, rodataBuf, dataBuf []byte, p *placement) []byte {
	switch seg {
	case obj.SegText:
		return textBuf[p.baseText : p.baseText+uint64(len(f.Text))]
	case obj.SegRodata:
		return rodataBuf[p.baseRodata : p.baseRodata+uint64(len(f.Rodata))]
	case obj.SegData:
		return dataBuf[p.baseData : p.baseData+uint64(len(f.Data))]
	}
	return nil
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// sortedGlobalNames returns a file's declared global names via lo.Keys, so
// iteration order is explicit rather than relying on Go's randomized map
// order when diagnosing a redefinition.
func sortedGlobalNames(f *obj.File) []string {
	names := lo.Keys(f.Global)
	sort.Strings(names)
	return names
}
