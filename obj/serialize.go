package obj

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/csx64/csx64/expr"
)

const (
	objMagic = "CSX64obj"
	objVersion uint64 = 1
)

// ErrBadMagic and ErrVersion are the two distinct file-format-layer
// exceptions the specification calls out separately from generic
// corruption.
var (
	ErrBadMagic = errors.New("obj: not a CSX64 object file (bad magic)")
	ErrVersion  = errors.New("obj: unsupported CSX64 object file version")
)

func writeMagicVersion(w io.Writer, magic string, version uint64) error {
	if _, err := io.WriteString(w, magic); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, version)
}

func readMagicVersion(r io.Reader, wantMagic string, wantVersion uint64) error {
	buf := make([]byte, len(wantMagic))
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	if string(buf) != wantMagic {
		return ErrBadMagic
	}
	var version uint64
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return err
	}
	if version != wantVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrVersion, version, wantVersion)
	}
	return nil
}

func writeNameSet(w io.Writer, names map[string]struct{}) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(names))); err != nil {
		return err
	}
	for name := range names {
		if err := writeString16(w, name); err != nil {
			return err
		}
	}
	return nil
}

func readNameSet(r io.Reader) (map[string]struct{}, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, n)
	for i := uint32(0); i < n; i++ {
		name, err := readString16(r)
		if err != nil {
			return nil, err
		}
		out[name] = struct{}{}
	}
	return out, nil
}

func writeString16(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString16(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeBytesBlob(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytesBlob(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeHoles(w io.Writer, holes []*Hole) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(holes))); err != nil {
		return err
	}
	for _, h := range holes {
		if err := binary.Write(w, binary.LittleEndian, h.Address); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, h.Size); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, h.Line); err != nil {
			return err
		}
		if err := h.Expr.Write(w); err != nil {
			return err
		}
	}
	return nil
}

func readHoles(r io.Reader) ([]*Hole, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	out := make([]*Hole, 0, n)
	for i := uint32(0); i < n; i++ {
		h := &Hole{}
		if err := binary.Read(r, binary.LittleEndian, &h.Address); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &h.Size); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &h.Line); err != nil {
			return nil, err
		}
		e, err := expr.Read(r)
		if err != nil {
			return nil, err
		}
		h.Expr = e
		out = append(out, h)
	}
	return out, nil
}

// Write serializes f to w per the CSX64obj external format.
func (f *File) Write(w io.Writer) error {
	if !f.Clean {
		return fmt.Errorf("obj: refusing to save a dirty object file")
	}
	if err := writeMagicVersion(w, objMagic, objVersion); err != nil {
		return err
	}
	if err := writeNameSet(w, f.Global); err != nil {
		return err
	}
	if err := writeNameSet(w, f.External); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(f.Symbols))); err != nil {
		return err
	}
	for name, def := range f.Symbols {
		if err := writeString16(w, name); err != nil {
			return err
		}
		if err := def.Write(w); err != nil {
			return err
		}
	}
	for _, a := range []uint32{f.TextAlign, f.RodataAlign, f.DataAlign, f.BssAlign} {
		if !isPowerOfTwo(a) {
			return fmt.Errorf("obj: alignment %d is not a positive power of two", a)
		}
		if err := binary.Write(w, binary.LittleEndian, a); err != nil {
			return err
		}
	}
	for _, holes := range f.Holes {
		if err := writeHoles(w, holes); err != nil {
			return err
		}
	}
	for _, seg := range [][]byte{f.Text, f.Rodata, f.Data} {
		if err := writeBytesBlob(w, seg); err != nil {
			return err
		}
	}
	return binary.Write(w, binary.LittleEndian, f.BssLen)
}

func isPowerOfTwo(n uint32) bool { return n > 0 && n&(n-1) == 0 }

// ReadFile deserializes an object file from r.
func ReadFile(r io.Reader) (*File, error) {
	if err := readMagicVersion(r, objMagic, objVersion); err != nil {
		return nil, err
	}
	f := New()

	global, err := readNameSet(r)
	if err != nil {
		return nil, err
	}
	f.Global = global

	external, err := readNameSet(r)
	if err != nil {
		return nil, err
	}
	f.External = external

	var symCount uint32
	if err := binary.Read(r, binary.LittleEndian, &symCount); err != nil {
		return nil, err
	}
	for i := uint32(0); i < symCount; i++ {
		name, err := readString16(r)
		if err != nil {
			return nil, err
		}
		e, err := expr.Read(r)
		if err != nil {
			return nil, err
		}
		f.Symbols[name] = e
	}

	aligns := []*uint32{&f.TextAlign, &f.RodataAlign, &f.DataAlign, &f.BssAlign}
	for _, a := range aligns {
		if err := binary.Read(r, binary.LittleEndian, a); err != nil {
			return nil, err
		}
		if !isPowerOfTwo(*a) {
			return nil, fmt.Errorf("obj: corrupt file: alignment %d is not a positive power of two", *a)
		}
	}

	for i := range f.Holes {
		holes, err := readHoles(r)
		if err != nil {
			return nil, err
		}
		f.Holes[i] = holes
	}

	for _, seg := range []*[]byte{&f.Text, &f.Rodata, &f.Data} {
		b, err := readBytesBlob(r)
		if err != nil {
			return nil, err
		}
		*seg = b
	}

	if err := binary.Read(r, binary.LittleEndian, &f.BssLen); err != nil {
		return nil, err
	}

	// A freshly-loaded file is dirty until the caller verifies/repairs it
	// (e.g. the linker re-derives synthetic symbols for it).
	f.Clean = false
	return f, nil
}

// Equal reports whether f and g hold structurally identical segments,
// holes, symbols, and alignments -- used by the assemble/link round-trip
// tests to check serialize-then-deserialize idempotence.
func (f *File) Equal(g *File) bool {
	var bufF, bufG bytes.Buffer
	fClean, gClean := f.Clean, g.Clean
	f.Clean, g.Clean = true, true
	defer func() { f.Clean, g.Clean = fClean, gClean }()
	if err := f.Write(&bufF); err != nil {
		return false
	}
	if err := g.Write(&bufG); err != nil {
		return false
	}
	return bytes.Equal(bufF.Bytes(), bufG.Bytes())
}
