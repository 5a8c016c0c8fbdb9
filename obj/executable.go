package obj

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	exeMagic      = "CSX64exe"
	exeVersion uint64 = 1
)

// Executable is the linker's output: four segment lengths and the
// concatenated text|rodata|data content (bss is lazily zero-filled at
// load, not stored).
type Executable struct {
	TextLen, RodataLen, DataLen, BssLen uint64
	Content                             []byte
}

// Write serializes e per the CSX64exe external format: header, four
// 64-bit segment lengths, then the content bytes.
func (e *Executable) Write(w io.Writer) error {
	total := e.TextLen + e.RodataLen + e.DataLen
	if total != uint64(len(e.Content)) {
		return fmt.Errorf("obj: executable content length %d does not match declared segment lengths (%d)", len(e.Content), total)
	}
	if err := writeMagicVersion(w, exeMagic, exeVersion); err != nil {
		return err
	}
	for _, v := range []uint64{e.TextLen, e.RodataLen, e.DataLen, e.BssLen} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	_, err := w.Write(e.Content)
	return err
}

// ReadExecutable deserializes an executable image from r.
func ReadExecutable(r io.Reader) (*Executable, error) {
	if err := readMagicVersion(r, exeMagic, exeVersion); err != nil {
		return nil, err
	}
	e := &Executable{}
	for _, v := range []*uint64{&e.TextLen, &e.RodataLen, &e.DataLen, &e.BssLen} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	total := e.TextLen + e.RodataLen + e.DataLen
	content := make([]byte, total)
	n, err := io.ReadFull(r, content)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if uint64(n) != total {
		return nil, fmt.Errorf("obj: corrupt executable: expected %d content bytes, got %d", total, n)
	}
	e.Content = content
	return e, nil
}
