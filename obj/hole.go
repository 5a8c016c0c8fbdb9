package obj

import "github.com/csx64/csx64/expr"

// Hole is a deferred write: the encoder could not yet evaluate expr, so it
// wrote an all-ones placeholder at Address and recorded enough to patch it
// later, once more of the symbol table is known.
type Hole struct {
	Address uint64
	Size    byte // 1, 2, 4, or 8
	Line    uint32
	Expr    *expr.Expr
}

// placeholderBytes returns Size bytes of 0xFF, the marker the encoder
// writes into the segment until the hole is patched.
func (h *Hole) placeholderBytes() []byte {
	b := make([]byte, h.Size)
	for i := range b {
		b[i] = 0xFF
	}
	return b
}
