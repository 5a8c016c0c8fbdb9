package obj

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/csx64/csx64/expr"
)

// PatchResult is the three-way outcome of attempting to resolve a hole.
type PatchResult int

const (
	PatchNone PatchResult = iota
	PatchUnevaluated
	PatchError
)

func (p PatchResult) String() string {
	switch p {
	case PatchNone:
		return "None"
	case PatchUnevaluated:
		return "Unevaluated"
	case PatchError:
		return "Error"
	}
	return "?"
}

// TryPatchHole attempts to evaluate h.Expr against symbols and, on
// success, writes the result into seg at h.Address. PatchNone means the
// hole evaluated and the bytes have been written (a floating value is
// encoded as IEEE-754 of the hole's size; only 4 and 8 are accepted sizes
// for a float result). PatchUnevaluated means the expression still
// depends on an unknown symbol; the hole is left untouched and should
// stay in the caller's hole list. PatchError is a definite failure (bad
// size, value overflow) and carries a message naming the source line.
//
// Padding a write into the DATA segment is treated like any other
// resolved hole: a successful write reports PatchNone, not a special
// failure case.
func TryPatchHole(seg []byte, symbols map[string]*expr.Expr, h *Hole) (PatchResult, error) {
	ival, fval, isFloat, err := h.Expr.Evaluate(symbols, map[string]bool{})
	if err != nil {
		return PatchUnevaluated, nil
	}

	end := h.Address + uint64(h.Size)
	if end > uint64(len(seg)) {
		return PatchError, fmt.Errorf("line %d: hole write at 0x%x (size %d) exceeds segment bounds", h.Line, h.Address, h.Size)
	}

	if isFloat {
		switch h.Size {
		case 4:
			binary.LittleEndian.PutUint32(seg[h.Address:end], math.Float32bits(float32(fval)))
		case 8:
			binary.LittleEndian.PutUint64(seg[h.Address:end], math.Float64bits(fval))
		default:
			return PatchError, fmt.Errorf("line %d: floating-point hole must be 4 or 8 bytes, got %d", h.Line, h.Size)
		}
		return PatchNone, nil
	}

	if h.Size > 0 && h.Size < 8 {
		bits := uint(h.Size) * 8
		if ival < -(int64(1)<<(bits-1)) || ival >= int64(1)<<bits {
			return PatchError, fmt.Errorf("line %d: value %d does not fit in a %d-byte hole", h.Line, ival, h.Size)
		}
	}

	switch h.Size {
	case 1:
		seg[h.Address] = byte(ival)
	case 2:
		binary.LittleEndian.PutUint16(seg[h.Address:end], uint16(ival))
	case 4:
		binary.LittleEndian.PutUint32(seg[h.Address:end], uint32(ival))
	case 8:
		binary.LittleEndian.PutUint64(seg[h.Address:end], uint64(ival))
	default:
		return PatchError, fmt.Errorf("line %d: invalid hole size %d", h.Line, h.Size)
	}
	return PatchNone, nil
}

// ResolveHoles walks segHoles, attempting TryPatchHole on each; resolved
// holes are removed from the list. It returns the remaining (unresolved)
// holes and an error if any hole produced PatchError. The happy path,
// where every hole resolves or remains only Unevaluated, always returns a
// nil error.
func ResolveHoles(seg []byte, symbols map[string]*expr.Expr, holes []*Hole) ([]*Hole, error) {
	remaining := make([]*Hole, 0, len(holes))
	for _, h := range holes {
		result, err := TryPatchHole(seg, symbols, h)
		switch result {
		case PatchError:
			return nil, err
		case PatchUnevaluated:
			remaining = append(remaining, h)
		case PatchNone:
			// resolved; drop from the list
		}
	}
	return remaining, nil
}
