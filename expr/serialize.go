package expr

import (
	"encoding/binary"
	"fmt"
	"io"
)

// opCodes maps every operator Kind to a stable 5-bit on-disk code. 0 is
// reserved to mean "this node is a leaf, not an operator" so the tag byte
// alone is enough to tell an evaluated/token leaf apart from an operator
// node before any payload is read.
var opCodes = map[Kind]byte{
	Mul: 1, Div: 2, Mod: 3, Add: 4, Sub: 5, SL: 6, SR: 7,
	Less: 8, LessE: 9, Great: 10, GreatE: 11, Eq: 12, Neq: 13,
	BitAnd: 14, BitXor: 15, BitOr: 16, LogAnd: 17, LogOr: 18,
	NullCoalesce: 19, Condition: 20, Pair: 21,
	Neg: 22, BitNot: 23, LogNot: 24, IntCast: 25, FloatCast: 26,
}

var opFromCode = func() map[byte]Kind {
	m := make(map[byte]Kind, len(opCodes))
	for k, v := range opCodes {
		m[v] = k
	}
	return m
}()

const (
	tagTok      = 1 << 7
	tagFloat    = 1 << 6
	tagHasRight = 1 << 5
	opMask      = 0x1F
)

func writeString16(w io.Writer, s string) error {
	if len(s) > 0xFFFF {
		return fmt.Errorf("expr: string too long to serialize (%d bytes)", len(s))
	}
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

// Write serializes e as a single tag byte followed by either the token
// string, the cached evaluated value, or the recursively-serialized
// children, per the object-file on-disk format (executables store no
// expressions).
func (e *Expr) Write(w io.Writer) error {
	if e.Kind == KindToken {
		if _, err := w.Write([]byte{tagTok}); err != nil {
			return err
		}
		return writeString16(w, e.Tok)
	}
	if e.Kind == KindInt || e.Kind == KindFloat {
		tag := byte(0)
		if e.Kind == KindFloat {
			tag |= tagFloat
		}
		if _, err := w.Write([]byte{tag}); err != nil {
			return err
		}
		if e.Kind == KindFloat {
			return binary.Write(w, binary.LittleEndian, e.FVal)
		}
		return binary.Write(w, binary.LittleEndian, e.IVal)
	}

	code, ok := opCodes[e.Kind]
	if !ok {
		return fmt.Errorf("expr: unknown operator kind %v", e.Kind)
	}
	tag := code & opMask
	if binaryKinds[e.Kind] {
		tag |= tagHasRight
	}
	if _, err := w.Write([]byte{tag}); err != nil {
		return err
	}
	if err := e.Left.Write(w); err != nil {
		return err
	}
	if binaryKinds[e.Kind] {
		return e.Right.Write(w)
	}
	return nil
}

// Read deserializes one Expr from r. An unrecognized op code is a format
// error, matching the file-format-layer exception policy of §7.
func Read(r io.Reader) (*Expr, error) {
	var tagBuf [1]byte
	if _, err := io.ReadFull(r, tagBuf[:]); err != nil {
		return nil, err
	}
	tag := tagBuf[0]

	if tag&tagTok != 0 {
		s, err := readString16(r)
		if err != nil {
			return nil, err
		}
		return Token(s), nil
	}

	op := tag & opMask
	if op == 0 {
		if tag&tagFloat != 0 {
			var v float64
			if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
				return nil, err
			}
			return Float(v), nil
		}
		var v int64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, err
		}
		return Int(v), nil
	}

	kind, ok := opFromCode[op]
	if !ok {
		return nil, fmt.Errorf("expr: corrupt file: unknown op code %d", op)
	}
	left, err := Read(r)
	if err != nil {
		return nil, err
	}
	n := &Expr{Kind: kind, Left: left}
	if tag&tagHasRight != 0 {
		right, err := Read(r)
		if err != nil {
			return nil, err
		}
		n.Right = right
	}
	return n, nil
}
