package isa

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Address models a decoded `[base + reg1*mult + reg2]`-style memory
// operand: an optional displacement immediate, an optional first register
// with a power-of-two multiplier, and an optional second (unit-multiplier)
// register.
type Address struct {
	HasReg1  bool
	Reg1     Register
	Mult     byte // 1, 2, 4, or 8
	HasReg2  bool
	Reg2     Register
	PtrSize  SizeCode
	HasImm   bool
	Imm      int64
}

func multLog2(mult byte) (byte, error) {
	switch mult {
	case 1:
		return 0, nil
	case 2:
		return 1, nil
	case 4:
		return 2, nil
	case 8:
		return 3, nil
	}
	return 0, fmt.Errorf("isa: invalid address multiplier %d (must be 1, 2, 4, or 8)", mult)
}

// EncodeAddress writes the tagged address-byte format described in the
// object/executable external interface: a settings byte
// [imm-present:1][reserved:1][mult-log2:2][ptr-size:2][reg1-present:1][reg2-present:1],
// an optional packed [reg1:4][reg2:4] byte, and an optional immediate of
// ptr-size bytes.
func EncodeAddress(buf *bytes.Buffer, a Address) error {
	if a.PtrSize == Size8 {
		return fmt.Errorf("isa: 8-bit pointer size is not a valid address size")
	}
	mlog2 := byte(0)
	if a.HasReg1 {
		var err error
		mlog2, err = multLog2(a.Mult)
		if err != nil {
			return err
		}
	}
	settings := byte(0)
	if a.HasImm {
		settings |= 1 << 7
	}
	settings |= (mlog2 & 0x3) << 4
	settings |= (byte(a.PtrSize) & 0x3) << 2
	if a.HasReg1 {
		settings |= 1 << 1
	}
	if a.HasReg2 {
		settings |= 1 << 0
	}
	buf.WriteByte(settings)

	if a.HasReg1 || a.HasReg2 {
		buf.WriteByte(byte(a.Reg1)<<4 | byte(a.Reg2)&0xF)
	}
	if a.HasImm {
		return writeImm(buf, a.Imm, a.PtrSize)
	}
	return nil
}

func writeImm(buf *bytes.Buffer, v int64, size SizeCode) error {
	switch size {
	case Size8:
		buf.WriteByte(byte(v))
	case Size16:
		binary.Write(buf, binary.LittleEndian, int16(v))
	case Size32:
		binary.Write(buf, binary.LittleEndian, int32(v))
	case Size64:
		binary.Write(buf, binary.LittleEndian, v)
	default:
		return fmt.Errorf("isa: invalid immediate size code %d", size)
	}
	return nil
}

// DecodeAddressAdv reads one Address starting at mem[*pos], advancing pos
// past everything it consumed; this is GetAddressAdv from the external
// interface specification.
func DecodeAddressAdv(mem []byte, pos *uint64) (Address, error) {
	if *pos >= uint64(len(mem)) {
		return Address{}, fmt.Errorf("isa: address decode out of bounds")
	}
	settings := mem[*pos]
	*pos++

	a := Address{
		HasImm:  settings&(1<<7) != 0,
		PtrSize: SizeCode((settings >> 2) & 0x3),
		HasReg1: settings&(1<<1) != 0,
		HasReg2: settings&(1<<0) != 0,
	}
	if a.PtrSize == Size8 {
		return Address{}, fmt.Errorf("isa: 8-bit pointer size is not a valid address size")
	}
	mlog2 := (settings >> 4) & 0x3
	a.Mult = byte(1) << mlog2

	if a.HasReg1 || a.HasReg2 {
		if *pos >= uint64(len(mem)) {
			return Address{}, fmt.Errorf("isa: address decode out of bounds reading registers")
		}
		rb := mem[*pos]
		*pos++
		a.Reg1 = Register(rb >> 4)
		a.Reg2 = Register(rb & 0xF)
	}
	if a.HasImm {
		n := a.PtrSize.Bytes()
		if *pos+uint64(n) > uint64(len(mem)) {
			return Address{}, fmt.Errorf("isa: address decode out of bounds reading immediate")
		}
		a.Imm = readSignedLE(mem[*pos:*pos+uint64(n)], n)
		*pos += uint64(n)
	}
	return a, nil
}

func readSignedLE(b []byte, n int) int64 {
	switch n {
	case 1:
		return int64(int8(b[0]))
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(b)))
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(b)))
	case 8:
		return int64(binary.LittleEndian.Uint64(b))
	}
	return 0
}

// OperandMode distinguishes the five canonical operand shapes of the
// binary-operation fetch format.
type OperandMode byte

const (
	ModeRegReg OperandMode = iota
	ModeRegImm
	ModeRegMem
	ModeMemReg
	ModeMemImm
)

// BinarySettings is the one-byte header shared by the binary, unary, and
// ternary operand-fetch formats: [3:mode][2:size][1:high][2:reserved].
type BinarySettings struct {
	Mode OperandMode
	Size SizeCode
	High bool
}

func (s BinarySettings) Encode() byte {
	b := byte(s.Mode&0x7) << 5
	b |= byte(s.Size&0x3) << 3
	if s.High {
		b |= 1 << 2
	}
	return b
}

func DecodeBinarySettings(b byte) BinarySettings {
	return BinarySettings{
		Mode: OperandMode((b >> 5) & 0x7),
		Size: SizeCode((b >> 3) & 0x3),
		High: b&(1<<2) != 0,
	}
}

// ShiftSettings decodes the shift-count byte: bit 7 selects CL as the
// count source; the low 6 bits are the literal count (masked by the
// caller to 5 or 6 bits depending on operand size).
type ShiftSettings struct {
	UseCL bool
	Count byte
}

func (s ShiftSettings) Encode() byte {
	b := s.Count & 0x3F
	if s.UseCL {
		b |= 1 << 7
	}
	return b
}

func DecodeShiftSettings(b byte) ShiftSettings {
	return ShiftSettings{UseCL: b&(1<<7) != 0, Count: b & 0x3F}
}

// SIMDSettings is the settings byte shared by every SIMD operand form:
// [1:has-mask][1:zero-mask][1:scalar][1:reserved][2:elem-size][2:mode].
type SIMDSettings struct {
	HasMask  bool
	ZeroMask bool
	Scalar   bool
	ElemSize SizeCode
	Mode     byte
}

func (s SIMDSettings) Encode() byte {
	b := byte(s.Mode & 0x3)
	b |= byte(s.ElemSize&0x3) << 2
	if s.Scalar {
		b |= 1 << 5
	}
	if s.ZeroMask {
		b |= 1 << 6
	}
	if s.HasMask {
		b |= 1 << 7
	}
	return b
}

func DecodeSIMDSettings(b byte) SIMDSettings {
	return SIMDSettings{
		Mode:     b & 0x3,
		ElemSize: SizeCode((b >> 2) & 0x3),
		Scalar:   b&(1<<5) != 0,
		ZeroMask: b&(1<<6) != 0,
		HasMask:  b&(1<<7) != 0,
	}
}
