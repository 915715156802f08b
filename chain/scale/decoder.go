// Package scale decodes the SCALE codec used by Substrate nodes, including
// runtime metadata and values typed by the metadata's type registry.
package scale

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"
)

// ErrUnexpectedEOF is returned when the input ends inside a value.
var ErrUnexpectedEOF = errors.New("scale: unexpected end of input")

// Decoder reads SCALE values from a byte slice.
type Decoder struct {
	buf []byte
	pos int
}

func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

// Offset is the number of bytes consumed so far.
func (d *Decoder) Offset() int {
	return d.pos
}

// Remaining is the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

// Slice returns the input between two offsets.
func (d *Decoder) Slice(from, to int) []byte {
	return d.buf[from:to]
}

// ReadBytes reads exactly n bytes. The returned slice aliases the input.
func (d *Decoder) ReadBytes(n int) ([]byte, error) {
	if n < 0 || d.Remaining() < n {
		return nil, ErrUnexpectedEOF
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *Decoder) ReadByte() (byte, error) {
	b, err := d.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) ReadBool() (bool, error) {
	b, err := d.ReadByte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("scale: invalid bool byte 0x%02x", b)
	}
}

func (d *Decoder) ReadU16() (uint16, error) {
	b, err := d.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (d *Decoder) ReadU32() (uint32, error) {
	b, err := d.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *Decoder) ReadU64() (uint64, error) {
	b, err := d.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadUintBig reads an n-byte little-endian unsigned integer.
func (d *Decoder) ReadUintBig(n int) (*big.Int, error) {
	b, err := d.ReadBytes(n)
	if err != nil {
		return nil, err
	}
	return leToBig(b), nil
}

// ReadIntBig reads an n-byte little-endian two's complement integer.
func (d *Decoder) ReadIntBig(n int) (*big.Int, error) {
	v, err := d.ReadUintBig(n)
	if err != nil {
		return nil, err
	}
	if v.Bit(n*8-1) == 1 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(n*8)))
	}
	return v, nil
}

// ReadCompact reads a compact-encoded unsigned integer of any size.
func (d *Decoder) ReadCompact() (*big.Int, error) {
	b0, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	switch b0 & 0b11 {
	case 0b00:
		return big.NewInt(int64(b0 >> 2)), nil
	case 0b01:
		b1, err := d.ReadByte()
		if err != nil {
			return nil, err
		}
		return big.NewInt(int64(uint16(b0)|uint16(b1)<<8) >> 2), nil
	case 0b10:
		rest, err := d.ReadBytes(3)
		if err != nil {
			return nil, err
		}
		v := uint32(b0) | uint32(rest[0])<<8 | uint32(rest[1])<<16 | uint32(rest[2])<<24
		return new(big.Int).SetUint64(uint64(v >> 2)), nil
	default:
		n := int(b0>>2) + 4
		return d.ReadUintBig(n)
	}
}

// ReadCompactUint reads a compact integer that must fit in 64 bits.
func (d *Decoder) ReadCompactUint() (uint64, error) {
	v, err := d.ReadCompact()
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("scale: compact value %s overflows uint64", v)
	}
	return v.Uint64(), nil
}

// ReadLength reads a compact collection length and checks it against
// the remaining input, assuming every element takes at least minSize bytes.
func (d *Decoder) ReadLength(minSize int) (int, error) {
	n, err := d.ReadCompactUint()
	if err != nil {
		return 0, err
	}
	if minSize > 0 && n > uint64(d.Remaining()/minSize) {
		return 0, fmt.Errorf("scale: length %d exceeds remaining input", n)
	}
	if n > uint64(len(d.buf)) && minSize == 0 {
		// Zero-sized elements still need a sane bound.
		return 0, fmt.Errorf("scale: length %d out of range", n)
	}
	return int(n), nil
}

// ReadVec reads a compact-length-prefixed byte vector.
func (d *Decoder) ReadVec() ([]byte, error) {
	n, err := d.ReadLength(1)
	if err != nil {
		return nil, err
	}
	return d.ReadBytes(n)
}

func (d *Decoder) ReadString() (string, error) {
	b, err := d.ReadVec()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("scale: invalid utf-8 string")
	}
	return string(b), nil
}

// ReadOption reads the presence byte of an Option.
func (d *Decoder) ReadOption() (bool, error) {
	b, err := d.ReadByte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("scale: invalid option byte 0x%02x", b)
	}
}

// ReadCompactU32 reads a compact type id.
func (d *Decoder) ReadCompactU32() (uint32, error) {
	v, err := d.ReadCompactUint()
	if err != nil {
		return 0, err
	}
	if v > 1<<32-1 {
		return 0, fmt.Errorf("scale: compact u32 %d out of range", v)
	}
	return uint32(v), nil
}

func (d *Decoder) readStrings() ([]string, error) {
	n, err := d.ReadLength(1)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func leToBig(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i := range b {
		be[len(b)-1-i] = b[i]
	}
	return new(big.Int).SetBytes(be)
}
