// Package scaletest builds SCALE-encoded runtime metadata and chain data
// for tests.
package scaletest

import (
	"bytes"
	"encoding/binary"
	"math/big"
)

// Encoder appends SCALE values to a buffer.
type Encoder struct {
	buf bytes.Buffer
}

func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

func (e *Encoder) Raw(b []byte) *Encoder {
	e.buf.Write(b)
	return e
}

func (e *Encoder) U8(v uint8) *Encoder {
	e.buf.WriteByte(v)
	return e
}

func (e *Encoder) Bool(v bool) *Encoder {
	if v {
		return e.U8(1)
	}
	return e.U8(0)
}

func (e *Encoder) U16(v uint16) *Encoder {
	return e.Raw(binary.LittleEndian.AppendUint16(nil, v))
}

func (e *Encoder) U32(v uint32) *Encoder {
	return e.Raw(binary.LittleEndian.AppendUint32(nil, v))
}

func (e *Encoder) U64(v uint64) *Encoder {
	return e.Raw(binary.LittleEndian.AppendUint64(nil, v))
}

// U128 writes v as a 16-byte little-endian integer.
func (e *Encoder) U128(v *big.Int) *Encoder {
	be := v.FillBytes(make([]byte, 16))
	le := make([]byte, 16)
	for i := range be {
		le[15-i] = be[i]
	}
	return e.Raw(le)
}

func (e *Encoder) Compact(v uint64) *Encoder {
	return e.Raw(Compact(v))
}

func (e *Encoder) Vec(b []byte) *Encoder {
	return e.Compact(uint64(len(b))).Raw(b)
}

func (e *Encoder) Str(s string) *Encoder {
	return e.Vec([]byte(s))
}

func (e *Encoder) Strs(ss ...string) *Encoder {
	e.Compact(uint64(len(ss)))
	for _, s := range ss {
		e.Str(s)
	}
	return e
}

// Compact returns the compact encoding of v.
func Compact(v uint64) []byte {
	switch {
	case v < 1<<6:
		return []byte{byte(v << 2)}
	case v < 1<<14:
		return binary.LittleEndian.AppendUint16(nil, uint16(v<<2|0b01))
	case v < 1<<30:
		return binary.LittleEndian.AppendUint32(nil, uint32(v<<2|0b10))
	}
	le := binary.LittleEndian.AppendUint64(nil, v)
	for len(le) > 4 && le[len(le)-1] == 0 {
		le = le[:len(le)-1]
	}
	return append([]byte{byte(len(le)-4)<<2 | 0b11}, le...)
}
