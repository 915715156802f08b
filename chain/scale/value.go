package scale

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

const maxDecodeDepth = 128

// Composite is a decoded struct or tuple. Names is empty for unnamed
// fields. It marshals to a JSON object when fields are named and to an
// array otherwise.
type Composite struct {
	Names  []string
	Values []any
}

// Get returns the value of a named field.
func (c *Composite) Get(name string) (any, bool) {
	if c == nil {
		return nil, false
	}
	for i, n := range c.Names {
		if n == name {
			return c.Values[i], true
		}
	}
	return nil, false
}

func (c *Composite) named() bool {
	return c != nil && len(c.Names) > 0 && len(c.Names) == len(c.Values)
}

func (c *Composite) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	if !c.named() {
		values := c.Values
		if values == nil {
			values = []any{}
		}
		return json.Marshal(values)
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range c.Names {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(c.Values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Variant is a decoded enum value.
type Variant struct {
	Name   string
	Index  uint8
	Fields *Composite
}

// Inner returns the single unnamed field of a wrapping variant such as
// RuntimeCall::Balances(call).
func (v *Variant) Inner() (*Variant, bool) {
	if v == nil || v.Fields == nil || len(v.Fields.Values) != 1 {
		return nil, false
	}
	inner, ok := v.Fields.Values[0].(*Variant)
	return inner, ok
}

func (v *Variant) MarshalJSON() ([]byte, error) {
	fields := v.Fields
	if fields == nil {
		fields = &Composite{}
	}
	values, err := fields.MarshalJSON()
	if err != nil {
		return nil, err
	}
	name, err := json.Marshal(v.Name)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf(`{"name":%s,"values":%s}`, name, values)), nil
}

// Decode decodes one value of registry type id. The result is built from
// bool, string, uint64, int64, *big.Int, hexutil.Bytes, []any,
// *Composite and *Variant, and marshals to JSON without loss.
func (r *Registry) Decode(d *Decoder, id uint32) (any, error) {
	return r.decode(d, id, 0)
}

// DecodeBytes decodes raw as a single value of type id and requires the
// whole input to be consumed.
func (r *Registry) DecodeBytes(raw []byte, id uint32) (any, error) {
	d := NewDecoder(raw)
	v, err := r.Decode(d, id)
	if err != nil {
		return nil, err
	}
	if d.Remaining() != 0 {
		return nil, fmt.Errorf("scale: %d trailing bytes after type %d", d.Remaining(), id)
	}
	return v, nil
}

func (r *Registry) decode(d *Decoder, id uint32, depth int) (any, error) {
	if depth > maxDecodeDepth {
		return nil, fmt.Errorf("scale: type %d nested too deeply", id)
	}
	t, err := r.Type(id)
	if err != nil {
		return nil, err
	}

	switch t.Def.Kind {
	case KindComposite:
		c, err := r.decodeFields(d, t.Def.Fields, depth)
		if err != nil {
			return nil, err
		}
		// Newtypes such as AccountId32([u8; 32]) collapse to their field.
		if len(c.Values) == 1 && !c.named() {
			return c.Values[0], nil
		}
		return c, nil

	case KindVariant:
		idx, err := d.ReadByte()
		if err != nil {
			return nil, err
		}
		v, ok := t.VariantByIndex(idx)
		if !ok {
			return nil, fmt.Errorf("scale: type %d has no variant %d", id, idx)
		}
		fields, err := r.decodeFields(d, v.Fields, depth)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", v.Name, err)
		}
		if isOption(t) {
			if v.Name == "None" {
				return nil, nil
			}
			return fields.Values[0], nil
		}
		return &Variant{Name: v.Name, Index: idx, Fields: fields}, nil

	case KindSequence:
		n, err := d.ReadLength(0)
		if err != nil {
			return nil, err
		}
		return r.decodeList(d, t.Def.Elem, n, depth)

	case KindArray:
		return r.decodeList(d, t.Def.Elem, int(t.Def.Len), depth)

	case KindTuple:
		values := make([]any, 0, len(t.Def.Tuple))
		for _, elem := range t.Def.Tuple {
			v, err := r.decode(d, elem, depth+1)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return values, nil

	case KindPrimitive:
		return decodePrimitive(d, t.Def.Primitive)

	case KindCompact:
		v, err := d.ReadCompact()
		if err != nil {
			return nil, err
		}
		if v.IsUint64() {
			return v.Uint64(), nil
		}
		return v, nil

	case KindBitSequence:
		return r.decodeBitSequence(d, t)
	}
	return nil, fmt.Errorf("scale: type %d has unknown kind %d", id, t.Def.Kind)
}

func isOption(t *Type) bool {
	return len(t.Path) == 1 && t.Path[0] == "Option" && len(t.Def.Variants) == 2
}

func (r *Registry) decodeFields(d *Decoder, fields []Field, depth int) (*Composite, error) {
	c := &Composite{Values: make([]any, 0, len(fields))}
	named := len(fields) > 0 && fields[0].Name != ""
	for _, f := range fields {
		v, err := r.decode(d, f.Type, depth+1)
		if err != nil {
			if f.Name != "" {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			return nil, err
		}
		if named {
			c.Names = append(c.Names, f.Name)
		}
		c.Values = append(c.Values, v)
	}
	return c, nil
}

func (r *Registry) decodeList(d *Decoder, elem uint32, n int, depth int) (any, error) {
	if r.isByte(elem) {
		b, err := d.ReadBytes(n)
		if err != nil {
			return nil, err
		}
		return hexutil.Bytes(append([]byte{}, b...)), nil
	}
	values := make([]any, 0, min(n, d.Remaining()))
	for i := 0; i < n; i++ {
		v, err := r.decode(d, elem, depth+1)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func (r *Registry) decodeBitSequence(d *Decoder, t *Type) (any, error) {
	bits, err := d.ReadCompactUint()
	if err != nil {
		return nil, err
	}
	storeSize := 1
	if st, err := r.Type(t.Def.BitStore); err == nil && st.Def.Kind == KindPrimitive {
		switch st.Def.Primitive {
		case PrimU16:
			storeSize = 2
		case PrimU32:
			storeSize = 4
		case PrimU64:
			storeSize = 8
		}
	}
	storeBits := uint64(storeSize * 8)
	words := (bits + storeBits - 1) / storeBits
	if words > uint64(d.Remaining()) {
		return nil, ErrUnexpectedEOF
	}
	b, err := d.ReadBytes(int(words) * storeSize)
	if err != nil {
		return nil, err
	}
	return hexutil.Bytes(append([]byte{}, b...)), nil
}

func decodePrimitive(d *Decoder, p Primitive) (any, error) {
	switch p {
	case PrimBool:
		return d.ReadBool()
	case PrimChar:
		v, err := d.ReadU32()
		if err != nil {
			return nil, err
		}
		return string(rune(v)), nil
	case PrimStr:
		return d.ReadString()
	case PrimU8:
		b, err := d.ReadByte()
		return uint64(b), err
	case PrimU16:
		v, err := d.ReadU16()
		return uint64(v), err
	case PrimU32:
		v, err := d.ReadU32()
		return uint64(v), err
	case PrimU64:
		return d.ReadU64()
	case PrimU128:
		return d.ReadUintBig(16)
	case PrimU256:
		return d.ReadUintBig(32)
	case PrimI8:
		b, err := d.ReadByte()
		return int64(int8(b)), err
	case PrimI16:
		v, err := d.ReadU16()
		return int64(int16(v)), err
	case PrimI32:
		v, err := d.ReadU32()
		return int64(int32(v)), err
	case PrimI64:
		v, err := d.ReadU64()
		return int64(v), err
	case PrimI128:
		return d.ReadIntBig(16)
	case PrimI256:
		return d.ReadIntBig(32)
	}
	return nil, fmt.Errorf("scale: unknown primitive %d", p)
}

// AsUint64 converts a decoded unsigned value to uint64.
func AsUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case *big.Int:
		if n.IsUint64() {
			return n.Uint64(), true
		}
	}
	return 0, false
}

// AsBytes converts a decoded byte sequence to []byte.
func AsBytes(v any) ([]byte, bool) {
	b, ok := v.(hexutil.Bytes)
	return b, ok
}
