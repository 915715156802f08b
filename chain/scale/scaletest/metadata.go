package scaletest

import (
	"sort"

	"github.com/hyperdot/hyperdot-node/chain/scale"
)

// Builder assembles a V14 metadata blob.
type Builder struct {
	types     []*scale.Type
	pallets   []*scale.Pallet
	extrinsic scale.ExtrinsicInfo
	runtime   uint32
}

func (b *Builder) add(path []string, params []scale.TypeParam, def scale.TypeDef) uint32 {
	id := uint32(len(b.types))
	b.types = append(b.types, &scale.Type{ID: id, Path: path, Params: params, Def: def})
	return id
}

func (b *Builder) Primitive(p scale.Primitive) uint32 {
	return b.add(nil, nil, scale.TypeDef{Kind: scale.KindPrimitive, Primitive: p})
}

func (b *Builder) Composite(path []string, fields ...scale.Field) uint32 {
	return b.add(path, nil, scale.TypeDef{Kind: scale.KindComposite, Fields: fields})
}

func (b *Builder) CompositeWithParams(path []string, params []scale.TypeParam, fields ...scale.Field) uint32 {
	return b.add(path, params, scale.TypeDef{Kind: scale.KindComposite, Fields: fields})
}

func (b *Builder) Variant(path []string, variants ...scale.VariantDef) uint32 {
	return b.add(path, nil, scale.TypeDef{Kind: scale.KindVariant, Variants: variants})
}

func (b *Builder) Sequence(elem uint32) uint32 {
	return b.add(nil, nil, scale.TypeDef{Kind: scale.KindSequence, Elem: elem})
}

func (b *Builder) Array(n uint32, elem uint32) uint32 {
	return b.add(nil, nil, scale.TypeDef{Kind: scale.KindArray, Len: n, Elem: elem})
}

func (b *Builder) Tuple(elems ...uint32) uint32 {
	return b.add(nil, nil, scale.TypeDef{Kind: scale.KindTuple, Tuple: elems})
}

func (b *Builder) Compact(elem uint32) uint32 {
	return b.add(nil, nil, scale.TypeDef{Kind: scale.KindCompact, Elem: elem})
}

func (b *Builder) BitSequence(store, order uint32) uint32 {
	return b.add(nil, nil, scale.TypeDef{Kind: scale.KindBitSequence, BitStore: store, BitOrder: order})
}

func (b *Builder) AddPallet(p *scale.Pallet) {
	b.pallets = append(b.pallets, p)
}

func (b *Builder) SetExtrinsic(info scale.ExtrinsicInfo) {
	b.extrinsic = info
}

func (b *Builder) SetRuntimeType(id uint32) {
	b.runtime = id
}

// Registry returns the types added so far.
func (b *Builder) Registry() *scale.Registry {
	return scale.NewRegistry(b.types)
}

// Encode returns the metadata as served by state_getMetadata.
func (b *Builder) Encode() []byte {
	e := &Encoder{}
	e.Raw([]byte("meta")).U8(14)

	e.Compact(uint64(len(b.types)))
	for _, t := range b.types {
		e.Compact(uint64(t.ID))
		e.Strs(t.Path...)
		e.Compact(uint64(len(t.Params)))
		for _, p := range t.Params {
			e.Str(p.Name)
			if p.Type == nil {
				e.U8(0)
			} else {
				e.U8(1).Compact(uint64(*p.Type))
			}
		}
		encodeDef(e, t.Def)
		e.Strs()
	}

	e.Compact(uint64(len(b.pallets)))
	for _, p := range b.pallets {
		encodePallet(e, p)
	}

	e.Compact(uint64(b.extrinsic.Type)).U8(b.extrinsic.Version)
	e.Compact(uint64(len(b.extrinsic.SignedExtensions)))
	for _, ext := range b.extrinsic.SignedExtensions {
		e.Str(ext.Identifier).Compact(uint64(ext.Type)).Compact(uint64(ext.AdditionalSigned))
	}
	e.Compact(uint64(b.runtime))
	return e.Bytes()
}

func encodeFields(e *Encoder, fields []scale.Field) {
	e.Compact(uint64(len(fields)))
	for _, f := range fields {
		optionalString(e, f.Name)
		e.Compact(uint64(f.Type))
		optionalString(e, f.TypeName)
		e.Strs()
	}
}

func optionalString(e *Encoder, s string) {
	if s == "" {
		e.U8(0)
		return
	}
	e.U8(1).Str(s)
}

func optionalType(e *Encoder, id *uint32) {
	if id == nil {
		e.U8(0)
		return
	}
	e.U8(1).Compact(uint64(*id))
}

func encodeDef(e *Encoder, def scale.TypeDef) {
	e.U8(uint8(def.Kind))
	switch def.Kind {
	case scale.KindComposite:
		encodeFields(e, def.Fields)
	case scale.KindVariant:
		e.Compact(uint64(len(def.Variants)))
		for _, v := range def.Variants {
			e.Str(v.Name)
			encodeFields(e, v.Fields)
			e.U8(v.Index)
			e.Strs()
		}
	case scale.KindSequence, scale.KindCompact:
		e.Compact(uint64(def.Elem))
	case scale.KindArray:
		e.U32(def.Len).Compact(uint64(def.Elem))
	case scale.KindTuple:
		e.Compact(uint64(len(def.Tuple)))
		for _, id := range def.Tuple {
			e.Compact(uint64(id))
		}
	case scale.KindPrimitive:
		e.U8(uint8(def.Primitive))
	case scale.KindBitSequence:
		e.Compact(uint64(def.BitStore)).Compact(uint64(def.BitOrder))
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func encodePallet(e *Encoder, p *scale.Pallet) {
	e.Str(p.Name)
	if p.StoragePrefix == "" {
		e.U8(0)
	} else {
		e.U8(1).Str(p.StoragePrefix)
		e.Compact(uint64(len(p.Storage)))
		for _, name := range sortedKeys(p.Storage) {
			s := p.Storage[name]
			e.Str(s.Name)
			if s.Optional {
				e.U8(0)
			} else {
				e.U8(1)
			}
			if s.Plain {
				e.U8(0).Compact(uint64(s.ValueType))
			} else {
				e.U8(1).Compact(uint64(len(s.Hashers)))
				for _, h := range s.Hashers {
					e.U8(uint8(h))
				}
				e.Compact(uint64(s.KeyType)).Compact(uint64(s.ValueType))
			}
			e.Vec(s.Default)
			e.Strs()
		}
	}
	optionalType(e, p.CallType)
	optionalType(e, p.EventType)
	e.Compact(uint64(len(p.Constants)))
	for _, name := range sortedKeys(p.Constants) {
		c := p.Constants[name]
		e.Str(c.Name).Compact(uint64(c.Type)).Vec(c.Value).Strs()
	}
	optionalType(e, p.ErrorType)
	e.U8(p.Index)
}

// Option adds Option<elem>.
func (b *Builder) Option(elem uint32) uint32 {
	return b.add([]string{"Option"}, []scale.TypeParam{{Name: "T", Type: &elem}}, scale.TypeDef{
		Kind: scale.KindVariant,
		Variants: []scale.VariantDef{
			{Name: "None", Index: 0},
			{Name: "Some", Index: 1, Fields: []scale.Field{{Type: elem}}},
		},
	})
}
