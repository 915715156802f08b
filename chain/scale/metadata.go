package scale

import (
	"fmt"
)

// metadataMagic is "meta" read as a little-endian u32.
const metadataMagic = 0x6174656d

const supportedMetadataVersion = 14

type StorageHasher uint8

const (
	HasherBlake2_128 StorageHasher = iota
	HasherBlake2_256
	HasherBlake2_128Concat
	HasherTwox128
	HasherTwox256
	HasherTwox64Concat
	HasherIdentity
)

// StorageEntry describes one storage item of a pallet.
type StorageEntry struct {
	Name string
	// Optional entries read as absent when the key is missing; the
	// others fall back to Default.
	Optional  bool
	Plain     bool
	Hashers   []StorageHasher
	KeyType   uint32
	ValueType uint32
	Default   []byte
}

type Constant struct {
	Name  string
	Type  uint32
	Value []byte
}

type Pallet struct {
	Name          string
	Index         uint8
	StoragePrefix string
	Storage       map[string]*StorageEntry
	CallType      *uint32
	EventType     *uint32
	ErrorType     *uint32
	Constants     map[string]*Constant
}

type SignedExtension struct {
	Identifier       string
	Type             uint32
	AdditionalSigned uint32
}

type ExtrinsicInfo struct {
	Type             uint32
	Version          uint8
	SignedExtensions []SignedExtension
}

// Metadata is the decoded V14 runtime metadata.
type Metadata struct {
	Registry    *Registry
	Pallets     []*Pallet
	Extrinsic   ExtrinsicInfo
	RuntimeType uint32

	byName map[string]*Pallet
}

func (m *Metadata) Pallet(name string) (*Pallet, bool) {
	p, ok := m.byName[name]
	return p, ok
}

func (m *Metadata) StorageEntry(pallet, item string) (*Pallet, *StorageEntry, error) {
	p, ok := m.Pallet(pallet)
	if !ok {
		return nil, nil, fmt.Errorf("scale: pallet %s not in metadata", pallet)
	}
	e, ok := p.Storage[item]
	if !ok {
		return nil, nil, fmt.Errorf("scale: storage %s.%s not in metadata", pallet, item)
	}
	return p, e, nil
}

func (m *Metadata) Constant(pallet, name string) (*Constant, error) {
	p, ok := m.Pallet(pallet)
	if !ok {
		return nil, fmt.Errorf("scale: pallet %s not in metadata", pallet)
	}
	c, ok := p.Constants[name]
	if !ok {
		return nil, fmt.Errorf("scale: constant %s.%s not in metadata", pallet, name)
	}
	return c, nil
}

// DecodeMetadata parses the bytes returned by state_getMetadata.
func DecodeMetadata(raw []byte) (*Metadata, error) {
	d := NewDecoder(raw)
	magic, err := d.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("metadata magic: %w", err)
	}
	if magic != metadataMagic {
		return nil, fmt.Errorf("scale: bad metadata magic 0x%08x", magic)
	}
	version, err := d.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("metadata version: %w", err)
	}
	if version != supportedMetadataVersion {
		return nil, fmt.Errorf("scale: unsupported metadata version %d", version)
	}

	types, err := decodeTypes(d)
	if err != nil {
		return nil, fmt.Errorf("metadata types: %w", err)
	}
	md := &Metadata{
		Registry: NewRegistry(types),
		byName:   map[string]*Pallet{},
	}

	nPallets, err := d.ReadLength(1)
	if err != nil {
		return nil, err
	}
	for i := 0; i < nPallets; i++ {
		p, err := decodePallet(d)
		if err != nil {
			return nil, fmt.Errorf("metadata pallet %d: %w", i, err)
		}
		md.Pallets = append(md.Pallets, p)
		md.byName[p.Name] = p
	}

	if md.Extrinsic, err = decodeExtrinsicInfo(d); err != nil {
		return nil, fmt.Errorf("metadata extrinsic: %w", err)
	}
	if md.RuntimeType, err = d.ReadCompactU32(); err != nil {
		return nil, fmt.Errorf("metadata runtime type: %w", err)
	}
	return md, nil
}

func decodeTypes(d *Decoder) ([]*Type, error) {
	n, err := d.ReadLength(1)
	if err != nil {
		return nil, err
	}
	types := make([]*Type, 0, n)
	for i := 0; i < n; i++ {
		id, err := d.ReadCompactU32()
		if err != nil {
			return nil, err
		}
		t := &Type{ID: id}
		if t.Path, err = d.readStrings(); err != nil {
			return nil, err
		}
		if t.Params, err = decodeTypeParams(d); err != nil {
			return nil, err
		}
		if t.Def, err = decodeTypeDef(d); err != nil {
			return nil, fmt.Errorf("type %d: %w", id, err)
		}
		if _, err = d.readStrings(); err != nil { // docs
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

func decodeTypeParams(d *Decoder) ([]TypeParam, error) {
	n, err := d.ReadLength(1)
	if err != nil {
		return nil, err
	}
	params := make([]TypeParam, 0, n)
	for i := 0; i < n; i++ {
		name, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		p := TypeParam{Name: name}
		present, err := d.ReadOption()
		if err != nil {
			return nil, err
		}
		if present {
			ty, err := d.ReadCompactU32()
			if err != nil {
				return nil, err
			}
			p.Type = &ty
		}
		params = append(params, p)
	}
	return params, nil
}

func decodeFields(d *Decoder) ([]Field, error) {
	n, err := d.ReadLength(1)
	if err != nil {
		return nil, err
	}
	fields := make([]Field, 0, n)
	for i := 0; i < n; i++ {
		var f Field
		if f.Name, err = readOptionalString(d); err != nil {
			return nil, err
		}
		if f.Type, err = d.ReadCompactU32(); err != nil {
			return nil, err
		}
		if f.TypeName, err = readOptionalString(d); err != nil {
			return nil, err
		}
		if _, err = d.readStrings(); err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func decodeTypeDef(d *Decoder) (TypeDef, error) {
	tag, err := d.ReadByte()
	if err != nil {
		return TypeDef{}, err
	}
	def := TypeDef{Kind: TypeDefKind(tag)}
	switch def.Kind {
	case KindComposite:
		def.Fields, err = decodeFields(d)
	case KindVariant:
		var n int
		if n, err = d.ReadLength(1); err != nil {
			return def, err
		}
		for i := 0; i < n; i++ {
			var v VariantDef
			if v.Name, err = d.ReadString(); err != nil {
				return def, err
			}
			if v.Fields, err = decodeFields(d); err != nil {
				return def, err
			}
			if v.Index, err = d.ReadByte(); err != nil {
				return def, err
			}
			if _, err = d.readStrings(); err != nil {
				return def, err
			}
			def.Variants = append(def.Variants, v)
		}
	case KindSequence, KindCompact:
		def.Elem, err = d.ReadCompactU32()
	case KindArray:
		if def.Len, err = d.ReadU32(); err != nil {
			return def, err
		}
		def.Elem, err = d.ReadCompactU32()
	case KindTuple:
		var n int
		if n, err = d.ReadLength(1); err != nil {
			return def, err
		}
		for i := 0; i < n; i++ {
			var id uint32
			if id, err = d.ReadCompactU32(); err != nil {
				return def, err
			}
			def.Tuple = append(def.Tuple, id)
		}
	case KindPrimitive:
		var p byte
		if p, err = d.ReadByte(); err != nil {
			return def, err
		}
		if Primitive(p) > PrimI256 {
			return def, fmt.Errorf("scale: unknown primitive %d", p)
		}
		def.Primitive = Primitive(p)
	case KindBitSequence:
		if def.BitStore, err = d.ReadCompactU32(); err != nil {
			return def, err
		}
		def.BitOrder, err = d.ReadCompactU32()
	default:
		return def, fmt.Errorf("scale: unknown type definition tag %d", tag)
	}
	return def, err
}

func readOptionalString(d *Decoder) (string, error) {
	present, err := d.ReadOption()
	if err != nil || !present {
		return "", err
	}
	return d.ReadString()
}

func readOptionalType(d *Decoder) (*uint32, error) {
	present, err := d.ReadOption()
	if err != nil || !present {
		return nil, err
	}
	ty, err := d.ReadCompactU32()
	if err != nil {
		return nil, err
	}
	return &ty, nil
}

func decodePallet(d *Decoder) (*Pallet, error) {
	name, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	p := &Pallet{
		Name:      name,
		Storage:   map[string]*StorageEntry{},
		Constants: map[string]*Constant{},
	}

	hasStorage, err := d.ReadOption()
	if err != nil {
		return nil, err
	}
	if hasStorage {
		if p.StoragePrefix, err = d.ReadString(); err != nil {
			return nil, err
		}
		n, err := d.ReadLength(1)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			e, err := decodeStorageEntry(d)
			if err != nil {
				return nil, fmt.Errorf("storage entry %d: %w", i, err)
			}
			p.Storage[e.Name] = e
		}
	}

	if p.CallType, err = readOptionalType(d); err != nil {
		return nil, err
	}
	if p.EventType, err = readOptionalType(d); err != nil {
		return nil, err
	}

	nConst, err := d.ReadLength(1)
	if err != nil {
		return nil, err
	}
	for i := 0; i < nConst; i++ {
		c := &Constant{}
		if c.Name, err = d.ReadString(); err != nil {
			return nil, err
		}
		if c.Type, err = d.ReadCompactU32(); err != nil {
			return nil, err
		}
		if c.Value, err = d.ReadVec(); err != nil {
			return nil, err
		}
		if _, err = d.readStrings(); err != nil {
			return nil, err
		}
		p.Constants[c.Name] = c
	}

	if p.ErrorType, err = readOptionalType(d); err != nil {
		return nil, err
	}
	if p.Index, err = d.ReadByte(); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeStorageEntry(d *Decoder) (*StorageEntry, error) {
	name, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	e := &StorageEntry{Name: name}
	modifier, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	e.Optional = modifier == 0

	kind, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	switch kind {
	case 0:
		e.Plain = true
		if e.ValueType, err = d.ReadCompactU32(); err != nil {
			return nil, err
		}
	case 1:
		n, err := d.ReadLength(1)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			h, err := d.ReadByte()
			if err != nil {
				return nil, err
			}
			e.Hashers = append(e.Hashers, StorageHasher(h))
		}
		if e.KeyType, err = d.ReadCompactU32(); err != nil {
			return nil, err
		}
		if e.ValueType, err = d.ReadCompactU32(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("scale: unknown storage entry kind %d", kind)
	}

	if e.Default, err = d.ReadVec(); err != nil {
		return nil, err
	}
	if _, err = d.readStrings(); err != nil {
		return nil, err
	}
	return e, nil
}

func decodeExtrinsicInfo(d *Decoder) (ExtrinsicInfo, error) {
	var info ExtrinsicInfo
	var err error
	if info.Type, err = d.ReadCompactU32(); err != nil {
		return info, err
	}
	if info.Version, err = d.ReadByte(); err != nil {
		return info, err
	}
	n, err := d.ReadLength(1)
	if err != nil {
		return info, err
	}
	for i := 0; i < n; i++ {
		var ext SignedExtension
		if ext.Identifier, err = d.ReadString(); err != nil {
			return info, err
		}
		if ext.Type, err = d.ReadCompactU32(); err != nil {
			return info, err
		}
		if ext.AdditionalSigned, err = d.ReadCompactU32(); err != nil {
			return info, err
		}
		info.SignedExtensions = append(info.SignedExtensions, ext)
	}
	return info, nil
}
