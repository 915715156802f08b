package scale

import "fmt"

// TypeDefKind enumerates the shapes of a portable registry type.
type TypeDefKind uint8

const (
	KindComposite TypeDefKind = iota
	KindVariant
	KindSequence
	KindArray
	KindTuple
	KindPrimitive
	KindCompact
	KindBitSequence
)

// Primitive enumerates the primitive types of the registry.
type Primitive uint8

const (
	PrimBool Primitive = iota
	PrimChar
	PrimStr
	PrimU8
	PrimU16
	PrimU32
	PrimU64
	PrimU128
	PrimU256
	PrimI8
	PrimI16
	PrimI32
	PrimI64
	PrimI128
	PrimI256
)

type Field struct {
	Name     string
	Type     uint32
	TypeName string
}

// VariantDef is one case of an enum type in the registry.
type VariantDef struct {
	Name   string
	Fields []Field
	Index  uint8
}

type TypeParam struct {
	Name string
	Type *uint32
}

// TypeDef is the definition of one registry type. Only the fields that
// belong to Kind are populated.
type TypeDef struct {
	Kind      TypeDefKind
	Fields    []Field
	Variants  []VariantDef
	Elem      uint32
	Len       uint32
	Tuple     []uint32
	Primitive Primitive
	BitStore  uint32
	BitOrder  uint32
}

type Type struct {
	ID     uint32
	Path   []string
	Params []TypeParam
	Def    TypeDef
}

// Param returns the type id bound to the named type parameter.
func (t *Type) Param(name string) (uint32, bool) {
	for _, p := range t.Params {
		if p.Name == name && p.Type != nil {
			return *p.Type, true
		}
	}
	return 0, false
}

// VariantByIndex finds a variant by its encoded index.
func (t *Type) VariantByIndex(idx uint8) (*VariantDef, bool) {
	for i := range t.Def.Variants {
		if t.Def.Variants[i].Index == idx {
			return &t.Def.Variants[i], true
		}
	}
	return nil, false
}

// Registry is the portable type registry of a runtime.
type Registry struct {
	types map[uint32]*Type
}

func NewRegistry(types []*Type) *Registry {
	r := &Registry{types: make(map[uint32]*Type, len(types))}
	for _, t := range types {
		r.types[t.ID] = t
	}
	return r
}

func (r *Registry) Type(id uint32) (*Type, error) {
	t, ok := r.types[id]
	if !ok {
		return nil, fmt.Errorf("scale: type %d not in registry", id)
	}
	return t, nil
}

func (r *Registry) Len() int {
	return len(r.types)
}

// isByte reports whether id resolves to u8, looking through single-field
// composites.
func (r *Registry) isByte(id uint32) bool {
	for i := 0; i < 8; i++ {
		t, ok := r.types[id]
		if !ok {
			return false
		}
		switch t.Def.Kind {
		case KindPrimitive:
			return t.Def.Primitive == PrimU8
		case KindComposite:
			if len(t.Def.Fields) != 1 {
				return false
			}
			id = t.Def.Fields[0].Type
		default:
			return false
		}
	}
	return false
}
