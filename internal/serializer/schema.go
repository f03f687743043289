// Package serializer implements a schema-driven binary codec with a
// borsh-compatible byte layout: little-endian fixed-width integers,
// u32-length-prefixed strings and dynamic arrays, 1-byte option flags
// and 1-byte enum ordinals. The encoding is deterministic for a given
// (schema, value) pair; it carries no type information on the wire.
package serializer

import "fmt"

// Kind discriminates the FieldType sum.
type Kind int

const (
	KindUint Kind = iota
	KindBool
	KindString
	KindFixedArray
	KindDynArray
	KindTuple
	KindOption
	KindStruct
	KindEnum
)

// FieldType describes the shape of one encoded field. Construct values
// with the factory functions below; the zero value is not valid.
type FieldType struct {
	kind   Kind
	width  int         // KindUint: 1, 2, 4, 8 or 16 bytes
	length int         // KindFixedArray: element count
	elem   *FieldType  // element type for arrays and option
	elems  []FieldType // tuple members
	name   string      // struct or enum reference
}

func U8() FieldType   { return FieldType{kind: KindUint, width: 1} }
func U16() FieldType  { return FieldType{kind: KindUint, width: 2} }
func U32() FieldType  { return FieldType{kind: KindUint, width: 4} }
func U64() FieldType  { return FieldType{kind: KindUint, width: 8} }
func U128() FieldType { return FieldType{kind: KindUint, width: 16} }
func Bool() FieldType { return FieldType{kind: KindBool} }
func Str() FieldType  { return FieldType{kind: KindString} }

// FixedArray encodes exactly n elements with no length prefix.
func FixedArray(n int, elem FieldType) FieldType {
	return FieldType{kind: KindFixedArray, length: n, elem: &elem}
}

// DynArray encodes a u32 little-endian count followed by the elements.
func DynArray(elem FieldType) FieldType {
	return FieldType{kind: KindDynArray, elem: &elem}
}

// Tuple encodes its members back to back with no prefix.
func Tuple(elems ...FieldType) FieldType {
	return FieldType{kind: KindTuple, elems: elems}
}

// Option encodes a 1-byte presence flag, then the value if present.
func Option(elem FieldType) FieldType {
	return FieldType{kind: KindOption, elem: &elem}
}

// StructRef refers to a struct registered on the schema.
func StructRef(name string) FieldType { return FieldType{kind: KindStruct, name: name} }

// EnumRef refers to an enum registered on the schema.
func EnumRef(name string) FieldType { return FieldType{kind: KindEnum, name: name} }

// Field is one named member of a struct, or one enum variant shape.
type Field struct {
	Name string
	Type FieldType
}

// StructDef lists a struct's fields in encoding order.
type StructDef struct {
	Fields []Field
}

// EnumDef lists an enum's variants; the wire ordinal of a variant is its
// position in this list.
type EnumDef struct {
	Variants []Field
}

// Schema is the registry of named struct and enum shapes referenced by
// StructRef and EnumRef types.
type Schema struct {
	structs map[string]StructDef
	enums   map[string]EnumDef
}

func NewSchema() *Schema {
	return &Schema{
		structs: make(map[string]StructDef),
		enums:   make(map[string]EnumDef),
	}
}

func (s *Schema) AddStruct(name string, fields ...Field) *Schema {
	s.structs[name] = StructDef{Fields: fields}
	return s
}

func (s *Schema) AddEnum(name string, variants ...Field) *Schema {
	s.enums[name] = EnumDef{Variants: variants}
	return s
}

// Validate resolves every struct and enum reference reachable from the
// registered shapes, so missing definitions surface at construction
// time rather than mid-encode.
func (s *Schema) Validate() error {
	for name, def := range s.structs {
		for _, f := range def.Fields {
			if err := s.validateType(f.Type); err != nil {
				return fmt.Errorf("serializer: struct %s field %s: %w", name, f.Name, err)
			}
		}
	}
	for name, def := range s.enums {
		if len(def.Variants) > 256 {
			return fmt.Errorf("serializer: enum %s has %d variants, max 256", name, len(def.Variants))
		}
		for _, v := range def.Variants {
			if err := s.validateType(v.Type); err != nil {
				return fmt.Errorf("serializer: enum %s variant %s: %w", name, v.Name, err)
			}
		}
	}
	return nil
}

func (s *Schema) validateType(t FieldType) error {
	switch t.kind {
	case KindUint:
		switch t.width {
		case 1, 2, 4, 8, 16:
		default:
			return fmt.Errorf("unsupported integer width %d", t.width)
		}
	case KindBool, KindString:
	case KindFixedArray:
		if t.length < 0 {
			return fmt.Errorf("negative array length %d", t.length)
		}
		return s.validateType(*t.elem)
	case KindDynArray, KindOption:
		return s.validateType(*t.elem)
	case KindTuple:
		for _, e := range t.elems {
			if err := s.validateType(e); err != nil {
				return err
			}
		}
	case KindStruct:
		if _, ok := s.structs[t.name]; !ok {
			return fmt.Errorf("unknown struct %q", t.name)
		}
	case KindEnum:
		if _, ok := s.enums[t.name]; !ok {
			return fmt.Errorf("unknown enum %q", t.name)
		}
	default:
		return fmt.Errorf("unknown field kind %d", t.kind)
	}
	return nil
}

// EnumValue selects one variant of an enum and carries its payload.
type EnumValue struct {
	Variant string
	Value   any
}
