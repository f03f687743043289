package serializer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"
)

var maxU128 = new(big.Int).Lsh(big.NewInt(1), 128)

// Marshal encodes value according to t against the schema's registered
// shapes. A runtime value whose type does not match the declared field
// type is an error, never a coercion.
func Marshal(s *Schema, t FieldType, value any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(s, &buf, t, value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(s *Schema, buf *bytes.Buffer, t FieldType, value any) error {
	switch t.kind {
	case KindUint:
		return encodeUint(buf, t.width, value)
	case KindBool:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("serializer: expected bool, got %T", value)
		}
		if b {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		return nil
	case KindString:
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("serializer: expected string, got %T", value)
		}
		var lp [4]byte
		binary.LittleEndian.PutUint32(lp[:], uint32(len(str)))
		buf.Write(lp[:])
		buf.WriteString(str)
		return nil
	case KindFixedArray:
		elems, err := arrayElems(t, value)
		if err != nil {
			return err
		}
		if len(elems) != t.length {
			return fmt.Errorf("serializer: fixed array expects %d elements, got %d", t.length, len(elems))
		}
		for _, e := range elems {
			if err := encode(s, buf, *t.elem, e); err != nil {
				return err
			}
		}
		return nil
	case KindDynArray:
		elems, err := arrayElems(t, value)
		if err != nil {
			return err
		}
		var lp [4]byte
		binary.LittleEndian.PutUint32(lp[:], uint32(len(elems)))
		buf.Write(lp[:])
		for _, e := range elems {
			if err := encode(s, buf, *t.elem, e); err != nil {
				return err
			}
		}
		return nil
	case KindTuple:
		elems, ok := value.([]any)
		if !ok {
			return fmt.Errorf("serializer: expected tuple slice, got %T", value)
		}
		if len(elems) != len(t.elems) {
			return fmt.Errorf("serializer: tuple expects %d elements, got %d", len(t.elems), len(elems))
		}
		for i, e := range elems {
			if err := encode(s, buf, t.elems[i], e); err != nil {
				return err
			}
		}
		return nil
	case KindOption:
		if value == nil {
			buf.WriteByte(0)
			return nil
		}
		buf.WriteByte(1)
		return encode(s, buf, *t.elem, value)
	case KindStruct:
		def, ok := s.structs[t.name]
		if !ok {
			return fmt.Errorf("serializer: unknown struct %q", t.name)
		}
		m, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("serializer: struct %s expects a map, got %T", t.name, value)
		}
		for _, f := range def.Fields {
			if err := encode(s, buf, f.Type, m[f.Name]); err != nil {
				return fmt.Errorf("serializer: struct %s field %s: %w", t.name, f.Name, err)
			}
		}
		return nil
	case KindEnum:
		def, ok := s.enums[t.name]
		if !ok {
			return fmt.Errorf("serializer: unknown enum %q", t.name)
		}
		ev, ok := value.(EnumValue)
		if !ok {
			return fmt.Errorf("serializer: enum %s expects an EnumValue, got %T", t.name, value)
		}
		for i, v := range def.Variants {
			if v.Name == ev.Variant {
				buf.WriteByte(byte(i))
				if err := encode(s, buf, v.Type, ev.Value); err != nil {
					return fmt.Errorf("serializer: enum %s variant %s: %w", t.name, v.Name, err)
				}
				return nil
			}
		}
		return fmt.Errorf("serializer: enum %s has no variant %q", t.name, ev.Variant)
	default:
		return fmt.Errorf("serializer: unknown field kind %d", t.kind)
	}
}

func encodeUint(buf *bytes.Buffer, width int, value any) error {
	if width == 16 {
		n, ok := value.(*big.Int)
		if !ok {
			if u, uok := toUint64(value); uok {
				n = new(big.Int).SetUint64(u)
			} else {
				return fmt.Errorf("serializer: expected *big.Int for u128, got %T", value)
			}
		}
		if n.Sign() < 0 || n.Cmp(maxU128) >= 0 {
			return fmt.Errorf("serializer: value %s out of range for u128", n)
		}
		var out [16]byte
		n.FillBytes(out[:])
		// borsh integers are little-endian
		for i, j := 0, 15; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
		buf.Write(out[:])
		return nil
	}
	u, ok := toUint64(value)
	if !ok {
		return fmt.Errorf("serializer: expected unsigned integer, got %T", value)
	}
	if width < 8 && u >= 1<<(8*width) {
		return fmt.Errorf("serializer: value %d out of range for u%d", u, 8*width)
	}
	var out [8]byte
	binary.LittleEndian.PutUint64(out[:], u)
	buf.Write(out[:width])
	return nil
}

func toUint64(value any) (uint64, bool) {
	switch v := value.(type) {
	case uint64:
		return v, true
	case uint32:
		return uint64(v), true
	case uint16:
		return uint64(v), true
	case uint8:
		return uint64(v), true
	case uint:
		return uint64(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}

func arrayElems(t FieldType, value any) ([]any, error) {
	switch v := value.(type) {
	case []any:
		return v, nil
	case []byte:
		if t.elem.kind != KindUint || t.elem.width != 1 {
			return nil, fmt.Errorf("serializer: []byte only encodes u8 arrays")
		}
		out := make([]any, len(v))
		for i, b := range v {
			out[i] = uint64(b)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("serializer: expected slice, got %T", value)
	}
}

// Unmarshal decodes data according to t. Decoding must consume the
// input exactly; leftover bytes mean the schema and payload disagree.
func Unmarshal(s *Schema, t FieldType, data []byte) (any, error) {
	r := &reader{data: data}
	v, err := decode(s, r, t)
	if err != nil {
		return nil, err
	}
	if r.pos != len(data) {
		return nil, fmt.Errorf("serializer: %d trailing bytes after decode", len(data)-r.pos)
	}
	return v, nil
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("serializer: unexpected end of input at offset %d, need %d bytes", r.pos, n)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) byte() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func decode(s *Schema, r *reader, t FieldType) (any, error) {
	switch t.kind {
	case KindUint:
		b, err := r.take(t.width)
		if err != nil {
			return nil, err
		}
		if t.width == 16 {
			be := make([]byte, 16)
			for i := range be {
				be[i] = b[15-i]
			}
			return new(big.Int).SetBytes(be), nil
		}
		var u uint64
		for i := t.width - 1; i >= 0; i-- {
			u = u<<8 | uint64(b[i])
		}
		return u, nil
	case KindBool:
		b, err := r.byte()
		if err != nil {
			return nil, err
		}
		switch b {
		case 0:
			return false, nil
		case 1:
			return true, nil
		default:
			return nil, fmt.Errorf("serializer: invalid bool byte 0x%02x", b)
		}
	case KindString:
		n, err := r.take(4)
		if err != nil {
			return nil, err
		}
		b, err := r.take(int(binary.LittleEndian.Uint32(n)))
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case KindFixedArray:
		return decodeElems(s, r, *t.elem, t.length)
	case KindDynArray:
		n, err := r.take(4)
		if err != nil {
			return nil, err
		}
		return decodeElems(s, r, *t.elem, int(binary.LittleEndian.Uint32(n)))
	case KindTuple:
		out := make([]any, len(t.elems))
		for i, et := range t.elems {
			v, err := decode(s, r, et)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case KindOption:
		flag, err := r.byte()
		if err != nil {
			return nil, err
		}
		switch flag {
		case 0:
			return nil, nil
		case 1:
			return decode(s, r, *t.elem)
		default:
			return nil, fmt.Errorf("serializer: invalid option flag 0x%02x", flag)
		}
	case KindStruct:
		def, ok := s.structs[t.name]
		if !ok {
			return nil, fmt.Errorf("serializer: unknown struct %q", t.name)
		}
		m := make(map[string]any, len(def.Fields))
		for _, f := range def.Fields {
			v, err := decode(s, r, f.Type)
			if err != nil {
				return nil, fmt.Errorf("serializer: struct %s field %s: %w", t.name, f.Name, err)
			}
			m[f.Name] = v
		}
		return m, nil
	case KindEnum:
		def, ok := s.enums[t.name]
		if !ok {
			return nil, fmt.Errorf("serializer: unknown enum %q", t.name)
		}
		ord, err := r.byte()
		if err != nil {
			return nil, err
		}
		if int(ord) >= len(def.Variants) {
			return nil, fmt.Errorf("serializer: enum %s ordinal %d out of range", t.name, ord)
		}
		variant := def.Variants[ord]
		v, err := decode(s, r, variant.Type)
		if err != nil {
			return nil, fmt.Errorf("serializer: enum %s variant %s: %w", t.name, variant.Name, err)
		}
		return EnumValue{Variant: variant.Name, Value: v}, nil
	default:
		return nil, fmt.Errorf("serializer: unknown field kind %d", t.kind)
	}
}

func decodeElems(s *Schema, r *reader, elem FieldType, n int) (any, error) {
	if elem.kind == KindUint && elem.width == 1 {
		b, err := r.take(n)
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), b...), nil
	}
	out := make([]any, n)
	for i := 0; i < n; i++ {
		v, err := decode(s, r, elem)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
