package serializer

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() *Schema {
	return NewSchema().
		AddStruct("inner",
			Field{Name: "flag", Type: Bool()},
			Field{Name: "label", Type: Str()},
		).
		AddStruct("outer",
			Field{Name: "id", Type: U64()},
			Field{Name: "small", Type: U8()},
			Field{Name: "bytes", Type: FixedArray(4, U8())},
			Field{Name: "tags", Type: DynArray(Str())},
			Field{Name: "pair", Type: Tuple(U16(), Bool())},
			Field{Name: "note", Type: Option(Str())},
			Field{Name: "nested", Type: StructRef("inner")},
			Field{Name: "kind", Type: EnumRef("kind")},
		).
		AddEnum("kind",
			Field{Name: "empty", Type: Tuple()},
			Field{Name: "named", Type: Str()},
			Field{Name: "counted", Type: U32()},
		)
}

func TestRoundTrip(t *testing.T) {
	s := testSchema()
	require.NoError(t, s.Validate())

	value := map[string]any{
		"id":    uint64(1234567890123),
		"small": uint64(7),
		"bytes": []byte{0xde, 0xad, 0xbe, 0xef},
		"tags":  []any{"a", "bb", ""},
		"pair":  []any{uint64(65535), true},
		"note":  "present",
		"nested": map[string]any{
			"flag":  false,
			"label": "inside",
		},
		"kind": EnumValue{Variant: "counted", Value: uint64(42)},
	}

	data, err := Marshal(s, StructRef("outer"), value)
	require.NoError(t, err)

	got, err := Unmarshal(s, StructRef("outer"), data)
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestRoundTripOptionAbsent(t *testing.T) {
	s := NewSchema().AddStruct("v", Field{Name: "maybe", Type: Option(U32())})

	data, err := Marshal(s, StructRef("v"), map[string]any{"maybe": nil})
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, data)

	got, err := Unmarshal(s, StructRef("v"), data)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"maybe": nil}, got)
}

func TestRoundTripU128(t *testing.T) {
	s := NewSchema().AddStruct("d", Field{Name: "deposit", Type: U128()})

	n, ok := new(big.Int).SetString("340282366920938463463374607431768211455", 10)
	require.True(t, ok)

	data, err := Marshal(s, StructRef("d"), map[string]any{"deposit": n})
	require.NoError(t, err)
	require.Len(t, data, 16)

	got, err := Unmarshal(s, StructRef("d"), data)
	require.NoError(t, err)
	assert.Zero(t, n.Cmp(got.(map[string]any)["deposit"].(*big.Int)))
}

func TestKnownEncoding(t *testing.T) {
	s := NewSchema().AddStruct("msg",
		Field{Name: "text", Type: Str()},
		Field{Name: "n", Type: U32()},
	)

	data, err := Marshal(s, StructRef("msg"), map[string]any{
		"text": "abc",
		"n":    uint64(413),
	})
	require.NoError(t, err)

	// u32 length prefix + utf8 bytes, then 413 little-endian
	assert.Equal(t, []byte{3, 0, 0, 0, 'a', 'b', 'c', 0x9d, 0x01, 0x00, 0x00}, data)
}

func TestEnumOrdinal(t *testing.T) {
	s := testSchema()

	data, err := Marshal(s, EnumRef("kind"), EnumValue{Variant: "named", Value: "x"})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 1, 0, 0, 0, 'x'}, data)

	_, err = Marshal(s, EnumRef("kind"), EnumValue{Variant: "bogus"})
	assert.Error(t, err)
}

func TestTypeMismatch(t *testing.T) {
	s := NewSchema().AddStruct("v", Field{Name: "name", Type: Str()})

	_, err := Marshal(s, StructRef("v"), map[string]any{"name": 42})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected string")
}

func TestUintRange(t *testing.T) {
	s := NewSchema().AddStruct("v", Field{Name: "b", Type: U8()})

	_, err := Marshal(s, StructRef("v"), map[string]any{"b": uint64(256)})
	assert.Error(t, err)

	_, err = Marshal(s, StructRef("v"), map[string]any{"b": -1})
	assert.Error(t, err)
}

func TestFixedArrayLength(t *testing.T) {
	s := NewSchema().AddStruct("v", Field{Name: "nonce", Type: FixedArray(32, U8())})

	_, err := Marshal(s, StructRef("v"), map[string]any{"nonce": make([]byte, 31)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects 32 elements")
}

func TestDecodeMustConsumeInput(t *testing.T) {
	s := NewSchema().AddStruct("v", Field{Name: "b", Type: U8()})

	_, err := Unmarshal(s, StructRef("v"), []byte{1, 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing bytes")

	_, err = Unmarshal(s, StructRef("v"), nil)
	assert.Error(t, err)
}

func TestValidateUnknownRef(t *testing.T) {
	s := NewSchema().AddStruct("v", Field{Name: "x", Type: StructRef("missing")})

	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown struct "missing"`)
}
