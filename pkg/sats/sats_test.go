package sats

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func roundtrip(t *testing.T, ty AlgebraicType, v Value, ts Typespace) Value {
	t.Helper()
	w := NewWriter()
	require.NoError(t, Encode(w, ty, v, ts))
	r := NewReader(w.Bytes())
	got, err := Decode(r, ty, ts)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Remaining())
	return got
}

func TestRoundtripScalars(t *testing.T) {
	cases := []struct {
		name string
		ty   AlgebraicType
		v    Value
	}{
		{"bool true", Scalar(KindBool), BoolValue(true)},
		{"bool false", Scalar(KindBool), BoolValue(false)},
		{"i8 negative", Scalar(KindI8), I8Value(-42)},
		{"u8 max", Scalar(KindU8), U8Value(255)},
		{"i16", Scalar(KindI16), I16Value(-1000)},
		{"u16", Scalar(KindU16), U16Value(65000)},
		{"i32", Scalar(KindI32), I32Value(-123456)},
		{"u32", Scalar(KindU32), U32Value(4000000000)},
		{"i64", Scalar(KindI64), I64Value(-9000000000000000000)},
		{"u64", Scalar(KindU64), U64Value(18000000000000000000)},
		{"f32", Scalar(KindF32), F32Value(3.14)},
		{"f64", Scalar(KindF64), F64Value(-2.71828)},
		{"string empty", Scalar(KindString), StringValue("")},
		{"string ascii", Scalar(KindString), StringValue("hello, sats")},
		{"string unicode", Scalar(KindString), StringValue("café 日本語")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := roundtrip(t, tc.ty, tc.v, nil)
			assert.True(t, Equal(tc.v, got), "got %+v, want %+v", got, tc.v)
		})
	}
}

func TestRoundtripWideInts(t *testing.T) {
	bytes16 := make([]byte, 16)
	bytes16[0] = 0xff
	bytes16[15] = 0x80
	v := Value{Kind: KindI128, Wide: bytes16}
	got := roundtrip(t, Scalar(KindI128), v, nil)
	assert.True(t, Equal(v, got))

	bytes32 := make([]byte, 32)
	bytes32[31] = 1
	u := Value{Kind: KindU256, Wide: bytes32}
	gotU := roundtrip(t, Scalar(KindU256), u, nil)
	assert.True(t, Equal(u, gotU))
}

func TestRoundtripFloatNaN(t *testing.T) {
	nan := F64Value(nan64())
	got := roundtrip(t, Scalar(KindF64), nan, nil)
	assert.True(t, isNaN64(got.F64))
}

func nan64() float64 {
	var z float64
	return z / z
}

func isNaN64(f float64) bool { return f != f }

func TestRoundtripProduct(t *testing.T) {
	ty := AlgebraicType{Kind: KindProduct, Product: ProductType{
		{Name: strp("id"), Type: Scalar(KindU64)},
		{Name: strp("name"), Type: Scalar(KindString)},
		{Name: strp("active"), Type: Scalar(KindBool)},
	}}
	v := ProductValue([]Value{U64Value(7), StringValue("widget"), BoolValue(true)})
	got := roundtrip(t, ty, v, nil)
	assert.True(t, Equal(v, got))
}

func TestRoundtripNestedProduct(t *testing.T) {
	inner := AlgebraicType{Kind: KindProduct, Product: ProductType{
		{Name: strp("x"), Type: Scalar(KindI32)},
		{Name: strp("y"), Type: Scalar(KindI32)},
	}}
	outer := AlgebraicType{Kind: KindProduct, Product: ProductType{
		{Name: strp("point"), Type: inner},
		{Name: strp("label"), Type: Scalar(KindString)},
	}}
	v := ProductValue([]Value{
		ProductValue([]Value{I32Value(1), I32Value(-2)}),
		StringValue("origin-ish"),
	})
	got := roundtrip(t, outer, v, nil)
	assert.True(t, Equal(v, got))
}

func TestRoundtripSumWithPayload(t *testing.T) {
	ty := AlgebraicType{Kind: KindSum, Sum: SumType{
		{Name: strp("none"), Type: AlgebraicType{Kind: KindProduct}},
		{Name: strp("some"), Type: Scalar(KindI64)},
	}}

	noneVal := SumValueOf(0, nil)
	gotNone := roundtrip(t, ty, noneVal, nil)
	assert.Equal(t, uint8(0), gotNone.Sum.Tag)
	assert.Nil(t, gotNone.Sum.Value)

	payload := I64Value(42)
	someVal := SumValueOf(1, &payload)
	gotSome := roundtrip(t, ty, someVal, nil)
	assert.Equal(t, uint8(1), gotSome.Sum.Tag)
	require.NotNil(t, gotSome.Sum.Value)
	assert.True(t, Equal(payload, *gotSome.Sum.Value))
}

func TestRoundtripArray(t *testing.T) {
	ty := ArrayOf(Scalar(KindU32))
	v := ArrayValue([]Value{U32Value(1), U32Value(2), U32Value(3), U32Value(4)})
	got := roundtrip(t, ty, v, nil)
	assert.True(t, Equal(v, got))
}

func TestRoundtripEmptyArray(t *testing.T) {
	ty := ArrayOf(Scalar(KindString))
	v := ArrayValue(nil)
	got := roundtrip(t, ty, v, nil)
	assert.Len(t, got.Array, 0)
}

func TestRoundtripArrayOfProducts(t *testing.T) {
	elemTy := AlgebraicType{Kind: KindProduct, Product: ProductType{
		{Name: strp("k"), Type: Scalar(KindString)},
		{Name: strp("v"), Type: Scalar(KindI32)},
	}}
	ty := ArrayOf(elemTy)
	v := ArrayValue([]Value{
		ProductValue([]Value{StringValue("a"), I32Value(1)}),
		ProductValue([]Value{StringValue("b"), I32Value(2)}),
	})
	got := roundtrip(t, ty, v, nil)
	assert.True(t, Equal(v, got))
}

func TestRoundtripRef(t *testing.T) {
	ts := Typespace{
		Scalar(KindU64),
	}
	ty := RefTo(0)
	v := U64Value(99)
	got := roundtrip(t, ty, v, ts)
	assert.True(t, Equal(v, got))
}

func TestDecodeInvalidUTF8IsError(t *testing.T) {
	w := NewWriter()
	w.PutVarint(3)
	w.PutBytes([]byte{0xff, 0xfe, 0xfd})
	_, err := Decode(NewReader(w.Bytes()), Scalar(KindString), nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "UTF-8"))
}

func TestDecodeInvalidBoolByteIsError(t *testing.T) {
	w := NewWriter()
	w.PutU8(7)
	_, err := Decode(NewReader(w.Bytes()), Scalar(KindBool), nil)
	require.Error(t, err)
}

func TestDecodeMissingRefIsError(t *testing.T) {
	_, err := Decode(NewReader([]byte{1}), RefTo(5), Typespace{Scalar(KindBool)})
	require.Error(t, err)
}

func TestDecodeTruncatedBufferIsError(t *testing.T) {
	_, err := Decode(NewReader([]byte{1, 2}), Scalar(KindU64), nil)
	require.Error(t, err)
}

func TestDecodeSumTagOutOfRangeIsError(t *testing.T) {
	ty := AlgebraicType{Kind: KindSum, Sum: SumType{
		{Type: AlgebraicType{Kind: KindProduct}},
	}}
	w := NewWriter()
	w.PutU8(9)
	_, err := Decode(NewReader(w.Bytes()), ty, nil)
	require.Error(t, err)
}

func TestBuildProductCanonicalOrdering(t *testing.T) {
	fields := []ProductElement{
		{Name: strp("flag"), Type: Scalar(KindBool)},
		{Name: strp("id"), Type: Scalar(KindU64)},
		{Name: strp("count"), Type: Scalar(KindU32)},
	}
	pt, err := BuildProduct(fields)
	require.NoError(t, err)
	require.Len(t, pt, 3)
	assert.Equal(t, "id", *pt[0].Name)
	assert.Equal(t, "count", *pt[1].Name)
	assert.Equal(t, "flag", *pt[2].Name)
}

func TestBuildProductRejectsDuplicateNames(t *testing.T) {
	_, err := BuildProduct([]ProductElement{
		{Name: strp("x"), Type: Scalar(KindI32)},
		{Name: strp("x"), Type: Scalar(KindI32)},
	})
	require.Error(t, err)
}

func TestBuildSumRejectsDuplicateNames(t *testing.T) {
	_, err := BuildSum([]SumVariant{
		{Name: strp("a"), Type: Scalar(KindBool)},
		{Name: strp("a"), Type: Scalar(KindBool)},
	})
	require.Error(t, err)
}

func TestCompareTotalOrderWithNaN(t *testing.T) {
	nan := nan64()
	values := []float64{nan, -1.0, 0.0, 1.0, -nan}
	for i := range values {
		for j := range values {
			a, b := F64Value(values[i]), F64Value(values[j])
			c := Compare(a, b)
			if i == j {
				assert.Equal(t, 0, c)
			} else {
				assert.NotPanics(t, func() { Compare(a, b) })
			}
			_ = c
		}
	}
}

func TestComparePanicsOnKindMismatch(t *testing.T) {
	assert.Panics(t, func() {
		Compare(I32Value(1), StringValue("x"))
	})
}
