package sats

import (
	"bytes"
	"fmt"
	"math"
)

// SumValue is a tagged union value: Tag selects the variant, Value holds
// its payload (nil when the variant type carries no data).
type SumValue struct {
	Tag   uint8
	Value *Value
}

// Value is an algebraic value: exactly one of the fields below is
// meaningful, selected by Kind. Values are immutable once constructed.
type Value struct {
	Kind Kind

	Bool bool
	// Int holds i8..i64, sign-extended to 64 bits.
	Int int64
	// Uint holds u8..u64.
	Uint uint64
	// Wide holds i128/u128/i256/u256 as little-endian two's-complement
	// bytes, length 16 or 32.
	Wide []byte
	F32  float32
	F64  float64
	Str  string

	Product []Value
	Sum     SumValue
	Array   []Value
}

// Bool/Int/Uint/Wide/Float/String/Product/Sum/Array constructors make
// building literal test values and default values terse.

func BoolValue(b bool) Value   { return Value{Kind: KindBool, Bool: b} }
func I8Value(v int8) Value     { return Value{Kind: KindI8, Int: int64(v)} }
func U8Value(v uint8) Value    { return Value{Kind: KindU8, Uint: uint64(v)} }
func I16Value(v int16) Value   { return Value{Kind: KindI16, Int: int64(v)} }
func U16Value(v uint16) Value  { return Value{Kind: KindU16, Uint: uint64(v)} }
func I32Value(v int32) Value   { return Value{Kind: KindI32, Int: int64(v)} }
func U32Value(v uint32) Value  { return Value{Kind: KindU32, Uint: uint64(v)} }
func I64Value(v int64) Value   { return Value{Kind: KindI64, Int: v} }
func U64Value(v uint64) Value  { return Value{Kind: KindU64, Uint: v} }
func F32Value(v float32) Value { return Value{Kind: KindF32, F32: v} }
func F64Value(v float64) Value { return Value{Kind: KindF64, F64: v} }
func StringValue(s string) Value {
	return Value{Kind: KindString, Str: s}
}
func ProductValue(fields []Value) Value {
	return Value{Kind: KindProduct, Product: fields}
}
func SumValueOf(tag uint8, payload *Value) Value {
	return Value{Kind: KindSum, Sum: SumValue{Tag: tag, Value: payload}}
}
func ArrayValue(elems []Value) Value {
	return Value{Kind: KindArray, Array: elems}
}

// Equal reports whether a and b are the same value under the same type.
func Equal(a, b Value) bool {
	return Compare(a, b) == 0
}

// Compare implements the total order described in package sats' docs:
// values of the same Kind are totally ordered, floats admit NaN via a
// fixed (if arbitrary) placement rather than being incomparable.
func Compare(a, b Value) int {
	if a.Kind != b.Kind {
		panic(fmt.Sprintf("sats: Compare called on mismatched kinds %s vs %s", a.Kind, b.Kind))
	}
	switch a.Kind {
	case KindBool:
		return compareBool(a.Bool, b.Bool)
	case KindI8, KindI16, KindI32, KindI64:
		return compareInt64(a.Int, b.Int)
	case KindU8, KindU16, KindU32, KindU64:
		return compareUint64(a.Uint, b.Uint)
	case KindI128, KindI256:
		return compareWideSigned(a.Wide, b.Wide)
	case KindU128, KindU256:
		return bytes.Compare(leToBE(a.Wide), leToBE(b.Wide))
	case KindF32:
		return compareUint64(totalOrderKeyF32(a.F32), totalOrderKeyF32(b.F32))
	case KindF64:
		return compareUint64(totalOrderKeyF64(a.F64), totalOrderKeyF64(b.F64))
	case KindString:
		return bytes.Compare([]byte(a.Str), []byte(b.Str))
	case KindProduct:
		return compareSlice(a.Product, b.Product)
	case KindSum:
		if a.Sum.Tag != b.Sum.Tag {
			return compareUint64(uint64(a.Sum.Tag), uint64(b.Sum.Tag))
		}
		if a.Sum.Value == nil || b.Sum.Value == nil {
			return 0
		}
		return Compare(*a.Sum.Value, *b.Sum.Value)
	case KindArray:
		return compareSlice(a.Array, b.Array)
	default:
		panic("sats: Compare: unsupported kind " + a.Kind.String())
	}
}

func compareSlice(a, b []Value) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return compareInt64(int64(len(a)), int64(len(b)))
}

func compareBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// leToBE reverses a little-endian byte slice into big-endian order so
// bytes.Compare gives the correct unsigned magnitude ordering.
func leToBE(le []byte) []byte {
	be := make([]byte, len(le))
	for i, b := range le {
		be[len(le)-1-i] = b
	}
	return be
}

// compareWideSigned compares two little-endian two's-complement byte
// slices of equal length as signed magnitudes.
func compareWideSigned(a, b []byte) int {
	if len(a) == 0 || len(b) == 0 {
		return compareUint64(uint64(len(a)), uint64(len(b)))
	}
	aNeg := a[len(a)-1]&0x80 != 0
	bNeg := b[len(b)-1]&0x80 != 0
	if aNeg != bNeg {
		if aNeg {
			return -1
		}
		return 1
	}
	return bytes.Compare(leToBE(a), leToBE(b))
}

// totalOrderKeyF64 maps a float64 bit pattern to a uint64 such that
// comparing the uint64s as unsigned integers gives a total order over all
// float64 bit patterns, including every NaN payload: negative values
// (including negative NaNs) sort before positive ones by inverting all
// bits for negatives and flipping the sign bit for non-negatives.
func totalOrderKeyF64(f float64) uint64 {
	b := math.Float64bits(f)
	if b&(1<<63) != 0 {
		return ^b
	}
	return b | (1 << 63)
}

func totalOrderKeyF32(f float32) uint64 {
	b := uint64(math.Float32bits(f))
	if b&(1<<31) != 0 {
		return ^b & 0xFFFFFFFF
	}
	return b | (1 << 31)
}
