package sats

import (
	"fmt"
	"math"
	"unicode/utf8"
)

// maxArrayLen bounds the length prefix accepted for arrays and strings,
// guarding against a corrupt or adversarial length prefix forcing an
// unbounded allocation before the underlying bytes are even checked.
const maxArrayLen = 1 << 28

// Decode deserializes a value of type ty from r. Refs are resolved against
// ts.
func Decode(r *Reader, ty AlgebraicType, ts Typespace) (Value, error) {
	if ty.Kind == KindRef {
		resolved, err := ts.Resolve(ty.RefIdx)
		if err != nil {
			return Value{}, err
		}
		return Decode(r, resolved, ts)
	}

	switch ty.Kind {
	case KindBool:
		b, err := r.GetU8()
		if err != nil {
			return Value{}, err
		}
		if b > 1 {
			return Value{}, fmt.Errorf("%w: invalid bool byte %d", ErrDecode, b)
		}
		return BoolValue(b == 1), nil
	case KindI8:
		b, err := r.GetU8()
		if err != nil {
			return Value{}, err
		}
		return I8Value(int8(b)), nil
	case KindU8:
		b, err := r.GetU8()
		if err != nil {
			return Value{}, err
		}
		return U8Value(b), nil
	case KindI16:
		u, err := r.GetU16()
		if err != nil {
			return Value{}, err
		}
		return I16Value(int16(u)), nil
	case KindU16:
		u, err := r.GetU16()
		if err != nil {
			return Value{}, err
		}
		return U16Value(u), nil
	case KindI32:
		u, err := r.GetU32()
		if err != nil {
			return Value{}, err
		}
		return I32Value(int32(u)), nil
	case KindU32:
		u, err := r.GetU32()
		if err != nil {
			return Value{}, err
		}
		return U32Value(u), nil
	case KindI64:
		u, err := r.GetU64()
		if err != nil {
			return Value{}, err
		}
		return I64Value(int64(u)), nil
	case KindU64:
		u, err := r.GetU64()
		if err != nil {
			return Value{}, err
		}
		return U64Value(u), nil
	case KindI128, KindU128:
		b, err := r.GetBytes(16)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: ty.Kind, Wide: append([]byte(nil), b...)}, nil
	case KindI256, KindU256:
		b, err := r.GetBytes(32)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: ty.Kind, Wide: append([]byte(nil), b...)}, nil
	case KindF32:
		u, err := r.GetU32()
		if err != nil {
			return Value{}, err
		}
		return F32Value(math.Float32frombits(u)), nil
	case KindF64:
		u, err := r.GetU64()
		if err != nil {
			return Value{}, err
		}
		return F64Value(math.Float64frombits(u)), nil
	case KindString:
		n, err := r.GetVarint()
		if err != nil {
			return Value{}, err
		}
		if n > maxArrayLen {
			return Value{}, fmt.Errorf("%w: string length %d exceeds limit", ErrDecode, n)
		}
		b, err := r.GetBytes(int(n))
		if err != nil {
			return Value{}, err
		}
		if !utf8.Valid(b) {
			return Value{}, fmt.Errorf("%w: string field is not valid UTF-8", ErrDecode)
		}
		return StringValue(string(b)), nil
	case KindProduct:
		fields := make([]Value, len(ty.Product))
		for i, elem := range ty.Product {
			v, err := Decode(r, elem.Type, ts)
			if err != nil {
				return Value{}, err
			}
			fields[i] = v
		}
		return ProductValue(fields), nil
	case KindSum:
		tag, err := r.GetU8()
		if err != nil {
			return Value{}, err
		}
		if int(tag) >= len(ty.Sum) {
			return Value{}, fmt.Errorf("%w: sum tag %d out of range (len %d)", ErrDecode, tag, len(ty.Sum))
		}
		variant := ty.Sum[tag]
		if isUnitType(variant.Type) {
			return SumValueOf(tag, nil), nil
		}
		payload, err := Decode(r, variant.Type, ts)
		if err != nil {
			return Value{}, err
		}
		return SumValueOf(tag, &payload), nil
	case KindArray:
		n, err := r.GetVarint()
		if err != nil {
			return Value{}, err
		}
		if n > maxArrayLen {
			return Value{}, fmt.Errorf("%w: array length %d exceeds limit", ErrDecode, n)
		}
		elems := make([]Value, n)
		for i := range elems {
			v, err := Decode(r, *ty.Elem, ts)
			if err != nil {
				return Value{}, err
			}
			elems[i] = v
		}
		return ArrayValue(elems), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported kind %s", ErrDecode, ty.Kind)
	}
}
