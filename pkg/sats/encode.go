package sats

import (
	"fmt"
	"math"
)

// Encode serializes v, which must conform to ty, into its binary wire
// representation. Refs are resolved against ts.
func Encode(w *Writer, ty AlgebraicType, v Value, ts Typespace) error {
	if ty.Kind == KindRef {
		resolved, err := ts.Resolve(ty.RefIdx)
		if err != nil {
			return err
		}
		return Encode(w, resolved, v, ts)
	}
	if ty.Kind != v.Kind {
		return fmt.Errorf("sats: encode: type kind %s does not match value kind %s", ty.Kind, v.Kind)
	}

	switch ty.Kind {
	case KindBool:
		b := uint8(0)
		if v.Bool {
			b = 1
		}
		w.PutU8(b)
	case KindI8:
		w.PutU8(uint8(v.Int))
	case KindU8:
		w.PutU8(uint8(v.Uint))
	case KindI16:
		w.PutU16(uint16(v.Int))
	case KindU16:
		w.PutU16(uint16(v.Uint))
	case KindI32:
		w.PutU32(uint32(v.Int))
	case KindU32:
		w.PutU32(uint32(v.Uint))
	case KindI64:
		w.PutU64(uint64(v.Int))
	case KindU64:
		w.PutU64(v.Uint)
	case KindI128, KindU128:
		if len(v.Wide) != 16 {
			return fmt.Errorf("sats: encode: %s value has %d bytes, want 16", ty.Kind, len(v.Wide))
		}
		w.PutBytes(v.Wide)
	case KindI256, KindU256:
		if len(v.Wide) != 32 {
			return fmt.Errorf("sats: encode: %s value has %d bytes, want 32", ty.Kind, len(v.Wide))
		}
		w.PutBytes(v.Wide)
	case KindF32:
		w.PutU32(math.Float32bits(v.F32))
	case KindF64:
		w.PutU64(math.Float64bits(v.F64))
	case KindString:
		w.PutVarint(uint64(len(v.Str)))
		w.PutBytes([]byte(v.Str))
	case KindProduct:
		if len(v.Product) != len(ty.Product) {
			return fmt.Errorf("sats: encode: product has %d fields, type wants %d", len(v.Product), len(ty.Product))
		}
		for i, elem := range ty.Product {
			if err := Encode(w, elem.Type, v.Product[i], ts); err != nil {
				return err
			}
		}
	case KindSum:
		if int(v.Sum.Tag) >= len(ty.Sum) {
			return fmt.Errorf("sats: encode: sum tag %d out of range (len %d)", v.Sum.Tag, len(ty.Sum))
		}
		w.PutU8(v.Sum.Tag)
		variant := ty.Sum[v.Sum.Tag]
		if isUnitType(variant.Type) {
			return nil
		}
		if v.Sum.Value == nil {
			return fmt.Errorf("sats: encode: sum variant %d requires a payload value", v.Sum.Tag)
		}
		if err := Encode(w, variant.Type, *v.Sum.Value, ts); err != nil {
			return err
		}
	case KindArray:
		w.PutVarint(uint64(len(v.Array)))
		for _, elem := range v.Array {
			if err := Encode(w, *ty.Elem, elem, ts); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("sats: encode: unsupported kind %s", ty.Kind)
	}
	return nil
}
