package index

import (
	"encoding/binary"
	"math"

	"github.com/cuemby/stormdb/pkg/sats"
)

// canonicalBytes produces a self-describing byte sequence for v, suitable
// for hashing and byte-equality comparison in UniqueMap. Unlike
// pkg/sats.Encode (the on-disk wire format, which requires an external
// AlgebraicType to decode), this tags each value with its Kind so it needs
// no schema to be unambiguous, index keys never leave memory, so there is
// nothing to keep compact or schema-free for.
func canonicalBytes(v sats.Value) []byte {
	buf := make([]byte, 0, 16)
	return appendCanonical(buf, v)
}

func appendCanonical(buf []byte, v sats.Value) []byte {
	buf = append(buf, uint8(v.Kind))
	switch v.Kind {
	case sats.KindBool:
		b := uint8(0)
		if v.Bool {
			b = 1
		}
		buf = append(buf, b)
	case sats.KindI8, sats.KindI16, sats.KindI32, sats.KindI64:
		buf = appendU64(buf, uint64(v.Int))
	case sats.KindU8, sats.KindU16, sats.KindU32, sats.KindU64:
		buf = appendU64(buf, v.Uint)
	case sats.KindI128, sats.KindU128, sats.KindI256, sats.KindU256:
		buf = append(buf, v.Wide...)
	case sats.KindF32:
		buf = appendU32(buf, math.Float32bits(v.F32))
	case sats.KindF64:
		buf = appendU64(buf, math.Float64bits(v.F64))
	case sats.KindString:
		buf = appendU64(buf, uint64(len(v.Str)))
		buf = append(buf, v.Str...)
	case sats.KindProduct:
		buf = appendU64(buf, uint64(len(v.Product)))
		for _, f := range v.Product {
			buf = appendCanonical(buf, f)
		}
	case sats.KindSum:
		buf = append(buf, v.Sum.Tag)
		if v.Sum.Value != nil {
			buf = appendCanonical(buf, *v.Sum.Value)
		}
	case sats.KindArray:
		buf = appendU64(buf, uint64(len(v.Array)))
		for _, e := range v.Array {
			buf = appendCanonical(buf, e)
		}
	}
	return buf
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}
