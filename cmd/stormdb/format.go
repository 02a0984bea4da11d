package main

import (
	"encoding/hex"
	"fmt"

	"github.com/cuemby/stormdb/pkg/sats"
)

// scalarString renders a sats.Value for terminal output. Every table this
// engine bootstraps or creates in its own tests and scenarios uses scalar
// columns, so a recursive Product/Sum/Array renderer isn't needed here; a
// nested value falls back to a kind tag rather than panicking.
func scalarString(v sats.Value) string {
	switch v.Kind {
	case sats.KindBool:
		return fmt.Sprint(v.Bool)
	case sats.KindI8, sats.KindI16, sats.KindI32, sats.KindI64:
		return fmt.Sprint(v.Int)
	case sats.KindU8, sats.KindU16, sats.KindU32, sats.KindU64:
		return fmt.Sprint(v.Uint)
	case sats.KindI128, sats.KindU128, sats.KindI256, sats.KindU256:
		return "0x" + hex.EncodeToString(v.Wide)
	case sats.KindF32:
		return fmt.Sprint(v.F32)
	case sats.KindF64:
		return fmt.Sprint(v.F64)
	case sats.KindString:
		return v.Str
	default:
		return fmt.Sprintf("<%s>", v.Kind)
	}
}
