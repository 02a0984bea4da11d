/*
Package sats implements the algebraic type and value system rows are built
from: scalars, products (rows), sums (tagged unions), arrays and typespace
references, together with their binary encode/decode rules.

There is no macro or reflection-based code generation here; AlgebraicType is
a tagged tree walked at encode/decode time, resolved against a Typespace for
Ref nodes, the "interpreter" strategy for per-type encode/decode without
reflection.

# Encoding

	bool            1 byte, 0 or 1
	iN / uN (<=64)  little-endian, fixed width
	iN / uN (128/256) little-endian two's-complement bytes, fixed width
	f32 / f64       IEEE-754 bit pattern, little-endian
	string          varint length prefix + UTF-8 bytes
	array           varint length prefix + packed elements
	product         concatenated fields, declared order, no field tag
	sum             1-byte variant tag + variant payload
	ref             resolved through the Typespace; not an on-wire shape

# Ordering

Compare implements a total order over values of the same type,
including a fixed (if arbitrary) ordering over NaN payloads, by comparing a
monotonic transform of the IEEE-754 bit pattern rather than the bit pattern
itself (a "flip the sign bit" trick, the same one key-encoding layers in
embedded KV stores use to make floats byte-comparable).
*/
package sats
