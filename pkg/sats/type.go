package sats

import (
	"fmt"
	"sort"
)

// Kind identifies the shape of an AlgebraicType / AlgebraicValue.
type Kind uint8

const (
	KindBool Kind = iota
	KindI8
	KindU8
	KindI16
	KindU16
	KindI32
	KindU32
	KindI64
	KindU64
	KindI128
	KindU128
	KindI256
	KindU256
	KindF32
	KindF64
	KindString
	KindProduct
	KindSum
	KindArray
	KindRef
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindI8:
		return "i8"
	case KindU8:
		return "u8"
	case KindI16:
		return "i16"
	case KindU16:
		return "u16"
	case KindI32:
		return "i32"
	case KindU32:
		return "u32"
	case KindI64:
		return "i64"
	case KindU64:
		return "u64"
	case KindI128:
		return "i128"
	case KindU128:
		return "u128"
	case KindI256:
		return "i256"
	case KindU256:
		return "u256"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	case KindString:
		return "string"
	case KindProduct:
		return "product"
	case KindSum:
		return "sum"
	case KindArray:
		return "array"
	case KindRef:
		return "ref"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// IsScalar reports whether k is a non-compound type.
func (k Kind) IsScalar() bool {
	return k <= KindString
}

// AlgebraicType is a node in the algebraic type tree: a scalar kind, or a
// Product/Sum/Array/Ref compound referring to further nodes.
type AlgebraicType struct {
	Kind    Kind
	Product ProductType
	Sum     SumType
	Elem    *AlgebraicType
	RefIdx  uint32
}

// Scalar builds a scalar AlgebraicType. It panics if k is a compound kind.
func Scalar(k Kind) AlgebraicType {
	if !k.IsScalar() {
		panic("sats: Scalar called with compound kind " + k.String())
	}
	return AlgebraicType{Kind: k}
}

// ArrayOf builds an array AlgebraicType with the given element type.
func ArrayOf(elem AlgebraicType) AlgebraicType {
	e := elem
	return AlgebraicType{Kind: KindArray, Elem: &e}
}

// RefTo builds a reference into a Typespace at the given index.
func RefTo(idx uint32) AlgebraicType {
	return AlgebraicType{Kind: KindRef, RefIdx: idx}
}

// ProductElement is one field of a ProductType: an optional name and a type.
type ProductElement struct {
	Name *string
	Type AlgebraicType
}

// ProductType is an ordered sequence of fields making up a row or nested
// product value.
type ProductType []ProductElement

// SumVariant is one variant of a SumType: an optional name and a type.
type SumVariant struct {
	Name *string
	Type AlgebraicType
}

// SumType is a tagged union of variants; the variant tag is the index into
// this slice.
type SumType []SumVariant

// BuildProduct validates field-name uniqueness and reorders fields into
// canonical order: by alignment descending, then by name ascending for
// ties (unnamed fields sort after named ones at the same alignment,
// comparing as positional index otherwise). This is applied once, here, at
// schema-construction time, runtime comparators never re-derive it.
func BuildProduct(fields []ProductElement) (ProductType, error) {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Name == nil {
			continue
		}
		if _, dup := seen[*f.Name]; dup {
			return nil, fmt.Errorf("sats: duplicate product field name %q", *f.Name)
		}
		seen[*f.Name] = struct{}{}
	}

	out := make(ProductType, len(fields))
	copy(out, fields)
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := alignmentOf(out[i].Type), alignmentOf(out[j].Type)
		if ai != aj {
			return ai > aj
		}
		ni, nj := out[i].Name, out[j].Name
		switch {
		case ni == nil && nj == nil:
			return false
		case ni == nil:
			return false
		case nj == nil:
			return true
		default:
			return *ni < *nj
		}
	})
	return out, nil
}

// MustBuildProduct is BuildProduct for callers (schema construction at
// startup) that treat a duplicate field name as a programmer error.
func MustBuildProduct(fields []ProductElement) AlgebraicType {
	p, err := BuildProduct(fields)
	if err != nil {
		panic(err)
	}
	return AlgebraicType{Kind: KindProduct, Product: p}
}

// BuildSum validates variant-name uniqueness. Variant tags are implicit:
// the tag of out[i] is i.
func BuildSum(variants []SumVariant) (SumType, error) {
	seen := make(map[string]struct{}, len(variants))
	for _, v := range variants {
		if v.Name == nil {
			continue
		}
		if _, dup := seen[*v.Name]; dup {
			return nil, fmt.Errorf("sats: duplicate sum variant name %q", *v.Name)
		}
		seen[*v.Name] = struct{}{}
	}
	out := make(SumType, len(variants))
	copy(out, variants)
	return out, nil
}

// alignmentOf returns the byte alignment BuildProduct sorts fields by.
func alignmentOf(t AlgebraicType) int {
	switch t.Kind {
	case KindBool, KindI8, KindU8:
		return 1
	case KindI16, KindU16:
		return 2
	case KindI32, KindU32, KindF32:
		return 4
	case KindI64, KindU64, KindF64:
		return 8
	case KindI128, KindU128:
		return 16
	case KindI256, KindU256:
		return 32
	case KindString, KindArray, KindRef:
		return 8
	case KindProduct:
		max := 1
		for _, f := range t.Product {
			if a := alignmentOf(f.Type); a > max {
				max = a
			}
		}
		return max
	case KindSum:
		max := 1
		for _, v := range t.Sum {
			if a := alignmentOf(v.Type); a > max {
				max = a
			}
		}
		return max
	default:
		return 1
	}
}

// isUnitType reports whether t is the empty product `()`, the conventional
// payload-less shape for a sum variant that carries no data (e.g. an Option's
// None case).
func isUnitType(t AlgebraicType) bool {
	return t.Kind == KindProduct && len(t.Product) == 0
}

// Typespace is a flat, indexable set of named algebraic types, enabling
// recursive and shared type definitions via Ref.
type Typespace []AlgebraicType

// Resolve returns the type at idx, or an error if idx is out of range.
func (ts Typespace) Resolve(idx uint32) (AlgebraicType, error) {
	if int(idx) >= len(ts) {
		return AlgebraicType{}, fmt.Errorf("sats: typespace ref %d out of range (len %d)", idx, len(ts))
	}
	return ts[idx], nil
}
