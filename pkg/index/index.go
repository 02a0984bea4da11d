package index

import (
	"errors"

	"github.com/cuemby/stormdb/pkg/sats"
)

// Ptr is the opaque row handle an index stores against a key. Callers
// (pkg/datastore's RowPointer) convert to and from this type at the call
// site so this package never needs to know the committed/tx-local
// addressing scheme layered on top of it.
type Ptr uint64

// ErrKeyConflict is returned by a unique index's Insert when the key is
// already present; the existing Ptr is returned alongside it.
var ErrKeyConflict = errors.New("index: key already present")

// Range bounds a SeekRange scan. A nil Lo/Hi means unbounded on that side.
type Range struct {
	Lo          *sats.Value
	Hi          *sats.Value
	LoInclusive bool
	HiInclusive bool
}

// Contains reports whether v falls within r under the total order.
func (r Range) Contains(v sats.Value) bool {
	if r.Lo != nil {
		c := sats.Compare(v, *r.Lo)
		if c < 0 || (c == 0 && !r.LoInclusive) {
			return false
		}
	}
	if r.Hi != nil {
		c := sats.Compare(v, *r.Hi)
		if c > 0 || (c == 0 && !r.HiInclusive) {
			return false
		}
	}
	return true
}

// Index is the capability both UniqueMap and MultiMap implement: point and
// range seek, insertion with conflict detection, deletion, and a
// key-byte-size statistic.
type Index interface {
	// Insert adds key -> ptr. A unique index returns (existing, false,
	// ErrKeyConflict) if key is already present; a multi-valued index
	// always succeeds, adding ptr to key's bucket.
	Insert(key sats.Value, ptr Ptr) (existing Ptr, inserted bool, err error)
	// Delete removes the (key, ptr) pair, reporting whether it was present.
	Delete(key sats.Value, ptr Ptr) bool
	// SeekPoint returns every Ptr stored under key, in no particular order.
	SeekPoint(key sats.Value) []Ptr
	// SeekRange returns every (key, ptr) pair within r, in key order.
	SeekRange(r Range) []Entry
	// NumKeys reports the number of distinct keys currently stored.
	NumKeys() int
	// Len reports the total number of (key, ptr) pairs currently stored.
	Len() int
	// Clear removes every entry.
	Clear()
	// KeyBytes reports the total bytes occupied by currently-live keys.
	KeyBytes() int
}

// Entry is one (key, ptr) pair returned by SeekRange.
type Entry struct {
	Key sats.Value
	Ptr Ptr
}
