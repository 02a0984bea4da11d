package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/stormdb/pkg/sats"
)

func TestUniqueMapInsertConflict(t *testing.T) {
	m := NewUniqueMap()

	key := sats.U64Value(42)
	_, inserted, err := m.Insert(key, Ptr(1))
	require.NoError(t, err)
	assert.True(t, inserted)

	existing, inserted, err := m.Insert(key, Ptr(2))
	require.ErrorIs(t, err, ErrKeyConflict)
	assert.False(t, inserted)
	assert.Equal(t, Ptr(1), existing)

	assert.Equal(t, 1, m.NumKeys())
	assert.Equal(t, []Ptr{Ptr(1)}, m.SeekPoint(key))
}

func TestUniqueMapDeleteThenReinsert(t *testing.T) {
	m := NewUniqueMap()
	key := sats.StringValue("alice")

	_, _, err := m.Insert(key, Ptr(7))
	require.NoError(t, err)
	assert.True(t, m.Delete(key, Ptr(7)))
	assert.Nil(t, m.SeekPoint(key))
	assert.Equal(t, 0, m.NumKeys())

	_, inserted, err := m.Insert(key, Ptr(9))
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, []Ptr{Ptr(9)}, m.SeekPoint(key))
}

func TestUniqueMapDeleteWrongPtrIsNoop(t *testing.T) {
	m := NewUniqueMap()
	key := sats.U32Value(1)
	_, _, err := m.Insert(key, Ptr(1))
	require.NoError(t, err)
	assert.False(t, m.Delete(key, Ptr(2)))
	assert.Equal(t, []Ptr{Ptr(1)}, m.SeekPoint(key))
}

func TestUniqueMapGrowthPreservesEntries(t *testing.T) {
	m := NewUniqueMap()
	const n = 500
	for i := 0; i < n; i++ {
		_, inserted, err := m.Insert(sats.U64Value(uint64(i)), Ptr(i))
		require.NoError(t, err)
		assert.True(t, inserted)
	}
	assert.Equal(t, n, m.NumKeys())
	for i := 0; i < n; i++ {
		assert.Equal(t, []Ptr{Ptr(i)}, m.SeekPoint(sats.U64Value(uint64(i))))
	}
}

func TestUniqueMapSeekRangeOrdered(t *testing.T) {
	m := NewUniqueMap()
	for _, v := range []uint64{5, 1, 9, 3, 7} {
		_, _, err := m.Insert(sats.U64Value(v), Ptr(v))
		require.NoError(t, err)
	}
	lo, hi := sats.U64Value(3), sats.U64Value(7)
	entries := m.SeekRange(Range{Lo: &lo, Hi: &hi, LoInclusive: true, HiInclusive: true})
	require.Len(t, entries, 3)
	assert.Equal(t, uint64(3), entries[0].Key.Uint)
	assert.Equal(t, uint64(5), entries[1].Key.Uint)
	assert.Equal(t, uint64(7), entries[2].Key.Uint)
}

func TestUniqueMapClear(t *testing.T) {
	m := NewUniqueMap()
	_, _, err := m.Insert(sats.U64Value(1), Ptr(1))
	require.NoError(t, err)
	m.Clear()
	assert.Equal(t, 0, m.NumKeys())
	assert.Equal(t, 0, m.KeyBytes())
	assert.Nil(t, m.SeekPoint(sats.U64Value(1)))
}

func TestUniqueMapKeyBytesTracksLiveKeysOnly(t *testing.T) {
	m := NewUniqueMap()
	key := sats.StringValue("hello")
	_, _, err := m.Insert(key, Ptr(1))
	require.NoError(t, err)
	before := m.KeyBytes()
	assert.Greater(t, before, 0)
	m.Delete(key, Ptr(1))
	assert.Equal(t, 0, m.KeyBytes())
}

func TestMultiMapAllowsDuplicateKeys(t *testing.T) {
	m := NewMultiMap()
	key := sats.U32Value(10)

	_, inserted, err := m.Insert(key, Ptr(1))
	require.NoError(t, err)
	assert.True(t, inserted)
	_, inserted, err = m.Insert(key, Ptr(2))
	require.NoError(t, err)
	assert.True(t, inserted)

	assert.ElementsMatch(t, []Ptr{Ptr(1), Ptr(2)}, m.SeekPoint(key))
	assert.Equal(t, 1, m.NumKeys())
	assert.Equal(t, 2, m.Len())
}

func TestMultiMapDeleteDropsEmptyBucket(t *testing.T) {
	m := NewMultiMap()
	key := sats.U32Value(10)
	_, _, _ = m.Insert(key, Ptr(1))
	_, _, _ = m.Insert(key, Ptr(2))

	assert.True(t, m.Delete(key, Ptr(1)))
	assert.Equal(t, 1, m.NumKeys())
	assert.True(t, m.Delete(key, Ptr(2)))
	assert.Equal(t, 0, m.NumKeys())
	assert.Equal(t, 0, m.KeyBytes())
	assert.Nil(t, m.SeekPoint(key))
}

func TestMultiMapSeekRangeOrderedAcrossKeys(t *testing.T) {
	m := NewMultiMap()
	for _, v := range []uint64{5, 1, 9, 3, 7} {
		_, _, err := m.Insert(sats.U64Value(v), Ptr(v))
		require.NoError(t, err)
	}
	// second pointer on an existing key, to confirm range scan covers buckets
	_, _, err := m.Insert(sats.U64Value(5), Ptr(50))
	require.NoError(t, err)

	lo := sats.U64Value(3)
	entries := m.SeekRange(Range{Lo: &lo, LoInclusive: true})
	require.Len(t, entries, 5)
	assert.Equal(t, uint64(3), entries[0].Key.Uint)
	assert.Equal(t, uint64(5), entries[1].Key.Uint)
	assert.Equal(t, uint64(5), entries[2].Key.Uint)
	assert.Equal(t, uint64(7), entries[3].Key.Uint)
	assert.Equal(t, uint64(9), entries[4].Key.Uint)
}

func TestMultiMapSeekRangeExclusiveBounds(t *testing.T) {
	m := NewMultiMap()
	for _, v := range []uint64{1, 2, 3, 4, 5} {
		_, _, err := m.Insert(sats.U64Value(v), Ptr(v))
		require.NoError(t, err)
	}
	lo, hi := sats.U64Value(1), sats.U64Value(5)
	entries := m.SeekRange(Range{Lo: &lo, Hi: &hi, LoInclusive: false, HiInclusive: false})
	require.Len(t, entries, 3)
	assert.Equal(t, uint64(2), entries[0].Key.Uint)
	assert.Equal(t, uint64(4), entries[2].Key.Uint)
}

func TestMultiMapClear(t *testing.T) {
	m := NewMultiMap()
	_, _, err := m.Insert(sats.U64Value(1), Ptr(1))
	require.NoError(t, err)
	m.Clear()
	assert.Equal(t, 0, m.NumKeys())
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, m.KeyBytes())
}

func TestCompositeKeyOrderingMatchesDeclaredColumnOrder(t *testing.T) {
	m := NewMultiMap()
	compositeKey := func(a uint64, b string) sats.Value {
		return sats.ProductValue([]sats.Value{sats.U64Value(a), sats.StringValue(b)})
	}

	_, _, err := m.Insert(compositeKey(1, "b"), Ptr(1))
	require.NoError(t, err)
	_, _, err = m.Insert(compositeKey(1, "a"), Ptr(2))
	require.NoError(t, err)
	_, _, err = m.Insert(compositeKey(0, "z"), Ptr(3))
	require.NoError(t, err)

	entries := m.SeekRange(Range{})
	require.Len(t, entries, 3)
	assert.Equal(t, Ptr(3), entries[0].Ptr) // (0, "z")
	assert.Equal(t, Ptr(2), entries[1].Ptr) // (1, "a")
	assert.Equal(t, Ptr(1), entries[2].Ptr) // (1, "b")
}

func TestRangeContains(t *testing.T) {
	lo, hi := sats.U64Value(3), sats.U64Value(7)
	r := Range{Lo: &lo, Hi: &hi, LoInclusive: true, HiInclusive: false}

	assert.False(t, r.Contains(sats.U64Value(2)))
	assert.True(t, r.Contains(sats.U64Value(3)))
	assert.True(t, r.Contains(sats.U64Value(6)))
	assert.False(t, r.Contains(sats.U64Value(7)))
}

func TestCanonicalBytesDistinguishesKinds(t *testing.T) {
	// canonicalBytes must tag the Kind so a u64 zero and an i64 zero, which
	// share a zero payload encoding, never collide in the hash table.
	a := canonicalBytes(sats.U64Value(0))
	b := canonicalBytes(sats.I64Value(0))
	assert.NotEqual(t, a, b)
}

var _ Index = (*UniqueMap)(nil)
var _ Index = (*MultiMap)(nil)
