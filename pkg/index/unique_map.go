package index

import (
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cuemby/stormdb/pkg/sats"
)

// uniqueSlot is one occupied bucket in UniqueMap's open-addressed table.
type uniqueSlot struct {
	key      sats.Value
	keyBytes []byte
	ptr      Ptr
}

// UniqueMap is a unique-key index: an open-addressed hash table keyed on a
// canonical byte encoding of the sats.Value key, probed linearly with
// tombstone deletes. Insert of an already-present key fails with the
// existing Ptr, matching a primary-key or unique-constraint violation.
type UniqueMap struct {
	mu sync.RWMutex

	buckets  []*uniqueSlot // nil = empty, &tombstone = deleted
	count    int           // live entries
	occupied int           // live + tombstones, for load-factor growth
	keyBytes int
}

var tombstone = &uniqueSlot{}

// NewUniqueMap returns an empty unique index with a small initial table.
func NewUniqueMap() *UniqueMap {
	return &UniqueMap{buckets: make([]*uniqueSlot, 16)}
}

func (m *UniqueMap) hashSlot(kb []byte, tableLen int) int {
	return int(xxhash.Sum64(kb) % uint64(tableLen))
}

// Insert implements Index.
func (m *UniqueMap) Insert(key sats.Value, ptr Ptr) (Ptr, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.occupied*2 >= len(m.buckets) {
		m.grow()
	}

	kb := canonicalBytes(key)
	idx := m.hashSlot(kb, len(m.buckets))
	firstTombstone := -1
	for {
		slot := m.buckets[idx]
		if slot == nil {
			target := idx
			if firstTombstone >= 0 {
				target = firstTombstone
			} else {
				m.occupied++
			}
			m.buckets[target] = &uniqueSlot{key: key, keyBytes: kb, ptr: ptr}
			m.count++
			m.keyBytes += len(kb)
			return 0, true, nil
		}
		if slot == tombstone {
			if firstTombstone < 0 {
				firstTombstone = idx
			}
		} else if string(slot.keyBytes) == string(kb) {
			return slot.ptr, false, ErrKeyConflict
		}
		idx = (idx + 1) % len(m.buckets)
	}
}

// Delete implements Index.
func (m *UniqueMap) Delete(key sats.Value, ptr Ptr) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	kb := canonicalBytes(key)
	idx := m.hashSlot(kb, len(m.buckets))
	for i := 0; i < len(m.buckets); i++ {
		slot := m.buckets[idx]
		if slot == nil {
			return false
		}
		if slot != tombstone && string(slot.keyBytes) == string(kb) {
			if slot.ptr != ptr {
				return false
			}
			m.buckets[idx] = tombstone
			m.count--
			m.keyBytes -= len(kb)
			return true
		}
		idx = (idx + 1) % len(m.buckets)
	}
	return false
}

// SeekPoint implements Index. A unique index yields at most one Ptr.
func (m *UniqueMap) SeekPoint(key sats.Value) []Ptr {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kb := canonicalBytes(key)
	idx := m.hashSlot(kb, len(m.buckets))
	for i := 0; i < len(m.buckets); i++ {
		slot := m.buckets[idx]
		if slot == nil {
			return nil
		}
		if slot != tombstone && string(slot.keyBytes) == string(kb) {
			return []Ptr{slot.ptr}
		}
		idx = (idx + 1) % len(m.buckets)
	}
	return nil
}

// SeekRange implements Index. UniqueMap has no inherent key order, so a
// range scan collects matches and sorts them by key, adequate for the
// diagnostic/fallback paths that call it; callers needing an ordered scan
// as the primary access path should index that column with a MultiMap.
func (m *UniqueMap) SeekRange(r Range) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Entry
	for _, slot := range m.buckets {
		if slot == nil || slot == tombstone {
			continue
		}
		if r.Contains(slot.key) {
			out = append(out, Entry{Key: slot.key, Ptr: slot.ptr})
		}
	}
	sort.Slice(out, func(i, j int) bool { return sats.Compare(out[i].Key, out[j].Key) < 0 })
	return out
}

// NumKeys implements Index.
func (m *UniqueMap) NumKeys() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.count
}

// Len implements Index. A unique index always has exactly one Ptr per key.
func (m *UniqueMap) Len() int { return m.NumKeys() }

// Clear implements Index.
func (m *UniqueMap) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets = make([]*uniqueSlot, 16)
	m.count, m.occupied, m.keyBytes = 0, 0, 0
}

// KeyBytes implements Index.
func (m *UniqueMap) KeyBytes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.keyBytes
}

// grow doubles the table and rehashes every live slot, dropping tombstones.
// Caller holds m.mu.
func (m *UniqueMap) grow() {
	old := m.buckets
	m.buckets = make([]*uniqueSlot, len(old)*2)
	m.occupied = 0
	for _, slot := range old {
		if slot == nil || slot == tombstone {
			continue
		}
		idx := m.hashSlot(slot.keyBytes, len(m.buckets))
		for m.buckets[idx] != nil {
			idx = (idx + 1) % len(m.buckets)
		}
		m.buckets[idx] = slot
		m.occupied++
	}
}
