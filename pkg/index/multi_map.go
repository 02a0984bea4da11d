package index

import (
	"sort"
	"sync"

	"github.com/cuemby/stormdb/pkg/sats"
)

// multiBucket holds every Ptr currently stored under one key.
type multiBucket struct {
	key  sats.Value
	ptrs []Ptr
}

// MultiMap is a non-unique index: keys are kept in a sorted slice (ordered
// by sats.Compare) so SeekRange walks a contiguous span via binary search,
// and each key owns a bucket of Ptrs rather than rejecting duplicates.
type MultiMap struct {
	mu       sync.RWMutex
	buckets  []*multiBucket // sorted by key
	len      int            // total (key, ptr) pairs
	keyBytes int
}

// NewMultiMap returns an empty multi-valued index.
func NewMultiMap() *MultiMap {
	return &MultiMap{}
}

// find returns the index of key's bucket and whether it exists, using
// binary search over the sorted buckets. Caller holds m.mu.
func (m *MultiMap) find(key sats.Value) (int, bool) {
	i := sort.Search(len(m.buckets), func(i int) bool {
		return sats.Compare(m.buckets[i].key, key) >= 0
	})
	if i < len(m.buckets) && sats.Compare(m.buckets[i].key, key) == 0 {
		return i, true
	}
	return i, false
}

// Insert implements Index. A multi-valued index never conflicts; repeated
// inserts of the same (key, ptr) pair are appended again (the caller,
// pkg/datastore, is responsible for not inserting the same row twice).
func (m *MultiMap) Insert(key sats.Value, ptr Ptr) (Ptr, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.find(key)
	if ok {
		m.buckets[i].ptrs = append(m.buckets[i].ptrs, ptr)
	} else {
		b := &multiBucket{key: key, ptrs: []Ptr{ptr}}
		m.buckets = append(m.buckets, nil)
		copy(m.buckets[i+1:], m.buckets[i:])
		m.buckets[i] = b
		m.keyBytes += len(canonicalBytes(key))
	}
	m.len++
	return 0, true, nil
}

// Delete implements Index, removing exactly one occurrence of ptr under
// key. The bucket is dropped entirely once its last Ptr is removed.
func (m *MultiMap) Delete(key sats.Value, ptr Ptr) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.find(key)
	if !ok {
		return false
	}
	b := m.buckets[i]
	for j, p := range b.ptrs {
		if p == ptr {
			b.ptrs = append(b.ptrs[:j], b.ptrs[j+1:]...)
			m.len--
			if len(b.ptrs) == 0 {
				m.keyBytes -= len(canonicalBytes(b.key))
				m.buckets = append(m.buckets[:i], m.buckets[i+1:]...)
			}
			return true
		}
	}
	return false
}

// SeekPoint implements Index.
func (m *MultiMap) SeekPoint(key sats.Value) []Ptr {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.find(key)
	if !ok {
		return nil
	}
	out := make([]Ptr, len(m.buckets[i].ptrs))
	copy(out, m.buckets[i].ptrs)
	return out
}

// SeekRange implements Index, walking the contiguous span of buckets whose
// key falls within r in ascending key order.
func (m *MultiMap) SeekRange(r Range) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := 0
	if r.Lo != nil {
		start = sort.Search(len(m.buckets), func(i int) bool {
			c := sats.Compare(m.buckets[i].key, *r.Lo)
			if r.LoInclusive {
				return c >= 0
			}
			return c > 0
		})
	}

	var out []Entry
	for i := start; i < len(m.buckets); i++ {
		b := m.buckets[i]
		if r.Hi != nil {
			c := sats.Compare(b.key, *r.Hi)
			if c > 0 || (c == 0 && !r.HiInclusive) {
				break
			}
		}
		for _, p := range b.ptrs {
			out = append(out, Entry{Key: b.key, Ptr: p})
		}
	}
	return out
}

// NumKeys implements Index.
func (m *MultiMap) NumKeys() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.buckets)
}

// Len implements Index.
func (m *MultiMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.len
}

// Clear implements Index.
func (m *MultiMap) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets = nil
	m.len, m.keyBytes = 0, 0
}

// KeyBytes implements Index.
func (m *MultiMap) KeyBytes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.keyBytes
}
