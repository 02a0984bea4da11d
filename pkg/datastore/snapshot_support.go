package datastore

import (
	"github.com/cuemby/stormdb/pkg/index"
	"github.com/cuemby/stormdb/pkg/sats"
)

// SnapshotRows returns tableID's committed rows in deterministic order, for
// pkg/snapshot to serialize. It takes no lock of its own, callers must
// hold the CommittedState's write guard (the same discipline Replay and
// CreateTable rely on).
func (cs *CommittedState) SnapshotRows(tableID uint32) ([]Row, error) {
	return cs.committedRows(tableID)
}

// SequenceAllocations returns tableID's per-column sequence watermarks, for
// pkg/snapshot to serialize alongside its rows.
func (cs *CommittedState) SequenceAllocations(tableID uint32) (map[uint32]int64, error) {
	t, ok := cs.tables[tableID]
	if !ok {
		return nil, errUnknownTableID(tableID)
	}
	out := make(map[uint32]int64)
	for _, c := range t.schema.Columns {
		if !c.HasSeq {
			continue
		}
		if seq, ok := t.sequences.Get(c.SequenceID); ok {
			out[c.SequenceID] = seq.Allocated()
		}
	}
	return out, nil
}

// LoadSnapshotRows repopulates tableID's committed rows, indexes, and
// sequence watermarks from a snapshot, bypassing the transaction manager
// exactly as Replay does. Only valid before cs is exposed to any
// transaction, and only after CreateTable has already registered tableID
// (the catalog bootstrap that precedes any snapshot load).
func (cs *CommittedState) LoadSnapshotRows(tableID uint32, rows []Row, seqAllocations map[uint32]int64) error {
	t, ok := cs.tables[tableID]
	if !ok {
		return errUnknownTableID(tableID)
	}

	var maxPage, maxSlot uint32
	haveAny := false
	for _, r := range rows {
		t.rows[r.Ptr] = r.Value
		for _, idef := range t.schema.Indexes {
			key := indexKey(r.Value, idef)
			t.indexes[idef.ID].Insert(key, index.Ptr(r.Ptr))
		}
		if !r.Ptr.IsTxLocal() {
			if !haveAny || r.Ptr.PageIndex() > maxPage || (r.Ptr.PageIndex() == maxPage && r.Ptr.PageOffset() > maxSlot) {
				maxPage, maxSlot = r.Ptr.PageIndex(), r.Ptr.PageOffset()
				haveAny = true
			}
		}
	}
	if haveAny {
		t.nextPage, t.nextSlot = maxPage, maxSlot+1
		if t.nextSlot >= rowsPerPage {
			t.nextPage++
			t.nextSlot = 0
		}
	}

	for seqID, allocated := range seqAllocations {
		if seq, ok := t.sequences.Get(seqID); ok {
			seq.RestoreFromCheckpoint(allocated)
		}
	}
	return nil
}

// IndexKeyBytes reports the live key-byte statistic of every index on
// tableID, keyed by index name.
func (cs *CommittedState) IndexKeyBytes(tableID uint32) (map[string]int, error) {
	t, ok := cs.tables[tableID]
	if !ok {
		return nil, errUnknownTableID(tableID)
	}
	out := make(map[string]int, len(t.schema.Indexes))
	for _, idef := range t.schema.Indexes {
		out[idef.Name] = t.indexes[idef.ID].KeyBytes()
	}
	return out, nil
}

// ReconcileSequences scans tableID's committed rows for the highest value
// ever stored in each sequence-backed column and restores that column's
// sequence to at least one past it. It is the fallback for recovery paths
// that have no snapshot checkpoint to restore from (a plain commit log
// replay from offset zero): the log itself carries every value a sequence
// ever handed out, so scanning it once at open time is as good a
// checkpoint as one written durably on every commit, without the extra
// write amplification of doing so.
func (cs *CommittedState) ReconcileSequences(tableID uint32) error {
	t, ok := cs.tables[tableID]
	if !ok {
		return errUnknownTableID(tableID)
	}
	for i, c := range t.schema.Columns {
		if !c.HasSeq {
			continue
		}
		seq, ok := t.sequences.Get(c.SequenceID)
		if !ok {
			continue
		}
		maxSeen := seq.Allocated()
		for _, row := range t.rows {
			v := row.Product[i]
			n := v.Int
			switch v.Kind {
			case sats.KindU8, sats.KindU16, sats.KindU32, sats.KindU64:
				n = int64(v.Uint)
			}
			if n >= maxSeen {
				maxSeen = n + 1
			}
		}
		if maxSeen > seq.Allocated() {
			seq.RestoreFromCheckpoint(maxSeen)
		}
	}
	return nil
}
