package datastore

import (
	"github.com/cuemby/stormdb/pkg/index"
	"github.com/cuemby/stormdb/pkg/sats"
)

// table is one table's committed-state storage: its schema, its committed
// rows addressed by RowPointer, its index set, and its sequence state.
// Rows are placed into pages only notionally, a page holds up to
// rowsPerPage rows, and PageIndex/PageOffset are derived from a simple
// monotonic counter rather than literal byte-level paging, since nothing
// in the row-store contract depends on rows being fixed-size slots.
type table struct {
	schema    TableSchema
	rows      map[RowPointer]sats.Value
	indexes   map[uint32]index.Index
	sequences *SequencesState
	nextPage  uint32
	nextSlot  uint32
}

const rowsPerPage = 256

func newTable(schema TableSchema) *table {
	t := &table{
		schema:    schema,
		rows:      make(map[RowPointer]sats.Value),
		indexes:   make(map[uint32]index.Index),
		sequences: NewSequencesState(),
	}
	for _, idef := range schema.Indexes {
		switch idef.Kind {
		case IndexUnique:
			t.indexes[idef.ID] = index.NewUniqueMap()
		default:
			t.indexes[idef.ID] = index.NewMultiMap()
		}
	}
	for _, c := range schema.Columns {
		if c.HasSeq {
			t.sequences.Insert(c.SequenceID, NewSequence(SequenceSchema{
				ID: c.SequenceID, Column: c.Name,
				Start: 1, MinValue: 1, MaxValue: 1<<62 - 1, Increment: 1,
				Allocated: 1,
			}))
		}
	}
	return t
}

// allocPointer hands out the next committed RowPointer, rolling to a new
// page every rowsPerPage allocations.
func (t *table) allocPointer() RowPointer {
	if t.nextSlot >= rowsPerPage {
		t.nextPage++
		t.nextSlot = 0
	}
	p := newCommittedPointer(t.nextPage, t.nextSlot)
	t.nextSlot++
	return p
}

// indexKey projects row over idef's columns into the single sats.Value an
// Index is keyed on: the column itself when the index is single-column, a
// Product of the columns in declared order otherwise.
func indexKey(row sats.Value, idef IndexDef) sats.Value {
	if len(idef.Columns) == 1 {
		return row.Product[idef.Columns[0]]
	}
	fields := make([]sats.Value, len(idef.Columns))
	for i, c := range idef.Columns {
		fields[i] = row.Product[c]
	}
	return sats.ProductValue(fields)
}

// pkValue extracts the primary-key column's value from row, or the zero
// Value and false if the table has no primary key.
func (t *table) pkValue(row sats.Value) (sats.Value, bool) {
	pk := t.schema.PrimaryKeyColumn()
	if pk < 0 {
		return sats.Value{}, false
	}
	return row.Product[pk], true
}
