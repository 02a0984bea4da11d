package datastore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cuemby/stormdb/pkg/sats"
)

// CommittedState is the authoritative snapshot: every table's committed
// rows, indexes, and sequence state, guarded by one reader-writer lock so
// there is exactly one lock discipline per transaction: acquire, do work,
// release, no nested acquisition.
type CommittedState struct {
	mu       sync.RWMutex
	tables   map[uint32]*table
	poisoned bool
}

// NewCommittedState returns an empty table store.
func NewCommittedState() *CommittedState {
	return &CommittedState{tables: make(map[uint32]*table)}
}

// CreateTable registers schema's table immediately, outside any
// transaction. Only recovery paths (bootstrap, snapshot load, replay) call
// it; a live caller stages the registration through Tx.CreateTable so it
// commits or rolls back together with the catalog rows describing it.
func (cs *CommittedState) CreateTable(schema TableSchema) error {
	if _, exists := cs.tables[schema.ID]; exists {
		return newStorageError(KindSchema, fmt.Sprintf("table id %d already exists", schema.ID), nil)
	}
	cs.installTable(schema)
	return nil
}

// installTable registers schema without the existence check; callers have
// already performed it (CreateTable above, or Tx.CreateTable at staging
// time under the same write guard the installing apply still holds).
func (cs *CommittedState) installTable(schema TableSchema) {
	cs.tables[schema.ID] = newTable(schema)
}

// GetSchema implements the G-facing operation of the same name.
func (cs *CommittedState) GetSchema(tableID uint32) (TableSchema, bool) {
	t, ok := cs.tables[tableID]
	if !ok {
		return TableSchema{}, false
	}
	return t.schema, true
}

// TableExists reports the table's name if tableID resolves.
func (cs *CommittedState) TableExists(tableID uint32) (string, bool) {
	t, ok := cs.tables[tableID]
	if !ok {
		return "", false
	}
	return t.schema.Name, true
}

// AllTables returns every registered table's schema, for catalog listing.
func (cs *CommittedState) AllTables() []TableSchema {
	out := make([]TableSchema, 0, len(cs.tables))
	for _, t := range cs.tables {
		out = append(out, t.schema)
	}
	return out
}

// Row pairs a stable handle with its value, as yielded by Iter/IterByColRange.
type Row struct {
	Ptr   RowPointer
	Value sats.Value
}

// committedRows returns every row of tableID in deterministic (page, slot)
// order, for use directly by a read-only transaction or as the base layer
// a mutating transaction's view is built on top of.
func (cs *CommittedState) committedRows(tableID uint32) ([]Row, error) {
	t, ok := cs.tables[tableID]
	if !ok {
		return nil, errUnknownTableID(tableID)
	}
	out := make([]Row, 0, len(t.rows))
	for ptr, v := range t.rows {
		out = append(out, Row{Ptr: ptr, Value: v})
	}
	sortRowsByPointer(out)
	return out, nil
}

func sortRowsByPointer(rows []Row) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Ptr < rows[j].Ptr })
}
