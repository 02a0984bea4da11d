package datastore

import (
	"sort"

	"github.com/cuemby/stormdb/pkg/sats"
)

// txTableState is one mutating transaction's private view of one table:
// rows it has inserted (tx-local pointers, not yet in committed pages) and
// committed pointers it has marked deleted (still physically present in
// CommittedState until commit).
type txTableState struct {
	inserted map[RowPointer]sats.Value
	deleted  map[RowPointer]bool
}

func newTxTableState() *txTableState {
	return &txTableState{inserted: make(map[RowPointer]sats.Value), deleted: make(map[RowPointer]bool)}
}

// TxState is a mutating transaction's complete private mutation buffer:
// one txTableState per table it touched, plus any table schemas it staged
// for creation. Staged tables are installed into CommittedState only when
// the transaction commits, so a rollback leaves no trace of them.
type TxState struct {
	tables       map[uint32]*txTableState
	created      []TableSchema
	nextTxOffset uint32
}

// NewTxState returns an empty mutation buffer for a fresh BeginMutTx.
func NewTxState() *TxState {
	return &TxState{tables: make(map[uint32]*txTableState)}
}

func (s *TxState) table(tableID uint32) *txTableState {
	t, ok := s.tables[tableID]
	if !ok {
		t = newTxTableState()
		s.tables[tableID] = t
	}
	return t
}

// insertedInOrder returns txt's pending inserts sorted by tx-local
// pointer, i.e. in the order the transaction made them. Map iteration
// order must never leak into the commit log or an iterator.
func (t *txTableState) insertedInOrder() []Row {
	out := make([]Row, 0, len(t.inserted))
	for ptr, v := range t.inserted {
		out = append(out, Row{Ptr: ptr, Value: v})
	}
	sortRowsByPointer(out)
	return out
}

// deletedInOrder returns txt's pending deletes sorted by committed pointer.
func (t *txTableState) deletedInOrder() []RowPointer {
	out := make([]RowPointer, 0, len(t.deleted))
	for ptr := range t.deleted {
		out = append(out, ptr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// tableIDsInOrder returns the ids of every table this transaction touched,
// ascending.
func (s *TxState) tableIDsInOrder() []uint32 {
	out := make([]uint32, 0, len(s.tables))
	for id := range s.tables {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// rowsEmpty reports whether this transaction buffered no row mutations;
// it may still have staged table creations.
func (s *TxState) rowsEmpty() bool {
	for _, t := range s.tables {
		if len(t.inserted) > 0 || len(t.deleted) > 0 {
			return false
		}
	}
	return true
}

// empty reports whether this transaction did nothing at all, so CommitTx
// can skip both the commit log and the apply step.
func (s *TxState) empty() bool {
	return len(s.created) == 0 && s.rowsEmpty()
}
