package datastore

import (
	"fmt"

	"github.com/cuemby/stormdb/pkg/commitlog"
	"github.com/cuemby/stormdb/pkg/index"
	"github.com/cuemby/stormdb/pkg/sats"
)

// TableResolver materializes a table id that is not yet registered in cs
// at the moment replay reaches that table's first record, typically by
// decoding the catalog rows replayed just before it. A nil resolver means
// an unknown id is a replay error.
type TableResolver interface {
	ResolveTable(cs *CommittedState, tableID uint32) error
}

// replayDecoder decodes a row-level commit log record against the row type
// of the table named by the record's SetID, resolved live against cs, so
// it must only be used while no other goroutine is mutating cs (recovery,
// before RelationalDB accepts its first transaction).
type replayDecoder struct {
	cs       *CommittedState
	resolver TableResolver
}

// NewReplayDecoder returns a commitlog.Decoder that decodes each record's
// payload as a row of the table named by the record's set id.
func NewReplayDecoder(cs *CommittedState, resolver TableResolver) commitlog.Decoder {
	return &replayDecoder{cs: cs, resolver: resolver}
}

func (d *replayDecoder) DecodeRecord(_ uint64, setID uint32, _ uint8, payload []byte) (any, error) {
	schema, ok := d.cs.GetSchema(setID)
	if !ok && d.resolver != nil {
		if err := d.resolver.ResolveTable(d.cs, setID); err != nil {
			return nil, err
		}
		schema, ok = d.cs.GetSchema(setID)
	}
	if !ok {
		return nil, fmt.Errorf("datastore: replay: unknown table id %d", setID)
	}
	r := sats.NewReader(payload)
	row, err := sats.Decode(r, schema.RowType(), nil)
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Replay applies every record in log to cs directly, bypassing the
// transaction manager: it is only valid to call before cs is exposed to any
// transaction, as part of RelationalDB.Open's recovery path. A table id
// must already be registered in cs, or resolvable through resolver, by the
// time its first record replays; the catalog rows defining it always
// precede it in the log, so a resolver that decodes them is sufficient.
func Replay(cs *CommittedState, log *commitlog.Log, resolver TableResolver) error {
	return ReplayFrom(cs, log, 0, resolver)
}

// ReplayFrom is Replay starting at fromOffset instead of the beginning of
// the log, for RelationalDB.Open's snapshot-accelerated recovery path:
// load the most recent snapshot into cs, then ReplayFrom(cs, log,
// snapshotOffset+1, resolver) to apply only the commit log tail the
// snapshot didn't cover.
func ReplayFrom(cs *CommittedState, log *commitlog.Log, fromOffset uint64, resolver TableResolver) error {
	dec := NewReplayDecoder(cs, resolver)
	for rec, err := range log.TransactionsFrom(fromOffset, dec) {
		if err != nil {
			return fmt.Errorf("datastore: replay failed at offset %d: %w", rec.Offset, err)
		}
		t, ok := cs.tables[rec.SetID]
		if !ok {
			return fmt.Errorf("datastore: replay: unknown table id %d at offset %d", rec.SetID, rec.Offset)
		}
		row, ok := rec.Value.(sats.Value)
		if !ok {
			return fmt.Errorf("datastore: replay: record at offset %d did not decode to a row", rec.Offset)
		}

		if rec.OpFlags&(1<<7) != 0 {
			applyReplayDelete(t, row)
			continue
		}
		applyReplayInsert(t, row)
	}
	return nil
}

func applyReplayInsert(t *table, row sats.Value) {
	ptr := t.allocPointer()
	t.rows[ptr] = row
	for _, idef := range t.schema.Indexes {
		key := indexKey(row, idef)
		t.indexes[idef.ID].Insert(key, index.Ptr(ptr))
	}
}

func applyReplayDelete(t *table, row sats.Value) {
	pkCol := t.schema.PrimaryKeyColumn()
	if pkCol < 0 {
		return
	}
	idef, ok := pkIndexDef(t.schema, pkCol)
	if !ok {
		return
	}
	idx := t.indexes[idef.ID]
	ptrs := idx.SeekPoint(row.Product[pkCol])
	if len(ptrs) == 0 {
		return
	}
	ptr := RowPointer(ptrs[0])
	for _, id := range t.schema.Indexes {
		t.indexes[id.ID].Delete(indexKey(row, id), index.Ptr(ptr))
	}
	delete(t.rows, ptr)
}
