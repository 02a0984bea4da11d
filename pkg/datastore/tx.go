package datastore

import (
	"errors"
	"fmt"
	"iter"
	"sort"
	"time"

	"github.com/cuemby/stormdb/pkg/commitlog"
	"github.com/cuemby/stormdb/pkg/index"
	"github.com/cuemby/stormdb/pkg/sats"
)

// Workload tags where a transaction's work originated, for metrics labels.
type Workload string

const (
	WorkloadReducer  Workload = "reducer"
	WorkloadSQL      Workload = "sql"
	WorkloadInternal Workload = "internal"
)

// ExecutionContext threads through a transaction for metrics attribution.
type ExecutionContext struct {
	Workload    Workload
	Database    string
	ReducerName string
}

// TxId identifies a read-only transaction; MutTxId a mutating one. Neither
// is durable or meaningful outside the process that issued it.
type TxId uint64
type MutTxId uint64

// opInsert/opDelete are the commit-log record flags distinguishing a
// row-level insert from a delete, carried in the op byte's reserved bit 7.
const (
	opInsert uint8 = 0
	opDelete uint8 = 1 << 7
)

// Tx is a live transaction. mut is nil for a read-only transaction (begun
// via BeginTx); every mutating method requires it.
type Tx struct {
	id       uint64
	ctx      ExecutionContext
	cs       *CommittedState
	mut      *TxState
	began    time.Time
	lockWait time.Duration
	released bool
}

// BeginTx acquires a shared read guard on cs. All reads through the
// returned Tx are consistent with cs's state at this moment.
func BeginTx(cs *CommittedState, ctx ExecutionContext) *Tx {
	start := time.Now()
	cs.mu.RLock()
	return &Tx{id: uint64(start.UnixNano()), ctx: ctx, cs: cs, began: start, lockWait: time.Since(start)}
}

// BeginMutTx acquires the exclusive write guard and opens an empty TxState.
// Isolation is Serializable by construction: there is only one writer.
func BeginMutTx(cs *CommittedState, ctx ExecutionContext) (*Tx, error) {
	start := time.Now()
	cs.mu.Lock()
	if cs.poisoned {
		cs.mu.Unlock()
		return nil, &StorageError{Kind: KindLifecycle, Message: "write guard poisoned by a prior failed commit", Err: ErrWriteGuardPoisoned}
	}
	return &Tx{id: uint64(start.UnixNano()), ctx: ctx, cs: cs, mut: NewTxState(), began: start, lockWait: time.Since(start)}, nil
}

// IsMutating reports whether tx was opened with BeginMutTx.
func (tx *Tx) IsMutating() bool { return tx.mut != nil }

// LockWait reports how long this Tx waited to acquire the CommittedState
// guard, for metrics attribution (pkg/metrics.Collector.ObserveLockWait).
func (tx *Tx) LockWait() time.Duration { return tx.lockWait }

func (tx *Tx) requireMutating() error {
	if tx.released {
		return &StorageError{Kind: KindLifecycle, Message: "transaction already closed", Err: ErrTxClosed}
	}
	if tx.mut == nil {
		return newStorageError(KindLifecycle, "read-only transaction cannot mutate", nil)
	}
	return nil
}

// GetSchema implements the G-facing operation of the same name.
func (tx *Tx) GetSchema(tableID uint32) (TableSchema, bool) {
	return tx.cs.GetSchema(tableID)
}

// TableExists implements the G-facing operation of the same name.
func (tx *Tx) TableExists(tableID uint32) (string, bool) {
	return tx.cs.TableExists(tableID)
}

// CreateTable stages schema for installation into CommittedState when this
// transaction commits, so the registration succeeds or vanishes together
// with whatever catalog rows the same transaction inserts to describe it.
// Until commit the table does not exist: same-transaction inserts into it
// fail with an unknown-table error.
func (tx *Tx) CreateTable(schema TableSchema) error {
	if err := tx.requireMutating(); err != nil {
		return err
	}
	if _, exists := tx.cs.tables[schema.ID]; exists {
		return newStorageError(KindSchema, fmt.Sprintf("table id %d already exists", schema.ID), nil)
	}
	for _, staged := range tx.mut.created {
		if staged.ID == schema.ID {
			return newStorageError(KindSchema, fmt.Sprintf("table id %d already staged in this transaction", schema.ID), nil)
		}
	}
	tx.mut.created = append(tx.mut.created, schema)
	return nil
}

// Insert validates row against the table's schema, defaults any
// sequence-backed columns, enforces unique-index constraints against the
// current tx view (committed minus this tx's deletes plus this tx's prior
// inserts), and appends it to TxState.
func (tx *Tx) Insert(tableID uint32, row sats.Value) (RowPointer, error) {
	if err := tx.requireMutating(); err != nil {
		return 0, err
	}
	t, ok := tx.cs.tables[tableID]
	if !ok {
		return 0, errUnknownTableID(tableID)
	}
	if row.Kind != sats.KindProduct || len(row.Product) != len(t.schema.Columns) {
		return 0, &InsertError{Kind: InsertErrTypeMismatch, detailErr: fmt.Errorf("row has %d fields, table %q wants %d", len(row.Product), t.schema.Name, len(t.schema.Columns))}
	}
	for i, c := range t.schema.Columns {
		if c.Type.Kind != sats.KindRef && row.Product[i].Kind != c.Type.Kind {
			return 0, &InsertError{Kind: InsertErrTypeMismatch, Column: c.Name, detailErr: fmt.Errorf("column %q wants %s, row has %s", c.Name, c.Type.Kind, row.Product[i].Kind)}
		}
	}

	row = tx.applySequenceDefaults(t, row)

	txt := tx.mut.table(tableID)
	for _, idef := range t.schema.Indexes {
		if idef.Kind != IndexUnique {
			continue
		}
		key := indexKey(row, idef)
		if existing, ok := tx.findConflict(t, txt, idef, key); ok {
			return 0, &InsertError{Kind: InsertErrUniqueViolation, Column: idef.Name, Conflict: existing, HasRow: true}
		}
	}

	ptr := newTxLocalPointer(tx.mut.nextTxOffset)
	tx.mut.nextTxOffset++
	txt.inserted[ptr] = row
	return ptr, nil
}

// findConflict reports the conflicting RowPointer (committed or tx-local)
// already holding key under idef, if any, honoring this tx's pending
// deletes and inserts on top of the committed index.
func (tx *Tx) findConflict(t *table, txt *txTableState, idef IndexDef, key sats.Value) (RowPointer, bool) {
	idx := t.indexes[idef.ID]
	for _, p := range idx.SeekPoint(key) {
		ptr := RowPointer(p)
		if !txt.deleted[ptr] {
			return ptr, true
		}
	}
	for ptr, v := range txt.inserted {
		if sats.Equal(indexKey(v, idef), key) {
			return ptr, true
		}
	}
	return 0, false
}

// applySequenceDefaults fills any sequence-backed column whose supplied
// value is the zero value with the next allocated sequence value: the
// convention this engine uses for "let the sequence choose".
func (tx *Tx) applySequenceDefaults(t *table, row sats.Value) sats.Value {
	var out []sats.Value
	for i, c := range t.schema.Columns {
		v := row.Product[i]
		if c.HasSeq && v.Uint == 0 && v.Int == 0 {
			seq, _ := t.sequences.Get(c.SequenceID)
			next, ok := seq.GenNextValue()
			if !ok {
				batch := seq.NthValue(64)
				seq.SetAllocation(batch)
				next, _ = seq.GenNextValue()
			}
			if out == nil {
				out = append([]sats.Value{}, row.Product...)
			}
			out[i] = replaceIntLike(v, next)
		}
	}
	if out == nil {
		return row
	}
	return sats.ProductValue(out)
}

func replaceIntLike(v sats.Value, n int64) sats.Value {
	switch v.Kind {
	case sats.KindU8, sats.KindU16, sats.KindU32, sats.KindU64:
		return sats.Value{Kind: v.Kind, Uint: uint64(n)}
	default:
		return sats.Value{Kind: v.Kind, Int: n}
	}
}

// DeleteByPK marks the row with primary key pk as deleted in this tx's
// view. It reports false if no such row is visible.
func (tx *Tx) DeleteByPK(tableID uint32, pk sats.Value) (bool, error) {
	if err := tx.requireMutating(); err != nil {
		return false, err
	}
	t, ok := tx.cs.tables[tableID]
	if !ok {
		return false, errUnknownTableID(tableID)
	}
	pkCol := t.schema.PrimaryKeyColumn()
	if pkCol < 0 {
		return false, newStorageError(KindSchema, "table has no primary key", map[string]string{"table": t.schema.Name})
	}
	idef, ok := pkIndexDef(t.schema, pkCol)
	if !ok {
		return false, newStorageError(KindSchema, "table has no primary-key index", map[string]string{"table": t.schema.Name})
	}
	txt := tx.mut.table(tableID)

	for ptr, v := range txt.inserted {
		if sats.Equal(v.Product[pkCol], pk) {
			delete(txt.inserted, ptr)
			return true, nil
		}
	}
	idx := t.indexes[idef.ID]
	for _, p := range idx.SeekPoint(pk) {
		ptr := RowPointer(p)
		if !txt.deleted[ptr] {
			txt.deleted[ptr] = true
			return true, nil
		}
	}
	return false, nil
}

// UpdateByPK is delete-then-insert, preserving the primary key.
func (tx *Tx) UpdateByPK(tableID uint32, pk sats.Value, row sats.Value) (RowPointer, error) {
	if _, err := tx.DeleteByPK(tableID, pk); err != nil {
		return 0, err
	}
	return tx.Insert(tableID, row)
}

// Iter yields every row visible to this tx: committed rows minus this tx's
// deletes plus this tx's inserts, in deterministic order (committed rows by
// page/slot, then tx-local inserts by insertion order).
func (tx *Tx) Iter(tableID uint32) (iter.Seq[Row], error) {
	if tx.released {
		return nil, errTxClosed()
	}
	committed, err := tx.cs.committedRows(tableID)
	if err != nil {
		return nil, err
	}
	var txt *txTableState
	if tx.mut != nil {
		txt = tx.mut.tables[tableID]
	}
	return func(yield func(Row) bool) {
		for _, r := range committed {
			if txt != nil && txt.deleted[r.Ptr] {
				continue
			}
			if !yield(r) {
				return
			}
		}
		if txt == nil {
			return
		}
		for _, r := range txt.insertedInOrder() {
			if !yield(r) {
				return
			}
		}
	}, nil
}

// IterByColRange yields rows whose projection over cols falls within r, in
// index key order when an index over exactly cols exists, or by filtering
// a full table scan otherwise.
func (tx *Tx) IterByColRange(tableID uint32, cols []int, r index.Range) (iter.Seq[Row], error) {
	t, ok := tx.cs.tables[tableID]
	if !ok {
		return nil, errUnknownTableID(tableID)
	}

	if idef, ok := indexOverColumns(t.schema, cols); ok {
		return tx.iterByIndex(tableID, t, idef, r)
	}

	full, err := tx.Iter(tableID)
	if err != nil {
		return nil, err
	}
	return func(yield func(Row) bool) {
		for row := range full {
			key := projectColumns(row.Value, cols)
			if r.Contains(key) && !yield(row) {
				return
			}
		}
	}, nil
}

func (tx *Tx) iterByIndex(tableID uint32, t *table, idef IndexDef, r index.Range) (iter.Seq[Row], error) {
	idx := t.indexes[idef.ID]
	entries := idx.SeekRange(r)
	var txt *txTableState
	if tx.mut != nil {
		txt = tx.mut.tables[tableID]
	}

	// This tx's own matching inserts, sorted by index key so the merged
	// output stays in key order alongside the committed entries.
	var local []Row
	if txt != nil {
		for _, row := range txt.insertedInOrder() {
			if r.Contains(projectColumns(row.Value, idef.Columns)) {
				local = append(local, row)
			}
		}
		sort.SliceStable(local, func(i, j int) bool {
			return sats.Compare(projectColumns(local[i].Value, idef.Columns), projectColumns(local[j].Value, idef.Columns)) < 0
		})
	}

	return func(yield func(Row) bool) {
		li := 0
		for _, e := range entries {
			ptr := RowPointer(e.Ptr)
			if txt != nil && txt.deleted[ptr] {
				continue
			}
			row, ok := t.rows[ptr]
			if !ok {
				continue
			}
			for li < len(local) && sats.Compare(projectColumns(local[li].Value, idef.Columns), e.Key) < 0 {
				if !yield(local[li]) {
					return
				}
				li++
			}
			if !yield(Row{Ptr: ptr, Value: row}) {
				return
			}
		}
		for ; li < len(local); li++ {
			if !yield(local[li]) {
				return
			}
		}
	}, nil
}

func projectColumns(row sats.Value, cols []int) sats.Value {
	if len(cols) == 1 {
		return row.Product[cols[0]]
	}
	fields := make([]sats.Value, len(cols))
	for i, c := range cols {
		fields[i] = row.Product[c]
	}
	return sats.ProductValue(fields)
}

func indexOverColumns(schema TableSchema, cols []int) (IndexDef, bool) {
	for _, idef := range schema.Indexes {
		if sameColumns(idef.Columns, cols) {
			return idef, true
		}
	}
	return IndexDef{}, false
}

func sameColumns(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func pkIndexDef(schema TableSchema, pkCol int) (IndexDef, bool) {
	return indexOverColumns(schema, []int{pkCol})
}

// RollbackTx drops TxState and releases the write guard without touching
// the commit log.
func (tx *Tx) RollbackTx() error {
	if tx.released {
		return nil
	}
	tx.released = true
	if tx.mut != nil {
		tx.mut = nil
		tx.cs.mu.Unlock()
	} else {
		tx.cs.mu.RUnlock()
	}
	return nil
}

// CommitTx is the only operation on a Tx that touches the commit log.
// A read-only Tx's CommitTx is the same operation as RollbackTx: release
// the read guard. A mutating Tx's CommitTx runs four steps: encode,
// append-with-flush-retry (and FlushAndSync when durable is requested),
// apply to CommittedState, release.
func (tx *Tx) CommitTx(log *commitlog.Log, durable bool) (uint64, error) {
	if tx.released {
		return 0, errTxClosed()
	}
	if tx.mut == nil {
		tx.released = true
		tx.cs.mu.RUnlock()
		return 0, nil
	}

	if tx.mut.empty() {
		tx.released = true
		tx.cs.mu.Unlock()
		return 0, nil
	}

	// A transaction that only staged table creations has no record batch to
	// make durable; the log is untouched and apply alone installs them.
	var offset uint64
	if !tx.mut.rowsEmpty() {
		if err := tx.appendToLog(log); err != nil {
			// Nothing from this batch reached a segment yet; discard the
			// partial pending commit and the log stays usable for the next
			// transaction.
			log.DiscardPending()
			tx.released = true
			tx.cs.mu.Unlock()
			return 0, &StorageError{Kind: KindResource, Message: "commit append failed", Err: err}
		}

		off, err := tx.flushLog(log, durable)
		if err != nil {
			// A failed flush may have written part of a commit frame; the
			// in-process writer state is no longer trustworthy, so refuse
			// further writers. The torn tail is recovered at next open.
			tx.cs.poisoned = true
			tx.released = true
			tx.cs.mu.Unlock()
			return 0, &StorageError{Kind: KindResource, Message: "commit flush failed", Err: errors.Join(ErrWriteGuardPoisoned, err)}
		}
		offset = off
	}

	tx.apply()
	tx.released = true
	tx.cs.mu.Unlock()
	return offset, nil
}

// appendToLog encodes the record batch in the order apply (and replay)
// consumes it: per table ascending, deletes before inserts, each sorted by
// pointer. Deletes must precede inserts so a replayed delete+insert over
// the same key resolves the old row, not the new one.
func (tx *Tx) appendToLog(log *commitlog.Log) error {
	for _, tableID := range tx.mut.tableIDsInOrder() {
		txt := tx.mut.tables[tableID]
		t := tx.cs.tables[tableID]
		for _, ptr := range txt.deletedInOrder() {
			if err := tx.appendRecord(log, t, tableID, opDelete, t.rows[ptr]); err != nil {
				return err
			}
		}
		for _, r := range txt.insertedInOrder() {
			if err := tx.appendRecord(log, t, tableID, opInsert, r.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

func (tx *Tx) appendRecord(log *commitlog.Log, t *table, tableID uint32, opFlags uint8, row sats.Value) error {
	w := sats.NewWriter()
	if err := sats.Encode(w, t.schema.RowType(), row, nil); err != nil {
		return err
	}
	dataKey := []byte(nil)
	if pk, ok := t.pkValue(row); ok {
		kw := sats.NewWriter()
		if err := sats.Encode(kw, t.schema.Columns[t.schema.PrimaryKeyColumn()].Type, pk, nil); err != nil {
			return err
		}
		dataKey = kw.Bytes()
	}
	for {
		err := log.AppendRecord(opFlags, tableID, dataKey, w.Bytes())
		if err == nil {
			return nil
		}
		var rejected *commitlog.RecordRejectedError
		if !errors.As(err, &rejected) {
			return err
		}
		if ferr := log.Flush(); ferr != nil {
			return ferr
		}
	}
}

func (tx *Tx) flushLog(log *commitlog.Log, durable bool) (uint64, error) {
	if durable {
		return log.FlushAndSync()
	}
	if err := log.Flush(); err != nil {
		return 0, err
	}
	off, ok := log.CommittedOffset()
	if !ok {
		return 0, nil
	}
	return off, nil
}

// apply moves TxState into CommittedState: installs staged tables, remaps
// tx-local pointers to committed ones, and installs/removes index entries.
// It does not touch sequences: Insert already advanced the committed
// sequences (value and allocation watermark) when it filled a
// sequence-backed column, and a rollback does not return those values.
// Caller still holds the write guard.
func (tx *Tx) apply() {
	for _, schema := range tx.mut.created {
		tx.cs.installTable(schema)
	}
	for _, tableID := range tx.mut.tableIDsInOrder() {
		txt := tx.mut.tables[tableID]
		t := tx.cs.tables[tableID]

		for _, ptr := range txt.deletedInOrder() {
			row, ok := t.rows[ptr]
			if !ok {
				continue
			}
			for _, idef := range t.schema.Indexes {
				key := indexKey(row, idef)
				t.indexes[idef.ID].Delete(key, index.Ptr(ptr))
			}
			delete(t.rows, ptr)
		}

		for _, r := range txt.insertedInOrder() {
			ptr := t.allocPointer()
			t.rows[ptr] = r.Value
			for _, idef := range t.schema.Indexes {
				key := indexKey(r.Value, idef)
				t.indexes[idef.ID].Insert(key, index.Ptr(ptr))
			}
		}
	}
}
