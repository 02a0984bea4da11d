// Package relational binds the commit log, the algebraic value codec, and
// the in-memory table store into one facade: open a directory, get back a
// database that creates tables, runs transactions, and iterates rows,
// recovering its full state from whatever durable log (and, if present,
// snapshot) it finds on disk.
package relational

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/stormdb/pkg/commitlog"
	"github.com/cuemby/stormdb/pkg/config"
	"github.com/cuemby/stormdb/pkg/datastore"
	"github.com/cuemby/stormdb/pkg/index"
	"github.com/cuemby/stormdb/pkg/log"
	"github.com/cuemby/stormdb/pkg/metrics"
	"github.com/cuemby/stormdb/pkg/sats"
	"github.com/cuemby/stormdb/pkg/snapshot"
)

func systemTableIDs() []uint32 {
	return []uint32{stTableID, stColumnID, stIndexID, stSequenceID, stRLSID}
}

// catalogResolver materializes user tables mid-replay: when the log's
// forward scan reaches the first data record of a table not yet registered
// in the committed state, the st_table/st_column/st_index rows defining it
// have necessarily already replayed (CreateTable commits them before any
// insert into the new table can exist), so decoding the catalog at that
// moment is always sufficient.
type catalogResolver struct{}

func (catalogResolver) ResolveTable(cs *datastore.CommittedState, tableID uint32) error {
	tables, err := decodeUserTables(cs)
	if err != nil {
		return err
	}
	for _, schema := range tables {
		if _, ok := cs.TableExists(schema.ID); ok {
			continue
		}
		if err := cs.CreateTable(schema); err != nil {
			return fmt.Errorf("relational: recreate table %q from catalog: %w", schema.Name, err)
		}
	}
	if _, ok := cs.TableExists(tableID); !ok {
		return fmt.Errorf("relational: replay: table id %d has no catalog definition", tableID)
	}
	return nil
}

// RelationalDB is one database: a commit log, the committed table store it
// reconstructs, and a system catalog describing every table it owns.
type RelationalDB struct {
	// id identifies this open instance in logs and execution contexts; it
	// is regenerated on every Open, never persisted.
	id        string
	dir       string
	cfg       config.Config
	collector metrics.Collector
	log       *commitlog.Log
	cs        *datastore.CommittedState
	snap      *snapshot.Store

	nextTableID uint32
}

// Open opens (or creates) the database rooted at dir: the commit log lives
// under dir/commit_log, snapshots under dir/snapshots. Recovery consults
// the most recent snapshot, if any, then replays the commit log tail after
// its offset; with no snapshot present it replays from the very start.
func Open(dir string, cfg config.Config, collector metrics.Collector) (*RelationalDB, error) {
	if collector == nil {
		collector = metrics.NewPrometheusCollector()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("relational: create %s: %w", dir, err)
	}

	commitDir := filepath.Join(dir, "commit_log")
	logOpts := cfg.Storage.CommitlogOptions()
	logOpts.OnSegmentRoll = collector.IncSegmentRoll
	logOpts.OnRecordRejection = collector.IncRecordRejection
	l, err := commitlog.Open(commitDir, logOpts)
	if err != nil {
		return nil, fmt.Errorf("relational: open commit log: %w", err)
	}

	snapDir := filepath.Join(dir, "snapshots")
	snapStore, err := snapshot.Open(snapDir)
	if err != nil {
		l.Close()
		return nil, fmt.Errorf("relational: open snapshot store: %w", err)
	}

	cs := datastore.NewCommittedState()
	for _, schema := range systemTableSchemas() {
		if err := cs.CreateTable(schema); err != nil {
			l.Close()
			return nil, fmt.Errorf("relational: bootstrap catalog: %w", err)
		}
	}

	replayFrom := uint64(0)
	if offset, ok, err := snapStore.Latest(); err != nil {
		l.Close()
		return nil, fmt.Errorf("relational: list snapshots: %w", err)
	} else if ok {
		if err := snapStore.LoadTables(cs, offset, systemTableIDs()); err != nil {
			l.Close()
			return nil, fmt.Errorf("relational: load catalog snapshot: %w", err)
		}
		userTables, err := decodeUserTables(cs)
		if err != nil {
			l.Close()
			return nil, err
		}
		var userIDs []uint32
		for _, schema := range userTables {
			if err := cs.CreateTable(schema); err != nil {
				l.Close()
				return nil, fmt.Errorf("relational: recreate table %q from catalog: %w", schema.Name, err)
			}
			userIDs = append(userIDs, schema.ID)
		}
		if err := snapStore.LoadTables(cs, offset, userIDs); err != nil {
			l.Close()
			return nil, fmt.Errorf("relational: load table snapshot: %w", err)
		}
		replayFrom = offset + 1
	}

	if err := datastore.ReplayFrom(cs, l, replayFrom, catalogResolver{}); err != nil {
		l.Close()
		return nil, fmt.Errorf("relational: replay: %w", err)
	}
	for _, schema := range cs.AllTables() {
		if err := cs.ReconcileSequences(schema.ID); err != nil {
			l.Close()
			return nil, fmt.Errorf("relational: reconcile sequences: %w", err)
		}
	}

	db := &RelationalDB{id: uuid.New().String(), dir: dir, cfg: cfg, collector: collector, log: l, cs: cs, snap: snapStore}
	db.nextTableID = firstUserTableID
	for _, schema := range cs.AllTables() {
		if schema.ID >= db.nextTableID {
			db.nextTableID = schema.ID + 1
		}
	}

	metrics.RegisterComponent("commit_log", true, "")
	metrics.RegisterComponent("datastore", true, "")
	metrics.RegisterComponent("relational", true, "")

	logger := log.WithComponent("relational")
	logger.Info().Str("instance", db.id).Str("dir", dir).Uint64("replayed_from", replayFrom).Msg("database opened")
	return db, nil
}

// InstanceID returns the identifier assigned to this open instance, for
// callers correlating logs or execution contexts across several databases
// in one process.
func (db *RelationalDB) InstanceID() string { return db.id }

// internalCtx is the execution context for transactions the facade opens
// on its own behalf (catalog writes, convenience wrappers, snapshots).
func (db *RelationalDB) internalCtx() datastore.ExecutionContext {
	return datastore.ExecutionContext{Workload: datastore.WorkloadInternal, Database: db.id}
}

// Close flushes and closes the underlying commit log. It does not delete
// or invalidate any snapshot.
func (db *RelationalDB) Close() error {
	return db.log.Close()
}

// CreateTable registers a new user table: assigns it the next table id,
// builds its canonical schema, and in one mutating transaction stages the
// registration and durably records its definition in the system catalog
// (st_table, st_column, st_index), so a later Open can reconstruct it
// without the caller re-declaring it and a failed commit leaves neither
// half behind.
func (db *RelationalDB) CreateTable(name string, columns []datastore.ColumnDef, indexes []datastore.IndexDef, access datastore.Access) (datastore.TableSchema, error) {
	id := atomic.AddUint32(&db.nextTableID, 1) - 1

	schema, err := datastore.NewTableSchema(id, name, columns, indexes, access, datastore.LifecycleUser)
	if err != nil {
		return datastore.TableSchema{}, fmt.Errorf("relational: create table %q: %w", name, err)
	}

	tx, err := db.BeginMutTx(db.internalCtx())
	if err != nil {
		return datastore.TableSchema{}, err
	}
	// Staged, not installed: the registration reaches CommittedState only
	// when the commit below applies, so a failed catalog insert or commit
	// cannot leave the table registered in memory with no durable
	// definition behind it.
	if err := tx.CreateTable(schema); err != nil {
		tx.RollbackTx()
		return datastore.TableSchema{}, fmt.Errorf("relational: create table %q: %w", name, err)
	}

	tableRow, columnRows, indexRows := encodeCatalogRows(schema)
	if _, err := tx.Insert(stTableID, tableRow); err != nil {
		tx.RollbackTx()
		return datastore.TableSchema{}, fmt.Errorf("relational: catalog insert for %q: %w", name, err)
	}
	for _, row := range columnRows {
		if _, err := tx.Insert(stColumnID, row); err != nil {
			tx.RollbackTx()
			return datastore.TableSchema{}, fmt.Errorf("relational: catalog insert for %q: %w", name, err)
		}
	}
	for _, row := range indexRows {
		if _, err := tx.Insert(stIndexID, row); err != nil {
			tx.RollbackTx()
			return datastore.TableSchema{}, fmt.Errorf("relational: catalog insert for %q: %w", name, err)
		}
	}

	if _, err := db.commit(tx, true); err != nil {
		return datastore.TableSchema{}, fmt.Errorf("relational: create table %q: %w", name, err)
	}
	tableLog := log.WithTable(schema.ID)
	tableLog.Info().Str("table", schema.Name).Msg("table created")
	return schema, nil
}

// GetAllTables returns every table's schema, system and user alike.
func (db *RelationalDB) GetAllTables() []datastore.TableSchema {
	return db.cs.AllTables()
}

// BeginTx opens a read-only transaction.
func (db *RelationalDB) BeginTx(ctx datastore.ExecutionContext) *datastore.Tx {
	db.collector.SetTxActive("read", 1)
	return datastore.BeginTx(db.cs, ctx)
}

// BeginMutTx opens a mutating transaction.
func (db *RelationalDB) BeginMutTx(ctx datastore.ExecutionContext) (*datastore.Tx, error) {
	tx, err := datastore.BeginMutTx(db.cs, ctx)
	if err != nil {
		return nil, err
	}
	db.collector.SetTxActive("write", 1)
	return tx, nil
}

// CommitTx commits tx, recording its outcome and the write guard's lock
// wait to the metrics collector. durable requests FlushAndSync over Flush.
func (db *RelationalDB) CommitTx(tx *datastore.Tx, durable bool) (uint64, error) {
	return db.commit(tx, durable)
}

func (db *RelationalDB) commit(tx *datastore.Tx, durable bool) (uint64, error) {
	db.collector.ObserveLockWait(tx.LockWait())
	kind := "read"
	if tx.IsMutating() {
		kind = "write"
	}

	timer := metrics.NewTimer()
	offset, err := tx.CommitTx(db.log, durable)
	db.collector.SetTxActive(kind, 0)

	outcome := "committed"
	if err != nil {
		outcome = "failed"
		if errors.Is(err, datastore.ErrWriteGuardPoisoned) {
			outcome = "poisoned"
			metrics.UpdateComponent("relational", false, "write guard poisoned")
			componentLog := log.WithComponent("relational")
			componentLog.Error().Err(err).
				Msg("write guard poisoned, no further mutating transactions will be accepted; restart to recover")
		}
	}
	db.collector.ObserveCommit(outcome, timer.Duration())
	return offset, err
}

// RollbackTx drops tx without touching the commit log.
func (db *RelationalDB) RollbackTx(tx *datastore.Tx) error {
	kind := "read"
	if tx.IsMutating() {
		kind = "write"
	}
	db.collector.SetTxActive(kind, 0)
	return tx.RollbackTx()
}

// Insert is a single-statement convenience wrapper: begin a mutating
// transaction, insert one row, commit durably.
func (db *RelationalDB) Insert(tableID uint32, row sats.Value) (datastore.RowPointer, error) {
	tx, err := db.BeginMutTx(db.internalCtx())
	if err != nil {
		return 0, err
	}
	ptr, err := tx.Insert(tableID, row)
	if err != nil {
		var ierr *datastore.InsertError
		if errors.As(err, &ierr) && ierr.Kind == datastore.InsertErrUniqueViolation {
			if name, ok := tx.TableExists(tableID); ok {
				db.collector.IncUniqueViolation(name)
			}
		}
		db.RollbackTx(tx)
		return 0, err
	}
	if _, err := db.commit(tx, true); err != nil {
		return 0, err
	}
	return ptr, nil
}

// Iter yields every committed row of tableID, outside any caller-managed
// transaction.
func (db *RelationalDB) Iter(tableID uint32) (iter.Seq[datastore.Row], error) {
	tx := db.BeginTx(db.internalCtx())
	defer db.RollbackTx(tx)
	rows, err := tx.Iter(tableID)
	if err != nil {
		return nil, err
	}
	// Materialize: the read guard releases when this function returns, so
	// the iterator cannot be allowed to read tx state lazily afterward.
	var buffered []datastore.Row
	for r := range rows {
		buffered = append(buffered, r)
	}
	return func(yield func(datastore.Row) bool) {
		for _, r := range buffered {
			if !yield(r) {
				return
			}
		}
	}, nil
}

// IterByColRange yields tableID's rows whose projection over cols falls
// within r, outside any caller-managed transaction.
func (db *RelationalDB) IterByColRange(tableID uint32, cols []int, r index.Range) (iter.Seq[datastore.Row], error) {
	timer := metrics.NewTimer()
	tx := db.BeginTx(db.internalCtx())
	defer db.RollbackTx(tx)
	rows, err := tx.IterByColRange(tableID, cols, r)
	if err != nil {
		return nil, err
	}
	var out []datastore.Row
	for row := range rows {
		out = append(out, row)
	}
	db.collector.ObserveRangeScan(fmt.Sprintf("table:%d", tableID), timer.Duration())
	return func(yield func(datastore.Row) bool) {
		for _, r := range out {
			if !yield(r) {
				return
			}
		}
	}, nil
}

// Snapshot writes a point-in-time copy of every table to the snapshot
// store, consistent as of the commit log's current committed offset, and
// reports it to the metrics collector.
func (db *RelationalDB) Snapshot() error {
	tx := db.BeginTx(db.internalCtx())
	defer db.RollbackTx(tx)

	offset, ok := db.log.CommittedOffset()
	if !ok {
		return nil // nothing committed yet, nothing to snapshot
	}
	timer := metrics.NewTimer()
	if err := db.snap.Write(db.cs, offset); err != nil {
		return fmt.Errorf("relational: snapshot: %w", err)
	}
	db.collector.ObserveSnapshot(timer.Duration())

	// The snapshot pass already visits every table, so it doubles as the
	// refresh point for the per-table gauges.
	for _, schema := range db.cs.AllTables() {
		if rows, err := db.cs.SnapshotRows(schema.ID); err == nil {
			db.collector.SetRowCount(schema.Name, len(rows))
		}
		if kb, err := db.cs.IndexKeyBytes(schema.ID); err == nil {
			for name, n := range kb {
				db.collector.SetIndexKeyBytes(name, n)
			}
		}
	}
	return nil
}

// SnapshotLoop writes a snapshot every Storage.SnapshotInterval until ctx
// is cancelled, for embedders running the engine as a long-lived service.
// A failed snapshot is logged and retried at the next tick; it never stops
// the loop or the engine.
func (db *RelationalDB) SnapshotLoop(ctx context.Context) {
	interval := db.cfg.Storage.SnapshotInterval
	if interval <= 0 {
		return
	}
	logger := log.WithComponent("snapshot")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := db.Snapshot(); err != nil {
				logger.Error().Err(err).Msg("periodic snapshot failed")
			}
		}
	}
}

// ResetTo truncates the commit log back to offset, invalidates every
// snapshot taken past it (the decision recorded in DESIGN.md: a reset does
// not leave restorable branches behind), and rebuilds the in-memory table
// store from the truncated log so reads never observe rows the log no
// longer contains. Not callable while transactions are in flight.
func (db *RelationalDB) ResetTo(offset uint64) error {
	newLog, err := db.log.ResetTo(offset)
	if err != nil {
		return fmt.Errorf("relational: reset: %w", err)
	}
	db.log = newLog
	if err := db.snap.DeleteFrom(offset + 1); err != nil {
		return fmt.Errorf("relational: reset: invalidate snapshots: %w", err)
	}

	cs := datastore.NewCommittedState()
	for _, schema := range systemTableSchemas() {
		if err := cs.CreateTable(schema); err != nil {
			return fmt.Errorf("relational: reset: bootstrap catalog: %w", err)
		}
	}
	if err := datastore.Replay(cs, db.log, catalogResolver{}); err != nil {
		return fmt.Errorf("relational: reset: replay: %w", err)
	}
	for _, schema := range cs.AllTables() {
		if err := cs.ReconcileSequences(schema.ID); err != nil {
			return fmt.Errorf("relational: reset: reconcile sequences: %w", err)
		}
	}
	db.cs = cs
	db.nextTableID = firstUserTableID
	for _, schema := range cs.AllTables() {
		if schema.ID >= db.nextTableID {
			db.nextTableID = schema.ID + 1
		}
	}
	return nil
}

// CommittedOffset reports the offset of the last durable record in the
// commit log, or ok=false if nothing has committed yet.
func (db *RelationalDB) CommittedOffset() (uint64, bool) {
	return db.log.CommittedOffset()
}

// SizeOnDisk reports the total byte size of the commit log and snapshot
// directories combined.
func (db *RelationalDB) SizeOnDisk() (uint64, error) {
	var total uint64
	for _, sub := range []string{"commit_log", "snapshots"} {
		err := filepath.Walk(filepath.Join(db.dir, sub), func(_ string, info os.FileInfo, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if !info.IsDir() {
				total += uint64(info.Size())
			}
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("relational: size on disk: %w", err)
		}
	}
	return total, nil
}

// SizeInMemory reports the number of committed rows held across every
// table, as a proxy for the in-memory table store's footprint.
func (db *RelationalDB) SizeInMemory() (int, error) {
	total := 0
	for _, schema := range db.cs.AllTables() {
		rows, err := db.cs.SnapshotRows(schema.ID)
		if err != nil {
			return 0, err
		}
		total += len(rows)
	}
	return total, nil
}
