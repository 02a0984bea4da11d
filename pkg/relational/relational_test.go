package relational

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/stormdb/pkg/config"
	"github.com/cuemby/stormdb/pkg/datastore"
	"github.com/cuemby/stormdb/pkg/index"
	"github.com/cuemby/stormdb/pkg/metrics"
	"github.com/cuemby/stormdb/pkg/sats"
)

func testConfig(dir string) config.Config {
	cfg := config.Default(dir)
	cfg.Storage.DirectIO = false
	cfg.Storage.SyncIO = false
	return cfg
}

// userRow builds a row in the schema's canonical column order: both id
// (u64) and name (string) have 8-byte alignment, so BuildProduct breaks
// the tie alphabetically, "id" sorts before "name".
func userRow(id uint64, name string) sats.Value {
	return sats.ProductValue([]sats.Value{sats.U64Value(id), sats.StringValue(name)})
}

// TestOpenCreateInsertCommitReopenIterate exercises the full facade once
// across a process restart: open, create a table, insert rows durably,
// close, reopen against the same directory, and confirm every row and the
// table definition itself survived without being re-declared.
func TestOpenCreateInsertCommitReopenIterate(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)

	db, err := Open(dir, cfg, metrics.NoopCollector{})
	require.NoError(t, err)

	schema, err := db.CreateTable("users", []datastore.ColumnDef{
		{Name: "id", Type: sats.Scalar(sats.KindU64), PrimaryKey: true},
		{Name: "name", Type: sats.Scalar(sats.KindString)},
	}, nil, datastore.AccessPublic)
	require.NoError(t, err)

	_, err = db.Insert(schema.ID, userRow(1, "ada"))
	require.NoError(t, err)
	_, err = db.Insert(schema.ID, userRow(2, "grace"))
	require.NoError(t, err)

	require.NoError(t, db.Close())

	db2, err := Open(dir, cfg, metrics.NoopCollector{})
	require.NoError(t, err)
	defer db2.Close()

	tables := db2.GetAllTables()
	var found bool
	for _, s := range tables {
		if s.Name == "users" {
			found = true
			assert.Equal(t, schema.ID, s.ID)
		}
	}
	assert.True(t, found, "users table not recovered from catalog + replay")

	rows, err := db2.Iter(schema.ID)
	require.NoError(t, err)
	var names []string
	for r := range rows {
		names = append(names, r.Value.Product[1].Str)
	}
	assert.ElementsMatch(t, []string{"ada", "grace"}, names)
}

// TestInsertRejectsDuplicatePrimaryKey exercises the unique-constraint
// path end-to-end through the facade, not just pkg/datastore directly.
func TestInsertRejectsDuplicatePrimaryKey(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir, testConfig(dir), metrics.NoopCollector{})
	require.NoError(t, err)
	defer db.Close()

	schema, err := db.CreateTable("users", []datastore.ColumnDef{
		{Name: "id", Type: sats.Scalar(sats.KindU64), PrimaryKey: true},
		{Name: "name", Type: sats.Scalar(sats.KindString)},
	}, nil, datastore.AccessPublic)
	require.NoError(t, err)

	_, err = db.Insert(schema.ID, userRow(1, "ada"))
	require.NoError(t, err)

	_, err = db.Insert(schema.ID, userRow(1, "again"))
	require.Error(t, err)
	var ierr *datastore.InsertError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, datastore.InsertErrUniqueViolation, ierr.Kind)
}

// TestIterByColRangeUsesIndexAcrossFacade confirms a range scan issued
// through RelationalDB (not pkg/datastore directly) returns only rows
// within bounds.
func TestIterByColRangeUsesIndexAcrossFacade(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir, testConfig(dir), metrics.NoopCollector{})
	require.NoError(t, err)
	defer db.Close()

	schema, err := db.CreateTable("events", []datastore.ColumnDef{
		{Name: "ts", Type: sats.Scalar(sats.KindU64)},
		{Name: "tag", Type: sats.Scalar(sats.KindString)},
	}, []datastore.IndexDef{{ID: 1, Name: "by_ts", Columns: []int{0}, Kind: datastore.IndexMulti}}, datastore.AccessPublic)
	require.NoError(t, err)
	// NewTableSchema may reorder columns; resolve the ts column's position.
	tsCol := -1
	for i, c := range schema.Columns {
		if c.Name == "ts" {
			tsCol = i
		}
	}
	require.GreaterOrEqual(t, tsCol, 0)

	row := func(ts uint64, tag string) sats.Value {
		fields := make([]sats.Value, len(schema.Columns))
		for i, c := range schema.Columns {
			switch c.Name {
			case "ts":
				fields[i] = sats.U64Value(ts)
			case "tag":
				fields[i] = sats.StringValue(tag)
			}
		}
		return sats.ProductValue(fields)
	}

	for _, ts := range []uint64{10, 20, 30, 40} {
		_, err := db.Insert(schema.ID, row(ts, "x"))
		require.NoError(t, err)
	}

	lo, hi := sats.U64Value(15), sats.U64Value(35)
	rows, err := db.IterByColRange(schema.ID, []int{tsCol}, index.Range{Lo: &lo, Hi: &hi, LoInclusive: true, HiInclusive: true})
	require.NoError(t, err)
	var got []uint64
	for r := range rows {
		got = append(got, r.Value.Product[tsCol].Uint)
	}
	assert.ElementsMatch(t, []uint64{20, 30}, got)
}

// TestSnapshotThenReopenSkipsFullReplay exercises RelationalDB.Snapshot and
// confirms a reopen after one still recovers correctly, reading entirely
// through the snapshot-then-replay-tail path.
func TestSnapshotThenReopenSkipsFullReplay(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)

	db, err := Open(dir, cfg, metrics.NoopCollector{})
	require.NoError(t, err)

	schema, err := db.CreateTable("counters", []datastore.ColumnDef{
		{Name: "id", Type: sats.Scalar(sats.KindU32), PrimaryKey: true},
		{Name: "val", Type: sats.Scalar(sats.KindU64)},
	}, nil, datastore.AccessPublic)
	require.NoError(t, err)

	// val (u64, 8-byte align) sorts before id (u32, 4-byte align) in the
	// canonical column order BuildProduct computes.
	_, err = db.Insert(schema.ID, sats.ProductValue([]sats.Value{sats.U64Value(100), sats.U32Value(1)}))
	require.NoError(t, err)

	require.NoError(t, db.Snapshot())

	_, err = db.Insert(schema.ID, sats.ProductValue([]sats.Value{sats.U64Value(200), sats.U32Value(2)}))
	require.NoError(t, err)

	require.NoError(t, db.Close())

	db2, err := Open(dir, cfg, metrics.NoopCollector{})
	require.NoError(t, err)
	defer db2.Close()

	rows, err := db2.Iter(schema.ID)
	require.NoError(t, err)
	var total uint64
	count := 0
	for r := range rows {
		count++
		for _, f := range r.Value.Product {
			if f.Kind == sats.KindU64 {
				total += f.Uint
			}
		}
	}
	assert.Equal(t, 2, count)
	assert.Equal(t, uint64(300), total)
}

// TestResetToDiscardsLaterCommits truncates the log back to the offset of
// the first insert and confirms both the in-memory state and a subsequent
// reopen agree that the second insert never happened.
func TestResetToDiscardsLaterCommits(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)

	db, err := Open(dir, cfg, metrics.NoopCollector{})
	require.NoError(t, err)

	schema, err := db.CreateTable("users", []datastore.ColumnDef{
		{Name: "id", Type: sats.Scalar(sats.KindU64), PrimaryKey: true},
		{Name: "name", Type: sats.Scalar(sats.KindString)},
	}, nil, datastore.AccessPublic)
	require.NoError(t, err)

	_, err = db.Insert(schema.ID, userRow(1, "ada"))
	require.NoError(t, err)
	cut, ok := db.CommittedOffset()
	require.True(t, ok)

	_, err = db.Insert(schema.ID, userRow(2, "grace"))
	require.NoError(t, err)

	require.NoError(t, db.ResetTo(cut))

	rows, err := db.Iter(schema.ID)
	require.NoError(t, err)
	var names []string
	for r := range rows {
		names = append(names, r.Value.Product[1].Str)
	}
	assert.Equal(t, []string{"ada"}, names)
	require.NoError(t, db.Close())

	db2, err := Open(dir, cfg, metrics.NoopCollector{})
	require.NoError(t, err)
	defer db2.Close()
	rows2, err := db2.Iter(schema.ID)
	require.NoError(t, err)
	names = names[:0]
	for r := range rows2 {
		names = append(names, r.Value.Product[1].Str)
	}
	assert.Equal(t, []string{"ada"}, names)
}

func TestSizeInMemoryCountsRows(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir, testConfig(dir), metrics.NoopCollector{})
	require.NoError(t, err)
	defer db.Close()

	schema, err := db.CreateTable("t", []datastore.ColumnDef{
		{Name: "id", Type: sats.Scalar(sats.KindU32), PrimaryKey: true},
	}, nil, datastore.AccessPublic)
	require.NoError(t, err)

	before, err := db.SizeInMemory()
	require.NoError(t, err)

	_, err = db.Insert(schema.ID, sats.ProductValue([]sats.Value{sats.U32Value(1)}))
	require.NoError(t, err)

	after, err := db.SizeInMemory()
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
}
