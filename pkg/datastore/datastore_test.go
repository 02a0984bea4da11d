package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/stormdb/pkg/commitlog"
	"github.com/cuemby/stormdb/pkg/dio"
	"github.com/cuemby/stormdb/pkg/index"
	"github.com/cuemby/stormdb/pkg/sats"
)

func testLogOptions() commitlog.Options {
	opts := commitlog.DefaultOptions
	opts.FsOptions = dio.FsOptions{DirectIO: false, SyncIO: false}
	return opts
}

func openTestLog(t *testing.T) *commitlog.Log {
	t.Helper()
	dir := t.TempDir()
	log, err := commitlog.Open(dir, testLogOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return log
}

// colIndex resolves a column's position in schema's canonical order, which
// NewTableSchema may have changed from the declared one.
func colIndex(t *testing.T, schema TableSchema, name string) int {
	t.Helper()
	for i, c := range schema.Columns {
		if c.Name == name {
			return i
		}
	}
	t.Fatalf("no column %q in table %q", name, schema.Name)
	return -1
}

// tableT builds T(a:i32 primary_key, b:u64).
func tableT(t *testing.T) (*CommittedState, TableSchema) {
	t.Helper()
	schema, err := NewTableSchema(1, "T", []ColumnDef{
		{Name: "a", Type: sats.Scalar(sats.KindI32), PrimaryKey: true},
		{Name: "b", Type: sats.Scalar(sats.KindU64)},
	}, nil, AccessPublic, LifecycleUser)
	require.NoError(t, err)
	cs := NewCommittedState()
	require.NoError(t, cs.CreateTable(schema))
	return cs, schema
}

func rowAB(a int32, b uint64, schema TableSchema) sats.Value {
	vals := make([]sats.Value, len(schema.Columns))
	for i, c := range schema.Columns {
		switch c.Name {
		case "a":
			vals[i] = sats.I32Value(a)
		case "b":
			vals[i] = sats.U64Value(b)
		}
	}
	return sats.ProductValue(vals)
}

func TestUniqueViolation(t *testing.T) {
	cs, schema := tableT(t)
	log := openTestLog(t)

	tx, err := BeginMutTx(cs, ExecutionContext{Workload: WorkloadInternal})
	require.NoError(t, err)

	ptr1, err := tx.Insert(schema.ID, rowAB(1, 10, schema))
	require.NoError(t, err)

	_, err = tx.Insert(schema.ID, rowAB(1, 11, schema))
	require.Error(t, err)
	var insErr *InsertError
	require.ErrorAs(t, err, &insErr)
	assert.Equal(t, InsertErrUniqueViolation, insErr.Kind)
	assert.Equal(t, ptr1, insErr.Conflict)

	_, err = tx.CommitTx(log, true)
	require.NoError(t, err)

	read := BeginTx(cs, ExecutionContext{Workload: WorkloadInternal})
	defer read.RollbackTx()
	it, err := read.Iter(schema.ID)
	require.NoError(t, err)
	var rows []Row
	for r := range it {
		rows = append(rows, r)
	}
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(10), rows[0].Value.Product[colIndex(t, schema, "b")].Uint)
}

func TestCreateTableStagedUntilCommit(t *testing.T) {
	cs := NewCommittedState()
	log := openTestLog(t)
	schema, err := NewTableSchema(7, "W", []ColumnDef{
		{Name: "a", Type: sats.Scalar(sats.KindI32), PrimaryKey: true},
	}, nil, AccessPublic, LifecycleUser)
	require.NoError(t, err)

	tx, err := BeginMutTx(cs, ExecutionContext{})
	require.NoError(t, err)
	require.NoError(t, tx.CreateTable(schema))
	_, ok := cs.TableExists(schema.ID)
	assert.False(t, ok, "staged table must not be visible before commit")
	require.NoError(t, tx.RollbackTx())

	_, ok = cs.TableExists(schema.ID)
	assert.False(t, ok, "rolled-back creation must leave no trace")

	tx2, err := BeginMutTx(cs, ExecutionContext{})
	require.NoError(t, err)
	require.NoError(t, tx2.CreateTable(schema))
	_, err = tx2.CommitTx(log, true)
	require.NoError(t, err)

	name, ok := cs.TableExists(schema.ID)
	require.True(t, ok)
	assert.Equal(t, "W", name)
}

func TestInsertRejectsWrongColumnKind(t *testing.T) {
	cs, schema := tableT(t)

	tx, err := BeginMutTx(cs, ExecutionContext{})
	require.NoError(t, err)
	defer tx.RollbackTx()

	bad := make([]sats.Value, len(schema.Columns))
	for i, c := range schema.Columns {
		switch c.Name {
		case "a":
			bad[i] = sats.StringValue("not an i32")
		case "b":
			bad[i] = sats.U64Value(1)
		}
	}
	_, err = tx.Insert(schema.ID, sats.ProductValue(bad))
	require.Error(t, err)
	var ierr *InsertError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, InsertErrTypeMismatch, ierr.Kind)
	assert.Equal(t, "a", ierr.Column)
}

func TestRangeScanUsesIndex(t *testing.T) {
	schema, err := NewTableSchema(2, "U", []ColumnDef{
		{Name: "a", Type: sats.Scalar(sats.KindI32), PrimaryKey: true},
		{Name: "b", Type: sats.Scalar(sats.KindU64)},
	}, []IndexDef{
		{ID: 1, Name: "U_b_idx", Columns: []int{1}, Kind: IndexMulti},
	}, AccessPublic, LifecycleUser)
	require.NoError(t, err)
	cs := NewCommittedState()
	require.NoError(t, cs.CreateTable(schema))
	log := openTestLog(t)

	tx, err := BeginMutTx(cs, ExecutionContext{})
	require.NoError(t, err)
	for i := 0; i < 1000; i++ {
		_, err := tx.Insert(schema.ID, rowAB(int32(i), uint64(i%1000), schema))
		require.NoError(t, err)
	}
	_, err = tx.CommitTx(log, true)
	require.NoError(t, err)

	bCol := -1
	for i, c := range schema.Columns {
		if c.Name == "b" {
			bCol = i
		}
	}
	require.GreaterOrEqual(t, bCol, 0)

	read := BeginTx(cs, ExecutionContext{})
	defer read.RollbackTx()
	lo, hi := sats.U64Value(500), sats.U64Value(600)
	it, err := read.IterByColRange(schema.ID, []int{bCol}, index.Range{Lo: &lo, Hi: &hi, LoInclusive: true, HiInclusive: false})
	require.NoError(t, err)

	var got []uint64
	for r := range it {
		got = append(got, r.Value.Product[bCol].Uint)
	}
	require.Len(t, got, 100)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1], got[i])
	}
	assert.Equal(t, uint64(500), got[0])
	assert.Equal(t, uint64(599), got[len(got)-1])
}

func TestIterReflectsTxLocalMutations(t *testing.T) {
	cs, schema := tableT(t)
	log := openTestLog(t)

	tx, err := BeginMutTx(cs, ExecutionContext{})
	require.NoError(t, err)
	_, err = tx.Insert(schema.ID, rowAB(1, 10, schema))
	require.NoError(t, err)
	_, err = tx.CommitTx(log, true)
	require.NoError(t, err)

	tx2, err := BeginMutTx(cs, ExecutionContext{})
	require.NoError(t, err)
	_, err = tx2.Insert(schema.ID, rowAB(2, 20, schema))
	require.NoError(t, err)
	ok, err := tx2.DeleteByPK(schema.ID, sats.I32Value(1))
	require.NoError(t, err)
	assert.True(t, ok)

	aCol := colIndex(t, schema, "a")
	it, err := tx2.Iter(schema.ID)
	require.NoError(t, err)
	var as []int64
	for r := range it {
		as = append(as, r.Value.Product[aCol].Int)
	}
	assert.ElementsMatch(t, []int64{2}, as)

	require.NoError(t, tx2.RollbackTx())

	read := BeginTx(cs, ExecutionContext{})
	defer read.RollbackTx()
	it2, err := read.Iter(schema.ID)
	require.NoError(t, err)
	var as2 []int64
	for r := range it2 {
		as2 = append(as2, r.Value.Product[aCol].Int)
	}
	assert.ElementsMatch(t, []int64{1}, as2)
}

func TestUpdateByPKPreservesKey(t *testing.T) {
	cs, schema := tableT(t)
	log := openTestLog(t)

	tx, err := BeginMutTx(cs, ExecutionContext{})
	require.NoError(t, err)
	_, err = tx.Insert(schema.ID, rowAB(1, 10, schema))
	require.NoError(t, err)
	_, err = tx.CommitTx(log, true)
	require.NoError(t, err)

	tx2, err := BeginMutTx(cs, ExecutionContext{})
	require.NoError(t, err)
	_, err = tx2.UpdateByPK(schema.ID, sats.I32Value(1), rowAB(1, 99, schema))
	require.NoError(t, err)
	_, err = tx2.CommitTx(log, true)
	require.NoError(t, err)

	read := BeginTx(cs, ExecutionContext{})
	defer read.RollbackTx()
	it, err := read.Iter(schema.ID)
	require.NoError(t, err)
	var rows []Row
	for r := range it {
		rows = append(rows, r)
	}
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].Value.Product[colIndex(t, schema, "a")].Int)
	assert.Equal(t, uint64(99), rows[0].Value.Product[colIndex(t, schema, "b")].Uint)
}

func TestRollbackDropsInsertsWithoutTouchingLog(t *testing.T) {
	cs, schema := tableT(t)
	log := openTestLog(t)

	tx, err := BeginMutTx(cs, ExecutionContext{})
	require.NoError(t, err)
	_, err = tx.Insert(schema.ID, rowAB(1, 10, schema))
	require.NoError(t, err)
	require.NoError(t, tx.RollbackTx())

	_, ok := log.CommittedOffset()
	assert.False(t, ok)

	read := BeginTx(cs, ExecutionContext{})
	defer read.RollbackTx()
	it, err := read.Iter(schema.ID)
	require.NoError(t, err)
	var n int
	for range it {
		n++
	}
	assert.Equal(t, 0, n)
}

func TestSequenceSurvivesCrash(t *testing.T) {
	seq := NewSequence(SequenceSchema{ID: 1, MinValue: 1, MaxValue: 1 << 40, Increment: 1, Start: 1, Allocated: 1})
	var emitted []int64
	for i := 0; i < 5; i++ {
		v, ok := seq.GenNextValue()
		if !ok {
			seq.SetAllocation(seq.NthValue(10))
			v, ok = seq.GenNextValue()
			require.True(t, ok)
		}
		emitted = append(emitted, v)
	}

	// "crash": reconstruct a fresh Sequence from the last durable checkpoint,
	// as a restart would after replaying the log up to the last commit.
	restarted := NewSequence(SequenceSchema{ID: 1, MinValue: 1, MaxValue: 1 << 40, Increment: 1, Start: seq.Allocated(), Allocated: seq.Allocated()})
	next, ok := restarted.GenNextValue()
	if !ok {
		restarted.SetAllocation(restarted.NthValue(10))
		next, ok = restarted.GenNextValue()
		require.True(t, ok)
	}
	for _, e := range emitted {
		assert.NotEqual(t, e, next)
	}
}

func TestReplayRebuildsCommittedState(t *testing.T) {
	dir := t.TempDir()
	log, err := commitlog.Open(dir, testLogOptions())
	require.NoError(t, err)

	schema, err := NewTableSchema(1, "T", []ColumnDef{
		{Name: "a", Type: sats.Scalar(sats.KindI32), PrimaryKey: true},
		{Name: "b", Type: sats.Scalar(sats.KindU64)},
	}, nil, AccessPublic, LifecycleUser)
	require.NoError(t, err)
	cs := NewCommittedState()
	require.NoError(t, cs.CreateTable(schema))

	tx, err := BeginMutTx(cs, ExecutionContext{})
	require.NoError(t, err)
	_, err = tx.Insert(schema.ID, rowAB(1, 10, schema))
	require.NoError(t, err)
	_, err = tx.Insert(schema.ID, rowAB(2, 20, schema))
	require.NoError(t, err)
	_, err = tx.CommitTx(log, true)
	require.NoError(t, err)
	require.NoError(t, log.Close())

	log2, err := commitlog.Open(dir, testLogOptions())
	require.NoError(t, err)
	defer log2.Close()

	cs2 := NewCommittedState()
	require.NoError(t, cs2.CreateTable(schema))
	require.NoError(t, Replay(cs2, log2, nil))

	read := BeginTx(cs2, ExecutionContext{})
	defer read.RollbackTx()
	it, err := read.Iter(schema.ID)
	require.NoError(t, err)
	var n int
	for range it {
		n++
	}
	assert.Equal(t, 2, n)
}

