package commitlog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/stormdb/pkg/dio"
)

func testOptions() Options {
	return Options{
		MaxSegmentSize:     1 << 20,
		MaxRecordsInCommit: 1024,
		FsOptions:          dio.FsOptions{DirectIO: false, SyncIO: false},
	}
}

func collect(t *testing.T, l *Log) [][]byte {
	t.Helper()
	var out [][]byte
	for rec, err := range l.Transactions(BytesDecoder{}) {
		require.NoError(t, err)
		out = append(out, rec.Value.([]byte))
	}
	return out
}

func TestEmptyOpen(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir, testOptions())
	require.NoError(t, err)

	_, ok := l.CommittedOffset()
	assert.False(t, ok)
	assert.Empty(t, collect(t, l))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func appendRetrying(t *testing.T, l *Log, payload []byte) {
	t.Helper()
	err := l.Append(payload)
	if err == nil {
		return
	}
	var rejected *RecordRejectedError
	require.True(t, errors.As(err, &rejected))
	require.NoError(t, l.Flush())
	require.NoError(t, l.Append(payload))
}

func TestAppendThenRead(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions()
	opts.MaxRecordsInCommit = 1
	l, err := Open(dir, opts)
	require.NoError(t, err)

	payloads := [][]byte{
		{0x00, 0x01, 0x02, 0x03},
		{0x04, 0x05, 0x06, 0x07},
		{0x08, 0x09, 0x0a, 0x0b},
	}
	for _, p := range payloads {
		appendRetrying(t, l, p)
	}
	offset, err := l.FlushAndSync()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), offset)
	require.NoError(t, l.Close())

	reopened, err := Open(dir, opts)
	require.NoError(t, err)
	got := collect(t, reopened)
	assert.Equal(t, payloads, got)
	reopenedOffset, ok := reopened.CommittedOffset()
	require.True(t, ok)
	assert.Equal(t, uint64(2), reopenedOffset)
}

func buildThreeCommitLog(t *testing.T, dir string) Options {
	t.Helper()
	opts := testOptions()
	opts.MaxRecordsInCommit = 1
	l, err := Open(dir, opts)
	require.NoError(t, err)
	for _, p := range [][]byte{
		{0x00, 0x01, 0x02, 0x03},
		{0x04, 0x05, 0x06, 0x07},
		{0x08, 0x09, 0x0a, 0x0b},
	} {
		appendRetrying(t, l, p)
	}
	_, err = l.FlushAndSync()
	require.NoError(t, err)
	require.NoError(t, l.Close())
	return opts
}

func TestReset(t *testing.T) {
	dir := t.TempDir()
	opts := buildThreeCommitLog(t, dir)

	l, err := Open(dir, opts)
	require.NoError(t, err)
	_, err = l.ResetTo(1)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	reopened, err := Open(dir, opts)
	require.NoError(t, err)
	got := collect(t, reopened)
	assert.Len(t, got, 2)
	offset, ok := reopened.CommittedOffset()
	require.True(t, ok)
	assert.Equal(t, uint64(1), offset)
}

func soleSegmentPath(t *testing.T, dir string) string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	return filepath.Join(dir, entries[0].Name())
}

func TestTornTailRecovery(t *testing.T) {
	dir := t.TempDir()
	opts := buildThreeCommitLog(t, dir)

	path := soleSegmentPath(t, dir)
	// The physical file is zero-padded to a 512-byte boundary; "one byte
	// less than its natural end" means one byte less than the logical,
	// unpadded content, not the padded file size. Find that boundary the
	// same way Open would, before corrupting it.
	_, _, _, validEnd, err := walkSegment(segmentMeta{startOffset: 0, path: path}, nil)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, validEnd-1))

	l, err := Open(dir, opts)
	require.NoError(t, err)
	got := collect(t, l)
	assert.Len(t, got, 2)

	require.NoError(t, l.Append([]byte{0xff}))
	offset, err := l.FlushAndSync()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), offset)
	require.NoError(t, l.Close())

	reopened, err := Open(dir, opts)
	require.NoError(t, err)
	got2 := collect(t, reopened)
	require.Len(t, got2, 3)
	assert.Equal(t, []byte{0xff}, got2[2])
}

func TestSyncBetweenCommitsKeepsSegmentContiguous(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions()
	opts.MaxRecordsInCommit = 1
	l, err := Open(dir, opts)
	require.NoError(t, err)

	require.NoError(t, l.Append([]byte("first")))
	offset, err := l.FlushAndSync()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), offset)

	require.NoError(t, l.Append([]byte("second")))
	offset, err = l.FlushAndSync()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), offset)
	require.NoError(t, l.Close())

	reopened, err := Open(dir, opts)
	require.NoError(t, err)
	got := collect(t, reopened)
	require.Equal(t, [][]byte{[]byte("first"), []byte("second")}, got)

	require.NoError(t, reopened.Append([]byte("third")))
	offset, err = reopened.FlushAndSync()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), offset)
	require.NoError(t, reopened.Close())

	final, err := Open(dir, opts)
	require.NoError(t, err)
	assert.Len(t, collect(t, final), 3)
}

func TestOffsetContiguity(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions()
	opts.MaxRecordsInCommit = 3
	l, err := Open(dir, opts)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		appendRetrying(t, l, []byte{byte(i)})
	}
	_, err = l.FlushAndSync()
	require.NoError(t, err)

	var lastEnd uint64
	first := true
	for cf, err := range l.Commits() {
		require.NoError(t, err)
		if !first {
			assert.Equal(t, lastEnd, cf.CommitOffset)
		}
		first = false
		lastEnd = cf.CommitOffset + uint64(cf.RecordCount)
	}
	assert.Equal(t, uint64(10), lastEnd)
}

func TestWriteAlignmentOfSegmentFile(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions()
	l, err := Open(dir, opts)
	require.NoError(t, err)
	require.NoError(t, l.Append([]byte("hello")))
	_, err = l.FlushAndSync()
	require.NoError(t, err)
	require.NoError(t, l.Close())

	path := soleSegmentPath(t, dir)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size()%dio.BlockSize)
}

func TestAppendRejectsOnceCommitIsFull(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions()
	opts.MaxRecordsInCommit = 2
	l, err := Open(dir, opts)
	require.NoError(t, err)

	require.NoError(t, l.Append([]byte("a")))
	require.NoError(t, l.Append([]byte("b")))
	err = l.Append([]byte("c"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRecordsFull))
	var rejected *RecordRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, []byte("c"), rejected.Record)
}

func TestSegmentRollover(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions()
	opts.MaxRecordsInCommit = 1
	opts.MaxSegmentSize = 64 // force a roll after a couple of small commits
	l, err := Open(dir, opts)
	require.NoError(t, err)

	payload := make([]byte, 40)
	for i := 0; i < 5; i++ {
		appendRetrying(t, l, payload)
	}
	_, err = l.FlushAndSync()
	require.NoError(t, err)
	require.NoError(t, l.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Greater(t, len(entries), 1)

	reopened, err := Open(dir, opts)
	require.NoError(t, err)
	got := collect(t, reopened)
	assert.Len(t, got, 5)
}

func TestResetDeletesSegmentsPastTheCut(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions()
	opts.MaxRecordsInCommit = 1
	opts.MaxSegmentSize = 64 // one commit per segment
	l, err := Open(dir, opts)
	require.NoError(t, err)

	payload := make([]byte, 40)
	for i := 0; i < 5; i++ {
		payload[0] = byte(i)
		appendRetrying(t, l, payload)
	}
	_, err = l.FlushAndSync()
	require.NoError(t, err)

	before, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Greater(t, len(before), 2)

	_, err = l.ResetTo(1)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	after, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Less(t, len(after), len(before))

	reopened, err := Open(dir, opts)
	require.NoError(t, err)
	got := collect(t, reopened)
	require.Len(t, got, 2)
	offset, ok := reopened.CommittedOffset()
	require.True(t, ok)
	assert.Equal(t, uint64(1), offset)
}

func TestResetOffsetNotOnBoundaryIsError(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions()
	opts.MaxRecordsInCommit = 10
	l, err := Open(dir, opts)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Append([]byte{byte(i)}))
	}
	_, err = l.FlushAndSync()
	require.NoError(t, err)

	_, err = l.ResetTo(2)
	require.Error(t, err)
}
