package dio

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writerFor(t *testing.T, path string) *PagedWriter {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return NewPagedWriter(f)
}

func readerFor(t *testing.T, path string) *PagedReader {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return NewPagedReader(f)
}

func roundtrip(t *testing.T, path string, chunks [][]byte) []byte {
	t.Helper()
	w := writerFor(t, path)
	for _, c := range chunks {
		_, err := w.Write(c)
		require.NoError(t, err)
	}
	require.NoError(t, w.SyncData())

	r := readerFor(t, path)
	var out bytes.Buffer
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		out.Write(buf[:n])
		if err == io.EOF || n == 0 {
			break
		}
		require.NoError(t, err)
	}
	return out.Bytes()
}

func TestSmokeSingleWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smoke")
	input := bytes.Repeat([]byte{42}, 5120)
	out := roundtrip(t, path, [][]byte{input})
	assert.Equal(t, input, out)
}

func TestSmallWritesPadToBlockBoundary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small-writes")
	chunks := [][]byte{
		[]byte("guten tag\n"),
		[]byte("wie geht's\n"),
		[]byte("s'klar\n"),
		[]byte("man sieht sich\n"),
	}
	out := roundtrip(t, path, chunks)

	var want bytes.Buffer
	for _, c := range chunks {
		want.Write(c)
	}
	padded := nextMultipleOf(want.Len(), BlockSize)
	want.Write(make([]byte, padded-want.Len()))

	assert.Equal(t, want.Bytes(), out)
}

func TestMixedWriteSizesRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixed-writes")
	sizes := []int{1, 9216, 4096, 513, 7, 4095, 8192}
	var chunks [][]byte
	var want bytes.Buffer
	seed := byte(1)
	for _, n := range sizes {
		buf := make([]byte, n)
		for i := range buf {
			buf[i] = seed
			seed++
		}
		chunks = append(chunks, buf)
		want.Write(buf)
	}
	padded := nextMultipleOf(want.Len(), BlockSize)
	want.Write(make([]byte, padded-want.Len()))

	out := roundtrip(t, path, chunks)
	assert.Equal(t, want.Bytes(), out)
}

func TestPageNextBlockOffsetCapsAtBufferLength(t *testing.T) {
	p := NewPage()
	assert.Equal(t, 0, p.NextBlockOffset())

	p.SetPos(1)
	assert.Equal(t, BlockSize, p.NextBlockOffset())

	p.SetPos(PageSize)
	assert.Equal(t, PageSize, p.NextBlockOffset())
}

func TestPageCopyFromSlicePanicsOnOverflow(t *testing.T) {
	p := NewPage()
	assert.Panics(t, func() {
		p.CopyFromSlice(make([]byte, PageSize+1))
	})
}

func TestFlushRewritesPartialTailBlockInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tail-rewrite")
	w := writerFor(t, path)

	first := bytes.Repeat([]byte{1}, 100)
	second := bytes.Repeat([]byte{2}, 100)
	_, err := w.Write(first)
	require.NoError(t, err)
	require.NoError(t, w.SyncData())
	_, err = w.Write(second)
	require.NoError(t, err)
	require.NoError(t, w.SyncData())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, int64(BlockSize), int64(len(got)))
	assert.Equal(t, first, got[:100])
	assert.Equal(t, second, got[100:200])
	assert.Equal(t, make([]byte, BlockSize-200), got[200:])
}

func TestNewPagedWriterAtPreloadsPartialTailBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "writer-at")
	existing := bytes.Repeat([]byte{3}, 700)
	require.NoError(t, os.WriteFile(path, existing, 0o644))

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	w, err := NewPagedWriterAt(f, 700)
	require.NoError(t, err)
	_, err = w.Write(bytes.Repeat([]byte{4}, 50))
	require.NoError(t, err)
	require.NoError(t, w.SyncData())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 2*BlockSize, len(got))
	assert.Equal(t, existing, got[:700])
	assert.Equal(t, bytes.Repeat([]byte{4}, 50), got[700:750])
	assert.Equal(t, make([]byte, 2*BlockSize-750), got[750:])
}

func TestWriteAlignment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alignment")
	w := writerFor(t, path)
	_, err := w.Write(bytes.Repeat([]byte{7}, 10))
	require.NoError(t, err)
	require.NoError(t, w.SyncData())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size()%BlockSize)
}
