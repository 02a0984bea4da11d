package dio

import (
	"errors"
	"io"
	"os"
)

// WriteSyncer is the subset of *os.File that PagedWriter needs: Write, an
// fsync-equivalent, plus Seek so a padding flush can step the file offset
// back onto the tail block's boundary. os.File satisfies it directly.
type WriteSyncer interface {
	io.Writer
	io.Seeker
	Sync() error
}

// PagedWriter is a buffered writer using a page-aligned internal buffer,
// suitable for files opened with O_DIRECT or a platform equivalent. Writes
// to the underlying file always occur at block-aligned offsets with
// block-aligned sizes; Close/Flush zero-pad any residual to the next
// block boundary.
type PagedWriter struct {
	inner WriteSyncer
	page  *Page
}

// NewPagedWriter wraps inner in a PagedWriter.
func NewPagedWriter(inner WriteSyncer) *PagedWriter {
	return &PagedWriter{inner: inner, page: NewPage()}
}

// NewPagedWriterAt returns a PagedWriter positioned to append at logical
// offset end of f. The file offset is moved to the block boundary at or
// before end and the existing bytes of the tail partial block, if any, are
// preloaded into the buffer, so the first flush rewrites that block whole.
// The read and the seek both stay block-aligned, which keeps this usable
// on files opened for direct I/O.
func NewPagedWriterAt(f *os.File, end int64) (*PagedWriter, error) {
	w := NewPagedWriter(f)
	rem := int(end % BlockSize)
	blockStart := end - int64(rem)
	if rem > 0 {
		n, err := f.ReadAt(w.page.BufMut()[:BlockSize], blockStart)
		if n < rem {
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		w.page.SetPos(rem)
	}
	if _, err := f.Seek(blockStart, io.SeekStart); err != nil {
		return nil, err
	}
	return w, nil
}

// Write implements io.Writer. It accumulates into the page buffer and
// flushes a block-aligned prefix to the underlying writer whenever the
// buffer fills.
func (w *PagedWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := w.page.SpareCapacity()
		if n == 0 {
			if err := w.flushAligned(); err != nil {
				return written, err
			}
			n = w.page.SpareCapacity()
		}
		if n > len(p) {
			n = len(p)
		}
		w.page.CopyFromSlice(p[:n])
		p = p[n:]
		written += n

		if w.page.IsFull() {
			if err := w.flushAligned(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// flushAligned writes the block-aligned prefix of the current buffer
// contents and shifts any unaligned remainder (< BlockSize) to the front.
func (w *PagedWriter) flushAligned() error {
	boundary := w.page.NextBlockOffset()
	if boundary == 0 {
		return nil
	}
	buf := w.page.Buf()[:boundary]
	if err := w.writeAll(buf); err != nil {
		return err
	}

	rem := w.page.Pos() - boundary
	if rem > 0 {
		copy(w.page.BufMut(), w.page.Buf()[boundary:w.page.Pos()])
	}
	w.page.Reset()
	w.page.SetPos(rem)
	return nil
}

// writeAll writes buf to the inner writer, retrying on short writes and
// treating a zero-length write to a non-empty buffer as an I/O error.
func (w *PagedWriter) writeAll(buf []byte) error {
	for len(buf) > 0 {
		n, err := w.inner.Write(buf)
		if n == 0 && err == nil {
			return errors.New("dio: write returned 0 with no error")
		}
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

// Flush pads the residual buffer contents to the next BlockSize boundary
// with zeros and writes it. When the residual does not end on a block
// boundary, the partial tail block stays buffered and the file offset is
// stepped back onto its boundary, so the next flush rewrites that block
// whole instead of leaving a zero gap in front of later data. It is
// idempotent when the buffer is already empty.
func (w *PagedWriter) Flush() error {
	if w.page.IsEmpty() {
		return nil
	}
	pos := w.page.Pos()
	padded := nextMultipleOf(pos, BlockSize)
	buf := w.page.BufMut()[:padded]
	for i := pos; i < padded; i++ {
		buf[i] = 0
	}
	if err := w.writeAll(buf); err != nil {
		return err
	}
	rem := pos % BlockSize
	if rem == 0 {
		w.page.Reset()
		return nil
	}
	if _, err := w.inner.Seek(-int64(BlockSize), io.SeekCurrent); err != nil {
		return err
	}
	copy(w.page.BufMut(), w.page.Buf()[padded-BlockSize:pos])
	w.page.Reset()
	w.page.SetPos(rem)
	return nil
}

// SyncData flushes any residual buffer contents and then forces the
// written pages to stable storage.
func (w *PagedWriter) SyncData() error {
	if err := w.Flush(); err != nil {
		return err
	}
	return w.inner.Sync()
}

// Close flushes any residual buffer contents. It does not close the
// underlying writer.
func (w *PagedWriter) Close() error {
	return w.Flush()
}
