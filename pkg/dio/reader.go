package dio

import (
	"io"
)

// PagedReader is a buffered reader using a page-aligned internal buffer,
// suitable for files opened with O_DIRECT or a platform equivalent.
type PagedReader struct {
	inner io.Reader

	page   *Page
	filled int // bytes read during the last fill; page.Buf()[page.Pos():filled] is unconsumed
}

// NewPagedReader wraps inner in a PagedReader.
func NewPagedReader(inner io.Reader) *PagedReader {
	return &PagedReader{inner: inner, page: NewPage()}
}

// Read implements io.Reader.
func (r *PagedReader) Read(p []byte) (int, error) {
	buf, err := r.fillBuf()
	if len(buf) == 0 && err != nil {
		return 0, err
	}
	n := copy(p, buf)
	r.consume(n)
	return n, nil
}

// ReadFull reads exactly len(p) bytes, retrying on interruption and short
// reads, returning io.ErrUnexpectedEOF if the underlying reader is
// exhausted first.
func (r *PagedReader) ReadFull(p []byte) error {
	if buf, _ := r.fillBuf(); len(buf) >= len(p) {
		copy(p, buf[:len(p)])
		r.consume(len(p))
		return nil
	}

	for len(p) > 0 {
		n, err := r.Read(p)
		p = p[n:]
		if n == 0 {
			if err != nil && err != io.EOF {
				return err
			}
			break
		}
	}
	if len(p) > 0 {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (r *PagedReader) fillBuf() ([]byte, error) {
	if r.page.Pos() >= r.filled {
		n, err := r.inner.Read(r.page.BufMut())
		r.page.Reset()
		r.filled = n
		if n == 0 && err != nil {
			return nil, err
		}
	}
	return r.page.Buf()[r.page.Pos():r.filled], nil
}

func (r *PagedReader) consume(amt int) {
	pos := r.page.Pos() + amt
	if pos > r.filled {
		pos = r.filled
	}
	r.page.SetPos(pos)
}
