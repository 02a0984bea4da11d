package sats

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Writer accumulates encoded bytes. It is a thin wrapper so encode.go reads
// naturally as "put this, then that" without repeating append(...) calls.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated bytes.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) PutU8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) PutBytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *Writer) PutU16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// PutVarint encodes v as an unsigned LEB128 varint (string and array
// length prefixes use this, not a fixed-width length).
func (w *Writer) PutVarint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	w.buf = append(w.buf, tmp[:n]...)
}

// ErrDecode is wrapped by every decode error this package returns.
var ErrDecode = errors.New("sats: decode error")

// Reader consumes bytes from a fixed buffer, tracking a cursor.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for reading. buf is not copied; callers must not
// mutate it while the Reader is in use.
func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrDecode, n, r.Remaining())
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) GetU8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) GetBytes(n int) ([]byte, error) {
	return r.take(n)
}

func (r *Reader) GetU16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) GetU32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) GetU64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// GetVarint decodes an unsigned LEB128 varint.
func (r *Reader) GetVarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, fmt.Errorf("%w: malformed varint", ErrDecode)
	}
	r.pos += n
	return v, nil
}
