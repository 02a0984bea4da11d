package commitlog

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
)

const parentHashSize = 32

// flagHasParentHash is bit 0 of a commit frame's flags byte: set when a
// 32-byte parent hash immediately follows.
const flagHasParentHash = 1 << 0

// recordOpBit is bit 7 of a record's op_flags byte, reserved for
// insert-vs-delete semantics when the log is used as a row-level log; other
// consumers may leave it unset and treat the byte as opaque.
const recordOpBit = 1 << 7

// record is one framed entry inside a commit: a caller-supplied payload
// plus the opaque routing fields (op flags, set id, data key) the row-level
// log built on top of commitlog uses to address a table and row.
type record struct {
	OpFlags uint8
	SetID   uint32
	DataKey []byte
	Payload []byte
}

func (r record) encodedLen() int {
	return 1 + 4 + 1 + len(r.DataKey) + 4 + len(r.Payload)
}

func appendRecord(buf []byte, r record) ([]byte, error) {
	if len(r.DataKey) > 255 {
		return nil, fmt.Errorf("commitlog: data key of %d bytes exceeds 255-byte limit", len(r.DataKey))
	}
	buf = append(buf, r.OpFlags)
	buf = appendU32(buf, r.SetID)
	buf = append(buf, uint8(len(r.DataKey)))
	buf = append(buf, r.DataKey...)
	buf = appendU32(buf, uint32(len(r.Payload)))
	buf = append(buf, r.Payload...)
	return buf, nil
}

// frameReader is the minimal read surface frame decoding needs; satisfied
// by *dio.PagedReader.
type frameReader interface {
	ReadFull(p []byte) error
}

func readRecord(r frameReader) (record, int, error) {
	var hdr [1 + 4 + 1]byte
	if err := r.ReadFull(hdr[:]); err != nil {
		return record{}, 0, err
	}
	opFlags := hdr[0]
	setID := binary.LittleEndian.Uint32(hdr[1:5])
	dataKeyLen := int(hdr[5])
	n := len(hdr)

	dataKey := make([]byte, dataKeyLen)
	if dataKeyLen > 0 {
		if err := r.ReadFull(dataKey); err != nil {
			return record{}, n, err
		}
		n += dataKeyLen
	}

	var lenBuf [4]byte
	if err := r.ReadFull(lenBuf[:]); err != nil {
		return record{}, n, err
	}
	n += 4
	payloadLen := binary.LittleEndian.Uint32(lenBuf[:])
	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if err := r.ReadFull(payload); err != nil {
			return record{}, n, err
		}
		n += int(payloadLen)
	}

	return record{OpFlags: opFlags, SetID: setID, DataKey: dataKey, Payload: payload}, n, nil
}

// commitHeader is the fixed-shape prefix of a commit frame, excluding its
// records.
type commitHeader struct {
	HasParent    bool
	ParentHash   [parentHashSize]byte
	CommitOffset uint64
	MinTxOffset  uint64
	RecordCount  uint16
}

func (h commitHeader) encodedLen() int {
	n := 1 + 8 + 8 + 2
	if h.HasParent {
		n += parentHashSize
	}
	return n
}

func appendCommitHeader(buf []byte, h commitHeader) []byte {
	flags := uint8(0)
	if h.HasParent {
		flags |= flagHasParentHash
	}
	buf = append(buf, flags)
	if h.HasParent {
		buf = append(buf, h.ParentHash[:]...)
	}
	buf = appendU64(buf, h.CommitOffset)
	buf = appendU64(buf, h.MinTxOffset)
	buf = appendU16(buf, h.RecordCount)
	return buf
}

func readCommitHeader(r frameReader) (commitHeader, int, error) {
	var flagsByte [1]byte
	if err := r.ReadFull(flagsByte[:]); err != nil {
		return commitHeader{}, 0, err
	}
	n := 1
	h := commitHeader{HasParent: flagsByte[0]&flagHasParentHash != 0}
	if h.HasParent {
		if err := r.ReadFull(h.ParentHash[:]); err != nil {
			return commitHeader{}, n, err
		}
		n += parentHashSize
	}

	var rest [8 + 8 + 2]byte
	if err := r.ReadFull(rest[:]); err != nil {
		return commitHeader{}, n, err
	}
	n += len(rest)
	h.CommitOffset = binary.LittleEndian.Uint64(rest[0:8])
	h.MinTxOffset = binary.LittleEndian.Uint64(rest[8:16])
	h.RecordCount = binary.LittleEndian.Uint16(rest[16:18])
	return h, n, nil
}

// encodeCommit serializes a full commit frame (header + records) and
// returns both the bytes and their sha256 digest, used as the next commit's
// parent hash.
func encodeCommit(h commitHeader, records []record) ([]byte, [parentHashSize]byte, error) {
	buf := make([]byte, 0, h.encodedLen()+64*len(records))
	buf = appendCommitHeader(buf, h)
	for _, rec := range records {
		var err error
		buf, err = appendRecord(buf, rec)
		if err != nil {
			return nil, [parentHashSize]byte{}, err
		}
	}
	return buf, sha256.Sum256(buf), nil
}

func appendU16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

// isTruncated reports whether err indicates the reader ran out of bytes
// mid-frame, the signature of a torn tail rather than real corruption.
func isTruncated(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}
