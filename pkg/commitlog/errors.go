package commitlog

import (
	"errors"
	"fmt"
)

// ErrRecordsFull is returned by Append when the current commit already holds
// Options.MaxRecordsInCommit records. Callers should Flush and retry;
// errors.Is(err, ErrRecordsFull) holds even though Append wraps it in a
// *RecordRejectedError carrying the rejected bytes back to the caller.
var ErrRecordsFull = errors.New("commitlog: commit is full, flush and retry")

// ErrLogClosed is returned by Append/Flush/FlushAndSync/ResetTo after
// Close has released the active segment.
var ErrLogClosed = errors.New("commitlog: log is closed")

// RecordRejectedError wraps ErrRecordsFull with the record the caller tried
// to append, so it can be resubmitted verbatim after a Flush.
type RecordRejectedError struct {
	Record []byte
}

func (e *RecordRejectedError) Error() string {
	return fmt.Sprintf("commitlog: record of %d bytes rejected: %v", len(e.Record), ErrRecordsFull)
}

func (e *RecordRejectedError) Unwrap() error { return ErrRecordsFull }

// CorruptionError reports a decode failure encountered deeper in the log
// than the tail, i.e. not the torn-tail case, which is silently tolerated.
type CorruptionError struct {
	Segment string
	Offset  int64
	Err     error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("commitlog: corrupt segment %s at byte %d: %v", e.Segment, e.Offset, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }
