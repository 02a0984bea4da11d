package commitlog

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ErrNoCommits is returned by operations that report a committed offset
// when the log holds no commits at all.
var ErrNoCommits = errors.New("commitlog: no commits yet")

// Log is a durable, append-only, segmented commit log.
type Log struct {
	mu       sync.Mutex
	dir      string
	opts     Options
	readOnly bool
	closed   bool

	sealed []segmentMeta  // fully sealed, readable-only segments
	active *activeSegment // writable tail segment; nil until the first Flush

	nextOffset  uint64
	hasLastHash bool
	lastHash    [parentHashSize]byte

	pending []record
}

// Open opens or creates a segmented commit log directory. Existing
// segments are discovered by filename; the tail segment is scanned forward
// to find the current committed offset and, if the directory is writable,
// any unparseable suffix (a torn tail from a prior crash) is truncated away
// so further appends resume cleanly. That suffix is never deleted from a
// read-only open.
func Open(dir string, opts Options) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	writable, err := isDirWritable(dir)
	if err != nil {
		return nil, err
	}

	segs, err := discoverSegments(dir)
	if err != nil {
		return nil, err
	}

	l := &Log{dir: dir, opts: opts, readOnly: !writable}
	if len(segs) == 0 {
		return l, nil
	}

	tail := segs[len(segs)-1]
	l.sealed = segs[:len(segs)-1]

	nextOffset, lastHash, hasLastHash, validEnd, err := walkSegment(tail, nil)
	if err != nil {
		return nil, err
	}
	l.nextOffset = nextOffset
	l.lastHash = lastHash
	l.hasLastHash = hasLastHash

	if l.readOnly {
		l.sealed = append(l.sealed, tail)
		return l, nil
	}

	active, err := reopenSegmentForAppend(tail, validEnd, uint64(validEnd), opts.FsOptions)
	if err != nil {
		return nil, err
	}
	l.active = active
	return l, nil
}

// Append buffers payload as a record in the current commit. It fails with
// a *RecordRejectedError (for which errors.Is(err, ErrRecordsFull) holds)
// once the current commit already holds Options.MaxRecordsInCommit
// records; the caller should Flush and retry with the same payload.
func (l *Log) Append(payload []byte) error {
	return l.appendRecord(record{Payload: payload})
}

// AppendRecord is Append with explicit routing fields, for callers
// layering a row-level log (insert/delete op flags, a table's set id, an
// encoded primary key) on top of the raw commit log.
func (l *Log) AppendRecord(opFlags uint8, setID uint32, dataKey, payload []byte) error {
	return l.appendRecord(record{OpFlags: opFlags, SetID: setID, DataKey: dataKey, Payload: payload})
}

func (l *Log) appendRecord(r record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLogClosed
	}
	if l.readOnly {
		return fmt.Errorf("commitlog: log at %s was opened read-only", l.dir)
	}
	if len(l.pending) >= int(l.opts.MaxRecordsInCommit) {
		if l.opts.OnRecordRejection != nil {
			l.opts.OnRecordRejection()
		}
		return &RecordRejectedError{Record: r.Payload}
	}
	l.pending = append(l.pending, r)
	return nil
}

// DiscardPending drops every record buffered since the last Flush without
// writing it. Used by a transaction manager to abandon a partially-built
// record batch after an append error, leaving the log usable for the next
// transaction.
func (l *Log) DiscardPending() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = l.pending[:0]
}

// Flush seals the pending commit into the active segment's page buffer,
// rolling to a new segment first if the commit would push the active
// segment past Options.MaxSegmentSize. It does not sync; it gives no
// durability guarantee on its own.
func (l *Log) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLocked()
}

func (l *Log) flushLocked() error {
	if l.closed {
		return ErrLogClosed
	}
	if len(l.pending) == 0 {
		return nil
	}

	h := commitHeader{
		HasParent:    l.hasLastHash,
		ParentHash:   l.lastHash,
		CommitOffset: l.nextOffset,
		MinTxOffset:  l.nextOffset,
		RecordCount:  uint16(len(l.pending)),
	}
	raw, hash, err := encodeCommit(h, l.pending)
	if err != nil {
		return err
	}

	if l.active == nil {
		seg, err := createSegment(l.dir, l.nextOffset, l.opts.FsOptions)
		if err != nil {
			return err
		}
		l.active = seg
	} else if l.active.logicalSize > 0 && l.active.logicalSize+uint64(len(raw)) > l.opts.MaxSegmentSize {
		if err := l.active.seal(); err != nil {
			return err
		}
		l.sealed = append(l.sealed, l.active.meta)
		seg, err := createSegment(l.dir, l.nextOffset, l.opts.FsOptions)
		if err != nil {
			return err
		}
		l.active = seg
		if l.opts.OnSegmentRoll != nil {
			l.opts.OnSegmentRoll()
		}
	}

	if _, err := l.active.writer.Write(raw); err != nil {
		return err
	}
	l.active.logicalSize += uint64(len(raw))
	l.nextOffset += uint64(len(l.pending))
	l.lastHash = hash
	l.hasLastHash = true
	l.pending = l.pending[:0]
	return nil
}

// FlushAndSync flushes any pending commit and forces the active segment to
// stable storage, returning the offset of the last durable record. It is
// the only operation in this package that gives a durability guarantee.
func (l *Log) FlushAndSync() (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.flushLocked(); err != nil {
		return 0, err
	}
	if l.active != nil {
		if err := l.active.writer.SyncData(); err != nil {
			return 0, err
		}
	}
	if l.nextOffset == 0 {
		return 0, ErrNoCommits
	}
	return l.nextOffset - 1, nil
}

// CommittedOffset reports the offset of the last durable record, or
// ok=false if the log holds no commits yet.
func (l *Log) CommittedOffset() (offset uint64, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.nextOffset == 0 {
		return 0, false
	}
	return l.nextOffset - 1, true
}

// ResetTo truncates the log so its last record has the given offset.
// Segments entirely past the cut are deleted; the segment containing the
// cut is rewritten to end at it. Not callable while a Flush is in flight;
// both share the same mutex.
func (l *Log) ResetTo(offset uint64) (*Log, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrLogClosed
	}

	segs := append([]segmentMeta{}, l.sealed...)
	if l.active != nil {
		if err := l.active.seal(); err != nil {
			return nil, err
		}
		segs = append(segs, l.active.meta)
		l.active = nil
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].startOffset < segs[j].startOffset })

	var keep []segmentMeta
	var cutIdx = -1
	var cutValidEnd int64
	var newNext uint64
	var newHash [parentHashSize]byte
	var hasHash bool

	// Every segment past the cut is removed; segments at or before it are
	// scanned for the commit whose last record is the cut. The loop must
	// run to the end of segs even after finding the cut, or later segments
	// would survive on disk and resurrect truncated records at reopen.
	for _, s := range segs {
		if s.startOffset > offset {
			if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
				return nil, err
			}
			continue
		}
		validEnd, next, hash, hh, found, err := resetScanSegment(s, offset)
		if err != nil {
			return nil, err
		}
		keep = append(keep, s)
		newNext, newHash, hasHash = next, hash, hh
		if found {
			cutIdx = len(keep) - 1
			cutValidEnd = validEnd
		}
	}
	if cutIdx < 0 {
		return nil, fmt.Errorf("commitlog: reset offset %d not found in log", offset)
	}

	cutMeta := keep[cutIdx]
	if err := os.Truncate(cutMeta.path, cutValidEnd); err != nil {
		return nil, err
	}

	l.nextOffset = newNext
	l.lastHash = newHash
	l.hasLastHash = hasHash

	if l.readOnly {
		l.sealed = keep
		return l, nil
	}

	l.sealed = keep[:cutIdx]
	active, err := reopenSegmentForAppend(cutMeta, cutValidEnd, uint64(cutValidEnd), l.opts.FsOptions)
	if err != nil {
		return nil, err
	}
	l.active = active
	return l, nil
}

// Close releases the active segment's file handle without deleting any
// data. It does not flush pending records.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.active != nil {
		return l.active.file.Close()
	}
	return nil
}

// Transactions decodes every record from the start of the log in offset
// order. It is TransactionsFrom(0, dec).
func (l *Log) Transactions(dec Decoder) iter.Seq2[Record, error] {
	return l.TransactionsFrom(0, dec)
}

// TransactionsFrom decodes every record at or after offset, in offset
// order. A decode error is yielded once and halts the iteration at that
// offset; it does not abort a prior yield.
func (l *Log) TransactionsFrom(offset uint64, dec Decoder) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for _, s := range l.snapshotSegments() {
			keepGoing := true
			_, _, _, _, err := walkSegment(s, func(h commitHeader, recs []record) (bool, error) {
				last := h.CommitOffset + uint64(h.RecordCount) - 1
				if last < offset {
					return false, nil
				}
				for i, rec := range recs {
					txOffset := h.CommitOffset + uint64(i)
					if txOffset < offset {
						continue
					}
					val, derr := dec.DecodeRecord(txOffset, rec.SetID, rec.OpFlags, rec.Payload)
					if derr != nil {
						yield(Record{Offset: txOffset, OpFlags: rec.OpFlags, SetID: rec.SetID, DataKey: rec.DataKey}, derr)
						keepGoing = false
						return true, nil
					}
					out := Record{Offset: txOffset, OpFlags: rec.OpFlags, SetID: rec.SetID, DataKey: rec.DataKey, Value: val}
					if !yield(out, nil) {
						keepGoing = false
						return true, nil
					}
				}
				return false, nil
			})
			if err != nil {
				yield(Record{}, err)
				return
			}
			if !keepGoing {
				return
			}
		}
	}
}

// Commits yields each commit frame (not each record) in offset order, for
// fsck/diagnostic traversal.
func (l *Log) Commits() iter.Seq2[CommitFrame, error] {
	return func(yield func(CommitFrame, error) bool) {
		for _, s := range l.snapshotSegments() {
			keepGoing := true
			_, _, _, _, err := walkSegment(s, func(h commitHeader, _ []record) (bool, error) {
				cf := CommitFrame{
					CommitOffset: h.CommitOffset,
					MinTxOffset:  h.MinTxOffset,
					RecordCount:  h.RecordCount,
					HasParent:    h.HasParent,
					ParentHash:   h.ParentHash,
					Segment:      s.path,
				}
				if !yield(cf, nil) {
					keepGoing = false
					return true, nil
				}
				return false, nil
			})
			if err != nil {
				yield(CommitFrame{}, err)
				return
			}
			if !keepGoing {
				return
			}
		}
	}
}

func (l *Log) snapshotSegments() []segmentMeta {
	l.mu.Lock()
	defer l.mu.Unlock()
	segs := append([]segmentMeta{}, l.sealed...)
	if l.active != nil {
		segs = append(segs, l.active.meta)
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].startOffset < segs[j].startOffset })
	return segs
}

// isDirWritable probes dir by creating and removing a throwaway file,
// since os.Stat's mode bits don't reliably answer "can I write here" (ACLs,
// read-only filesystems, containers).
func isDirWritable(dir string) (bool, error) {
	probe := filepath.Join(dir, ".stormdb-write-probe")
	f, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsPermission(err) {
			return false, nil
		}
		return false, err
	}
	f.Close()
	os.Remove(probe)
	return true, nil
}
