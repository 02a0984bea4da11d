package commitlog

import (
	"fmt"
	"os"

	"github.com/cuemby/stormdb/pkg/dio"
)

// walkSegment scans meta's file forward, decoding one commit frame at a
// time and invoking onCommit for each. It stops, without error, at the
// first thing that isn't a well-formed next commit: a genuine EOF, a torn
// write truncated mid-frame, or the zero-padding a prior Flush/SyncData
// wrote to round out a block. All three look alike from here, and all
// three are tolerated rather than treated as corruption. A read error
// other than running out of bytes is different: that's reported as a
// *CorruptionError, because it isn't explainable as "nothing more was
// written yet". Payloads are never decoded here.
//
// onCommit may be nil, for callers that only want the scan's return
// values (used by Open to find the current tip).
//
// A segment's commit frames are contiguous: the writer rewrites its tail
// block in place after each padding flush, so zero padding only ever
// appears after the last durable commit, never between commits.
func walkSegment(meta segmentMeta, onCommit func(h commitHeader, recs []record) (stop bool, err error)) (nextOffset uint64, lastHash [parentHashSize]byte, hasLastHash bool, validEnd int64, err error) {
	f, operr := os.Open(meta.path)
	if operr != nil {
		err = operr
		return
	}
	defer f.Close()
	pr := dio.NewPagedReader(f)

	nextOffset = meta.startOffset
	var consumed int64

	for {
		h, _, herr := readCommitHeader(pr)
		if herr != nil {
			if isTruncated(herr) {
				break
			}
			err = &CorruptionError{Segment: meta.path, Offset: consumed, Err: herr}
			return
		}
		if h.RecordCount == 0 || h.CommitOffset != nextOffset {
			// Not a real next commit: either the zero-padding tail or a
			// genuinely inconsistent header. Either way, stop here and
			// leave the file untouched; validEnd tells the caller where
			// the readable commits end (a writable Open truncates there).
			break
		}

		recs := make([]record, 0, h.RecordCount)
		truncatedMid := false
		for i := uint16(0); i < h.RecordCount; i++ {
			rec, _, rerr := readRecord(pr)
			if rerr != nil {
				if isTruncated(rerr) {
					truncatedMid = true
					break
				}
				err = &CorruptionError{Segment: meta.path, Offset: consumed, Err: rerr}
				return
			}
			recs = append(recs, rec)
		}
		if truncatedMid {
			break
		}

		raw, hash, encErr := encodeCommit(h, recs)
		if encErr != nil {
			err = encErr
			return
		}
		consumed += int64(len(raw))
		nextOffset = h.CommitOffset + uint64(h.RecordCount)
		lastHash = hash
		hasLastHash = true

		if onCommit != nil {
			stop, cbErr := onCommit(h, recs)
			if cbErr != nil {
				err = cbErr
				return
			}
			if stop {
				break
			}
		}
	}

	validEnd = consumed
	return
}

// resetScanSegment walks meta looking for the commit whose last record is
// target. found is false if target lies beyond meta's last record (the cut
// is in a later segment); an error is returned if target falls strictly
// inside a commit's record range rather than on a commit boundary.
func resetScanSegment(meta segmentMeta, target uint64) (validEnd int64, newNext uint64, hash [parentHashSize]byte, hasHash bool, found bool, err error) {
	var boundaryErr error
	nn, h, hh, ve, werr := walkSegment(meta, func(ch commitHeader, _ []record) (bool, error) {
		last := ch.CommitOffset + uint64(ch.RecordCount) - 1
		switch {
		case target == last:
			found = true
			return true, nil
		case target < last:
			boundaryErr = fmt.Errorf("commitlog: reset offset %d is not a commit boundary", target)
			return true, boundaryErr
		default:
			return false, nil
		}
	})
	if werr != nil {
		return 0, 0, [parentHashSize]byte{}, false, false, werr
	}
	return ve, nn, h, hh, found, nil
}
