package commitlog

import "github.com/cuemby/stormdb/pkg/dio"

// Options configures a Log's segment rollover, backpressure threshold and
// underlying file I/O mode.
type Options struct {
	// MaxSegmentSize bounds the logical (unpadded) bytes a segment may hold
	// before the next Flush rolls to a new segment file.
	MaxSegmentSize uint64
	// MaxRecordsInCommit bounds how many records Append will buffer into one
	// commit before returning ErrRecordsFull.
	MaxRecordsInCommit uint16
	// FsOptions controls how the active segment file is opened.
	FsOptions dio.FsOptions
	// OnSegmentRoll, if non-nil, is invoked each time Flush seals a full
	// segment and rolls the log over to a new one.
	OnSegmentRoll func()
	// OnRecordRejection, if non-nil, is invoked each time Append rejects a
	// record because the current commit is full.
	OnRecordRejection func()
}

// DefaultOptions is a ready-made Options value for callers that don't
// build their own. The relational facade does not use it; it derives its
// Options from config.Storage.CommitlogOptions().
var DefaultOptions = Options{
	MaxSegmentSize:     1 << 30, // 1 GiB
	MaxRecordsInCommit: 1024,
	FsOptions:          dio.DefaultFsOptions,
}
