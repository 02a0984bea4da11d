package commitlog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/cuemby/stormdb/pkg/dio"
)

const segmentExt = ".stdb-log"

var segmentNameRe = regexp.MustCompile(`^(\d{20})\.stdb-log$`)

// segmentFileName formats the canonical name of the segment starting at
// the given offset.
func segmentFileName(startOffset uint64) string {
	return fmt.Sprintf("%020d%s", startOffset, segmentExt)
}

// parseSegmentFileName extracts the start offset from a segment file's base
// name, reporting ok=false for anything that doesn't match the convention.
func parseSegmentFileName(name string) (offset uint64, ok bool) {
	m := segmentNameRe.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// segmentMeta is a discovered, not-necessarily-open, segment file.
type segmentMeta struct {
	startOffset uint64
	path        string
}

// discoverSegments lists dir for `<offset>.stdb-log` files, sorted by
// start offset ascending.
func discoverSegments(dir string) ([]segmentMeta, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []segmentMeta
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if off, ok := parseSegmentFileName(e.Name()); ok {
			out = append(out, segmentMeta{startOffset: off, path: filepath.Join(dir, e.Name())})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].startOffset < out[j].startOffset })
	return out, nil
}

// segmentState is a segment's position in the Writable -> Flushing ->
// Sealed -> Readable-only state machine. Segments never transition
// backward; ResetTo is the sole exception, permitted to truncate a Sealed
// segment because it requires exclusive access to the whole log.
type segmentState int

const (
	segmentWritable segmentState = iota
	segmentFlushing
	segmentSealed
	segmentReadableOnly
)

// activeSegment is the one segment a Log may currently be appending to.
type activeSegment struct {
	meta        segmentMeta
	file        *os.File
	writer      *dio.PagedWriter
	state       segmentState
	logicalSize uint64 // unpadded bytes of commit frames written so far
}

func createSegment(dir string, startOffset uint64, opts dio.FsOptions) (*activeSegment, error) {
	path := filepath.Join(dir, segmentFileName(startOffset))
	f, err := dio.Open(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644, opts)
	if err != nil {
		return nil, err
	}
	return &activeSegment{
		meta:   segmentMeta{startOffset: startOffset, path: path},
		file:   f,
		writer: dio.NewPagedWriter(f),
		state:  segmentWritable,
	}, nil
}

// reopenSegmentForAppend truncates path to validEnd bytes (discarding any
// torn tail beyond the last fully-decoded commit, without deleting the file)
// and positions the file for further appends starting at validEnd.
func reopenSegmentForAppend(meta segmentMeta, validEnd int64, logicalSize uint64, opts dio.FsOptions) (*activeSegment, error) {
	if err := os.Truncate(meta.path, validEnd); err != nil {
		return nil, err
	}
	f, err := dio.Open(meta.path, os.O_RDWR, 0o644, opts)
	if err != nil {
		return nil, err
	}
	w, err := dio.NewPagedWriterAt(f, validEnd)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &activeSegment{
		meta:        meta,
		file:        f,
		writer:      w,
		state:       segmentWritable,
		logicalSize: logicalSize,
	}, nil
}

func (s *activeSegment) seal() error {
	if s.state == segmentSealed || s.state == segmentReadableOnly {
		return nil
	}
	s.state = segmentFlushing
	// A sealed segment is documented as remaining readable forever, so it
	// must already be durable: sync here rather than merely padding,
	// otherwise a crash right after rollover could lose a "closed" segment.
	if err := s.writer.SyncData(); err != nil {
		return err
	}
	s.state = segmentSealed
	return s.file.Close()
}
