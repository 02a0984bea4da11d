package dio

import "os"

// FsOptions controls how Open opens the backing file.
type FsOptions struct {
	// DirectIO requests OS page-cache bypass (O_DIRECT / F_NOCACHE /
	// FILE_FLAG_NO_BUFFERING, per platform). When the filesystem does not
	// support unbuffered access, Open returns an *os.PathError wrapping the
	// underlying "os error".
	DirectIO bool
	// SyncIO additionally requests synchronous writes (O_DSYNC) where the
	// platform supports it, in addition to explicit SyncData calls.
	SyncIO bool
}

// DefaultFsOptions is used when a caller does not supply FsOptions.
var DefaultFsOptions = FsOptions{DirectIO: true, SyncIO: false}

// Open opens path with the given flag/perm plus whatever unbuffered-I/O
// flags FsOptions requests for the current platform.
func Open(path string, flag int, perm os.FileMode, opts FsOptions) (*os.File, error) {
	return openDirect(path, flag, perm, opts)
}
