//go:build linux

package dio

import (
	"os"

	"golang.org/x/sys/unix"
)

func openDirect(path string, flag int, perm os.FileMode, opts FsOptions) (*os.File, error) {
	if opts.DirectIO {
		flag |= unix.O_DIRECT
	}
	if opts.SyncIO {
		flag |= unix.O_DSYNC
	}
	return os.OpenFile(path, flag, perm)
}
