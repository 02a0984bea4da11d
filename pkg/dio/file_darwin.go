//go:build darwin

package dio

import (
	"os"

	"golang.org/x/sys/unix"
)

func openDirect(path string, flag int, perm os.FileMode, opts FsOptions) (*os.File, error) {
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}
	if opts.DirectIO {
		if _, err := unix.FcntlInt(f.Fd(), unix.F_NOCACHE, 1); err != nil {
			f.Close()
			return nil, &os.PathError{Op: "fcntl F_NOCACHE", Path: path, Err: err}
		}
	}
	return f, nil
}
