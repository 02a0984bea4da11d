//go:build windows

package dio

import (
	"os"

	"golang.org/x/sys/windows"
)

func openDirect(path string, flag int, perm os.FileMode, opts FsOptions) (*os.File, error) {
	if !opts.DirectIO {
		return os.OpenFile(path, flag, perm)
	}

	access := uint32(windows.GENERIC_READ)
	if flag&os.O_WRONLY != 0 || flag&os.O_RDWR != 0 {
		access |= windows.GENERIC_WRITE
	}
	createMode := uint32(windows.OPEN_EXISTING)
	if flag&os.O_CREATE != 0 {
		createMode = windows.OPEN_ALWAYS
	}
	if flag&os.O_TRUNC != 0 {
		createMode = windows.CREATE_ALWAYS
	}

	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, err
	}
	h, err := windows.CreateFile(
		pathPtr,
		access,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		createMode,
		windows.FILE_FLAG_NO_BUFFERING|windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		return nil, &os.PathError{Op: "CreateFile", Path: path, Err: err}
	}
	return os.NewFile(uintptr(h), path), nil
}
