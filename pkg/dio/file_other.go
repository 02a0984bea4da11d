//go:build !linux && !darwin && !windows

package dio

import "os"

func openDirect(path string, flag int, perm os.FileMode, _ FsOptions) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}
