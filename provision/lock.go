//go:build linux
// +build linux

package provision

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Lock takes an exclusive lock on the file at path, creating it if needed.
// It fails at once if another process holds the lock. The lock is released
// by closing the returned file.
func Lock(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	fp, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}

	if err := unix.Flock(int(fp.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		fp.Close()
		return nil, errors.Wrapf(err, "%s is locked by another process", path)
	}

	return fp, nil
}
