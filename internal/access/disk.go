package access

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	goupdate "github.com/doitdistributed/go-update"
)

// Disk is the production Filesystem backed by the operating system.
//
// Write stages the new content next to the target and swaps it in by rename
// (go-update), so an interrupted process leaves either the old or the new
// file, never a truncated one.
type Disk struct {
	// mode is the permission set applied to written files.
	mode os.FileMode
}

// NewDisk returns a Disk writing files with FilePermissions.
func NewDisk() *Disk {
	return &Disk{mode: FilePermissions}
}

// Read returns the content of path.
func (d *Disk) Read(path string) ([]byte, error) {
	return os.ReadFile(filepath.Clean(path))
}

// Write atomically replaces path with data.
func (d *Disk) Write(path string, data []byte) error {
	path = filepath.Clean(path)

	if err := os.MkdirAll(filepath.Dir(path), DirPermissions); err != nil {
		return fmt.Errorf("create parent directories: %w", err)
	}

	// go-update moves the current target aside before renaming the new file
	// in, so the target has to exist.
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		placeholder, createErr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, d.mode)
		if createErr != nil {
			return fmt.Errorf("create %s: %w", path, createErr)
		}

		if createErr = placeholder.Close(); createErr != nil {
			return fmt.Errorf("close %s: %w", path, createErr)
		}
	}

	options := goupdate.Options{
		TargetPath: path,
		TargetMode: d.mode,
	}

	if err := goupdate.Apply(bytes.NewReader(data), options); err != nil {
		if rollbackErr := goupdate.RollbackError(err); rollbackErr != nil {
			return fmt.Errorf("replace %s: %w (rollback failed: %v)", path, err, rollbackErr)
		}

		return fmt.Errorf("replace %s: %w", path, err)
	}

	return nil
}

// Exists reports whether path can be stat'ed.
func (d *Disk) Exists(path string) bool {
	_, err := os.Stat(filepath.Clean(path))

	return err == nil
}

// ModTime returns the last modification time of path.
func (d *Disk) ModTime(path string) (time.Time, error) {
	info, err := os.Stat(filepath.Clean(path))
	if err != nil {
		return time.Time{}, err
	}

	return info.ModTime(), nil
}

// Chmod changes the permission bits of path.
func (d *Disk) Chmod(path string, mode os.FileMode) error {
	return os.Chmod(filepath.Clean(path), mode)
}
