package access

import (
	"context"
	"errors"
	"os"
	"time"
)

const (
	// DirPermissions is used for directories created on write.
	DirPermissions os.FileMode = 0o755

	// FilePermissions is used for files created on write.
	FilePermissions os.FileMode = 0o644
)

var (
	// ErrBadStatus is returned when a server answers with a non-success status.
	ErrBadStatus = errors.New("unexpected http status")

	// ErrUnreachable is returned when a resource cannot be reached at all.
	ErrUnreachable = errors.New("resource unreachable")

	// ErrTooLarge is returned when a response body exceeds the configured limit.
	ErrTooLarge = errors.New("response body too large")
)

type (
	// Filesystem is the set of local file operations used by the bootstrap.
	Filesystem interface {
		// Read returns the content of path; a missing file yields an error
		// wrapping os.ErrNotExist.
		Read(path string) ([]byte, error)
		// Write replaces path with data, creating parent directories.
		Write(path string, data []byte) error
		// Exists reports whether path can be stat'ed.
		Exists(path string) bool
		// ModTime returns the last modification time of path.
		ModTime(path string) (time.Time, error)
		// Chmod changes the permission bits of path.
		Chmod(path string, mode os.FileMode) error
	}

	// Network fetches remote resources.
	Network interface {
		// Read returns the body of the resource at url.
		Read(ctx context.Context, url string) ([]byte, error)
	}
)
