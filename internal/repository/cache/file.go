package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oshokin/bricks-bootstrap/internal/access"
	"github.com/oshokin/bricks-bootstrap/internal/clock"
)

// Repository defines read access to the cached manifest payload.
type Repository interface {
	IsFresh(maxAge time.Duration) (bool, error)
	Load(ctx context.Context) ([]byte, error)
	Path() string
}

// FileRepository keeps the manifest payload in a single file.
type FileRepository struct {
	// fs reads the cache file.
	fs access.Filesystem
	// path is the filesystem location of the cache file.
	path string
	// clock supplies the current time for freshness checks.
	clock clock.Clock
	// mu serializes reads of the cache file.
	mu sync.Mutex
}

// ErrNotFound is returned when the cache file does not exist yet.
var ErrNotFound = errors.New("manifest cache not found")

// NewFileRepository creates a repository reading the cache at path. A nil
// clock uses clock.Real.
func NewFileRepository(fs access.Filesystem, path string, c clock.Clock) *FileRepository {
	if c == nil {
		c = clock.Real{}
	}

	return &FileRepository{
		fs:    fs,
		path:  filepath.Clean(path),
		clock: c,
	}
}

// Path returns the location of the cache file.
func (r *FileRepository) Path() string {
	return r.path
}

// IsFresh reports whether the cache file exists and is younger than maxAge.
// The payload is not inspected.
func (r *FileRepository) IsFresh(maxAge time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.fs.Exists(r.path) {
		return false, nil
	}

	modified, err := r.fs.ModTime(r.path)
	if err != nil {
		return false, fmt.Errorf("stat manifest cache: %w", err)
	}

	return r.clock.Now().Sub(modified) < maxAge, nil
}

// Load reads the cached payload.
func (r *FileRepository) Load(_ context.Context) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := r.fs.Read(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read manifest cache: %w", err)
	}

	return contents, nil
}
