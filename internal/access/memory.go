package access

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/oshokin/bricks-bootstrap/internal/clock"
)

type (
	// Memory is an in-memory Filesystem on top of afero.MemMapFs.
	// Modification times come from the injected clock so freshness checks are
	// deterministic.
	Memory struct {
		fs    afero.Fs
		clock clock.Clock
	}

	// MemoryNetwork is an in-memory Network serving fixed payloads.
	// Failures can be scripted per URL and every fetch is counted.
	MemoryNetwork struct {
		mu       sync.Mutex
		payloads map[string][]byte
		failures map[string]int
		calls    map[string]int
	}
)

// NewMemory creates an empty in-memory filesystem. A nil clock uses clock.Real.
func NewMemory(c clock.Clock) *Memory {
	if c == nil {
		c = clock.Real{}
	}

	return &Memory{
		fs:    afero.NewMemMapFs(),
		clock: c,
	}
}

// Fs exposes the underlying afero filesystem for assertions.
func (m *Memory) Fs() afero.Fs {
	return m.fs
}

// Read returns the content of path.
func (m *Memory) Read(path string) ([]byte, error) {
	return afero.ReadFile(m.fs, filepath.Clean(path))
}

// Write stages data in a sibling file and renames it over path.
func (m *Memory) Write(path string, data []byte) error {
	path = filepath.Clean(path)

	if err := m.fs.MkdirAll(filepath.Dir(path), DirPermissions); err != nil {
		return fmt.Errorf("create parent directories: %w", err)
	}

	staged := path + ".new"
	if err := afero.WriteFile(m.fs, staged, data, FilePermissions); err != nil {
		return fmt.Errorf("write %s: %w", staged, err)
	}

	if err := m.fs.Rename(staged, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	return m.SetModTime(path, m.clock.Now())
}

// Exists reports whether path is present.
func (m *Memory) Exists(path string) bool {
	ok, err := afero.Exists(m.fs, filepath.Clean(path))

	return err == nil && ok
}

// ModTime returns the last modification time of path.
func (m *Memory) ModTime(path string) (time.Time, error) {
	info, err := m.fs.Stat(filepath.Clean(path))
	if err != nil {
		return time.Time{}, err
	}

	return info.ModTime(), nil
}

// Chmod changes the permission bits of path.
func (m *Memory) Chmod(path string, mode os.FileMode) error {
	return m.fs.Chmod(filepath.Clean(path), mode)
}

// SetModTime overrides the modification time of path.
func (m *Memory) SetModTime(path string, t time.Time) error {
	return m.fs.Chtimes(filepath.Clean(path), t, t)
}

// NewMemoryNetwork creates an empty in-memory network.
func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{
		payloads: make(map[string][]byte),
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
}

// Serve makes url answer with data.
func (n *MemoryNetwork) Serve(url string, data []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.payloads[url] = append([]byte(nil), data...)
}

// Fail makes the next times fetches of url fail. A negative value fails forever.
func (n *MemoryNetwork) Fail(url string, times int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.failures[url] = times
}

// Calls returns how many times url was fetched.
func (n *MemoryNetwork) Calls(url string) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.calls[url]
}

// TotalCalls returns the number of fetches across all URLs.
func (n *MemoryNetwork) TotalCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	total := 0
	for _, c := range n.calls {
		total += c
	}

	return total
}

// Read returns the payload served for url.
func (n *MemoryNetwork) Read(ctx context.Context, url string) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.calls[url]++

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if remaining := n.failures[url]; remaining != 0 {
		if remaining > 0 {
			n.failures[url] = remaining - 1
		}

		return nil, fmt.Errorf("%s: %w", url, ErrUnreachable)
	}

	data, ok := n.payloads[url]
	if !ok {
		return nil, fmt.Errorf("%s, 404 Not Found: %w", url, ErrBadStatus)
	}

	return append([]byte(nil), data...), nil
}
