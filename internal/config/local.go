package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/bricks-bootstrap/internal/access"
	"github.com/oshokin/bricks-bootstrap/internal/logger"
)

const (
	// LocalVersion is the supported format version of the local config record.
	LocalVersion = 1

	// DefaultMaxManifestAge is how long a cached manifest is trusted, in seconds.
	DefaultMaxManifestAge = 6 * 60 * 60
)

// errLocalVersion is returned when the record was written by another format version.
var errLocalVersion = errors.New("unsupported local config version")

// Local is the versioned per-user record controlling manifest caching.
type Local struct {
	// Version is the format version of the record.
	Version int `json:"version"`
	// MaxManifestAge is the maximum age of the cached manifest in seconds.
	MaxManifestAge int `json:"max_bootstrap_info_age_in_seconds"`
}

// DefaultLocal returns the record written when none is usable.
func DefaultLocal() *Local {
	return &Local{
		Version:        LocalVersion,
		MaxManifestAge: DefaultMaxManifestAge,
	}
}

// MaxAge returns MaxManifestAge as a duration.
func (l *Local) MaxAge() time.Duration {
	return time.Duration(l.MaxManifestAge) * time.Second
}

// LoadLocal reads the local config record at path. A missing, undecodable or
// outdated record is replaced with defaults and read again. LoadLocal never
// fails: when the defaults cannot be persisted they are used in memory.
func LoadLocal(ctx context.Context, fs access.Filesystem, path string) *Local {
	local, err := readLocal(fs, path)
	if err == nil {
		return local
	}

	logger.InfoKV(ctx, "Writing default bootstrap config file", "path", path, "reason", err)

	if err = writeDefaultLocal(fs, path); err != nil {
		logger.WarnKV(ctx, "Unable to write the default bootstrap config, using built-in defaults",
			"path", path, "error", err)

		return DefaultLocal()
	}

	if local, err = readLocal(fs, path); err != nil {
		logger.WarnKV(ctx, "Unable to reload the default bootstrap config, using built-in defaults",
			"path", path, "error", err)

		return DefaultLocal()
	}

	return local
}

func readLocal(fs access.Filesystem, path string) (*Local, error) {
	contents, err := fs.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read local config: %w", err)
	}

	var local Local
	if err = json.Unmarshal(contents, &local); err != nil {
		return nil, fmt.Errorf("decode local config: %w", err)
	}

	if local.Version != LocalVersion {
		return nil, fmt.Errorf("%w: %d", errLocalVersion, local.Version)
	}

	return &local, nil
}

func writeDefaultLocal(fs access.Filesystem, path string) error {
	data, err := json.MarshalIndent(DefaultLocal(), "", "    ")
	if err != nil {
		return fmt.Errorf("encode local config: %w", err)
	}

	return fs.Write(path, data)
}
