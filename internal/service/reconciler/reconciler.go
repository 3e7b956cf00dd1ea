package reconciler

import (
	"context"
	"fmt"

	"github.com/oshokin/bricks-bootstrap/internal/access"
	"github.com/oshokin/bricks-bootstrap/internal/checksum"
	"github.com/oshokin/bricks-bootstrap/internal/domain/manifest"
	"github.com/oshokin/bricks-bootstrap/internal/logger"
	"github.com/oshokin/bricks-bootstrap/internal/service/downloader"
)

// State is a step of an artifact reconciliation.
type State int

const (
	// StateUnknown is the initial state.
	StateUnknown State = iota
	// StateChecking means existence and checksum are being tested.
	StateChecking
	// StateFresh means the local file matches; no I/O was performed.
	StateFresh
	// StateStale means the local file is missing or differs.
	StateStale
	// StateDownloading means a replacement is being fetched.
	StateDownloading
	// StateUpdated means the file was replaced.
	StateUpdated
	// StateFallbackKept means the download failed and the existing file was kept.
	StateFallbackKept
	// StateFailed means the download failed without an acceptable fallback.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateChecking:
		return "checking"
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	case StateDownloading:
		return "downloading"
	case StateUpdated:
		return "updated"
	case StateFallbackKept:
		return "fallback-kept"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	switch s {
	case StateFresh, StateUpdated, StateFallbackKept, StateFailed:
		return true
	default:
		return false
	}
}

// Reconciler decides per artifact whether to download a replacement.
type Reconciler struct {
	fs         access.Filesystem
	downloader *downloader.Downloader
}

// New creates a Reconciler reading local files from fs and fetching through d.
func New(fs access.Filesystem, d *downloader.Downloader) *Reconciler {
	return &Reconciler{
		fs:         fs,
		downloader: d,
	}
}

// Check runs the checking step: it returns StateFresh when path exists and
// its checksum equals ref's, StateStale otherwise. Read errors count as stale.
func (r *Reconciler) Check(path string, ref manifest.ArtifactRef, sum checksum.Func) State {
	if !r.fs.Exists(path) {
		return StateStale
	}

	data, err := r.fs.Read(path)
	if err != nil {
		return StateStale
	}

	if !checksum.Equal(sum(data), ref.SHA256) {
		return StateStale
	}

	return StateFresh
}

// UpdateIfNeeded downloads ref into path when the local copy is missing or
// differs. The returned state is always terminal; an error accompanies
// StateFailed only. Unless quiet, an up-to-date file is reported.
func (r *Reconciler) UpdateIfNeeded(
	ctx context.Context,
	path string,
	ref manifest.ArtifactRef,
	allowStaleFallback bool,
	quiet bool,
	sum checksum.Func,
) (State, error) {
	if r.Check(path, ref, sum) == StateFresh {
		if !quiet {
			logger.InfoKV(ctx, "File is already up-to-date, no update performed", "path", path)
		}

		return StateFresh, nil
	}

	logger.DebugKV(ctx, "File is missing or outdated", "path", path, "url", ref.Href)

	outcome, err := r.downloader.Download(ctx, ref.Href, path, allowStaleFallback)
	if err != nil {
		return StateFailed, fmt.Errorf("update %s: %w", path, err)
	}

	if outcome == downloader.OutcomeKeptExisting {
		logger.WarnKV(ctx, "Unable to download, proceeding with the existing file",
			"url", ref.Href, "path", path)

		return StateFallbackKept, nil
	}

	logger.InfoKV(ctx, "Replaced file with the latest version", "path", path)

	r.warnOnUnexpectedContent(ctx, path, ref, sum)

	return StateUpdated, nil
}

// warnOnUnexpectedContent flags a download whose content does not match the manifest.
func (r *Reconciler) warnOnUnexpectedContent(ctx context.Context, path string, ref manifest.ArtifactRef, sum checksum.Func) {
	data, err := r.fs.Read(path)
	if err != nil {
		logger.WarnKV(ctx, "Unable to re-read the downloaded file", "path", path, "error", err)
		return
	}

	if err = checksum.Verify(path, data, ref.SHA256, sum); err != nil {
		logger.WarnKV(ctx, "Downloaded file does not match the manifest checksum", "error", err)
	}
}
