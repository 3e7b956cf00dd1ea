// Package resolver obtains the bootstrap manifest of a session, reusing the
// cached copy while it is younger than the configured maximum age.
package resolver

import (
	"context"
	"fmt"

	"github.com/oshokin/bricks-bootstrap/internal/access"
	"github.com/oshokin/bricks-bootstrap/internal/checksum"
	"github.com/oshokin/bricks-bootstrap/internal/config"
	"github.com/oshokin/bricks-bootstrap/internal/domain/manifest"
	"github.com/oshokin/bricks-bootstrap/internal/logger"
	"github.com/oshokin/bricks-bootstrap/internal/repository/cache"
	"github.com/oshokin/bricks-bootstrap/internal/service/downloader"
)

// Resolver resolves the manifest from the cache or the remote endpoint.
type Resolver struct {
	endpoint   string
	network    access.Network
	cache      cache.Repository
	downloader *downloader.Downloader
}

// New creates a Resolver fetching endpoint into repo through d. Missing
// artifact checksums are computed from content read over network.
func New(endpoint string, network access.Network, repo cache.Repository, d *downloader.Downloader) *Resolver {
	return &Resolver{
		endpoint:   endpoint,
		network:    network,
		cache:      repo,
		downloader: d,
	}
}

// Resolve returns the manifest of the session. A stale or missing cache is
// replaced from the endpoint without stale fallback, so an unreachable
// endpoint is fatal. A fresh cache is trusted as-is.
func (r *Resolver) Resolve(ctx context.Context, local *config.Local) (*manifest.Manifest, error) {
	ctx = logger.WithName(ctx, "resolver")

	fresh, err := r.cache.IsFresh(local.MaxAge())
	if err != nil {
		logger.WarnKV(ctx, "Unable to check the manifest cache, fetching a new one", "error", err)
	}

	if fresh {
		logger.DebugKV(ctx, "Using the cached bootstrap manifest", "path", r.cache.Path())
	} else {
		logger.InfoKV(ctx, "Fetching the bootstrap manifest", "url", r.endpoint, "path", r.cache.Path())

		if _, err = r.downloader.Download(ctx, r.endpoint, r.cache.Path(), false); err != nil {
			return nil, fmt.Errorf("fetch bootstrap manifest: %w", err)
		}
	}

	payload, err := r.cache.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load bootstrap manifest: %w", err)
	}

	m, err := manifest.Parse(payload)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", r.cache.Path(), err)
	}

	for _, ref := range []*manifest.ArtifactRef{&m.Artifacts.CipPy, &m.Artifacts.BootstrapPy} {
		if err = r.fillChecksum(ctx, ref); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// fillChecksum computes the text checksum of an artifact the manifest lists
// without one.
func (r *Resolver) fillChecksum(ctx context.Context, ref *manifest.ArtifactRef) error {
	if ref.HasChecksum() {
		return nil
	}

	logger.DebugKV(ctx, "Manifest omits a checksum, computing it from the remote file", "url", ref.Href)

	content, err := r.network.Read(ctx, ref.Href)
	if err != nil {
		return fmt.Errorf("compute checksum of %s: %w", ref.Href, err)
	}

	ref.SHA256 = checksum.Text(content)

	return nil
}
