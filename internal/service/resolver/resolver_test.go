package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/bricks-bootstrap/internal/access"
	"github.com/oshokin/bricks-bootstrap/internal/checksum"
	"github.com/oshokin/bricks-bootstrap/internal/clock"
	"github.com/oshokin/bricks-bootstrap/internal/config"
	"github.com/oshokin/bricks-bootstrap/internal/domain/manifest"
	"github.com/oshokin/bricks-bootstrap/internal/repository/cache"
	"github.com/oshokin/bricks-bootstrap/internal/service/downloader"
)

const (
	endpoint  = "https://config.local/bootstrap.json"
	cachePath = "/cfg/bootstrap/bootstrap.json"
	cipURL    = "https://x/cip.py"
	bootURL   = "https://x/bootstrap.py"
	pypiRepo  = "https://pypi.local/simple"
)

var (
	cipBody  = []byte("print('cip')\n")
	bootBody = []byte("print('bootstrap')\n")
)

// fixture bundles a resolver with its in-memory collaborators.
type fixture struct {
	resolver *Resolver
	network  *access.MemoryNetwork
	fs       *access.Memory
	clock    *clock.Fake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	c := clock.NewFake(time.Time{})
	network := access.NewMemoryNetwork()
	fs := access.NewMemory(c)
	d := downloader.New(network, fs, downloader.WithClock(c), downloader.WithRetries(1))

	return &fixture{
		resolver: New(endpoint, network, cache.NewFileRepository(fs, cachePath, c), d),
		network:  network,
		fs:       fs,
		clock:    c,
	}
}

func encode(t *testing.T, m *manifest.Manifest) []byte {
	t.Helper()

	data, err := manifest.Encode(m)
	require.NoError(t, err)

	return data
}

func fullManifest() *manifest.Manifest {
	return &manifest.Manifest{
		Artifacts: manifest.ArtifactSet{
			CipPy:       manifest.ArtifactRef{Href: cipURL, SHA256: checksum.Text(cipBody)},
			BootstrapPy: manifest.ArtifactRef{Href: bootURL, SHA256: checksum.Text(bootBody)},
		},
		Pip: manifest.PipConfig{PyPIRepo: pypiRepo},
	}
}

func localWithAge(seconds int) *config.Local {
	return &config.Local{Version: config.LocalVersion, MaxManifestAge: seconds}
}

// TestResolve_FetchesMissingCache downloads the manifest and persists the raw payload.
func TestResolve_FetchesMissingCache(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	payload := encode(t, fullManifest())
	f.network.Serve(endpoint, payload)

	m, err := f.resolver.Resolve(context.Background(), config.DefaultLocal())
	require.NoError(t, err)
	require.Equal(t, fullManifest(), m)
	require.Equal(t, 1, f.network.Calls(endpoint))

	cached, err := f.fs.Read(cachePath)
	require.NoError(t, err)
	require.Equal(t, payload, cached)
}

// TestResolve_UsesFreshCache resolves from the cache without any network traffic.
func TestResolve_UsesFreshCache(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.fs.Write(cachePath, encode(t, fullManifest())))
	f.clock.Advance(time.Hour)

	m, err := f.resolver.Resolve(context.Background(), config.DefaultLocal())
	require.NoError(t, err)
	require.Equal(t, pypiRepo, m.Pip.PyPIRepo)
	require.Zero(t, f.network.TotalCalls())
}

// TestResolve_RefetchesStaleCache replaces a cache older than the maximum age.
func TestResolve_RefetchesStaleCache(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	old := fullManifest()
	old.Pip.PyPIRepo = "https://old.local/simple"
	require.NoError(t, f.fs.Write(cachePath, encode(t, old)))
	f.network.Serve(endpoint, encode(t, fullManifest()))

	f.clock.Advance(config.DefaultLocal().MaxAge())

	m, err := f.resolver.Resolve(context.Background(), config.DefaultLocal())
	require.NoError(t, err)
	require.Equal(t, pypiRepo, m.Pip.PyPIRepo)
	require.Equal(t, 1, f.network.Calls(endpoint))
}

// TestResolve_ZeroMaxAgeAlwaysRefetches re-fetches on every resolution regardless of the cache.
func TestResolve_ZeroMaxAgeAlwaysRefetches(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.network.Serve(endpoint, encode(t, fullManifest()))

	for i := 1; i <= 3; i++ {
		_, err := f.resolver.Resolve(context.Background(), localWithAge(0))
		require.NoError(t, err)
		require.Equal(t, i, f.network.Calls(endpoint))
	}
}

// TestResolve_UnreachableEndpointIsFatal does not fall back to a stale cache.
func TestResolve_UnreachableEndpointIsFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.fs.Write(cachePath, encode(t, fullManifest())))
	f.network.Fail(endpoint, -1)

	_, err := f.resolver.Resolve(context.Background(), localWithAge(0))
	require.ErrorIs(t, err, downloader.ErrDownloadFailed)
	require.Equal(t, 2, f.network.Calls(endpoint))
}

// TestResolve_ComputesMissingChecksums hashes artifacts the manifest lists without a checksum.
func TestResolve_ComputesMissingChecksums(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	partial := fullManifest()
	partial.Artifacts.CipPy.SHA256 = ""
	f.network.Serve(endpoint, encode(t, partial))
	f.network.Serve(cipURL, []byte("print('cip')\r\n"))

	m, err := f.resolver.Resolve(context.Background(), config.DefaultLocal())
	require.NoError(t, err)
	require.Equal(t, checksum.Text(cipBody), m.Artifacts.CipPy.SHA256)
	require.Equal(t, 1, f.network.Calls(cipURL))
	require.Zero(t, f.network.Calls(bootURL))
}

// TestResolve_MissingChecksumSourceUnreachable fails when the artifact cannot be hashed.
func TestResolve_MissingChecksumSourceUnreachable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	partial := fullManifest()
	partial.Artifacts.BootstrapPy.SHA256 = ""
	f.network.Serve(endpoint, encode(t, partial))

	_, err := f.resolver.Resolve(context.Background(), config.DefaultLocal())
	require.ErrorIs(t, err, access.ErrBadStatus)
}

// TestResolve_FreshCacheIsNotValidated documents a known boundary: only the
// cache age is checked, so a corrupted but fresh cache is used as-is and its
// parse error surfaces without a refetch.
func TestResolve_FreshCacheIsNotValidated(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.network.Serve(endpoint, encode(t, fullManifest()))
	require.NoError(t, f.fs.Write(cachePath, []byte(`{"bootstrap_info": {"bootstrap_fi`)))

	_, err := f.resolver.Resolve(context.Background(), config.DefaultLocal())
	require.ErrorIs(t, err, manifest.ErrInvalid)
	require.Zero(t, f.network.TotalCalls())

	// A well-formed but outdated payload is trusted the same way.
	tampered := fullManifest()
	tampered.Artifacts.CipPy.SHA256 = checksum.Text([]byte("something else"))
	require.NoError(t, f.fs.Write(cachePath, encode(t, tampered)))

	m, err := f.resolver.Resolve(context.Background(), config.DefaultLocal())
	require.NoError(t, err)
	require.Equal(t, tampered.Artifacts.CipPy.SHA256, m.Artifacts.CipPy.SHA256)
	require.Zero(t, f.network.TotalCalls())
}
