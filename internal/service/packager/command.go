package packager

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/oshokin/bricks-bootstrap/internal/access"
	"github.com/oshokin/bricks-bootstrap/internal/checksum"
	"github.com/oshokin/bricks-bootstrap/internal/config"
	"github.com/oshokin/bricks-bootstrap/internal/domain/manifest"
	"github.com/oshokin/bricks-bootstrap/internal/logger"
)

const (
	// CipPyFilename is the launcher script name.
	CipPyFilename = "cip.py"
	// BootstrapPyFilename is the bootstrap script name.
	BootstrapPyFilename = "bootstrap.py"
	// DefaultOutputFilename is where the manifest is written by default.
	DefaultOutputFilename = config.CacheFilename
)

// Options contains inputs for the packager entry point.
type Options struct {
	// ScriptsDir holds cip.py and bootstrap.py.
	ScriptsDir string
	// UploadURL is the folder URL the scripts will be served from.
	UploadURL string
	// PyPIRepo is the package index handed to the bricks executable.
	PyPIRepo string
	// OutputPath is the manifest destination (defaults to bootstrap.json).
	OutputPath string
	// OmitChecksums leaves checksums out so clients compute them on fetch.
	OmitChecksums bool
	// SettingsPath, when set, receives bricks-bootstrap settings pointing at
	// <UploadURL>/bootstrap.json.
	SettingsPath string
	// Filesystem replaces the disk. Used by tests.
	Filesystem access.Filesystem
}

// packager prepares the manifest for distribution.
// It is unexported; callers should use Run, which encapsulates setup and validation.
type packager struct {
	opts *Options
	fs   access.Filesystem
	doc  *manifest.Manifest
}

var (
	// errUploadURLRequired is returned when no upload location is given.
	errUploadURLRequired = errors.New("upload URL must be provided")
	// errPyPIRepoRequired is returned when no package index is given.
	errPyPIRepoRequired = errors.New("PyPI repository must be provided")
)

// Run executes the packaging workflow.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "bricks-packager")

	pkg, err := newPackager(opts)
	if err != nil {
		return fmt.Errorf("initialize packager: %w", err)
	}

	if err = pkg.Run(ctx); err != nil {
		return fmt.Errorf("packager failed: %w", err)
	}

	logger.Info(ctx, "Packager completed successfully")

	return nil
}

// newPackager validates opts and fills in defaults.
func newPackager(opts *Options) (*packager, error) {
	opts.UploadURL = strings.TrimSpace(opts.UploadURL)
	opts.PyPIRepo = strings.TrimSpace(opts.PyPIRepo)

	if opts.UploadURL == "" {
		return nil, errUploadURLRequired
	}

	if _, err := url.ParseRequestURI(opts.UploadURL); err != nil {
		return nil, fmt.Errorf("invalid upload URL: %w", err)
	}

	if opts.PyPIRepo == "" {
		return nil, errPyPIRepoRequired
	}

	if _, err := url.ParseRequestURI(opts.PyPIRepo); err != nil {
		return nil, fmt.Errorf("invalid PyPI repository: %w", err)
	}

	if opts.OutputPath == "" {
		opts.OutputPath = DefaultOutputFilename
	}

	fs := opts.Filesystem
	if fs == nil {
		fs = access.NewDisk()
	}

	return &packager{
		opts: opts,
		fs:   fs,
	}, nil
}

// Run computes the manifest, writes it and verifies the written document.
func (p *packager) Run(ctx context.Context) error {
	logger.Info(ctx, "Preparing bootstrap manifest")

	if err := p.fillManifest(ctx); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Saving bootstrap manifest", "path", p.opts.OutputPath)

	if err := p.saveManifest(); err != nil {
		return err
	}

	if err := p.verifyManifest(); err != nil {
		return err
	}

	if p.opts.SettingsPath != "" {
		if err := p.saveSettings(ctx); err != nil {
			return err
		}
	}

	p.printNextSteps(ctx)

	return nil
}

// fillManifest builds the artifact references from the local scripts.
func (p *packager) fillManifest(ctx context.Context) error {
	cipPy, err := p.artifact(ctx, CipPyFilename)
	if err != nil {
		return err
	}

	bootstrapPy, err := p.artifact(ctx, BootstrapPyFilename)
	if err != nil {
		return err
	}

	p.doc = &manifest.Manifest{
		Artifacts: manifest.ArtifactSet{
			CipPy:       cipPy,
			BootstrapPy: bootstrapPy,
		},
		Pip: manifest.PipConfig{PyPIRepo: p.opts.PyPIRepo},
	}

	return nil
}

// artifact describes one script of ScriptsDir.
func (p *packager) artifact(ctx context.Context, name string) (manifest.ArtifactRef, error) {
	path := filepath.Join(p.opts.ScriptsDir, name)

	content, err := p.fs.Read(path)
	if err != nil {
		return manifest.ArtifactRef{}, fmt.Errorf("read %s: %w", path, err)
	}

	href, err := url.JoinPath(p.opts.UploadURL, name)
	if err != nil {
		return manifest.ArtifactRef{}, fmt.Errorf("build href for %s: %w", name, err)
	}

	ref := manifest.ArtifactRef{Href: href}
	if !p.opts.OmitChecksums {
		ref.SHA256 = checksum.Text(content)
	}

	logger.DebugKV(ctx, "Described script", "path", path, "href", href, "sha256", ref.SHA256)

	return ref, nil
}

// saveManifest writes the manifest document to OutputPath.
func (p *packager) saveManifest() error {
	contents, err := manifest.Encode(p.doc)
	if err != nil {
		return err
	}

	if err = p.fs.Write(p.opts.OutputPath, contents); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

// verifyManifest parses the written file the way clients do.
func (p *packager) verifyManifest() error {
	contents, err := p.fs.Read(p.opts.OutputPath)
	if err != nil {
		return fmt.Errorf("read back manifest: %w", err)
	}

	parsed, err := manifest.Parse(contents)
	if err != nil {
		return fmt.Errorf("verify manifest: %w", err)
	}

	if *parsed != *p.doc {
		return fmt.Errorf("verify manifest: %w: written document differs", manifest.ErrInvalid)
	}

	return nil
}

// saveSettings writes bricks-bootstrap settings pointing at the new manifest.
func (p *packager) saveSettings(ctx context.Context) error {
	endpoint, err := url.JoinPath(p.opts.UploadURL, filepath.Base(p.opts.OutputPath))
	if err != nil {
		return fmt.Errorf("build manifest endpoint: %w", err)
	}

	settings := config.DefaultSettings()
	settings.ManifestEndpoint = endpoint

	if err = config.SaveSettings(p.opts.SettingsPath, settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	logger.InfoKV(ctx, "Saved bootstrap settings", "path", p.opts.SettingsPath, "manifest_endpoint", endpoint)

	return nil
}

// printNextSteps logs human-readable guidance for next actions with the created files.
func (p *packager) printNextSteps(ctx context.Context) {
	var builder strings.Builder

	builder.WriteString("You should upload the following files to the folder ")
	builder.WriteString(p.opts.UploadURL)
	builder.WriteString(":\n")
	builder.WriteString(filepath.Join(p.opts.ScriptsDir, CipPyFilename))
	builder.WriteString(",\n")
	builder.WriteString(filepath.Join(p.opts.ScriptsDir, BootstrapPyFilename))
	builder.WriteString(",\n")
	builder.WriteString(p.opts.OutputPath)

	if p.opts.SettingsPath != "" {
		builder.WriteString("\n\nTo try the manifest before publishing it centrally, run bricks-bootstrap with ")
		builder.WriteString(config.SettingsPathEnv)
		builder.WriteString("=")
		builder.WriteString(p.opts.SettingsPath)
	}

	logger.Info(ctx, builder.String())
}
