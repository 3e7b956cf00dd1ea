package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/oshokin/bricks-bootstrap/internal/access"
	"github.com/oshokin/bricks-bootstrap/internal/checksum"
	"github.com/oshokin/bricks-bootstrap/internal/clock"
	"github.com/oshokin/bricks-bootstrap/internal/config"
	"github.com/oshokin/bricks-bootstrap/internal/logger"
	"github.com/oshokin/bricks-bootstrap/internal/platform"
	"github.com/oshokin/bricks-bootstrap/internal/repository/cache"
	"github.com/oshokin/bricks-bootstrap/internal/service/downloader"
	"github.com/oshokin/bricks-bootstrap/internal/service/launcher"
	"github.com/oshokin/bricks-bootstrap/internal/service/reconciler"
	"github.com/oshokin/bricks-bootstrap/internal/service/resolver"
	"github.com/oshokin/bricks-bootstrap/internal/version"
)

// Options are inputs accepted by the bootstrap entry point.
type Options struct {
	// Args is the raw command line without the program name.
	Args []string
	// RepoRoot anchors the default venv, workarea and cip.py locations.
	RepoRoot string
	// SettingsPath is the optional settings YAML file.
	SettingsPath string
	// Settings are used instead of loading SettingsPath when set.
	Settings *config.Settings
	// Stdout receives the usage text and notices. Defaults to os.Stdout.
	Stdout io.Writer

	// Filesystem replaces the disk. Used by tests.
	Filesystem access.Filesystem
	// Network replaces HTTP. Used by tests.
	Network access.Network
	// Clock replaces the wall clock. Used by tests.
	Clock clock.Clock
	// LauncherOptions are appended to the launcher configuration.
	LauncherOptions []launcher.Option
}

// runner holds the collaborators of a single invocation.
// It is unexported; call Run(ctx, Options) from callers.
type runner struct {
	args       *Arguments
	configDir  string
	fs         access.Filesystem
	reconciler *reconciler.Reconciler
	resolver   *resolver.Resolver
	launcher   *launcher.Launcher
}

// Run executes one bootstrap invocation: the usage text, an update of the
// cip.py script, or the installation and launch of the bricks executable.
// On the run path a non-zero exit status of the executable is returned as
// *launcher.ExitError.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "bricks-bootstrap")

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	args, err := ParseArgs(opts.RepoRoot, opts.Args)
	if err != nil {
		return err
	}

	if args.Help {
		PrintUsage(stdout, opts.RepoRoot)
		return nil
	}

	r, err := newRunner(ctx, opts, args, stdout)
	if err != nil {
		return err
	}

	if args.UpdateCipPy {
		return r.updateSelf(ctx)
	}

	return r.run(ctx)
}

// newRunner loads the configuration and wires the collaborators.
func newRunner(ctx context.Context, opts *Options, args *Arguments, stdout io.Writer) (*runner, error) {
	settings := opts.Settings
	if settings == nil {
		loaded, err := config.LoadSettings(opts.SettingsPath)
		if err != nil {
			return nil, fmt.Errorf("load settings: %w", err)
		}

		settings = loaded

		if level, ok := logger.ParseLogLevel(settings.LogLevel); ok {
			logger.SetLevel(level)
		}
	} else if err := config.ValidateSettings(settings); err != nil {
		return nil, err
	}

	configDir, err := config.Dir(settings)
	if err != nil {
		return nil, err
	}

	var (
		fs      = opts.Filesystem
		network = opts.Network
	)

	if fs == nil {
		fs = access.NewDisk()
	}

	if network == nil {
		network = access.NewHTTP(
			access.WithTimeout(settings.HTTPTimeout),
			access.WithUserAgent("bricks-bootstrap/"+version.Short()),
		)
	}

	var (
		d   = downloader.New(network, fs, downloader.WithRetries(settings.Retries()), downloader.WithClock(opts.Clock))
		rec = reconciler.New(fs, d)
		p   = platform.Current()
	)

	launcherOptions := append([]launcher.Option{
		launcher.WithExecutable(
			settings.ExecutableBaseURL,
			settings.ExecutableVersion,
			p.Checksum(settings.ExecutableChecksums),
		),
		launcher.WithStdio(os.Stdin, stdout, os.Stderr),
	}, opts.LauncherOptions...)

	logger.DebugKV(ctx, "Bootstrap configuration", "config_dir", configDir,
		"manifest", settings.ManifestEndpoint, "executable_version", settings.ExecutableVersion)

	return &runner{
		args:       args,
		configDir:  configDir,
		fs:         fs,
		reconciler: rec,
		resolver: resolver.New(settings.ManifestEndpoint, network,
			cache.NewFileRepository(fs, config.CachePath(configDir), opts.Clock), d),
		launcher: launcher.New(fs, rec, configDir, launcherOptions...),
	}, nil
}

// updateSelf replaces the cip.py script when it differs from the manifest.
// Failure is surfaced; the old script is not kept silently.
func (r *runner) updateSelf(ctx context.Context) error {
	m, err := r.resolver.Resolve(ctx, config.LoadLocal(ctx, r.fs, config.LocalPath(r.configDir)))
	if err != nil {
		return err
	}

	if _, err = r.reconciler.UpdateIfNeeded(ctx, r.args.CipPy, m.Artifacts.CipPy, false, false, checksum.Text); err != nil {
		return fmt.Errorf("update cip.py: %w", err)
	}

	return nil
}

// run warns about an outdated cip.py, installs the executable and runs it.
func (r *runner) run(ctx context.Context) error {
	m, err := r.resolver.Resolve(ctx, config.LoadLocal(ctx, r.fs, config.LocalPath(r.configDir)))
	if err != nil {
		return err
	}

	r.launcher.CheckScript(ctx, r.args.CipPy, m.Artifacts.CipPy, r.args.VenvDir)

	if _, err = r.launcher.Install(ctx); err != nil {
		return err
	}

	return r.launcher.Execute(ctx, launcher.Invocation{
		VenvDir:     r.args.VenvDir,
		Workarea:    r.args.Workarea,
		PipIndexURL: m.Pip.PyPIRepo,
		Args:        r.args.Forwarded,
	})
}

// PrintUsage writes the bootstrap usage text with defaults for repoRoot.
func PrintUsage(w io.Writer, repoRoot string) {
	flags, _ := NewFlagSet(repoRoot)

	_, _ = fmt.Fprintf(w, "Usage: bricks-bootstrap [options] [bricks arguments...]\n\n")
	_, _ = fmt.Fprintf(w, "Bootstrap for CIP Build System 4.x\n\n")
	_, _ = fmt.Fprintf(w, "Options:\n%s\n", flags.FlagUsages())
	_, _ = fmt.Fprintf(w, "Unrecognized arguments are passed on to the bricks executable.\n")
}
