package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/bricks-bootstrap/internal/access"
	"github.com/oshokin/bricks-bootstrap/internal/checksum"
	"github.com/oshokin/bricks-bootstrap/internal/domain/manifest"
	"github.com/oshokin/bricks-bootstrap/internal/logger"
	"github.com/oshokin/bricks-bootstrap/internal/platform"
	"github.com/oshokin/bricks-bootstrap/internal/service/reconciler"
)

const (
	// ExecutablePermissions is applied to the installed executable.
	ExecutablePermissions os.FileMode = 0o755

	// PipIndexEnv passes the manifest package repository to the executable.
	PipIndexEnv = "PIP_INDEX_URL"
)

// ErrLaunch is returned when the executable cannot be started at all.
var ErrLaunch = errors.New("unable to start the bricks executable")

// ExitError reports a non-zero exit status of the executable.
type ExitError struct {
	// Code is the exit status of the child process.
	Code int
}

// Error implements error.
func (e *ExitError) Error() string {
	return fmt.Sprintf("bricks executable exited with status %d", e.Code)
}

type (
	// Launcher installs and runs the native executable.
	Launcher struct {
		fs         access.Filesystem
		reconciler *reconciler.Reconciler
		platform   platform.Platform
		configDir  string
		baseURL    string
		version    string
		checksum   string
		python     string
		lookPath   func(file string) (string, error)
		processes  func() ([]ps.Process, error)
		stdin      io.Reader
		stdout     io.Writer
		stderr     io.Writer
	}

	// Option configures a Launcher during construction.
	Option func(*Launcher)

	// Invocation describes one run of the executable.
	Invocation struct {
		// VenvDir is the virtual environment directory.
		VenvDir string
		// Workarea is the conan workarea directory.
		Workarea string
		// PipIndexURL is exported as PIP_INDEX_URL when set.
		PipIndexURL string
		// Args are forwarded verbatim after the derived arguments.
		Args []string
	}
)

// WithPlatform overrides the detected platform.
func WithPlatform(p platform.Platform) Option {
	return func(l *Launcher) {
		l.platform = p
	}
}

// WithExecutable pins the release root, version and checksum of the executable.
// Empty values keep the defaults.
func WithExecutable(baseURL, version, sum string) Option {
	return func(l *Launcher) {
		if baseURL != "" {
			l.baseURL = baseURL
		}

		if version != "" {
			l.version = version
		}

		if sum != "" {
			l.checksum = sum
		}
	}
}

// WithPython sets the interpreter passed as --python-exe.
func WithPython(path string) Option {
	return func(l *Launcher) {
		l.python = path
	}
}

// WithLookPath replaces the PATH lookup used to find an interpreter.
func WithLookPath(lookPath func(file string) (string, error)) Option {
	return func(l *Launcher) {
		if lookPath != nil {
			l.lookPath = lookPath
		}
	}
}

// WithProcessLister replaces the process listing used for the running check.
func WithProcessLister(list func() ([]ps.Process, error)) Option {
	return func(l *Launcher) {
		if list != nil {
			l.processes = list
		}
	}
}

// WithStdio sets the standard streams of the child process. The banner is
// written to stdout.
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(l *Launcher) {
		l.stdin = stdin
		l.stdout = stdout
		l.stderr = stderr
	}
}

// New creates a Launcher installing into configDir.
func New(fs access.Filesystem, r *reconciler.Reconciler, configDir string, opts ...Option) *Launcher {
	l := &Launcher{
		fs:         fs,
		reconciler: r,
		platform:   platform.Current(),
		configDir:  configDir,
		baseURL:    platform.DefaultExecutableBaseURL,
		version:    platform.DefaultExecutableVersion,
		lookPath:   exec.LookPath,
		processes:  ps.Processes,
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.checksum == "" {
		l.checksum = l.platform.ExecutableChecksum
	}

	return l
}

// ExecutablePath returns the install location of the pinned executable.
func (l *Launcher) ExecutablePath() string {
	return platform.ExecutablePath(l.configDir, l.version, l.platform.ExecutableExtension)
}

// ExecutableRef returns the download location and expected checksum of the
// pinned executable.
func (l *Launcher) ExecutableRef() manifest.ArtifactRef {
	return manifest.ArtifactRef{
		Href:   platform.ExecutableURL(l.baseURL, l.version, l.platform.ExecutableExtension),
		SHA256: l.checksum,
	}
}

// Install makes sure the pinned executable is present, matches its checksum
// and is runnable. A download failure keeps a previously installed build.
func (l *Launcher) Install(ctx context.Context) (reconciler.State, error) {
	var (
		path = l.ExecutablePath()
		ref  = l.ExecutableRef()
	)

	if l.fs.Exists(path) && l.reconciler.Check(path, ref, checksum.Binary) == reconciler.StateStale {
		l.warnIfRunning(ctx)
	}

	state, err := l.reconciler.UpdateIfNeeded(ctx, path, ref, true, false, checksum.Binary)
	if err != nil {
		return state, fmt.Errorf("install bricks executable: %w", err)
	}

	if err = l.fs.Chmod(path, ExecutablePermissions); err != nil {
		return state, fmt.Errorf("mark %s executable: %w", path, err)
	}

	logger.DebugKV(ctx, "Bricks executable is installed", "path", path, "state", state.String())

	return state, nil
}

// Execute runs the installed executable and waits for it. A non-zero exit
// status is returned as *ExitError, a start failure wraps ErrLaunch.
func (l *Launcher) Execute(ctx context.Context, inv Invocation) error {
	path := l.ExecutablePath()

	args := append([]string{
		"--venv-directory", filepath.ToSlash(inv.VenvDir),
		"--conan-workarea", filepath.ToSlash(inv.Workarea),
		"--python-exe", filepath.ToSlash(l.Python(inv.VenvDir)),
	}, inv.Args...)

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = l.stdin
	cmd.Stdout = l.stdout
	cmd.Stderr = l.stderr
	cmd.Env = os.Environ()

	if inv.PipIndexURL != "" {
		cmd.Env = append(cmd.Env, PipIndexEnv+"="+inv.PipIndexURL)
	}

	logger.InfoKV(ctx, "Starting the bricks executable", "path", path, "args", strings.Join(args, " "))

	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code <= 0 {
			code = 1
		}

		return &ExitError{Code: code}
	}

	return fmt.Errorf("%w %s: %w", ErrLaunch, path, err)
}

// Python returns the interpreter passed to the executable: the configured
// one, else python from PATH, else the interpreter of an existing venvDir.
func (l *Launcher) Python(venvDir string) string {
	if l.python != "" {
		return l.python
	}

	candidates := []string{"python3", "python"}
	if l.platform.Family == platform.FamilyNT {
		candidates = []string{"python", "python3"}
	}

	for _, name := range candidates {
		if found, err := l.lookPath(name); err == nil {
			return found
		}
	}

	inVenv := filepath.Join(venvDir, l.platform.BinarySubdir, l.platform.InterpreterName())
	if l.fs.Exists(inVenv) {
		return inVenv
	}

	return candidates[0]
}

// warnIfRunning reports a running copy of the executable, which blocks its
// replacement on some systems.
func (l *Launcher) warnIfRunning(ctx context.Context) {
	processList, err := l.processes()
	if err != nil {
		logger.DebugKV(ctx, "Unable to list processes", "error", err)
		return
	}

	var (
		name          = l.platform.ExecutableName()
		thisProcessID = os.Getpid()
	)

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if strings.EqualFold(process.Executable(), name) {
			logger.WarnKV(ctx, "The bricks executable is running, replacing it may fail",
				"pid", process.Pid(), "path", l.ExecutablePath())

			return
		}
	}
}
