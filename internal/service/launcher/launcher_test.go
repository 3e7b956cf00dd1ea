package launcher

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/bricks-bootstrap/internal/access"
	"github.com/oshokin/bricks-bootstrap/internal/checksum"
	"github.com/oshokin/bricks-bootstrap/internal/clock"
	"github.com/oshokin/bricks-bootstrap/internal/domain/manifest"
	"github.com/oshokin/bricks-bootstrap/internal/logger"
	"github.com/oshokin/bricks-bootstrap/internal/platform"
	"github.com/oshokin/bricks-bootstrap/internal/service/downloader"
	"github.com/oshokin/bricks-bootstrap/internal/service/reconciler"
)

const (
	configDir  = "/home/dev/cip_config_dir/bootstrap"
	releaseURL = "https://releases.local/download"
	scriptPath = "/repo/scripts/cip.py"
	scriptURL  = "https://x/cip.py"
)

var (
	executableBody = []byte("\x7fELF bricks 0.4.5")
	scriptBody     = []byte("print('cip')\n")
)

// fakeProcess is a ps.Process with fixed values.
type fakeProcess struct {
	pid  int
	name string
}

func (p fakeProcess) Pid() int           { return p.pid }
func (p fakeProcess) PPid() int          { return 1 }
func (p fakeProcess) Executable() string { return p.name }

// fixture bundles a launcher with its in-memory collaborators and captured output.
type fixture struct {
	launcher *Launcher
	network  *access.MemoryNetwork
	fs       *access.Memory
	ctx      context.Context
	log      *bytes.Buffer
	stdout   *bytes.Buffer
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	var (
		c       = clock.NewFake(time.Time{})
		network = access.NewMemoryNetwork()
		fs      = access.NewMemory(c)
		d       = downloader.New(network, fs, downloader.WithClock(c), downloader.WithRetries(1))
		logBuf  bytes.Buffer
		stdout  bytes.Buffer
	)

	base := []Option{
		WithPlatform(platform.ForOS("linux")),
		WithExecutable(releaseURL, "0.4.5", checksum.Binary(executableBody)),
		WithPython("/usr/bin/python3"),
		WithStdio(nil, &stdout, &stdout),
		WithProcessLister(func() ([]ps.Process, error) { return nil, nil }),
	}

	return &fixture{
		launcher: New(fs, reconciler.New(fs, d), configDir, append(base, opts...)...),
		network:  network,
		fs:       fs,
		ctx:      logger.ToContext(context.Background(), logger.New(zapcore.DebugLevel, &logBuf)),
		log:      &logBuf,
		stdout:   &stdout,
	}
}

// TestExecutableRef builds the pinned download location and install path.
func TestExecutableRef(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.Equal(t, releaseURL+"/v0.4.5/bricks", f.launcher.ExecutableRef().Href)
	require.Equal(t, filepath.Join(configDir, "exe", "0.4.5", "bricks"), f.launcher.ExecutablePath())

	defaults := New(f.fs, nil, configDir, WithPlatform(platform.ForOS("windows")))
	require.Equal(t, platform.ChecksumNT, defaults.ExecutableRef().SHA256)
	require.Equal(t, platform.DefaultExecutableBaseURL+"/v0.4.5/bricks.exe", defaults.ExecutableRef().Href)
}

// TestCheckScript_OutdatedPrintsInstructions warns about a stale script without touching it.
func TestCheckScript_OutdatedPrintsInstructions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.fs.Write(scriptPath, []byte("print('old')\n")))

	ref := manifest.ArtifactRef{Href: scriptURL, SHA256: checksum.Text(scriptBody)}

	require.True(t, f.launcher.CheckScript(f.ctx, scriptPath, ref, "/repo/venv"))

	out := f.stdout.String()
	require.Contains(t, out, "WARNING")
	require.Contains(t, out, "outdated")
	require.Contains(t, out, "/usr/bin/python3 "+filepath.Clean(scriptPath)+" --update-cip-py --cip-py="+filepath.Clean(scriptPath))
	require.True(t, strings.HasPrefix(strings.TrimSpace(out), "!"))

	got, err := f.fs.Read(scriptPath)
	require.NoError(t, err)
	require.Equal(t, []byte("print('old')\n"), got)
	require.Zero(t, f.network.TotalCalls())
}

// TestCheckScript_MissingScriptIsOutdated treats an absent script as outdated.
func TestCheckScript_MissingScriptIsOutdated(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ref := manifest.ArtifactRef{Href: scriptURL, SHA256: checksum.Text(scriptBody)}

	require.True(t, f.launcher.CheckScript(f.ctx, scriptPath, ref, "/repo/venv"))
	require.False(t, f.fs.Exists(scriptPath))
}

// TestCheckScript_FreshIsSilent prints nothing for an up-to-date script.
func TestCheckScript_FreshIsSilent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.fs.Write(scriptPath, scriptBody))

	ref := manifest.ArtifactRef{Href: scriptURL, SHA256: checksum.Text(scriptBody)}

	require.False(t, f.launcher.CheckScript(f.ctx, scriptPath, ref, "/repo/venv"))
	require.Empty(t, f.stdout.String())
}

// TestInstall_DownloadsMissingExecutable installs and marks the executable runnable.
func TestInstall_DownloadsMissingExecutable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.network.Serve(f.launcher.ExecutableRef().Href, executableBody)

	state, err := f.launcher.Install(f.ctx)
	require.NoError(t, err)
	require.Equal(t, reconciler.StateUpdated, state)

	path := f.launcher.ExecutablePath()

	got, err := f.fs.Read(path)
	require.NoError(t, err)
	require.Equal(t, executableBody, got)

	info, err := f.fs.Fs().Stat(path)
	require.NoError(t, err)
	require.Equal(t, ExecutablePermissions, info.Mode().Perm())

	// A second install is a no-op.
	state, err = f.launcher.Install(f.ctx)
	require.NoError(t, err)
	require.Equal(t, reconciler.StateFresh, state)
	require.Equal(t, 1, f.network.TotalCalls())
}

// TestInstall_KeepsExistingWhenOffline prefers a previous build over failing.
func TestInstall_KeepsExistingWhenOffline(t *testing.T) {
	t.Parallel()

	f := newFixture(t, WithProcessLister(func() ([]ps.Process, error) {
		return []ps.Process{
			fakeProcess{pid: os.Getpid(), name: "bricks"},
			fakeProcess{pid: 4242, name: "bricks"},
		}, nil
	}))

	path := f.launcher.ExecutablePath()
	require.NoError(t, f.fs.Write(path, []byte("previous build")))
	f.network.Fail(f.launcher.ExecutableRef().Href, -1)

	state, err := f.launcher.Install(f.ctx)
	require.NoError(t, err)
	require.Equal(t, reconciler.StateFallbackKept, state)
	require.Contains(t, f.log.String(), "The bricks executable is running")
	require.Contains(t, f.log.String(), "4242")

	got, err := f.fs.Read(path)
	require.NoError(t, err)
	require.Equal(t, []byte("previous build"), got)
}

// TestInstall_FailsWithoutAnyExecutable surfaces the download error on a first install.
func TestInstall_FailsWithoutAnyExecutable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.network.Fail(f.launcher.ExecutableRef().Href, -1)

	state, err := f.launcher.Install(f.ctx)
	require.ErrorIs(t, err, downloader.ErrDownloadFailed)
	require.Equal(t, reconciler.StateFailed, state)
}

// TestPython checks the interpreter lookup order.
func TestPython(t *testing.T) {
	t.Parallel()

	notFound := func(string) (string, error) { return "", exec.ErrNotFound }

	f := newFixture(t, WithPython(""), WithLookPath(func(file string) (string, error) {
		if file == "python" {
			return "/usr/local/bin/python", nil
		}

		return "", exec.ErrNotFound
	}))
	require.Equal(t, "/usr/local/bin/python", f.launcher.Python("/repo/venv"))

	f = newFixture(t, WithPython(""), WithLookPath(notFound))
	require.NoError(t, f.fs.Write(filepath.Join("/repo/venv", "bin", "python"), nil))
	require.Equal(t, filepath.Join("/repo/venv", "bin", "python"), f.launcher.Python("/repo/venv"))
	require.Equal(t, "python3", f.launcher.Python("/elsewhere"))

	nt := newFixture(t, WithPython(""), WithLookPath(notFound), WithPlatform(platform.ForOS("windows")))
	require.Equal(t, "python", nt.launcher.Python("/elsewhere"))
}

// TestExecute_ForwardsArgumentsAndExitCode runs a stand-in executable and checks its view of the call.
func TestExecute_ForwardsArgumentsAndExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a POSIX shell")
	}

	dir := t.TempDir()
	l := New(access.NewDisk(), nil, dir,
		WithPlatform(platform.ForOS("linux")),
		WithPython("/usr/bin/python3"),
		WithStdio(nil, new(bytes.Buffer), new(bytes.Buffer)),
	)

	path := l.ExecutablePath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`#!/bin/sh
here=$(dirname "$0")
printf '%s\n' "$@" > "$here/args.txt"
printf '%s' "$PIP_INDEX_URL" > "$here/pip.txt"
exit 3
`), 0o755))

	err := l.Execute(context.Background(), Invocation{
		VenvDir:     "/repo/venv",
		Workarea:    "/repo/conan_workarea",
		PipIndexURL: "https://pypi.local/simple",
		Args:        []string{"--foo", "bar", "--", "-x"},
	})

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 3, exitErr.Code)

	args, err := os.ReadFile(filepath.Join(filepath.Dir(path), "args.txt"))
	require.NoError(t, err)
	require.Equal(t, []string{
		"--venv-directory", "/repo/venv",
		"--conan-workarea", "/repo/conan_workarea",
		"--python-exe", "/usr/bin/python3",
		"--foo", "bar", "--", "-x",
	}, strings.Split(strings.TrimSpace(string(args)), "\n"))

	pip, err := os.ReadFile(filepath.Join(filepath.Dir(path), "pip.txt"))
	require.NoError(t, err)
	require.Equal(t, "https://pypi.local/simple", string(pip))
}

// TestExecute_SuccessReturnsNil reports a zero exit status as success.
func TestExecute_SuccessReturnsNil(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a POSIX shell")
	}

	dir := t.TempDir()
	l := New(access.NewDisk(), nil, dir, WithPlatform(platform.ForOS("linux")), WithPython("python3"))

	path := l.ExecutablePath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755))

	require.NoError(t, l.Execute(context.Background(), Invocation{VenvDir: "v", Workarea: "w"}))
}

// TestExecute_LaunchFailure wraps ErrLaunch when the executable cannot be started.
func TestExecute_LaunchFailure(t *testing.T) {
	t.Parallel()

	l := New(access.NewDisk(), nil, t.TempDir(), WithPython("python3"))

	err := l.Execute(context.Background(), Invocation{VenvDir: "v", Workarea: "w"})
	require.ErrorIs(t, err, ErrLaunch)

	var exitErr *ExitError
	require.False(t, errors.As(err, &exitErr))
}

// TestUpdateBanner renders the framed notice with the update command.
func TestUpdateBanner(t *testing.T) {
	t.Parallel()

	banner := UpdateBanner(new(bytes.Buffer), "python3", "/repo/scripts/../scripts/cip.py")

	lines := strings.Split(banner, "\n")
	require.GreaterOrEqual(t, len(lines), 7)
	require.Equal(t, strings.Repeat("!", len(lines[0])), lines[0])
	require.Equal(t, lines[0], lines[len(lines)-1])
	require.Contains(t, banner, "python3 /repo/scripts/cip.py --update-cip-py --cip-py=/repo/scripts/cip.py")
	require.Contains(t, banner, "The execution will now continue.")

	for _, line := range lines {
		require.True(t, strings.HasPrefix(line, "!"))
		require.True(t, strings.HasSuffix(line, "!"))
	}
}
