package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/bricks-bootstrap/internal/config"
	"github.com/oshokin/bricks-bootstrap/internal/logger"
	"github.com/oshokin/bricks-bootstrap/internal/service/bootstrap"
	"github.com/oshokin/bricks-bootstrap/internal/service/launcher"
)

const (
	// exitFailure is returned for any unrecovered error.
	exitFailure = 1
	// exitUsage is returned for malformed bootstrap flags.
	exitUsage = 2
)

// rootCmd installs and runs the bricks executable. Flag parsing is left to
// the bootstrap so unknown flags reach the executable untouched.
var rootCmd = &cobra.Command{
	Use:                "bricks-bootstrap [options] [bricks arguments...]",
	Short:              "Install and run the pinned bricks build executable",
	Long:               "Resolve the bootstrap manifest, keep cip.py and the bricks executable current and run the executable with the remaining arguments. Use --bootstrap-py-help for the bootstrap options.",
	DisableFlagParsing: true,
	SilenceUsage:       true,
	SilenceErrors:      true,
	RunE: func(_ *cobra.Command, args []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		repoRoot, err := repositoryRoot()
		if err != nil {
			return err
		}

		options := &bootstrap.Options{
			Args:         args,
			RepoRoot:     repoRoot,
			SettingsPath: config.SettingsPath(),
		}

		return bootstrap.Run(ctx, options)
	},
}

// Execute runs the bricks-bootstrap CLI and exits with the status of the
// bricks executable, or non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode maps a run error to the process exit status.
func exitCode(err error) int {
	var exitErr *launcher.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	logger.Error(context.Background(), err)

	if errors.Is(err, bootstrap.ErrUsage) {
		return exitUsage
	}

	return exitFailure
}

// repositoryRoot returns the parent of the directory holding the running binary.
func repositoryRoot() (string, error) {
	executable, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}

	if resolved, evalErr := filepath.EvalSymlinks(executable); evalErr == nil {
		executable = resolved
	}

	return filepath.Dir(filepath.Dir(executable)), nil
}
