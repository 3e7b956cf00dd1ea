package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/bricks-bootstrap/internal/service/packager"
	"github.com/oshokin/bricks-bootstrap/internal/version"
)

var (
	// options collects flag values for the packager.
	options = new(packager.Options)

	// rootCmd represents the base command for preparing the bootstrap manifest.
	rootCmd = &cobra.Command{
		Use:   "bricks-packager [upload-url] [pypi-repo]",
		Short: "Prepare the bootstrap manifest for distribution",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options.UploadURL = args[0]
			options.PyPIRepo = args[1]

			return packager.Run(ctx, options)
		},
	}
)

// Execute runs the bricks-packager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&options.ScriptsDir, "scripts", "s", ".", "directory holding cip.py and bootstrap.py")
	rootCmd.Flags().StringVarP(&options.OutputPath, "output", "o", packager.DefaultOutputFilename, "path of the manifest to write")
	rootCmd.Flags().BoolVar(&options.OmitChecksums, "omit-checksums", false, "leave checksums out of the manifest")
	rootCmd.Flags().StringVar(&options.SettingsPath, "settings", "", "also write bricks-bootstrap settings pointing at the uploaded manifest")
}
