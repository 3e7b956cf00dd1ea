package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// UserConfigDirEnv overrides the per-user CIP configuration directory.
	UserConfigDirEnv = "CIP_USER_CONFIG_DIR"

	// defaultUserConfigDirName is created in the home directory when
	// UserConfigDirEnv is not set.
	defaultUserConfigDirName = "cip_config_dir"

	// bootstrapDirName is the bootstrap subdirectory of the CIP configuration directory.
	bootstrapDirName = "bootstrap"

	// LocalFilename is the name of the local config record.
	LocalFilename = "config.json"

	// CacheFilename is the name of the cached manifest.
	CacheFilename = "bootstrap.json"
)

// Dir returns the bootstrap configuration directory: the settings override,
// else $CIP_USER_CONFIG_DIR/bootstrap, else ~/cip_config_dir/bootstrap.
func Dir(settings *Settings) (string, error) {
	var configured string
	if settings != nil {
		configured = settings.ConfigDir
	}

	return resolveDir(configured, os.LookupEnv, os.UserHomeDir)
}

// LocalPath returns the location of the local config record in dir.
func LocalPath(dir string) string {
	return filepath.Join(dir, LocalFilename)
}

// CachePath returns the location of the cached manifest in dir.
func CachePath(dir string) string {
	return filepath.Join(dir, CacheFilename)
}

func resolveDir(
	configured string,
	lookupEnv func(string) (string, bool),
	userHome func() (string, error),
) (string, error) {
	if configured != "" {
		return filepath.Abs(configured)
	}

	if root, ok := lookupEnv(UserConfigDirEnv); ok && root != "" {
		return filepath.Abs(filepath.Join(root, bootstrapDirName))
	}

	home, err := userHome()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(home, defaultUserConfigDirName, bootstrapDirName), nil
}
