package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/bricks-bootstrap/internal/logger"
	"github.com/oshokin/bricks-bootstrap/internal/platform"
)

// Settings holds operator overrides shared by the bootstrap binaries.
type Settings struct {
	// ManifestEndpoint is the URL of the remote bootstrap manifest.
	ManifestEndpoint string `yaml:"manifest_endpoint"`
	// ExecutableBaseURL is the release root the native executable is downloaded from.
	ExecutableBaseURL string `yaml:"executable_base_url"`
	// ExecutableVersion is the pinned version of the native executable.
	ExecutableVersion string `yaml:"executable_version"`
	// ExecutableChecksums maps a platform family to the executable checksum.
	ExecutableChecksums map[string]string `yaml:"executable_checksums,omitempty"`
	// DownloadRetries is the number of retries after a failed download.
	DownloadRetries *int `yaml:"download_retries,omitempty"`
	// HTTPTimeout bounds a single HTTP request.
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level"`
	// ConfigDir overrides the per-user configuration directory.
	ConfigDir string `yaml:"config_dir,omitempty"`
}

const (
	// SettingsPathEnv names the environment variable pointing at the settings file.
	SettingsPathEnv = "BRICKS_BOOTSTRAP_SETTINGS"

	// DefaultManifestEndpoint is the central configuration endpoint of the manifest.
	DefaultManifestEndpoint = "https://cip-config.cmo.conti.de/v2/configuration/bricks/bootstrap/1.0/configurations/bootstrap.json"

	// DefaultDownloadRetries is the number of retries after a failed download.
	DefaultDownloadRetries = 9

	// DefaultHTTPTimeout is the default duration of a single HTTP request.
	DefaultHTTPTimeout = 60 * time.Second

	// DefaultLogLevel is used when the settings do not name a level.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the file permission for the settings file.
	DefaultFilePermissions = 0o600
)

var (
	// errSettingsIsNotSet is returned when nil settings are provided.
	errSettingsIsNotSet = errors.New("settings are not set")
	// errNegativeRetries is returned when download_retries is below zero.
	errNegativeRetries = errors.New("download retries must not be negative")
	// errChecksumsRequired is returned when the executable version is changed
	// without the matching checksums.
	errChecksumsRequired = errors.New("executable checksums must be provided for a non-default executable version")
	// errUnknownFamily is returned for checksums of an unsupported platform family.
	errUnknownFamily = errors.New("unknown platform family")
	// errBadChecksum is returned for a checksum that is not 64 hex characters.
	errBadChecksum = errors.New("checksum must be 64 hexadecimal characters")
	// errUnknownLogLevel is returned for an unsupported log level.
	errUnknownLogLevel = errors.New("unknown log level")
)

// DefaultSettings returns settings with every field at its default.
func DefaultSettings() *Settings {
	retries := DefaultDownloadRetries

	return &Settings{
		ManifestEndpoint:  DefaultManifestEndpoint,
		ExecutableBaseURL: platform.DefaultExecutableBaseURL,
		ExecutableVersion: platform.DefaultExecutableVersion,
		DownloadRetries:   &retries,
		HTTPTimeout:       DefaultHTTPTimeout,
		LogLevel:          DefaultLogLevel,
	}
}

// SettingsPath returns the settings file location from the environment,
// or an empty string when none is configured.
func SettingsPath() string {
	return strings.TrimSpace(os.Getenv(SettingsPathEnv))
}

// LoadSettings reads settings from path and validates them. An empty path
// yields the defaults.
func LoadSettings(path string) (*Settings, error) {
	if path == "" {
		return DefaultSettings(), nil
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var settings Settings
	if err = yaml.Unmarshal(contents, &settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = ValidateSettings(&settings); err != nil {
		return nil, err
	}

	return &settings, nil
}

// SaveSettings writes settings to path.
func SaveSettings(path string, settings *Settings) error {
	if settings == nil {
		return errSettingsIsNotSet
	}

	if err := ValidateSettings(settings); err != nil {
		return err
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// ValidateSettings checks the provided settings and fills in defaults for
// empty fields.
func ValidateSettings(settings *Settings) error {
	if settings == nil {
		return errSettingsIsNotSet
	}

	if settings.ManifestEndpoint == "" {
		settings.ManifestEndpoint = DefaultManifestEndpoint
	}

	if _, err := url.ParseRequestURI(settings.ManifestEndpoint); err != nil {
		return fmt.Errorf("invalid manifest endpoint: %w", err)
	}

	if settings.ExecutableBaseURL == "" {
		settings.ExecutableBaseURL = platform.DefaultExecutableBaseURL
	}

	if _, err := url.ParseRequestURI(settings.ExecutableBaseURL); err != nil {
		return fmt.Errorf("invalid executable base URL: %w", err)
	}

	if err := validateExecutable(settings); err != nil {
		return err
	}

	if settings.DownloadRetries == nil {
		retries := DefaultDownloadRetries
		settings.DownloadRetries = &retries
	}

	if *settings.DownloadRetries < 0 {
		return errNegativeRetries
	}

	// Set default timeout if not specified
	if settings.HTTPTimeout <= 0 {
		settings.HTTPTimeout = DefaultHTTPTimeout
	}

	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}

	if _, ok := logger.ParseLogLevel(settings.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, settings.LogLevel)
	}

	return nil
}

// Retries returns the configured download retries.
func (s *Settings) Retries() int {
	if s.DownloadRetries == nil {
		return DefaultDownloadRetries
	}

	return *s.DownloadRetries
}

func validateExecutable(settings *Settings) error {
	if settings.ExecutableVersion == "" {
		settings.ExecutableVersion = platform.DefaultExecutableVersion
	}

	version := "v" + strings.TrimPrefix(settings.ExecutableVersion, "v")
	if !semver.IsValid(version) {
		return fmt.Errorf("invalid executable version %q", settings.ExecutableVersion)
	}

	for family, sum := range settings.ExecutableChecksums {
		if family != platform.FamilyNT && family != platform.FamilyPOSIX {
			return fmt.Errorf("%w: %q", errUnknownFamily, family)
		}

		if decoded, err := hex.DecodeString(sum); err != nil || len(decoded) != 32 {
			return fmt.Errorf("%w: %s", errBadChecksum, family)
		}
	}

	pinned := "v" + platform.DefaultExecutableVersion
	if semver.Compare(version, pinned) != 0 && len(settings.ExecutableChecksums) == 0 {
		return errChecksumsRequired
	}

	return nil
}
