// Package platform maps the running operating system to the pinned native
// bricks executable: its file name, download location, install location and
// published checksum.
package platform

import (
	"path/filepath"
	"runtime"
	"strings"
)

const (
	// FamilyNT is the Windows platform family.
	FamilyNT = "nt"
	// FamilyPOSIX covers every other supported operating system.
	FamilyPOSIX = "posix"

	// ExecutableBaseName is the file name of the native executable without extension.
	ExecutableBaseName = "bricks"

	// DefaultExecutableVersion is the pinned version of the native executable.
	// Update the checksums below together with it.
	DefaultExecutableVersion = "0.4.5"

	// DefaultExecutableBaseURL is the release download root of the native executable.
	DefaultExecutableBaseURL = "https://github-am.geo.conti.de/ADCU-CIP/bricks_bootstrap_exe/releases/download"

	// ChecksumNT is the published SHA-256 of bricks.exe for DefaultExecutableVersion.
	ChecksumNT = "a14d26177fc9d0258c675583f74b98931d8da3be4216ed21ca85db8994180f3b"
	// ChecksumPOSIX is the published SHA-256 of bricks for DefaultExecutableVersion.
	ChecksumPOSIX = "869d906ff7c10823b30cc3f06b783665605cf146e585f35b93e1a0f3e8c1053a"
)

// Platform describes the conventions of one platform family.
type Platform struct {
	// Family is FamilyNT or FamilyPOSIX.
	Family string
	// ExecutableExtension is appended to executable names (".exe" or empty).
	ExecutableExtension string
	// BinarySubdir is the virtual environment directory holding executables.
	BinarySubdir string
	// ExecutableChecksum is the published checksum of the pinned executable.
	ExecutableChecksum string
}

// Current returns the platform of the running process.
func Current() Platform {
	return ForOS(runtime.GOOS)
}

// ForOS returns the platform for a GOOS value.
func ForOS(goos string) Platform {
	if goos == "windows" {
		return Platform{
			Family:              FamilyNT,
			ExecutableExtension: ".exe",
			BinarySubdir:        "Scripts",
			ExecutableChecksum:  ChecksumNT,
		}
	}

	return Platform{
		Family:              FamilyPOSIX,
		ExecutableExtension: "",
		BinarySubdir:        "bin",
		ExecutableChecksum:  ChecksumPOSIX,
	}
}

// DefaultChecksums returns the published checksums keyed by family.
func DefaultChecksums() map[string]string {
	return map[string]string{
		FamilyNT:    ChecksumNT,
		FamilyPOSIX: ChecksumPOSIX,
	}
}

// Checksum returns the expected executable checksum, preferring an override
// for the platform family.
func (p Platform) Checksum(overrides map[string]string) string {
	if sum, ok := overrides[p.Family]; ok && sum != "" {
		return sum
	}

	return p.ExecutableChecksum
}

// ExecutableName returns the executable file name, e.g. "bricks.exe".
func (p Platform) ExecutableName() string {
	return ExecutableBaseName + p.ExecutableExtension
}

// InterpreterName returns the file name of a Python interpreter inside a
// virtual environment.
func (p Platform) InterpreterName() string {
	return "python" + p.ExecutableExtension
}

// ExecutableURL returns <base>/v<version>/bricks<ext>.
func ExecutableURL(base, version, extension string) string {
	return strings.Join([]string{
		strings.TrimRight(base, "/"),
		"v" + strings.TrimPrefix(version, "v"),
		ExecutableBaseName + extension,
	}, "/")
}

// ExecutablePath returns <configDir>/exe/<version>/bricks<ext>.
func ExecutablePath(configDir, version, extension string) string {
	return filepath.Join(configDir, "exe", strings.TrimPrefix(version, "v"), ExecutableBaseName+extension)
}
