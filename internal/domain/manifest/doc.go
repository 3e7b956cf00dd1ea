// Package manifest models the remote bootstrap manifest: where the launcher
// and bootstrap scripts live, their expected checksums, and the package
// repository configuration.
package manifest
