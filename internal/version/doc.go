// Package version exposes build metadata for the project.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags and default to sensible values for local builds.
// Short identifies the bootstrap in the HTTP User-Agent; Full backs the
// `version` subcommand of bricks-packager.
package version
