// Package bootstrap implements the bricks-bootstrap entry point.
//
// Run splits the command line into the bootstrap's own flags and the
// arguments meant for the bricks executable, loads the local configuration,
// resolves the manifest and then either updates the cip.py script on request
// or installs and launches the executable.
package bootstrap
