// Package launcher installs the pinned native bricks executable and runs it.
//
// Before anything is installed the invoking cip.py is compared with the
// manifest; an outdated script is reported with update instructions but never
// replaced, since it is the running caller. The executable is reconciled by
// its raw checksum with stale fallback enabled, so a previously installed
// build keeps working offline. Execute forwards the caller's arguments and
// reports a non-zero exit status as *ExitError.
package launcher
