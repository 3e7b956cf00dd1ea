// Package reconciler keeps a local artifact in line with the checksum the
// manifest declares for it.
//
// Text scripts and native executables share one policy; only the checksum
// function differs. A reconciliation moves through
//
//	unknown -> checking -> fresh
//	                    -> stale -> downloading -> updated | fallback-kept | failed
package reconciler
