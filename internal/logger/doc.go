// Package logger wraps zap for the bootstrap binaries:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing for the operator settings file,
//   - convenience functions (Infof, WarnKV, etc.).
//
// Every reconciliation decision is logged through this package so an
// unattended run leaves an audit trail an operator can read afterwards.
package logger
