// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with console or JSON encoding,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level and format parsing utilities,
//   - convenience functions (Infof, WarnKV, ErrorKV, etc.).
//
// Every tracker component takes a context and logs through the logger found
// in it, so a component name set once by WithName follows all of its output.
package logger
