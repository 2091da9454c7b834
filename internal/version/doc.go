// Package version exposes build metadata for the uwb binaries.
//
// Version, Commit and BuildTime are injected at build time via -ldflags "-X".
// Short is logged by the tracker on start, Full backs the version subcommand.
package version
