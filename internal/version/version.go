// Package version holds build-time version information.
package version

// Version is overridden at build time via
// -ldflags "-X github.com/quantum-n3bula/console/internal/version.Version=...".
var Version = "dev"
