// Package version exposes build-time version information, populated via
// -ldflags at release time.
package version

var (
	// Version is the release tag, or "dev" for local builds
	Version = "dev"
	// Commit is the git commit hash the binary was built from
	Commit = "dev"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)
