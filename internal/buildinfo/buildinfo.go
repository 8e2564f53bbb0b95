// Package buildinfo holds compile-time metadata stamped into the binary.
package buildinfo

// Release builds override these via ldflags; the defaults identify a local
// development build.
var (
	// Version is the semantic version or git describe output.
	Version = "dev"

	// Commit is the git commit SHA the binary was built from.
	Commit = "none"

	// BuildDate records when the binary was built, in UTC.
	BuildDate = "unknown"
)
