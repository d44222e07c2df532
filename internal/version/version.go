// Package version holds build metadata injected with -ldflags.
package version

import "fmt"

// Build-time variables set by ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns version information
func Info() (string, string, string) {
	return Version, GitCommit, BuildDate
}

// String renders the version line printed by the CLI.
func String() string {
	return fmt.Sprintf("dermascan version %s (commit: %s, built: %s)", Version, GitCommit, BuildDate)
}
