// Package buildinfo holds version and build metadata stamped at compile time via ldflags.
package buildinfo

import (
	"fmt"
	"runtime"
)

// These variables are set at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info returns compile-time and platform metadata, printed by the
// "patsgw version" subcommand.
func Info() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"build_time": BuildTime,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	}
}

// String returns a one-line summary for logging.
func String() string {
	return fmt.Sprintf("patsgw %s (%s) built %s", Version, GitCommit, BuildTime)
}

// UserAgent returns the HTTP User-Agent sent with every upstream request.
func UserAgent() string {
	return fmt.Sprintf("patsgw/%s (+https://github.com/jodal/patsgw)", Version)
}
