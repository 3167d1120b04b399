// Package version holds build metadata injected via ldflags.
package version

import (
	"fmt"
	"runtime"
)

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders the build metadata as a single line.
func String() string {
	return fmt.Sprintf("tokentally %s (commit %s, built %s, %s)", Version, Commit, Date, runtime.Version())
}
