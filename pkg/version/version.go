// Package version provides build and version information for inkwell.
package version

import (
	"fmt"
	"runtime"
)

// Set via ldflags at build time:
//
//	-X github.com/inkwell-tools/inkwell/pkg/version.Version=$(VERSION)
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String returns the full version line.
func String() string {
	return fmt.Sprintf("inkwell %s (commit %s, built %s, %s)", Version, Commit, Date, runtime.Version())
}
