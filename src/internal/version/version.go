package version

import (
	"fmt"
	"runtime"
)

var (
	// Set at build time:
	//   -ldflags "-X logsmith/src/internal/version.Version=v1.2.0 -X ..."
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// String is the full version line printed by `logsmith version`
func String() string {
	return fmt.Sprintf("logsmith %s (commit: %s, built: %s, %s)", Version, GitCommit, BuildTime, runtime.Version())
}

// Short is the bare version tag, used in server headers and status
func Short() string {
	return Version
}
