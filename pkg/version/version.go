// Package version holds build metadata set at link time, e.g.
//
//	go build -ldflags "-X github.com/Sumatoshi-tech/segmenter/pkg/version.Version=v1.2.0"
package version

import "fmt"

// Build metadata.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String formats the build metadata for the version command.
func String() string {
	return fmt.Sprintf("segmenter %s (commit: %s, built: %s)", Version, Commit, Date)
}
