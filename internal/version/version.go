// Package version holds build metadata injected via ldflags:
//
//	go build -ldflags "-X github.com/legojeon/report-coach/internal/version.Version=v1.2.0"
package version

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String formats the build metadata for `reportcoach version`.
func String() string {
	return Version + " (" + Commit + ", " + Date + ")"
}
