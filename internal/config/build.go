package config

import "fmt"

// Set at link time:
//
//	go build -ldflags "-X skycast/internal/config.version=1.2.3 \
//	    -X skycast/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X skycast/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo constructs a BuildInfo from the linker-injected variables.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}

// String renders the build for `skycast version` output.
func (b BuildInfo) String() string {
	return fmt.Sprintf("skycast %s (commit %s, built %s)", b.Version, b.Commit, b.BuildTime)
}

// UserAgent appends the version to a base product token ("SkyCast/1.0").
func (b BuildInfo) UserAgent(base string) string {
	if b.Version == "" || b.Version == "dev" {
		return base
	}
	return fmt.Sprintf("%s (%s)", base, b.Version)
}
