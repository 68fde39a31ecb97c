// Package version exposes the build identity stamped into the binary.
package version

import (
	"fmt"
	"runtime"
)

const serviceName = "thecalcify"

// Overridden at build time through -ldflags -X.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info is the build identity served by the version endpoint and
// attached to instance heartbeats.
type Info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

func Get() Info {
	return Info{
		Service:   serviceName,
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// Tag is the compact single-field form used where the full Info would
// be noise: the version plus an abbreviated commit.
func (i Info) Tag() string {
	commit := i.Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s-%s", i.Version, commit)
}
