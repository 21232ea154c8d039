// Package version holds build metadata injected with -ldflags -X.
package version

import (
	"fmt"
	"runtime/debug"
)

// Build metadata. Overridden at link time, e.g.
// -X github.com/Sumatoshi-tech/faultline/pkg/version.Version=v1.2.0.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info is the build metadata of the running binary.
type Info struct {
	Version   string `json:"version"    yaml:"version"`
	Commit    string `json:"commit"     yaml:"commit"`
	Date      string `json:"date"       yaml:"date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
}

// Get returns the build metadata. When the binary was built without ldflags,
// the VCS revision recorded by the Go toolchain is used as the commit.
func Get() Info {
	info := Info{Version: Version, Commit: Commit, Date: Date}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}

	info.GoVersion = bi.GoVersion

	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.Date == "unknown" {
				info.Date = s.Value
			}
		}
	}

	return info
}

// String renders the metadata on one line.
func (i Info) String() string {
	return fmt.Sprintf("faultline %s (commit: %s, built: %s)", i.Version, i.Commit, i.Date)
}
