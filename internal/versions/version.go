// Package versions reports build information for catalog-watcher.
package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/Masterminds/semver/v3"
)

const unknown = "unknown"

// Set at build time with -ldflags "-X github.com/stacklok/catalog-watcher/internal/versions.Version=..."
var (
	Version   = "dev"
	Commit    = unknown
	BuildDate = unknown
)

// VersionInfo describes the running binary
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`

	// Release is true when Version is a semantic version without a prerelease part
	Release bool `json:"release"`
}

// GetVersionInfo returns the build information of the running binary
func GetVersionInfo() VersionInfo {
	commit, buildDate := Commit, BuildDate
	if info, ok := debug.ReadBuildInfo(); ok {
		commit, buildDate = fromBuildSettings(info.Settings, commit, buildDate)
	}
	return newVersionInfo(Version, commit, buildDate)
}

// fromBuildSettings fills in values the linker did not set from the VCS stamp
func fromBuildSettings(settings []debug.BuildSetting, commit, buildDate string) (string, string) {
	for _, s := range settings {
		switch {
		case s.Key == "vcs.revision" && commit == unknown:
			commit = s.Value
		case s.Key == "vcs.time" && buildDate == unknown:
			buildDate = s.Value
		}
	}
	return commit, buildDate
}

func newVersionInfo(version, commit, buildDate string) VersionInfo {
	if t, err := time.Parse(time.RFC3339, buildDate); err == nil {
		buildDate = t.UTC().Format("2006-01-02 15:04:05 MST")
	}

	release := false
	if v, err := semver.NewVersion(version); err == nil {
		version = "v" + v.String()
		release = v.Prerelease() == ""
	} else if version == "dev" {
		version = fmt.Sprintf("dev-%.8s", commit)
	}

	return VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Release:   release,
	}
}
