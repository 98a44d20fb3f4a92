// Package config exposes build metadata for projectdesk binaries.
package config

import (
	"fmt"
	"runtime"
)

// Set via -ldflags "-X github.com/good-yellow-bee/projectdesk/pkg/config.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// BuildInfo is reported by the version command and the /health/version endpoint.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetBuildInfo returns the build information of the running binary.
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// VersionString returns a one-line description of the build.
func VersionString() string {
	info := GetBuildInfo()
	return fmt.Sprintf("projectdesk %s (%s) built at %s with %s on %s",
		info.Version, info.Commit, info.BuildTime, info.GoVersion, info.Platform)
}
