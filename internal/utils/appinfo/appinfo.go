// Package appinfo reports what build of the service is running
package appinfo

import (
	"os"
	"runtime"
	"runtime/debug"
)

// Version is stamped at build time:
//
//	go build -ldflags "-X planethero/internal/utils/appinfo.Version=1.4.0" ./cmd/server
var Version = ""

// BuildInfo describes the running binary
type BuildInfo struct {
	Version   string `json:"version"`
	Revision  string `json:"revision,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
}

// Get collects build information from the linker stamp, the environment and
// the module build info, in that order
func Get() BuildInfo {
	info := BuildInfo{Version: GetVersion(), GoVersion: runtime.Version()}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range bi.Settings {
			switch setting.Key {
			case "vcs.revision":
				info.Revision = setting.Value
			case "vcs.modified":
				info.Modified = setting.Value == "true"
			}
		}
	}
	return info
}

// GetVersion returns the application version
func GetVersion() string {
	if Version != "" {
		return Version
	}
	if version := os.Getenv("APP_VERSION"); version != "" {
		return version
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return "0.0.0-dev"
}
