package version

import (
	"fmt"
	"runtime"
)

// Set at build time via -ldflags "-X go-concord/pkg/version.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info describes the running binary
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// GetVersionString returns "version (shortsha)" when the commit is known
func GetVersionString() string {
	if GitCommit == "unknown" {
		return Version
	}
	if len(GitCommit) > 7 {
		return fmt.Sprintf("%s (%s)", Version, GitCommit[:7])
	}
	return fmt.Sprintf("%s (%s)", Version, GitCommit)
}
