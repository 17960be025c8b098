package version

import "runtime"

var (
	// GitCommit is the current HEAD set using ldflags.
	GitCommit string

	// Version is the built softwares version.
	Version = DasyncSemVer
)

func init() {
	if GitCommit != "" {
		Version += "-" + GitCommit
	}
}

const (
	// DasyncSemVer is the current version of dasync.
	// It's the Semantic Version of the software.
	DasyncSemVer = "0.1.0"
)

// Info describes the running software.
type Info struct {
	Dasync    string `json:"dasync"`
	GitCommit string `json:"git_commit,omitempty"`
	GoVersion string `json:"go_version"`
}

// Current returns the Info of this build.
func Current() Info {
	return Info{
		Dasync:    DasyncSemVer,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
	}
}
