package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is the current application version.
// This is a var (not const) so it can be overridden at build time via:
//
//	go build -ldflags "-X github.com/vanderheijden86/pipetrace/pkg/version.Version=v1.2.3"
var Version = "v0.3.0"

// Commit is the VCS revision, filled from build info when not set by ldflags.
var Commit = ""

// String returns a one-line description of the build.
func String() string {
	commit := Commit
	if commit == "" {
		commit = vcsRevision()
	}
	if commit == "" {
		return fmt.Sprintf("pipetrace %s (%s)", Version, runtime.Version())
	}
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return fmt.Sprintf("pipetrace %s %s (%s)", Version, commit, runtime.Version())
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}
