// Package buildinfo exposes version metadata stamped at link time:
//
//	-X 'github.com/m3rciful/scriptbot/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/m3rciful/scriptbot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/scriptbot/core/buildinfo.Date=2025-08-30T12:00:00Z'
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Info is the resolved build metadata.
type Info struct {
	Version string
	Commit  string
	Date    string
}

// Get returns the stamped values, filling commit and date from the VCS
// settings recorded by the Go toolchain when they were not set via ldflags.
func Get() Info {
	info := Info{Version: Version, Commit: Commit, Date: Date}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch {
			case s.Key == "vcs.revision" && info.Commit == "":
				info.Commit = shortRev(s.Value)
			case s.Key == "vcs.time" && info.Date == "":
				info.Date = s.Value
			}
		}
	}
	if info.Commit == "" {
		info.Commit = "local"
	}
	if info.Date == "" {
		info.Date = "unknown"
	}
	return info
}

// String formats the info for the version command, e.g.
// "v1.2.3 (commit: abcdef0, built: 2025-08-30T12:00:00Z)".
func (i Info) String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", i.Version, i.Commit, i.Date)
}

func shortRev(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}
