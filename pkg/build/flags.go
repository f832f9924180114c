// SPDX-License-Identifier: MIT
//
// Package build exposes the name, build time, commit and version embedded in
// the binary with linker flags:
//
//	go build -ldflags "-X analyser/pkg/build.buildName=analyser \
//	    -X analyser/pkg/build.buildVersion=0.2.0 ..."
//
// Development builds fall back to the VCS stamp recorded by the Go toolchain.
package build

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Info is the build metadata of the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String formats the info for `analyser version`.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

const unknown = "unknown"

// Package-level variables for build information. These are populated by -ldflags
// during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = defaultInfo()

	readBuildInfo = debug.ReadBuildInfo
)

func defaultInfo() *Info {
	return &Info{
		Name:        "analyser",
		Description: "Compare streaming spectrum analysers side by side",
		Time:        unknown,
		Commit:      unknown,
		Version:     unknown,
	}
}

// Initialize copies the ldflags values into the build info. Missing values
// are taken from the toolchain's VCS stamp where possible; every flag that is
// still missing is reported in the returned error, and its field keeps
// "unknown".
func Initialize() error {
	info := defaultInfo()
	if buildName != "" {
		info.Name = buildName
	}

	info.Time = buildTime
	info.Commit = buildCommit
	info.Version = buildVersion
	fillFromVCS(info)

	var errs []error
	for _, f := range []struct {
		name  string
		value *string
	}{
		{"BuildTime", &info.Time},
		{"BuildCommit", &info.Commit},
		{"BuildVersion", &info.Version},
	} {
		if *f.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", f.name))
			*f.value = unknown
		}
	}

	buildInfo = info
	return errors.Join(errs...)
}

// fillFromVCS fills empty fields from debug.ReadBuildInfo.
func fillFromVCS(info *Info) {
	bi, ok := readBuildInfo()
	if !ok {
		return
	}
	if info.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.Time == "" {
				info.Time = s.Value
			}
		}
	}
}

// Get returns the current build information. Initialize should be called
// first; before that every field except the name reads "unknown".
func Get() Info {
	return *buildInfo
}
