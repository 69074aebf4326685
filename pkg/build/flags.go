// SPDX-License-Identifier: MIT
//
// Package build exposes the metadata embedded into the mixdeck binary at
// link time: application name, description, build timestamp, commit and
// semantic version. The CLI uses it for `--version` and the startup banner.
//
//	go build -ldflags "-X mixdeck/pkg/build.buildName=mixdeck \
//	    -X mixdeck/pkg/build.buildVersion=0.3.0 ..."
package build

import (
	"errors"
	"fmt"
)

// Info is the build metadata of the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String renders the version line printed by the CLI.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

const unknown = "unknown"

// Package-level variables populated by -ldflags during compilation. The
// defaults of "unknown" apply to development builds.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &Info{
		Name:        "mixdeck",
		Description: "Dual-deck mixing engine with EQ, loops, tempo sync and a spectrum feed",
		Time:        unknown,
		Commit:      unknown,
		Version:     unknown,
	}
)

// Initialize validates and copies the ldflags variables into the build info.
// It returns an error naming the first missing flag; the info keeps its
// development defaults in that case.
func Initialize() error {
	if buildName == "" {
		return errors.New("BuildName is required")
	}
	if buildTime == "" {
		return errors.New("BuildTime is required")
	}
	if buildCommit == "" {
		return errors.New("BuildCommit is required")
	}
	if buildVersion == "" {
		return errors.New("BuildVersion is required")
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *Info {
	return buildFlags
}

// IsDevelopment reports whether the binary was built without ldflags.
func IsDevelopment() bool {
	return buildFlags.Version == unknown
}
