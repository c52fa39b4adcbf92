// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

// Package version reports the build information embedded in the lsctl binary.
package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

const unknown = "unknown"

// VersionInfo contains version information about the binary
type VersionInfo struct {
	Version   string    `json:"version"`
	Commit    string    `json:"commit"`
	BuildTime time.Time `json:"build_time"`
	Modified  bool      `json:"modified"`
	GoVersion string    `json:"go_version"`
}

// GetInfo retrieves version information from the binary
func GetInfo() VersionInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return VersionInfo{Version: "devel", Commit: unknown, GoVersion: unknown}
	}
	return fromBuildInfo(info)
}

func fromBuildInfo(info *debug.BuildInfo) VersionInfo {
	v := VersionInfo{
		Version:   "devel",
		Commit:    unknown,
		GoVersion: info.GoVersion,
	}
	if v.GoVersion == "" {
		v.GoVersion = unknown
	}
	if mv := info.Main.Version; mv != "" && mv != "(devel)" {
		v.Version = mv
	}

	for _, setting := range info.Settings {
		if setting.Value == "" {
			continue
		}
		switch setting.Key {
		case "vcs.revision":
			v.Commit = setting.Value
		case "vcs.time":
			// vcs.time is always in RFC3339 format
			if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
				v.BuildTime = t
			}
		case "vcs.modified":
			v.Modified = setting.Value == "true"
		}
	}

	return v
}

// String returns a formatted string with version information
func (v VersionInfo) String() string {
	buildTime := unknown
	if !v.BuildTime.IsZero() {
		buildTime = v.BuildTime.Format("2006-01-02 15:04:05")
	}

	commit := v.Commit
	if v.Modified {
		commit += " (modified)"
	}

	return fmt.Sprintf("lsctl %s\nCommit: %s\nBuild Time: %s\nGo Version: %s", v.Version, commit, buildTime, v.GoVersion)
}
