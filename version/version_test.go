// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package version

import (
	"runtime/debug"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()

	// Test binaries carry no VCS stamp.
	require.Equal(t, "unknown", info.Commit)
	require.False(t, info.Modified)
	require.True(t, info.BuildTime.IsZero())
	require.NotEmpty(t, info.GoVersion)
}

func TestFromBuildInfo(t *testing.T) {
	t.Run("stamped build", func(t *testing.T) {
		info := fromBuildInfo(&debug.BuildInfo{
			GoVersion: "go1.22.1",
			Main:      debug.Module{Path: "github.com/mattermost/logstack-deployer", Version: "v1.2.0"},
			Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "abc123"},
				{Key: "vcs.time", Value: "2024-03-01T10:00:00Z"},
				{Key: "vcs.modified", Value: "true"},
			},
		})

		require.Equal(t, "v1.2.0", info.Version)
		require.Equal(t, "abc123", info.Commit)
		require.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), info.BuildTime)
		require.True(t, info.Modified)
		require.Equal(t, "go1.22.1", info.GoVersion)
	})

	t.Run("local build", func(t *testing.T) {
		info := fromBuildInfo(&debug.BuildInfo{
			Main: debug.Module{Version: "(devel)"},
			Settings: []debug.BuildSetting{
				{Key: "vcs.time", Value: "yesterday"},
			},
		})

		require.Equal(t, "devel", info.Version)
		require.Equal(t, "unknown", info.Commit)
		require.Equal(t, "unknown", info.GoVersion)
		require.True(t, info.BuildTime.IsZero())
	})
}

func TestVersionInfoString(t *testing.T) {
	now := time.Now()
	info := VersionInfo{
		Version:   "v1.2.0",
		Commit:    "abc123",
		BuildTime: now,
	}

	str := info.String()
	require.Contains(t, str, "lsctl v1.2.0")
	require.Contains(t, str, "Commit: abc123")
	require.Contains(t, str, "Build Time: "+now.Format("2006-01-02 15:04:05"))
	require.NotContains(t, str, "(modified)")

	info.Modified = true
	require.Contains(t, info.String(), "Commit: abc123 (modified)")

	info.BuildTime = time.Time{}
	require.Contains(t, info.String(), "Build Time: unknown")
}
