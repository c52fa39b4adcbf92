// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package defaults

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCFG struct {
	Setting string `default:"hi"`
	Another int    `default:"1"`
	Nested  struct {
		Setting string `default:"nested"`
	}
}

func writeTestCFG(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	return path
}

func TestReadFrom(t *testing.T) {
	testCases := []struct {
		name     string
		file     string
		contents string
	}{
		{"json", "cfg.json", `{"Setting": "hello", "Nested": {"Setting": "custom"}}`},
		{"toml", "cfg.toml", "Setting = \"hello\"\n[Nested]\nSetting = \"custom\""},
		{"yaml", "cfg.yaml", "setting: hello\nnested:\n  setting: custom\n"},
		{"yml", "cfg.yml", "setting: hello\nnested:\n  setting: custom\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var cfg testCFG
			path := writeTestCFG(t, tc.file, tc.contents)

			require.NoError(t, ReadFrom(path, "", &cfg))
			assert.Equal(t, "hello", cfg.Setting)
			assert.Equal(t, "custom", cfg.Nested.Setting)
			assert.Equal(t, 1, cfg.Another)
		})
	}

	t.Run("unknown fields", func(t *testing.T) {
		for _, f := range []struct{ name, contents string }{
			{"cfg.json", `{"Unknown": "hello"}`},
			{"cfg.toml", `Unknown = "hello"`},
			{"cfg.yaml", "unknown: hello\n"},
		} {
			var cfg testCFG
			err := ReadFrom(writeTestCFG(t, f.name, f.contents), "", &cfg)
			require.Error(t, err, f.name)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		var cfg testCFG
		err := ReadFrom(writeTestCFG(t, "cfg.json", `{"Setting": "hello" "Another": 1}`), "", &cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "could not decode file")
	})

	t.Run("empty file keeps defaults", func(t *testing.T) {
		for _, name := range []string{"cfg.json", "cfg.toml", "cfg.yaml"} {
			var cfg testCFG
			require.NoError(t, ReadFrom(writeTestCFG(t, name, ""), "", &cfg), name)
			assert.Equal(t, "hi", cfg.Setting)
			assert.Equal(t, "nested", cfg.Nested.Setting)
		}
	})

	t.Run("unsupported extension", func(t *testing.T) {
		var cfg testCFG
		err := ReadFrom(writeTestCFG(t, "cfg.ini", "Setting=hello"), "", &cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported file format")
	})

	t.Run("missing path", func(t *testing.T) {
		var cfg testCFG
		require.Error(t, ReadFrom(filepath.Join(t.TempDir(), "missing.json"), "", &cfg))
	})

	t.Run("fallback", func(t *testing.T) {
		var cfg testCFG
		fallback := writeTestCFG(t, "fallback.json", `{"Another": 5}`)
		require.NoError(t, ReadFrom("", fallback, &cfg))
		assert.Equal(t, 5, cfg.Another)
		assert.Equal(t, "hi", cfg.Setting)
	})

	t.Run("missing fallback keeps defaults", func(t *testing.T) {
		var cfg testCFG
		require.NoError(t, ReadFrom("", filepath.Join(t.TempDir(), "missing.json"), &cfg))
		assert.Equal(t, "hi", cfg.Setting)
		assert.Equal(t, 1, cfg.Another)
	})
}
