// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package logger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
)

// Settings holds information used to initialize a new logger.
type Settings struct {
	EnableConsole bool   `default:"true"`
	ConsoleJson   bool   `default:"false"`
	ConsoleLevel  string `default:"INFO" validate:"oneof:{TRACE, DEBUG, INFO, WARN, ERROR}"`
	EnableFile    bool   `default:"true"`
	FileJson      bool   `default:"true"`
	FileLevel     string `default:"DEBUG" validate:"oneof:{TRACE, DEBUG, INFO, WARN, ERROR}"`
	FileLocation  string `default:"lsctl.log"`
}

// New returns a newly created and initialized logger with the given settings.
func New(logSettings *Settings) *mlog.Logger {
	log, err := mlog.NewLogger()
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %s", err))
	}

	if err := log.ConfigureTargets(configFromSettings(logSettings), nil); err != nil {
		panic(fmt.Sprintf("failed to configure logger: %s", err))
	}

	return log
}

// Init initializes the global logger with the given settings. The returned
// function restores the standard library logger.
func Init(logSettings *Settings) func() {
	log := New(logSettings)

	// Redirect default golang logger to this logger
	restore := log.RedirectStdLog(mlog.LvlStdLog)

	// Use this app logger as the global logger
	mlog.InitGlobalLogger(log)

	return restore
}

func configFromSettings(s *Settings) mlog.LoggerConfiguration {
	cfg := make(mlog.LoggerConfiguration)

	if s.EnableConsole {
		cfg["console"] = mlog.TargetCfg{
			Type:         "console",
			Format:       format(s.ConsoleJson),
			Levels:       levels(s.ConsoleLevel),
			Options:      json.RawMessage(`{"out": "stdout"}`),
			MaxQueueSize: 1000,
		}
	}

	if s.EnableFile && s.FileLocation != "" {
		opts, _ := json.Marshal(map[string]any{
			"filename":    s.FileLocation,
			"max_size":    100,
			"max_age":     0,
			"max_backups": 0,
			"compress":    true,
		})
		cfg["file"] = mlog.TargetCfg{
			Type:         "file",
			Format:       format(s.FileJson),
			Levels:       levels(s.FileLevel),
			Options:      opts,
			MaxQueueSize: 1000,
		}
	}

	return cfg
}

func format(isJSON bool) string {
	if isJSON {
		return "json"
	}
	return "plain"
}

// levels returns the given level along with every more severe one. Output
// redirected from the standard library logger is kept at every level.
func levels(level string) []mlog.Level {
	all := []mlog.Level{mlog.LvlTrace, mlog.LvlDebug, mlog.LvlInfo, mlog.LvlWarn, mlog.LvlError}
	for i, lvl := range all {
		if strings.EqualFold(lvl.Name, level) {
			return append(all[i:], mlog.LvlPanic, mlog.LvlFatal, mlog.LvlStdLog)
		}
	}
	return []mlog.Level{mlog.LvlError, mlog.LvlPanic, mlog.LvlFatal, mlog.LvlStdLog}
}
