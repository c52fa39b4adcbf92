// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package provision

import (
	"errors"
	"fmt"
	"time"
)

const (
	DefaultMaxAttempts       = 10
	DefaultInterAttemptDelay = 10 * time.Second
	DefaultUsername          = "ubuntu"
)

// Config controls how a Provisioner connects to a target and runs commands.
type Config struct {
	// MaxAttempts is the maximum number of connection attempts. Must be at least 1.
	MaxAttempts int
	// InterAttemptDelay is how long to wait between two connection attempts.
	InterAttemptDelay time.Duration
	// Username is the remote user to authenticate as.
	Username string
	// CommandTimeout is the upper bound on the run time of a single remote
	// command. Zero disables the bound.
	CommandTimeout time.Duration
}

// DefaultConfig returns a Config tolerating the typical boot-to-SSH-ready
// window of a freshly launched instance.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       DefaultMaxAttempts,
		InterAttemptDelay: DefaultInterAttemptDelay,
		Username:          DefaultUsername,
	}
}

// IsValid reports whether the config can be used.
func (c Config) IsValid() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("MaxAttempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.InterAttemptDelay < 0 {
		return fmt.Errorf("InterAttemptDelay must not be negative, got %s", c.InterAttemptDelay)
	}
	if c.CommandTimeout < 0 {
		return fmt.Errorf("CommandTimeout must not be negative, got %s", c.CommandTimeout)
	}
	if c.Username == "" {
		return errors.New("Username must not be empty")
	}
	return nil
}
