// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

// Package provision implements idempotent provisioning of a remote host:
// it connects to the host under a bounded retry policy, probes the state of
// each setup step and applies only the steps that are not already satisfied.
package provision

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
)

const defaultSSHPort = 22

// Target identifies the remote host a provisioning run acts on.
// It's passed by value and never modified after creation.
type Target struct {
	// Host is the DNS name or IP address of the host.
	Host string
	// Port is the SSH port. Zero means 22.
	Port int
	// KeyPath is the path to the private key used to authenticate.
	// An empty value means the local ssh-agent is used.
	KeyPath string
	// Role is a free-form label used in logs and reports.
	Role string
}

// NewTarget returns a Target for the given host, key and role.
func NewTarget(host, keyPath, role string) Target {
	return Target{
		Host:    host,
		Port:    defaultSSHPort,
		KeyPath: keyPath,
		Role:    role,
	}
}

// Addr returns the host:port address of the target.
func (t Target) Addr() string {
	port := t.Port
	if port == 0 {
		port = defaultSSHPort
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

// String returns a printable identifier for the target.
func (t Target) String() string {
	if t.Role == "" {
		return t.Host
	}
	return fmt.Sprintf("%s (%s)", t.Host, t.Role)
}

// CommandResult holds the outcome of a single remote command.
type CommandResult struct {
	Stdout     []byte
	Stderr     []byte
	ExitStatus int
}

// Success reports whether the command exited with a zero status.
func (r CommandResult) Success() bool {
	return r.ExitStatus == 0
}

// Contains reports whether marker appears on either stdout or stderr.
// Some tools print their version on stderr, so both streams are checked.
func (r CommandResult) Contains(marker string) bool {
	m := []byte(marker)
	return bytes.Contains(r.Stdout, m) || bytes.Contains(r.Stderr, m)
}

// Session is an open, authenticated channel to a Target.
type Session interface {
	// Run executes cmd on the remote host. A non-zero exit status is not an
	// error: it's reported through CommandResult.ExitStatus. Errors are only
	// returned when the command could not be run or its status is unknown.
	Run(ctx context.Context, cmd string) (CommandResult, error)
	// Transfer copies the local file at localPath to remotePath.
	Transfer(localPath, remotePath string) error
	// Active reports whether the session can still be used.
	Active() bool
	// Close releases the session.
	Close() error
}

// Connector opens sessions to targets.
type Connector interface {
	Connect(ctx context.Context, target Target, username string) (Session, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context, target Target, username string) (Session, error)

// Connect calls f(ctx, target, username).
func (f ConnectorFunc) Connect(ctx context.Context, target Target, username string) (Session, error) {
	return f(ctx, target, username)
}
