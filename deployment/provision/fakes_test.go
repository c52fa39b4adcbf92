// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package provision

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// fakeHost simulates the state of a remote host: commands are matched by
// prefix against handlers, which may mutate the host state.
type fakeHost struct {
	mu        sync.Mutex
	installed map[string]bool
	handlers  map[string]func(h *fakeHost) (CommandResult, error)
	commands  []string
	transfers []string
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		installed: map[string]bool{},
		handlers:  map[string]func(h *fakeHost) (CommandResult, error){},
	}
}

func (h *fakeHost) on(cmd string, fn func(h *fakeHost) (CommandResult, error)) {
	h.handlers[cmd] = fn
}

func (h *fakeHost) ran(cmd string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	var n int
	for _, c := range h.commands {
		if c == cmd {
			n++
		}
	}
	return n
}

type fakeSession struct {
	host     *fakeHost
	closed   int
	inactive bool
	mu       sync.Mutex
}

func (s *fakeSession) Run(_ context.Context, cmd string) (CommandResult, error) {
	s.host.mu.Lock()
	s.host.commands = append(s.host.commands, cmd)
	fn, ok := s.host.handlers[cmd]
	s.host.mu.Unlock()
	if !ok {
		return CommandResult{}, nil
	}
	return fn(s.host)
}

func (s *fakeSession) Transfer(localPath, remotePath string) error {
	s.host.mu.Lock()
	defer s.host.mu.Unlock()
	s.host.transfers = append(s.host.transfers, localPath+":"+remotePath)
	if strings.Contains(remotePath, "readonly") {
		return errors.New("permission denied")
	}
	return nil
}

func (s *fakeSession) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.inactive && s.closed == 0
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// fakeConnector fails the first failures connection attempts with err, then
// opens sessions on host.
type fakeConnector struct {
	host     *fakeHost
	failures int
	err      error

	mu       sync.Mutex
	calls    int
	sessions []*fakeSession
}

func (c *fakeConnector) Connect(_ context.Context, _ Target, _ string) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.failures < 0 || c.calls <= c.failures {
		return nil, c.err
	}
	sess := &fakeSession{host: c.host}
	c.sessions = append(c.sessions, sess)
	return sess, nil
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func newTestProvisioner(cfg Config, c Connector) (*Provisioner, *sleepRecorder) {
	p, err := New(cfg, c)
	if err != nil {
		panic(err)
	}
	rec := &sleepRecorder{}
	p.sleep = rec.sleep
	return p, rec
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 3
	cfg.InterAttemptDelay = 5 * time.Second
	return cfg
}

var testTarget = NewTarget("ec2-203-0-113-1.compute-1.amazonaws.com", "", "remote-setup-target")
