// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package provision

import (
	"context"
	"time"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
)

type connState int

const (
	stateIdle connState = iota
	stateConnecting
	stateConnected
	stateFailed
)

func (s connState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateConnecting:
		return "connecting"
	case stateConnected:
		return "connected"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}

// Attempt records a single connection try.
type Attempt struct {
	Number    int
	StartedAt time.Time
	Err       error
}

// Succeeded reports whether the attempt opened a session.
func (a Attempt) Succeeded() bool {
	return a.Err == nil
}

// Connection is the outcome of Provisioner.Connect. Session is set only
// when the state is connected; Err only when it failed.
type Connection struct {
	Session  Session
	Attempts []Attempt
	Err      error
	state    connState
}

// Connect opens a session to target, retrying transient failures up to
// MaxAttempts times with InterAttemptDelay between two attempts.
// The caller owns the returned session and must close it.
func (p *Provisioner) Connect(ctx context.Context, target Target) (Session, []Attempt, error) {
	conn := p.connect(ctx, target)
	return conn.Session, conn.Attempts, conn.Err
}

func (p *Provisioner) connect(ctx context.Context, target Target) *Connection {
	conn := &Connection{state: stateIdle}
	targetField := mlog.String("target", target.String())

	var lastErr error
	for n := 1; n <= p.cfg.MaxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return conn.fail(err)
		}

		conn.state = stateConnecting
		attempt := Attempt{Number: n, StartedAt: p.now()}
		mlog.Debug("Connecting", targetField, mlog.Int("attempt", n), mlog.Int("max_attempts", p.cfg.MaxAttempts))
		sess, err := p.connector.Connect(ctx, target, p.cfg.Username)
		attempt.Err = err
		conn.Attempts = append(conn.Attempts, attempt)
		if err == nil {
			conn.state = stateConnected
			conn.Session = sess
			mlog.Info("Connected", targetField, mlog.Int("attempt", n))
			return conn
		}

		if IsPermanent(err) {
			return conn.fail(&ConnectionError{
				Target:   target.String(),
				Attempts: n,
				Err:      err,
				kind:     ErrNonRetryableConnection,
			})
		}

		lastErr = err
		if n == p.cfg.MaxAttempts {
			break
		}

		mlog.Warn("Connection attempt failed, retrying",
			targetField,
			mlog.Int("attempt", n),
			mlog.String("retry_in", p.cfg.InterAttemptDelay.String()),
			mlog.Err(err))
		if err := p.sleep(ctx, p.cfg.InterAttemptDelay); err != nil {
			return conn.fail(err)
		}
	}

	return conn.fail(&ConnectionError{
		Target:   target.String(),
		Attempts: len(conn.Attempts),
		Err:      lastErr,
		kind:     ErrConnectionExhausted,
	})
}

func (c *Connection) fail(err error) *Connection {
	c.state = stateFailed
	c.Err = err
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
