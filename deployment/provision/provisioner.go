// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package provision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
	"github.com/wiggin77/merror"
)

// Provisioner connects to targets and applies setup steps on them.
// A Provisioner holds no per-run state and can be shared between
// concurrent runs against distinct targets.
type Provisioner struct {
	cfg       Config
	connector Connector

	sleep func(context.Context, time.Duration) error
	now   func() time.Time
}

// New returns a Provisioner using connector to open sessions.
func New(cfg Config, connector Connector) (*Provisioner, error) {
	if connector == nil {
		return nil, errors.New("connector should not be nil")
	}
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("invalid provisioning config: %w", err)
	}
	return &Provisioner{
		cfg:       cfg,
		connector: connector,
		sleep:     sleepContext,
		now:       time.Now,
	}, nil
}

// Run connects to target, applies steps over a single session and closes
// the session before returning, whatever the outcome.
func (p *Provisioner) Run(ctx context.Context, target Target, steps []Step) (*Report, error) {
	sess, _, err := p.Connect(ctx, target)
	if err != nil {
		return &Report{Target: target.String()}, err
	}

	lease := &sessionLease{
		provisioner: p,
		target:      target,
		current:     sess,
	}
	defer lease.release()

	return p.apply(ctx, lease, steps)
}

// Apply runs steps over an already opened session. The caller keeps
// ownership of sess and must close it. If sess becomes inactive, a new
// session is opened and closed before Apply returns.
func (p *Provisioner) Apply(ctx context.Context, target Target, sess Session, steps []Step) (*Report, error) {
	lease := &sessionLease{
		provisioner: p,
		target:      target,
		current:     sess,
		borrowed:    true,
	}
	defer lease.release()

	return p.apply(ctx, lease, steps)
}

// Plan pairs a target with the steps to apply on it.
type Plan struct {
	Target Target
	Steps  []Step
}

// RunAll provisions every plan concurrently. Plans must point to distinct
// targets. Reports are returned in the same order as plans.
func (p *Provisioner) RunAll(ctx context.Context, plans []Plan) ([]*Report, error) {
	reports := make([]*Report, len(plans))
	errs := make([]error, len(plans))

	var wg sync.WaitGroup
	for i, plan := range plans {
		wg.Add(1)
		go func(i int, plan Plan) {
			defer wg.Done()
			reports[i], errs[i] = p.Run(ctx, plan.Target, plan.Steps)
		}(i, plan)
	}
	wg.Wait()

	merr := merror.New()
	for i, err := range errs {
		if err != nil {
			merr.Append(fmt.Errorf("%s: %w", plans[i].Target, err))
		}
	}
	return reports, merr.ErrorOrNil()
}

// sessionLease threads one session lineage through a run. It replaces a
// session that became inactive and closes every session it opened exactly once.
type sessionLease struct {
	provisioner *Provisioner
	target      Target
	current     Session
	borrowed    bool
	released    bool
}

// session returns an active session, reconnecting if the current one
// reports itself inactive.
func (l *sessionLease) session(ctx context.Context) (Session, error) {
	if l.current != nil && l.current.Active() {
		return l.current, nil
	}

	mlog.Warn("Session is no longer active, reconnecting", mlog.String("target", l.target.String()))
	l.closeCurrent()
	sess, _, err := l.provisioner.Connect(ctx, l.target)
	if err != nil {
		return nil, err
	}
	l.current = sess
	l.borrowed = false
	return sess, nil
}

func (l *sessionLease) closeCurrent() {
	if l.current == nil {
		return
	}
	if !l.borrowed {
		if err := l.current.Close(); err != nil {
			mlog.Warn("Error closing session", mlog.String("target", l.target.String()), mlog.Err(err))
		}
	}
	l.current = nil
}

func (l *sessionLease) release() {
	if l.released {
		return
	}
	l.released = true
	l.closeCurrent()
}
