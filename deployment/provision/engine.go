// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
)

// maxDetailLen bounds the amount of command output copied into a report detail.
const maxDetailLen = 512

func (p *Provisioner) apply(ctx context.Context, lease *sessionLease, steps []Step) (*Report, error) {
	report := &Report{Target: lease.target.String()}

	for _, step := range steps {
		// Cancellation is honoured between steps only: a remote command that
		// has started is never interrupted by the caller.
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res, err := p.runStep(ctx, lease, step)
		report.append(res)
		if err == nil {
			continue
		}

		// Optional steps only absorb their own command failures. Connection
		// and artifact errors still end the run.
		if step.Optional && errors.Is(err, ErrStepExecutionFailed) {
			mlog.Warn("Optional step failed, continuing",
				mlog.String("target", report.Target),
				mlog.String("step", step.Name),
				mlog.Err(err))
			continue
		}
		return report, err
	}

	return report, nil
}

func (p *Provisioner) runStep(ctx context.Context, lease *sessionLease, step Step) (StepResult, error) {
	stepField := mlog.String("step", step.Name)

	if err := checkArtifacts(step); err != nil {
		return failedResult(step, err.Error(), nil, err), err
	}

	sess, err := lease.session(ctx)
	if err != nil {
		return failedResult(step, err.Error(), nil, err), err
	}

	if step.Probe != "" {
		probe, err := p.runCommand(ctx, sess, step.Probe)
		if err != nil {
			// A probe that could not run proves nothing, so the step is
			// treated as not satisfied.
			mlog.Debug("Probe could not run", stepField, mlog.Err(err))
		} else if step.satisfied(probe) {
			mlog.Info("Step already satisfied", stepField)
			return StepResult{
				Step:    step.Name,
				Outcome: OutcomeSkipped,
				Detail:  truncate(firstLine(probe)),
				Stdout:  probe.Stdout,
				Stderr:  probe.Stderr,
			}, nil
		}
	}

	mlog.Info("Applying step", stepField)

	for _, artifact := range step.Artifacts {
		sess, err = lease.session(ctx)
		if err != nil {
			return failedResult(step, err.Error(), nil, err), err
		}
		mlog.Debug("Uploading artifact", stepField,
			mlog.String("src", artifact.LocalPath),
			mlog.String("dst", artifact.RemotePath))
		if err := sess.Transfer(artifact.LocalPath, artifact.RemotePath); err != nil {
			stepErr := &StepError{
				Step:    step.Name,
				Command: fmt.Sprintf("transfer %s -> %s", artifact.LocalPath, artifact.RemotePath),
				Err:     err,
				kind:    ErrTransferFailed,
			}
			return failedResult(step, stepErr.Error(), nil, stepErr), stepErr
		}
	}

	var last CommandResult
	for _, cmd := range step.Apply {
		sess, err = lease.session(ctx)
		if err != nil {
			return failedResult(step, err.Error(), nil, err), err
		}
		mlog.Debug("Running command", stepField, mlog.String("cmd", cmd))
		res, err := p.runCommand(ctx, sess, cmd)
		if err != nil {
			stepErr := &StepError{
				Step:    step.Name,
				Command: cmd,
				Stderr:  string(res.Stderr),
				Err:     err,
				kind:    ErrStepExecutionFailed,
			}
			return failedResult(step, stepErr.Error(), &res, stepErr), stepErr
		}
		if !res.Success() {
			stepErr := &StepError{
				Step:       step.Name,
				Command:    cmd,
				ExitStatus: res.ExitStatus,
				Stderr:     string(res.Stderr),
				kind:       ErrStepExecutionFailed,
			}
			return failedResult(step, stepErr.Error(), &res, stepErr), stepErr
		}
		last = res
	}

	return StepResult{
		Step:    step.Name,
		Outcome: OutcomeApplied,
		Detail:  fmt.Sprintf("%d command(s) applied", len(step.Apply)),
		Stdout:  last.Stdout,
		Stderr:  last.Stderr,
	}, nil
}

// runCommand detaches a command from the caller's cancellation and bounds
// it with CommandTimeout when one is configured.
func (p *Provisioner) runCommand(ctx context.Context, sess Session, cmd string) (CommandResult, error) {
	cmdCtx := context.WithoutCancel(ctx)
	if p.cfg.CommandTimeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(cmdCtx, p.cfg.CommandTimeout)
		defer cancel()
	}
	return sess.Run(cmdCtx, cmd)
}

func checkArtifacts(step Step) error {
	for _, artifact := range step.Artifacts {
		info, err := os.Stat(artifact.LocalPath)
		if err != nil {
			return &ArtifactError{Step: step.Name, Path: artifact.LocalPath, Err: err}
		}
		if !info.Mode().IsRegular() {
			return &ArtifactError{Step: step.Name, Path: artifact.LocalPath, Err: fmt.Errorf("not a regular file")}
		}
	}
	return nil
}

func failedResult(step Step, detail string, res *CommandResult, err error) StepResult {
	sr := StepResult{
		Step:    step.Name,
		Outcome: OutcomeFailed,
		Detail:  truncate(detail),
		err:     err,
	}
	if res != nil {
		sr.Stdout = res.Stdout
		sr.Stderr = res.Stderr
	}
	return sr
}

func firstLine(res CommandResult) string {
	out := strings.TrimSpace(string(res.Stdout))
	if out == "" {
		out = strings.TrimSpace(string(res.Stderr))
	}
	line, _, _ := strings.Cut(out, "\n")
	return line
}

func truncate(s string) string {
	if len(s) <= maxDetailLen {
		return s
	}
	return s[:maxDetailLen] + "..."
}
