// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package provision

// Predicate interprets the result of a probe command. It returns true when
// the step's goal is already met on the remote host.
type Predicate func(res CommandResult) bool

// ExitZero is satisfied when the probe exits with status 0.
func ExitZero() Predicate {
	return func(res CommandResult) bool {
		return res.Success()
	}
}

// ExitZeroWithMarker is satisfied when the probe exits with status 0 and
// marker is printed on stdout or stderr.
func ExitZeroWithMarker(marker string) Predicate {
	return func(res CommandResult) bool {
		return res.Success() && res.Contains(marker)
	}
}

// Artifact is a local file uploaded to the remote host before a step's
// apply commands run.
type Artifact struct {
	LocalPath  string
	RemotePath string
}

// Step is a named, idempotent unit of remote configuration.
type Step struct {
	// Name identifies the step in logs and reports.
	Name string
	// Probe is a read-only command observing whether the step is satisfied.
	// It must never change the remote state.
	Probe string
	// Satisfied interprets the probe result. Defaults to ExitZero.
	Satisfied Predicate
	// Apply are the commands making the step satisfied, run in order.
	Apply []string
	// Artifacts are uploaded before the apply commands run.
	Artifacts []Artifact
	// Optional steps record their failure in the report without
	// aborting the run.
	Optional bool
}

func (s Step) satisfied(res CommandResult) bool {
	if s.Satisfied == nil {
		return ExitZero()(res)
	}
	return s.Satisfied(res)
}
