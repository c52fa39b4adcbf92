// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package provision

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConnectionExhausted is returned when every allowed connection attempt failed.
	ErrConnectionExhausted = errors.New("connection attempts exhausted")
	// ErrNonRetryableConnection is returned when connecting failed in a way
	// that retrying cannot fix, such as a malformed credential.
	ErrNonRetryableConnection = errors.New("non-retryable connection error")
	// ErrMissingArtifact is returned when a local file a step needs to upload does not exist.
	ErrMissingArtifact = errors.New("missing artifact")
	// ErrStepExecutionFailed is returned when an apply command of a required step failed.
	ErrStepExecutionFailed = errors.New("step execution failed")
	// ErrTransferFailed is returned when an artifact could not be uploaded.
	ErrTransferFailed = errors.New("transfer failed")
)

// PermanentError marks a connection error as not worth retrying.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent marks err as non-retryable. Connectors use it to stop the retry
// loop on errors such as an unparsable private key.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var perr *PermanentError
	return errors.As(err, &perr)
}

// ConnectionError is returned when a session to a target could not be opened.
type ConnectionError struct {
	Target   string
	Attempts int
	Err      error
	kind     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: target %s after %d attempt(s): %v", e.kind, e.Target, e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() []error {
	return []error{e.kind, e.Err}
}

// StepError describes the failure of a single step.
type StepError struct {
	Step       string
	Command    string
	ExitStatus int
	Stderr     string
	Err        error
	kind       error
}

func (e *StepError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: step %q", e.kind, e.Step)
	if e.Command != "" {
		fmt.Fprintf(&b, ", command %q", e.Command)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	} else {
		fmt.Fprintf(&b, ": exit status %d", e.ExitStatus)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		fmt.Fprintf(&b, ": %s", stderr)
	}
	return b.String()
}

func (e *StepError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.Err}
}

// ArtifactError is returned when a step's local artifact is missing.
type ArtifactError struct {
	Step string
	Path string
	Err  error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("%s: step %q expects %s: %v", ErrMissingArtifact, e.Step, e.Path, e.Err)
}

func (e *ArtifactError) Unwrap() []error {
	return []error{ErrMissingArtifact, e.Err}
}
