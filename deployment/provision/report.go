// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package provision

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
	"github.com/wiggin77/merror"
)

// Outcome is the result of running a single step.
type Outcome string

const (
	// OutcomeSkipped means the probe reported the step as already satisfied.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeApplied means the apply commands ran and succeeded.
	OutcomeApplied Outcome = "applied"
	// OutcomeFailed means the step could not be applied.
	OutcomeFailed Outcome = "failed"
)

// StepResult records the outcome of one step along with diagnostic output.
type StepResult struct {
	Step    string  `json:"step"`
	Outcome Outcome `json:"outcome"`
	Detail  string  `json:"detail"`
	Stdout  []byte  `json:"-"`
	Stderr  []byte  `json:"-"`
	err     error
}

// Report is the ordered record of a provisioning run.
// Results follow the order of the steps and are only ever appended.
type Report struct {
	Target  string       `json:"target"`
	Results []StepResult `json:"results"`
}

func (r *Report) append(res StepResult) {
	r.Results = append(r.Results, res)
}

// Count returns the number of results with the given outcome.
func (r *Report) Count(outcome Outcome) int {
	var n int
	for _, res := range r.Results {
		if res.Outcome == outcome {
			n++
		}
	}
	return n
}

// Failed returns the results of the steps that failed.
func (r *Report) Failed() []StepResult {
	var failed []StepResult
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			failed = append(failed, res)
		}
	}
	return failed
}

// Err returns the combined errors of the failed steps, or nil if none failed.
func (r *Report) Err() error {
	merr := merror.New()
	for _, res := range r.Failed() {
		if res.err != nil {
			merr.Append(res.err)
		} else {
			merr.Append(fmt.Errorf("step %q failed: %s", res.Step, res.Detail))
		}
	}
	return merr.ErrorOrNil()
}

// Log writes one log line per step result.
func (r *Report) Log() {
	for _, res := range r.Results {
		fields := []mlog.Field{
			mlog.String("target", r.Target),
			mlog.String("step", res.Step),
			mlog.String("outcome", string(res.Outcome)),
		}
		if res.Detail != "" {
			fields = append(fields, mlog.String("detail", res.Detail))
		}
		if res.Outcome == OutcomeFailed {
			mlog.Error("Provisioning step failed", fields...)
			continue
		}
		mlog.Info("Provisioning step done", fields...)
	}
}

// Render prints the report as a table.
func (r *Report) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "STEP\tOUTCOME\tDETAIL\n")
	for _, res := range r.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", res.Step, res.Outcome, res.Detail)
	}
	return tw.Flush()
}
