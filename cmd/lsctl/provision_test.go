// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/mattermost/logstack-deployer/deployment/provision"

	"github.com/stretchr/testify/require"
)

func TestPrintReport(t *testing.T) {
	report := &provision.Report{
		Target: "203.0.113.1 (loghost)",
		Results: []provision.StepResult{
			{Step: "nginx", Outcome: provision.OutcomeSkipped, Detail: "nginx version: nginx/1.18.0"},
			{Step: "opensearch", Outcome: provision.OutcomeApplied, Detail: "1 command(s) applied"},
		},
	}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printReport(&buf, report, false))
		require.Contains(t, buf.String(), "nginx")
		require.Contains(t, buf.String(), "opensearch")
		require.Contains(t, buf.String(), "applied")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printReport(&buf, report, true))

		var decoded provision.Report
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		require.Equal(t, report.Target, decoded.Target)
		require.Len(t, decoded.Results, 2)
		require.Equal(t, provision.OutcomeApplied, decoded.Results[1].Outcome)
	})
}
