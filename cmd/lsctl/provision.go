// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mattermost/logstack-deployer/deployment/provision"
	"github.com/mattermost/logstack-deployer/deployment/terraform"

	"github.com/spf13/cobra"
)

func RunProvisionCmdF(cmd *cobra.Command, args []string) error {
	config, err := getConfig(cmd)
	if err != nil {
		return err
	}

	if key, _ := cmd.Flags().GetString("key"); key != "" {
		config.SSHKeyPath = key
	}

	t := terraform.New(config, nil, newDialer(config))

	host, _ := cmd.Flags().GetString("host")
	if host == "" {
		output, err := t.Output(cmd.Context())
		if err != nil {
			return fmt.Errorf("could not find the log host, use --host: %w", err)
		}
		host = output.Instance.Host()
	}
	if host == "" {
		return errors.New("no log host deployed, use --host")
	}

	report, err := t.Provision(cmd.Context(), host)
	if report != nil {
		asJSON, _ := cmd.Flags().GetBool("json")
		if printErr := printReport(cmd.OutOrStdout(), report, asJSON); printErr != nil {
			return printErr
		}
	}
	return err
}

func printReport(w io.Writer, report *provision.Report, asJSON bool) error {
	if !asJSON {
		return report.Render(w)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
