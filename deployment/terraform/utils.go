// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package terraform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// OpenSSH starts an interactive ssh session to the log host.
func (t *Terraform) OpenSSH(ctx context.Context, args ...string) error {
	cmd, err := t.makeSSHCmd(ctx, args...)
	if err != nil {
		return err
	}

	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	if err := cmd.Start(); err != nil {
		return err
	}

	return cmd.Wait()
}

func (t *Terraform) makeSSHCmd(ctx context.Context, args ...string) (*exec.Cmd, error) {
	output, err := t.Output(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not parse output: %w", err)
	}

	host := output.Instance.Host()
	if host == "" {
		return nil, errors.New("no log host found, is the stack deployed?")
	}

	return exec.CommandContext(ctx, "ssh", sshArgs(t.config.SSHKeyPath, t.config.SSHUsername, host, args...)...), nil
}

func sshArgs(keyPath, username, host string, args ...string) []string {
	var out []string
	if keyPath != "" {
		out = append(out, "-i", keyPath)
	}
	out = append(out, fmt.Sprintf("%s@%s", username, host))
	return append(out, args...)
}
