// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package terraform

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/blang/semver"
	"github.com/mattermost/mattermost/server/public/shared/mlog"
)

const (
	terraformBin = "terraform"

	cmdExecTimeoutMinutes = 30
)

var requiredVersion = semver.MustParse("1.3.0")

// runCommand runs terraform with the args supplied, from the state directory.
// If dst is not nil, it writes the output there. Otherwise, it logs the output to console.
func (t *Terraform) runCommand(ctx context.Context, dst io.Writer, args ...string) error {
	if _, err := exec.LookPath(terraformBin); err != nil {
		return fmt.Errorf("terraform not installed. Please install terraform. (https://www.terraform.io/downloads.html): %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cmdExecTimeoutMinutes*time.Minute)
	defer cancel()

	args = append([]string{"-chdir=" + t.dir}, args...)
	mlog.Debug("Running terraform command", mlog.String("args", fmt.Sprintf("%v", args)))
	cmd := exec.CommandContext(ctx, terraformBin, args...)
	cmd.Env = append(os.Environ(), t.awsEnv()...)

	// If dst is set, that means we want to capture the output.
	if dst != nil {
		var stderr bytes.Buffer
		cmd.Stdout = dst
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("terraform %s failed: %w: %s", args[1], err, bytes.TrimSpace(stderr.Bytes()))
		}
		return nil
	}

	// From here, we want to stream the output concurrently from stderr and stdout
	// to mlog.
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			mlog.Error(scanner.Text())
		}
	}()

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		mlog.Info(scanner.Text())
	}
	// No need to check for scanner.Error as cmd.Wait() already does that.
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("terraform %s failed: %w", args[1], err)
	}
	return nil
}

// awsEnv returns the static credentials, if any, in the form the AWS
// provider reads them.
func (t *Terraform) awsEnv() []string {
	if t.config.AWSAccessKeyID == "" {
		return nil
	}
	return []string{
		"AWS_ACCESS_KEY_ID=" + t.config.AWSAccessKeyID,
		"AWS_SECRET_ACCESS_KEY=" + t.config.AWSSecretAccessKey,
	}
}

func (t *Terraform) checkTerraformVersion(ctx context.Context) error {
	var buf bytes.Buffer
	if err := t.runner(ctx, &buf, "version", "-json"); err != nil {
		return fmt.Errorf("could not run %q command: %w", "terraform version", err)
	}
	return checkVersion(buf.Bytes())
}

func checkVersion(versionInfoJSON []byte) error {
	var versionInfo struct {
		Version string `json:"terraform_version"`
	}

	if err := json.Unmarshal(versionInfoJSON, &versionInfo); err != nil {
		return fmt.Errorf("could not parse terraform command output: %w", err)
	}

	installedVersion, err := semver.Parse(versionInfo.Version)
	if err != nil {
		return fmt.Errorf("could not parse installed version: %w", err)
	}

	if installedVersion.Major > requiredVersion.Major {
		return fmt.Errorf("installed major version %d is greater than supported major version %d", installedVersion.Major, requiredVersion.Major)
	}

	if installedVersion.LT(requiredVersion) {
		return fmt.Errorf("installed version %q is lower than supported version %q", installedVersion.String(), requiredVersion.String())
	}

	return nil
}
