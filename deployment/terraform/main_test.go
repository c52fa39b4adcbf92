// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package terraform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mattermost/logstack-deployer/deployment"
	"github.com/mattermost/logstack-deployer/deployment/cloud"
	"github.com/mattermost/logstack-deployer/deployment/provision"
	"github.com/mattermost/logstack-deployer/logger"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
)

var testConfig = deployment.Config{
	AWSProfile:   "test",
	AWSRegion:    "us-east-1",
	AWSAMI:       deployment.DefaultAMI,
	ClusterName:  "logstack",
	InstanceType: "t3.medium",
	KeyName:      "deployer",
	SSHUsername:  "ubuntu",
	LogBucketSettings: deployment.LogBucketSettings{
		Name:                 "logstack-cloudfront-logs",
		EnableLogDeliveryACL: true,
		Prefix:               deployment.CloudFrontLogPrefix,
	},
	ProvisionSettings: deployment.ProvisionSettings{
		MaxConnectionAttempts:    2,
		InterAttemptDelaySeconds: 0,
		DialTimeoutSeconds:       1,
	},
	OpenSearchSettings: deployment.OpenSearchSettings{
		Version:                "2.11.1",
		InstallScriptPath:      "./install_opensearch.sh",
		InstallDashboards:      true,
		Port:                   9200,
		DashboardsPort:         5601,
		ConfigureIndexTemplate: true,
		HealthTimeoutSeconds:   1,
	},
	TerraformStateDir: "/var/lib/logstack-deployer",
}

func TestMain(m *testing.M) {
	mlog.InitGlobalLogger(logger.New(&logger.Settings{}))
	os.Exit(m.Run())
}

// newTestConfig returns a copy of testConfig with a state directory and an
// install script local to the test.
func newTestConfig(t *testing.T) *deployment.Config {
	t.Helper()
	cfg := testConfig
	dir := t.TempDir()
	cfg.TerraformStateDir = filepath.Join(dir, "state")
	cfg.OpenSearchSettings.InstallScriptPath = filepath.Join(dir, "install_opensearch.sh")
	if err := os.WriteFile(cfg.OpenSearchSettings.InstallScriptPath, []byte("#!/bin/bash\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return &cfg
}

// fakeRunner stands in for the terraform binary.
type fakeRunner struct {
	mu      sync.Mutex
	calls   [][]string
	version string
	output  string
	fail    map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		version: "1.5.7",
		output:  outputJSON,
		fail:    map[string]error{},
	}
}

func (r *fakeRunner) run(_ context.Context, dst io.Writer, args ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, args)
	if err := r.fail[args[0]]; err != nil {
		return err
	}
	switch args[0] {
	case "version":
		_, err := fmt.Fprintf(dst, "{\"terraform_version\":%q}", r.version)
		return err
	case "output":
		_, err := io.WriteString(dst, r.output)
		return err
	}
	return nil
}

func (r *fakeRunner) commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.calls {
		out = append(out, c[0])
	}
	return out
}

func (r *fakeRunner) call(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c[0] == name {
			return c
		}
	}
	return nil
}

type fakeCloud struct {
	bucketExists  bool
	bucketCreated bool
	bucketOpts    cloud.BucketOptions
	ensureCalls   int
	instance      cloud.Instance
	waited        bool
	identityErr   error
	ensureErr     error
}

func (c *fakeCloud) CallerIdentity(_ context.Context) (cloud.Identity, error) {
	if c.identityErr != nil {
		return cloud.Identity{}, c.identityErr
	}
	return cloud.Identity{Account: "123456789012"}, nil
}

func (c *fakeCloud) BucketExists(_ context.Context, _ string) (bool, error) {
	return c.bucketExists, nil
}

func (c *fakeCloud) EnsureLogBucket(_ context.Context, _ string, opts cloud.BucketOptions) (bool, error) {
	c.ensureCalls++
	c.bucketOpts = opts
	return c.bucketCreated, c.ensureErr
}

func (c *fakeCloud) DescribeInstance(_ context.Context, id string) (cloud.Instance, error) {
	if c.instance.ID != id {
		return cloud.Instance{}, cloud.ErrInstanceNotFound
	}
	return c.instance, nil
}

func (c *fakeCloud) WaitInstanceRunning(_ context.Context, _ string, _ time.Duration) error {
	c.waited = true
	c.instance.State = "running"
	return nil
}

// fakeHost simulates the log host. Probes fail until the matching apply
// command has been run.
type fakeHost struct {
	mu        sync.Mutex
	commands  []string
	transfers []string
	installed map[string]bool
	failing   string
	closed    int
	connects  int
	// dropAfter makes the session go inactive once a command ending with
	// it has run. Only the first match drops the session.
	dropAfter string
}

func newFakeHost() *fakeHost {
	return &fakeHost{installed: map[string]bool{}}
}

var serviceProbes = map[string]bool{
	"nginx -v":                                  true,
	"systemctl is-active opensearch":            true,
	"systemctl is-active opensearch-dashboards": true,
}

func (h *fakeHost) Connect(_ context.Context, _ provision.Target, _ string) (provision.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connects++
	return &fakeSession{host: h}, nil
}

func (h *fakeHost) ran(prefix string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	var n int
	for _, c := range h.commands {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

type fakeSession struct {
	host     *fakeHost
	inactive bool
}

func (s *fakeSession) Run(_ context.Context, cmd string) (provision.CommandResult, error) {
	h := s.host
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, cmd)

	if h.dropAfter != "" && strings.HasSuffix(cmd, h.dropAfter) {
		s.inactive = true
		h.dropAfter = ""
	}

	if h.failing != "" && strings.Contains(cmd, h.failing) {
		return provision.CommandResult{ExitStatus: 1, Stderr: []byte("boom")}, nil
	}

	if serviceProbes[cmd] {
		if h.installed[cmd] {
			return provision.CommandResult{Stdout: []byte("nginx version: nginx/1.18.0\n")}, nil
		}
		return provision.CommandResult{ExitStatus: 1}, nil
	}

	if strings.HasPrefix(cmd, "grep -q 'managed by lsctl") {
		if h.installed["site"] {
			return provision.CommandResult{}, nil
		}
		return provision.CommandResult{ExitStatus: 1}, nil
	}

	switch {
	case cmd == "sudo systemctl start nginx":
		h.installed["nginx -v"] = true
	case cmd == "sudo systemctl reload nginx":
		h.installed["site"] = true
	case strings.HasSuffix(cmd, " opensearch"):
		h.installed["systemctl is-active opensearch"] = true
	case strings.HasSuffix(cmd, " dashboards"):
		h.installed["systemctl is-active opensearch-dashboards"] = true
	}
	return provision.CommandResult{}, nil
}

func (s *fakeSession) Transfer(localPath, remotePath string) error {
	s.host.mu.Lock()
	defer s.host.mu.Unlock()
	if _, err := os.Stat(localPath); err != nil {
		return errors.New("no such file")
	}
	s.host.transfers = append(s.host.transfers, remotePath)
	return nil
}

func (s *fakeSession) Active() bool {
	s.host.mu.Lock()
	defer s.host.mu.Unlock()
	return !s.inactive
}

func (s *fakeSession) Close() error {
	s.host.mu.Lock()
	defer s.host.mu.Unlock()
	s.host.closed++
	return nil
}
