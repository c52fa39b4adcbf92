// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package terraform

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/mattermost/logstack-deployer/deployment/cloud"
	"github.com/mattermost/logstack-deployer/deployment/opensearch"
	"github.com/mattermost/logstack-deployer/deployment/provision"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
)

const (
	instanceRunningMaxWait = 10 * time.Minute
	healthPollInterval     = 10 * time.Second
)

// cloudFrontIndexPatterns are the indices the CloudFront log template
// applies to.
var cloudFrontIndexPatterns = []string{"cloudfront-*"}

// tunneler is implemented by sessions able to open TCP connections from
// the remote host.
type tunneler interface {
	DialContextF() func(ctx context.Context, network, addr string) (net.Conn, error)
}

// Create deploys the log stack: it makes sure the log bucket exists,
// applies the Terraform configuration, provisions the log host and
// prints where the stack can be reached.
func (t *Terraform) Create(ctx context.Context) error {
	if t.cloud == nil || t.connector == nil {
		return errors.New("cloud client and connector should not be nil")
	}

	if err := t.PreFlightCheck(ctx); err != nil {
		return err
	}

	identity, err := t.cloud.CallerIdentity(ctx)
	if err != nil {
		return err
	}
	mlog.Info("Deploying log stack", mlog.String("account", identity.Account), mlog.String("cluster", t.config.ClusterName))

	if err := t.ensureLogBucket(ctx); err != nil {
		return err
	}

	vars, err := t.resolveVars(ctx)
	if err != nil {
		return err
	}

	output, err := t.ApplyInfrastructure(ctx, vars)
	if err != nil {
		return err
	}

	host := output.Instance.Host()
	if host == "" {
		return errors.New("no address found for the log host")
	}

	report, err := t.provisionHost(ctx, host)
	if report != nil {
		report.Log()
	}
	if err != nil {
		return fmt.Errorf("failed to provision %s: %w", host, err)
	}

	t.displayInfo(output)

	return nil
}

func (t *Terraform) ensureLogBucket(ctx context.Context) error {
	settings := t.config.LogBucketSettings
	if settings.Name == "" {
		return errors.New("LogBucketSettings.Name must be set")
	}

	if settings.UseExisting {
		exists, err := t.cloud.BucketExists(ctx, settings.Name)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("log bucket %q does not exist", settings.Name)
		}
		mlog.Info("Using existing log bucket", mlog.String("bucket", settings.Name))
		return nil
	}

	created, err := t.cloud.EnsureLogBucket(ctx, settings.Name, cloud.BucketOptions{
		LogDelivery: settings.EnableLogDeliveryACL,
	})
	if err != nil {
		return err
	}
	if created {
		mlog.Info("Log bucket created", mlog.String("bucket", settings.Name))
	} else {
		mlog.Info("Log bucket already exists", mlog.String("bucket", settings.Name))
	}
	return nil
}

// resolveVars looks up the existing instance, if any, so that CloudFront
// can point to it.
func (t *Terraform) resolveVars(ctx context.Context) (Vars, error) {
	id := t.config.ExistingInstanceID
	if id == "" {
		return Vars{}, nil
	}

	inst, err := t.cloud.DescribeInstance(ctx, id)
	if err != nil {
		return Vars{}, err
	}

	if inst.State != "running" {
		mlog.Info("Waiting for instance to be running", mlog.String("instance", id), mlog.String("state", inst.State))
		if err := t.cloud.WaitInstanceRunning(ctx, id, instanceRunningMaxWait); err != nil {
			return Vars{}, err
		}
		if inst, err = t.cloud.DescribeInstance(ctx, id); err != nil {
			return Vars{}, err
		}
	}

	if inst.Host() == "" {
		return Vars{}, fmt.Errorf("instance %s has no public address", id)
	}

	return Vars{OriginDomain: inst.Host()}, nil
}

// provisionHost sets up the stack on host over a single session and
// configures OpenSearch through it, reconnecting if it was dropped.
func (t *Terraform) provisionHost(ctx context.Context, host string) (*provision.Report, error) {
	p, err := provision.New(t.config.ProvisionConfig(), t.connector)
	if err != nil {
		return nil, err
	}

	steps, err := stackSteps(t.config, host)
	if err != nil {
		return nil, err
	}

	target := t.config.Target(host)
	sess, attempts, err := p.Connect(ctx, target)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			mlog.Warn("Error closing session", mlog.String("host", host), mlog.Err(err))
		}
	}()
	mlog.Info("Connected to log host", mlog.String("host", host), mlog.Int("attempts", len(attempts)))

	report, err := p.Apply(ctx, target, sess, steps)
	if err != nil {
		return report, err
	}

	if t.config.OpenSearchSettings.ConfigureIndexTemplate {
		if err := t.configureOpenSearchOn(ctx, p, target, sess); err != nil {
			mlog.Warn("Could not configure OpenSearch", mlog.Err(err))
		}
	}

	return report, nil
}

// configureOpenSearchOn configures OpenSearch over sess, or over a fresh
// session when sess was dropped while the steps were applied.
func (t *Terraform) configureOpenSearchOn(ctx context.Context, p *provision.Provisioner, target provision.Target, sess provision.Session) error {
	live, release, err := liveSession(ctx, p, target, sess)
	if err != nil {
		return err
	}
	defer release()

	return t.configureOpenSearch(ctx, live)
}

// liveSession returns sess if it's still active, otherwise a new session
// to target. release closes the new session and leaves sess alone.
func liveSession(ctx context.Context, p *provision.Provisioner, target provision.Target, sess provision.Session) (provision.Session, func(), error) {
	if sess.Active() {
		return sess, func() {}, nil
	}

	mlog.Info("Session was dropped, reconnecting", mlog.String("host", target.Host))
	fresh, _, err := p.Connect(ctx, target)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if err := fresh.Close(); err != nil {
			mlog.Warn("Error closing session", mlog.String("host", target.Host), mlog.Err(err))
		}
	}
	return fresh, release, nil
}

func (t *Terraform) configureOpenSearch(ctx context.Context, sess provision.Session) error {
	tun, ok := sess.(tunneler)
	if !ok {
		return errors.New("session does not support tunneling")
	}

	endpoint := net.JoinHostPort("localhost", strconv.Itoa(t.config.OpenSearchSettings.Port))
	client, err := opensearch.New(endpoint, tun.DialContextF())
	if err != nil {
		return err
	}
	defer client.Close()

	timeout := time.Duration(t.config.OpenSearchSettings.HealthTimeoutSeconds) * time.Second
	health, err := client.WaitHealthy(ctx, timeout, healthPollInterval)
	if err != nil {
		return err
	}
	mlog.Info("OpenSearch is healthy", mlog.String("status", health.Status))

	return client.EnsureCloudFrontTemplate(ctx, cloudFrontIndexPatterns)
}

// Provision runs the stack steps against host and returns the report.
// It's meant to re-run the provisioning of an already deployed host.
func (t *Terraform) Provision(ctx context.Context, host string) (*provision.Report, error) {
	if t.connector == nil {
		return nil, errors.New("connector should not be nil")
	}

	p, err := provision.New(t.config.ProvisionConfig(), t.connector)
	if err != nil {
		return nil, err
	}

	steps, err := stackSteps(t.config, host)
	if err != nil {
		return nil, err
	}

	return p.Run(ctx, t.config.Target(host), steps)
}
