// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

// Package terraform deploys the log stack: it creates the AWS resources
// through Terraform and provisions the log host over SSH.
package terraform

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mattermost/logstack-deployer/deployment"
	"github.com/mattermost/logstack-deployer/deployment/cloud"
	"github.com/mattermost/logstack-deployer/deployment/provision"
	"github.com/mattermost/logstack-deployer/deployment/terraform/ssh"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
)

// CloudAPI is the subset of AWS operations the deployer performs outside
// of Terraform.
type CloudAPI interface {
	CallerIdentity(ctx context.Context) (cloud.Identity, error)
	BucketExists(ctx context.Context, name string) (bool, error)
	EnsureLogBucket(ctx context.Context, name string, opts cloud.BucketOptions) (bool, error)
	DescribeInstance(ctx context.Context, id string) (cloud.Instance, error)
	WaitInstanceRunning(ctx context.Context, id string, maxWait time.Duration) error
}

type runnerFunc func(ctx context.Context, dst io.Writer, args ...string) error

// Terraform manages all operations related to interacting with
// an AWS environment using Terraform.
type Terraform struct {
	config    *deployment.Config
	dir       string
	cloud     CloudAPI
	connector provision.Connector
	runner    runnerFunc
	output    *Output
}

// Vars holds the Terraform variables resolved at run time.
type Vars struct {
	// OriginDomain is the address of an existing instance CloudFront
	// should point to.
	OriginDomain string
}

// New returns a new Terraform instance.
func New(cfg *deployment.Config, cloudAPI CloudAPI, connector provision.Connector) *Terraform {
	t := &Terraform{
		config:    cfg,
		dir:       cfg.TerraformStateDir,
		cloud:     cloudAPI,
		connector: connector,
	}
	t.runner = t.runCommand
	return t
}

// NewFromConfig returns a Terraform instance talking to AWS and to the log
// host with the credentials found in cfg.
func NewFromConfig(ctx context.Context, cfg *deployment.Config) (*Terraform, error) {
	cloudClient, err := cloud.New(ctx, cloud.Config{
		Region:          cfg.AWSRegion,
		Profile:         cfg.AWSProfile,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		return nil, err
	}

	dialer := ssh.NewDialer(ssh.DialerConfig{Timeout: cfg.DialTimeout()})
	return New(cfg, cloudClient, dialer), nil
}

// PreFlightCheck checks whether terraform is installed with a supported
// version and initializes the state directory.
func (t *Terraform) PreFlightCheck(ctx context.Context) error {
	if err := t.checkTerraformVersion(ctx); err != nil {
		return err
	}

	if err := restoreAssets(t.dir); err != nil {
		return fmt.Errorf("failed to restore terraform files: %w", err)
	}

	if err := t.runner(ctx, nil, "init", "-input=false"); err != nil {
		return fmt.Errorf("failed to initialize terraform: %w", err)
	}

	return nil
}

func (t *Terraform) getParams(v Vars) []string {
	cfg := t.config
	return []string{
		"-var", fmt.Sprintf("aws_profile=%s", cfg.AWSProfile),
		"-var", fmt.Sprintf("aws_region=%s", cfg.AWSRegion),
		"-var", fmt.Sprintf("cluster_name=%s", cfg.ClusterName),
		"-var", fmt.Sprintf("ami_id=%s", cfg.AWSAMI),
		"-var", fmt.Sprintf("instance_type=%s", cfg.InstanceType),
		"-var", fmt.Sprintf("key_name=%s", cfg.KeyName),
		"-var", fmt.Sprintf("use_existing_instance=%t", cfg.ExistingInstanceID != ""),
		"-var", fmt.Sprintf("existing_instance_id=%s", cfg.ExistingInstanceID),
		"-var", fmt.Sprintf("use_existing_cloudfront=%t", cfg.ExistingDistributionID != ""),
		"-var", fmt.Sprintf("existing_cloudfront_id=%s", cfg.ExistingDistributionID),
		"-var", fmt.Sprintf("log_bucket_name=%s", cfg.LogBucketSettings.Name),
		"-var", fmt.Sprintf("log_prefix=%s", cfg.LogBucketSettings.Prefix),
		"-var", fmt.Sprintf("origin_domain=%s", v.OriginDomain),
		"-var", fmt.Sprintf("dashboards_port=%d", cfg.OpenSearchSettings.DashboardsPort),
	}
}

// ApplyInfrastructure creates or updates the instance and the CloudFront
// distribution and returns the resulting outputs.
func (t *Terraform) ApplyInfrastructure(ctx context.Context, v Vars) (*Output, error) {
	params := append([]string{"apply", "-input=false", "-auto-approve"}, t.getParams(v)...)
	if err := t.runner(ctx, nil, params...); err != nil {
		return nil, err
	}

	output, err := t.Output(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not parse output: %w", err)
	}

	mlog.Info("Infrastructure applied",
		mlog.String("instance", output.Instance.ID),
		mlog.String("distribution", output.DistributionID))

	return output, nil
}
