// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

// Package cloud wraps the AWS APIs the deployer calls directly, outside
// of Terraform: credential checks, the log bucket and instance lookups.
package cloud

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

var (
	// ErrBucketTaken is returned when the bucket name is owned by another account.
	ErrBucketTaken = errors.New("bucket name already taken")
	// ErrInstanceNotFound is returned when an instance id doesn't match any instance.
	ErrInstanceNotFound = errors.New("instance not found")
	// ErrInvalidCredentials is returned when the configured credentials are rejected.
	ErrInvalidCredentials = errors.New("invalid AWS credentials")
)

// Config holds the settings used to build a Client.
type Config struct {
	Region string
	// Profile selects a named profile from the shared AWS config files.
	Profile string
	// AccessKeyID and SecretAccessKey, when both set, take precedence
	// over the default credential chain.
	AccessKeyID     string
	SecretAccessKey string
}

type stsAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

type s3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutBucketOwnershipControls(ctx context.Context, params *s3.PutBucketOwnershipControlsInput, optFns ...func(*s3.Options)) (*s3.PutBucketOwnershipControlsOutput, error)
	PutBucketAcl(ctx context.Context, params *s3.PutBucketAclInput, optFns ...func(*s3.Options)) (*s3.PutBucketAclOutput, error)
}

type ec2API interface {
	ec2.DescribeInstancesAPIClient
}

// Client gives access to the AWS services used by the deployer.
type Client struct {
	region string
	sts    stsAPI
	s3     s3API
	ec2    ec2API
}

// New loads the AWS configuration described by cfg and returns a Client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newClient(awsCfg), nil
}

func newClient(awsCfg aws.Config) *Client {
	return &Client{
		region: awsCfg.Region,
		sts:    sts.NewFromConfig(awsCfg),
		s3:     s3.NewFromConfig(awsCfg),
		ec2:    ec2.NewFromConfig(awsCfg),
	}
}

// Identity describes the principal behind the configured credentials.
type Identity struct {
	Account string
	ARN     string
	UserID  string
}

// CallerIdentity returns the identity of the configured credentials.
// It's used to fail early when credentials are missing or expired.
func (c *Client) CallerIdentity(ctx context.Context) (Identity, error) {
	out, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}

	return Identity{
		Account: aws.ToString(out.Account),
		ARN:     aws.ToString(out.Arn),
		UserID:  aws.ToString(out.UserId),
	}, nil
}
