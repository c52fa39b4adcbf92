// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package cloud

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/mattermost/mattermost/server/public/shared/mlog"
)

// us-east-1 rejects an explicit location constraint.
const defaultRegion = "us-east-1"

// BucketOptions controls how a missing bucket is created.
type BucketOptions struct {
	// LogDelivery grants the log-delivery-write canned ACL, which
	// CloudFront standard logging requires on the target bucket.
	LogDelivery bool
}

// BucketExists checks if a bucket exists and is accessible.
func (c *Client) BucketExists(ctx context.Context, name string) (bool, error) {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check bucket %s: %w", name, err)
	}
	return true, nil
}

// EnsureLogBucket makes sure the named bucket exists, creating it in the
// client's region when missing. It returns whether the bucket was created.
// The log delivery ACL is applied to existing buckets as well, so a bucket
// left behind by an earlier failed run is repaired.
func (c *Client) EnsureLogBucket(ctx context.Context, name string, opts BucketOptions) (bool, error) {
	exists, err := c.BucketExists(ctx, name)
	if err != nil {
		return false, err
	}
	if exists {
		mlog.Info("Log bucket already exists", mlog.String("bucket", name))
		return false, c.ensureLogDelivery(ctx, name, opts)
	}

	input := &s3.CreateBucketInput{
		Bucket: aws.String(name),
	}
	if c.region != "" && c.region != defaultRegion {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(c.region),
		}
	}

	mlog.Info("Creating log bucket", mlog.String("bucket", name), mlog.String("region", c.region))
	if _, err := c.s3.CreateBucket(ctx, input); err != nil {
		switch {
		case isBucketAlreadyOwnedByYou(err):
			return false, c.ensureLogDelivery(ctx, name, opts)
		case isBucketAlreadyExists(err):
			return false, fmt.Errorf("%w: %s", ErrBucketTaken, name)
		}
		return false, fmt.Errorf("failed to create bucket %s: %w", name, err)
	}

	return true, c.ensureLogDelivery(ctx, name, opts)
}

func (c *Client) ensureLogDelivery(ctx context.Context, name string, opts BucketOptions) error {
	if !opts.LogDelivery {
		return nil
	}
	return c.enableLogDelivery(ctx, name)
}

func (c *Client) enableLogDelivery(ctx context.Context, name string) error {
	// New buckets have ACLs disabled, so ownership needs to be relaxed first.
	_, err := c.s3.PutBucketOwnershipControls(ctx, &s3.PutBucketOwnershipControlsInput{
		Bucket: aws.String(name),
		OwnershipControls: &types.OwnershipControls{
			Rules: []types.OwnershipControlsRule{
				{ObjectOwnership: types.ObjectOwnershipBucketOwnerPreferred},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to set ownership controls on bucket %s: %w", name, err)
	}

	_, err = c.s3.PutBucketAcl(ctx, &s3.PutBucketAclInput{
		Bucket: aws.String(name),
		ACL:    types.BucketCannedACL("log-delivery-write"),
	})
	if err != nil {
		return fmt.Errorf("failed to set log delivery ACL on bucket %s: %w", name, err)
	}
	return nil
}

func isBucketAlreadyOwnedByYou(err error) bool {
	var owned *types.BucketAlreadyOwnedByYou
	if errors.As(err, &owned) {
		return true
	}
	return hasErrorCode(err, "BucketAlreadyOwnedByYou")
}

func isBucketAlreadyExists(err error) bool {
	var exists *types.BucketAlreadyExists
	if errors.As(err, &exists) {
		return true
	}
	return hasErrorCode(err, "BucketAlreadyExists")
}

func isNotFoundError(err error) bool {
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	return hasErrorCode(err, "NotFound", "NoSuchBucket", "404")
}

func hasErrorCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}
