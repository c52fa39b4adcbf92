// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package cloud

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// Instance holds the details of an EC2 instance the deployer cares about.
type Instance struct {
	ID           string
	State        string
	PublicDNS    string
	PublicIP     string
	InstanceType string
}

// Host returns the address used to reach the instance, preferring its
// public DNS name.
func (i Instance) Host() string {
	if i.PublicDNS != "" {
		return i.PublicDNS
	}
	return i.PublicIP
}

// DescribeInstance returns the instance with the given id.
func (c *Client) DescribeInstance(ctx context.Context, id string) (Instance, error) {
	out, err := c.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil {
		if hasErrorCode(err, "InvalidInstanceID.NotFound", "InvalidInstanceID.Malformed") {
			return Instance{}, fmt.Errorf("%w: %s: %w", ErrInstanceNotFound, id, err)
		}
		return Instance{}, fmt.Errorf("failed to describe instance %s: %w", id, err)
	}

	for _, r := range out.Reservations {
		for _, inst := range r.Instances {
			if aws.ToString(inst.InstanceId) == id {
				return toInstance(inst), nil
			}
		}
	}

	return Instance{}, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
}

// WaitInstanceRunning blocks until the instance reaches the running state
// or maxWait elapses.
func (c *Client) WaitInstanceRunning(ctx context.Context, id string, maxWait time.Duration) error {
	waiter := ec2.NewInstanceRunningWaiter(c.ec2, func(o *ec2.InstanceRunningWaiterOptions) {
		o.MinDelay = 5 * time.Second
		o.MaxDelay = 15 * time.Second
	})
	err := waiter.Wait(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{id},
	}, maxWait)
	if err != nil {
		return fmt.Errorf("instance %s did not reach running state: %w", id, err)
	}
	return nil
}

func toInstance(inst types.Instance) Instance {
	i := Instance{
		ID:           aws.ToString(inst.InstanceId),
		PublicDNS:    aws.ToString(inst.PublicDnsName),
		PublicIP:     aws.ToString(inst.PublicIpAddress),
		InstanceType: string(inst.InstanceType),
	}
	if inst.State != nil {
		i.State = string(inst.State.Name)
	}
	return i
}
