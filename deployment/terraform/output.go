// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package terraform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Instance holds the addresses of the log host.
type Instance struct {
	ID         string `json:"id"`
	PublicDNS  string `json:"public_dns"`
	PublicIP   string `json:"public_ip"`
	PrivateIP  string `json:"private_ip"`
	PrivateDNS string `json:"private_dns"`
}

// Host returns the address used to reach the instance.
func (i Instance) Host() string {
	if i.PublicDNS != "" {
		return i.PublicDNS
	}
	return i.PublicIP
}

// Output contains the output variables which are
// created after a deployment.
type Output struct {
	Instance           Instance
	DistributionID     string
	DistributionDomain string
	LogBucket          string
	OriginDomain       string

	// Values holds every output flattened to its value.
	Values map[string]any
}

// IsEmpty returns whether a deployment has some data or not.
// This is useful to check if info is being checked after the stack is destroyed.
func (o *Output) IsEmpty() bool {
	return o.Instance.ID == "" && o.DistributionID == ""
}

// DistributionURL returns the URL CloudFront serves the origin from.
func (o *Output) DistributionURL() string {
	if o.DistributionDomain == "" {
		return ""
	}
	return "https://" + o.DistributionDomain
}

type outputValue struct {
	Sensitive bool            `json:"sensitive"`
	Value     json.RawMessage `json:"value"`
}

// parseOutputJSON parses the output of "terraform output -json". Anything
// following the JSON document, such as TF_LOG lines, is ignored.
func parseOutputJSON(data []byte) (*Output, error) {
	start := bytes.IndexByte(data, '{')
	if start < 0 {
		return nil, errors.New("no JSON object found in terraform output")
	}

	var raw map[string]outputValue
	if err := json.NewDecoder(bytes.NewReader(data[start:])).Decode(&raw); err != nil {
		return nil, fmt.Errorf("could not decode terraform output: %w", err)
	}

	output := &Output{Values: make(map[string]any, len(raw))}
	for name, v := range raw {
		var value any
		if err := json.Unmarshal(v.Value, &value); err != nil {
			return nil, fmt.Errorf("could not decode output %q: %w", name, err)
		}
		output.Values[name] = value
	}

	fields := []struct {
		name string
		dst  any
	}{
		{"instance", &output.Instance},
		{"cloudfront_distribution_id", &output.DistributionID},
		{"cloudfront_domain_name", &output.DistributionDomain},
		{"log_bucket_name", &output.LogBucket},
		{"origin_domain", &output.OriginDomain},
	}
	for _, f := range fields {
		v, ok := raw[f.name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v.Value, f.dst); err != nil {
			return nil, fmt.Errorf("could not decode output %q: %w", f.name, err)
		}
	}

	return output, nil
}

// Output reads the outputs of the current deployment.
func (t *Terraform) Output(ctx context.Context) (*Output, error) {
	var buf bytes.Buffer
	if err := t.runner(ctx, &buf, "output", "-json"); err != nil {
		return nil, err
	}

	output, err := parseOutputJSON(buf.Bytes())
	if err != nil {
		return nil, err
	}
	t.output = output
	return output, nil
}
