// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

// Package opensearch talks to the OpenSearch node installed on the log
// host. Requests are tunneled through the SSH connection to the host.
package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
)

const (
	ClusterStatusGreen  = "green"
	ClusterStatusYellow = "yellow"
	ClusterStatusRed    = "red"
)

// CloudFrontTemplateName is the name of the index template for CloudFront
// access logs.
const CloudFrontTemplateName = "cloudfront-logs"

// Client is a wrapper on top of the official opensearch client, with a
// transport tunneled through the provided dial function.
type Client struct {
	client    *opensearchapi.Client
	transport *tunnelRoundTripper
}

// New builds a new Client for the OpenSearch node at endpoint, as seen from
// the remote end of dial. For an SSH tunnel that's usually localhost:9200.
func New(endpoint string, dial DialContextF) (*Client, error) {
	transport := newTunnelRoundTripper(dial)

	client, err := opensearchapi.NewClient(opensearchapi.Config{
		Client: opensearch.Config{
			Addresses:    []string{"http://" + endpoint},
			Transport:    transport,
			DisableRetry: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	return &Client{client: client, transport: transport}, nil
}

// Close releases the idle tunneled connections.
func (c *Client) Close() {
	c.transport.close()
}

type ClusterHealthResponse struct {
	Status             string `json:"status"`
	InitializingShards int    `json:"initializing_shards"`
	UnassignedShards   int    `json:"unassigned_shards"`
}

// Ready reports whether the cluster can serve requests. A single node
// cluster stays yellow since replicas can't be assigned.
func (r ClusterHealthResponse) Ready() bool {
	return r.Status == ClusterStatusGreen || r.Status == ClusterStatusYellow
}

func (c *Client) ClusterHealth(ctx context.Context) (ClusterHealthResponse, error) {
	resp, err := c.client.Cluster.Health(ctx, &opensearchapi.ClusterHealthReq{})
	if err != nil {
		return ClusterHealthResponse{}, fmt.Errorf("unable to perform ClusterHealth request: %w", err)
	}

	return ClusterHealthResponse{
		Status:             resp.Status,
		InitializingShards: resp.InitializingShards,
		UnassignedShards:   resp.UnassignedShards,
	}, nil
}

// WaitHealthy polls the cluster health every interval until it's ready,
// ctx is done or timeout elapses.
func (c *Client) WaitHealthy(ctx context.Context, timeout, interval time.Duration) (ClusterHealthResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		health, err := c.ClusterHealth(ctx)
		if err == nil && health.Ready() {
			return health, nil
		}
		switch {
		case err == nil:
			lastErr = fmt.Errorf("cluster status is %s", health.Status)
			mlog.Debug("OpenSearch not ready yet", mlog.String("status", health.Status))
		case ctx.Err() != nil && lastErr != nil:
			// Cut short by the deadline: the previous answer is more useful.
		default:
			lastErr = err
			mlog.Debug("OpenSearch not reachable yet", mlog.Err(err))
		}

		select {
		case <-ctx.Done():
			return health, fmt.Errorf("opensearch did not become healthy: %w", lastErr)
		case <-ticker.C:
			if ctx.Err() != nil {
				return health, fmt.Errorf("opensearch did not become healthy: %w", lastErr)
			}
		}
	}
}

// cloudFrontFields lists the fields of a CloudFront standard log line.
var cloudFrontFields = map[string]string{
	"date":                        "date",
	"time":                        "keyword",
	"x-edge-location":             "keyword",
	"sc-bytes":                    "long",
	"c-ip":                        "ip",
	"cs-method":                   "keyword",
	"cs(Host)":                    "keyword",
	"cs-uri-stem":                 "keyword",
	"sc-status":                   "integer",
	"cs(Referer)":                 "keyword",
	"cs(User-Agent)":              "text",
	"cs-uri-query":                "keyword",
	"x-edge-result-type":          "keyword",
	"x-edge-request-id":           "keyword",
	"x-host-header":               "keyword",
	"cs-protocol":                 "keyword",
	"cs-bytes":                    "long",
	"time-taken":                  "float",
	"x-edge-response-result-type": "keyword",
	"cs-protocol-version":         "keyword",
	"time-to-first-byte":          "float",
}

func cloudFrontTemplate(patterns []string) ([]byte, error) {
	properties := make(map[string]any, len(cloudFrontFields)+1)
	for field, typ := range cloudFrontFields {
		properties[field] = map[string]string{"type": typ}
	}
	properties["@timestamp"] = map[string]string{"type": "date"}

	return json.Marshal(map[string]any{
		"index_patterns": patterns,
		"template": map[string]any{
			"settings": map[string]any{
				"number_of_shards":   1,
				"number_of_replicas": 0,
			},
			"mappings": map[string]any{
				"properties": properties,
			},
		},
	})
}

// EnsureCloudFrontTemplate creates or updates the index template used by
// the indices holding CloudFront access logs.
func (c *Client) EnsureCloudFrontTemplate(ctx context.Context, patterns []string) error {
	body, err := cloudFrontTemplate(patterns)
	if err != nil {
		return fmt.Errorf("unable to encode index template: %w", err)
	}

	_, err = c.client.IndexTemplate.Create(ctx, opensearchapi.IndexTemplateCreateReq{
		IndexTemplate: CloudFrontTemplateName,
		Body:          bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("unable to perform IndexTemplateCreate request: %w", err)
	}

	mlog.Info("Index template configured", mlog.String("template", CloudFrontTemplateName))
	return nil
}
