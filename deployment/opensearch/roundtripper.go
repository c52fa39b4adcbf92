// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package opensearch

import (
	"context"
	"net"
	"net/http"
)

type DialContextF func(context.Context, string, string) (net.Conn, error)

// tunnelRoundTripper implements RoundTrip to use it as a Transport in an
// http client. Every connection is opened through the provided dial
// function, effectively tunneling all requests through the SSH connection
// to the instance, since OpenSearch only listens on its loopback.
type tunnelRoundTripper struct {
	transport *http.Transport
}

func newTunnelRoundTripper(dialCtxt DialContextF) *tunnelRoundTripper {
	// Use the default transport, except for DialContext, for which we use the
	// provided function.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialCtxt
	transport.Proxy = nil

	return &tunnelRoundTripper{
		transport: transport,
	}
}

// RoundTrip implements the RoundTripper interface.
func (t *tunnelRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Content-Type") == "" && req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return t.transport.RoundTrip(req)
}

func (t *tunnelRoundTripper) close() {
	t.transport.CloseIdleConnections()
}
