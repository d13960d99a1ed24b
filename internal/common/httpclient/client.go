// internal/common/httpclient/client.go

// Package httpclient is the shared outbound HTTP client for provider
// adapters. Adapters build requests with NewRequestWithContext, so
// cancellation rides on the request itself; the client only enforces the
// per-provider timeout.
package httpclient

import (
	"net/http"
	"time"
)

type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}
