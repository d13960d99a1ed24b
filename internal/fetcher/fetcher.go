// internal/fetcher/fetcher.go

// Package fetcher retrieves competitor page content for analysis.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"blueprint-engine/internal/common/httpclient"
	"blueprint-engine/internal/common/logger"
)

// maxBodyBytes caps how much of a competitor page is read.
const maxBodyBytes = 2 << 20 // 2 MiB

// Fetcher retrieves the raw text of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HTTPFetcher fetches pages over plain HTTP with a bounded read.
type HTTPFetcher struct {
	client    *httpclient.Client
	userAgent string
	logger    logger.Logger
}

func NewHTTPFetcher(timeout time.Duration, log logger.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		client:    httpclient.NewClient(timeout),
		userAgent: "blueprint-engine/1.0",
		logger:    log.WithFields(map[string]interface{}{"component": "fetcher"}),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}

	return string(body), nil
}
