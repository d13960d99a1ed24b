// internal/providers/googlesearch/adapter.go
package googlesearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"blueprint-engine/internal/common/config"
	apperrors "blueprint-engine/internal/common/errors"
	"blueprint-engine/internal/common/httpclient"
	"blueprint-engine/internal/common/logger"
	"blueprint-engine/internal/models"
	"blueprint-engine/internal/providers"
)

const ProviderName = "google_search"

// Adapter wraps the Google Custom Search JSON API as a SEARCH provider.
type Adapter struct {
	providers.Base
	config config.ProviderConfig
	client *httpclient.Client
	logger logger.Logger
}

func New(cfg config.ProviderConfig, log logger.Logger) *Adapter {
	return &Adapter{
		Base:   providers.NewBase(ProviderName, cfg),
		config: cfg,
		client: httpclient.NewClient(cfg.GetTimeout()),
		logger: log.WithFields(map[string]interface{}{"provider": ProviderName}),
	}
}

func (a *Adapter) Capabilities() []providers.Capability {
	return []providers.Capability{providers.CapabilitySearch}
}

func (a *Adapter) Invoke(ctx context.Context, capability providers.Capability, req *providers.Request) (*providers.Response, error) {
	if capability != providers.CapabilitySearch {
		return nil, apperrors.NewMalformedError(ProviderName, fmt.Errorf("unsupported capability %s", capability))
	}
	if err := a.Wait(ctx); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "GET", a.buildSearchURL(req.Query, req.Count), nil)
	if err != nil {
		return nil, apperrors.NewTransientError(ProviderName, err)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, a.ClassifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, a.ClassifyHTTPStatus(resp.StatusCode, string(body))
	}

	var apiResponse struct {
		Items []struct {
			Link    string `json:"link"`
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
			Mime    string `json:"mime"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, apperrors.NewMalformedError(ProviderName, err)
	}

	items := make([]models.SearchResultItem, 0, len(apiResponse.Items))
	seen := make(map[string]bool)
	for _, item := range apiResponse.Items {
		if item.Link == "" || seen[item.Link] {
			continue
		}
		seen[item.Link] = true
		items = append(items, models.SearchResultItem{
			URL:            item.Link,
			Title:          item.Title,
			Snippet:        item.Snippet,
			Rank:           len(items) + 1,
			SourceProvider: ProviderName,
		})
	}

	a.logger.Debug("search completed", map[string]interface{}{
		"query":       req.Query,
		"resultCount": len(items),
	})

	return &providers.Response{Items: items}, nil
}

func (a *Adapter) buildSearchURL(query string, count int) string {
	baseURL, _ := url.Parse(a.config.BaseURL)
	params := url.Values{}
	params.Add("key", a.config.APIKey)
	params.Add("cx", a.config.EngineID)
	params.Add("q", query)
	params.Add("num", fmt.Sprintf("%d", count))
	baseURL.RawQuery = params.Encode()
	return baseURL.String()
}
