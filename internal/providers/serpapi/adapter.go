// internal/providers/serpapi/adapter.go
package serpapi

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

const ProviderName = "serpapi"

// Adapter wraps SerpAPI as the fallback SEARCH provider.
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

	baseURL, _ := url.Parse(a.config.BaseURL)
	params := url.Values{}
	params.Add("engine", "google")
	params.Add("q", req.Query)
	params.Add("num", fmt.Sprintf("%d", req.Count))
	params.Add("api_key", a.config.APIKey)
	baseURL.RawQuery = params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, "GET", baseURL.String(), nil)
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
		OrganicResults []struct {
			Position int    `json:"position"`
			Link     string `json:"link"`
			Title    string `json:"title"`
			Snippet  string `json:"snippet"`
		} `json:"organic_results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, apperrors.NewMalformedError(ProviderName, err)
	}

	// Re-rank contiguously from 1; SerpAPI positions can have gaps when ads
	// or features interleave.
	items := make([]models.SearchResultItem, 0, len(apiResponse.OrganicResults))
	seen := make(map[string]bool)
	for _, r := range apiResponse.OrganicResults {
		if r.Link == "" || seen[r.Link] {
			continue
		}
		seen[r.Link] = true
		items = append(items, models.SearchResultItem{
			URL:            r.Link,
			Title:          r.Title,
			Snippet:        r.Snippet,
			Rank:           len(items) + 1,
			SourceProvider: ProviderName,
		})
		if req.Count > 0 && len(items) >= req.Count {
			break
		}
	}

	a.logger.Debug("search completed", map[string]interface{}{
		"query":       req.Query,
		"resultCount": len(items),
	})

	return &providers.Response{Items: items}, nil
}
