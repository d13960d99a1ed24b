// internal/providers/knowledgegraph/adapter.go
package knowledgegraph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"blueprint-engine/internal/common/config"
	apperrors "blueprint-engine/internal/common/errors"
	"blueprint-engine/internal/common/httpclient"
	"blueprint-engine/internal/common/logger"
	"blueprint-engine/internal/models"
	"blueprint-engine/internal/providers"
)

const ProviderName = "knowledge_graph"

// maxQueryTerms bounds how much of a long text is forwarded as the lookup
// query; the Knowledge Graph search endpoint is built for short queries.
const maxQueryTerms = 12

// Adapter wraps the Google Knowledge Graph Search API as an ENTITY_LOOKUP
// provider.
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
	return []providers.Capability{providers.CapabilityEntityLookup}
}

func (a *Adapter) Invoke(ctx context.Context, capability providers.Capability, req *providers.Request) (*providers.Response, error) {
	if capability != providers.CapabilityEntityLookup {
		return nil, apperrors.NewMalformedError(ProviderName, fmt.Errorf("unsupported capability %s", capability))
	}
	if err := a.Wait(ctx); err != nil {
		return nil, err
	}

	query := req.Text
	if fields := strings.Fields(query); len(fields) > maxQueryTerms {
		query = strings.Join(fields[:maxQueryTerms], " ")
	}

	baseURL, _ := url.Parse(a.config.BaseURL)
	params := url.Values{}
	params.Add("query", query)
	params.Add("key", a.config.APIKey)
	params.Add("limit", "10")
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
		ItemListElement []struct {
			Result struct {
				Name  string   `json:"name"`
				Types []string `json:"@type"`
			} `json:"result"`
			ResultScore float64 `json:"resultScore"`
		} `json:"itemListElement"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, apperrors.NewMalformedError(ProviderName, err)
	}

	entities := make([]models.EntityReference, 0, len(apiResponse.ItemListElement))
	for _, el := range apiResponse.ItemListElement {
		if el.Result.Name == "" {
			continue
		}
		entityType := "Thing"
		for _, t := range el.Result.Types {
			if t != "Thing" {
				entityType = t
				break
			}
		}
		entities = append(entities, models.EntityReference{
			Name:            el.Result.Name,
			Type:            entityType,
			Confidence:      normalizeScore(el.ResultScore),
			SourceProviders: []string{ProviderName},
		})
	}

	a.logger.Debug("entity lookup completed", map[string]interface{}{
		"query":       query,
		"entityCount": len(entities),
	})

	return &providers.Response{Entities: entities}, nil
}

// normalizeScore maps the unbounded Knowledge Graph resultScore into (0, 1).
func normalizeScore(score float64) float64 {
	if score <= 0 {
		return 0
	}
	return score / (score + 500)
}
