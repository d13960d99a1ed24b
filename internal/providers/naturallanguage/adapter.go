// internal/providers/naturallanguage/adapter.go
package naturallanguage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"blueprint-engine/internal/common/config"
	apperrors "blueprint-engine/internal/common/errors"
	"blueprint-engine/internal/common/httpclient"
	"blueprint-engine/internal/common/logger"
	"blueprint-engine/internal/models"
	"blueprint-engine/internal/providers"
)

const ProviderName = "natural_language"

// maxDocumentBytes caps the document sent for analysis; the NL API rejects
// oversized payloads and competitor pages can be arbitrarily large.
const maxDocumentBytes = 100000

// Adapter wraps the Cloud Natural Language API. It serves TEXT_ANALYSIS as its
// primary capability and doubles as a second-tier ENTITY_LOOKUP source.
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
	return []providers.Capability{providers.CapabilityTextAnalysis, providers.CapabilityEntityLookup}
}

func (a *Adapter) Invoke(ctx context.Context, capability providers.Capability, req *providers.Request) (*providers.Response, error) {
	switch capability {
	case providers.CapabilityTextAnalysis, providers.CapabilityEntityLookup:
	default:
		return nil, apperrors.NewMalformedError(ProviderName, fmt.Errorf("unsupported capability %s", capability))
	}
	if err := a.Wait(ctx); err != nil {
		return nil, err
	}

	text := req.Text
	if len(text) > maxDocumentBytes {
		text = text[:maxDocumentBytes]
	}

	requestBody := map[string]interface{}{
		"document": map[string]interface{}{
			"type":    "PLAIN_TEXT",
			"content": text,
		},
		"features": map[string]interface{}{
			"extractEntities":          true,
			"extractDocumentSentiment": true,
		},
		"encodingType": "UTF8",
	}
	body, _ := json.Marshal(requestBody)

	endpoint := fmt.Sprintf("%s?key=%s", a.config.BaseURL, a.config.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, apperrors.NewTransientError(ProviderName, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, a.ClassifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, a.ClassifyHTTPStatus(resp.StatusCode, string(respBody))
	}

	var apiResponse struct {
		Entities []struct {
			Name     string  `json:"name"`
			Type     string  `json:"type"`
			Salience float64 `json:"salience"`
		} `json:"entities"`
		DocumentSentiment struct {
			Score float64 `json:"score"`
		} `json:"documentSentiment"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, apperrors.NewMalformedError(ProviderName, err)
	}

	entities := make([]models.EntityReference, 0, len(apiResponse.Entities))
	for _, e := range apiResponse.Entities {
		if e.Name == "" {
			continue
		}
		entities = append(entities, models.EntityReference{
			Name:            e.Name,
			Type:            e.Type,
			Confidence:      e.Salience,
			SourceProviders: []string{ProviderName},
		})
	}

	a.logger.Debug("text analysis completed", map[string]interface{}{
		"entityCount": len(entities),
		"sentiment":   apiResponse.DocumentSentiment.Score,
	})

	if capability == providers.CapabilityEntityLookup {
		return &providers.Response{Entities: entities}, nil
	}

	return &providers.Response{
		Entities: entities,
		Analysis: &models.TextAnalysis{
			Entities:       entities,
			SentimentScore: apiResponse.DocumentSentiment.Score,
		},
	}, nil
}
