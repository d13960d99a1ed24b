// internal/providers/gemini/adapter.go
package gemini

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
	"blueprint-engine/internal/providers"
)

const ProviderName = "gemini"

// Adapter wraps the Gemini generateContent endpoint as a TEXT_GENERATION
// provider. It produces recommendation prose from already-computed scores and
// is never the source of truth for the scores themselves.
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
	return []providers.Capability{providers.CapabilityTextGeneration}
}

func (a *Adapter) Invoke(ctx context.Context, capability providers.Capability, req *providers.Request) (*providers.Response, error) {
	if capability != providers.CapabilityTextGeneration {
		return nil, apperrors.NewMalformedError(ProviderName, fmt.Errorf("unsupported capability %s", capability))
	}
	if err := a.Wait(ctx); err != nil {
		return nil, err
	}

	requestBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": req.Prompt}}},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     0.3,
			"maxOutputTokens": 512,
		},
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
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, apperrors.NewMalformedError(ProviderName, err)
	}

	var text string
	if len(apiResponse.Candidates) > 0 && len(apiResponse.Candidates[0].Content.Parts) > 0 {
		text = apiResponse.Candidates[0].Content.Parts[0].Text
	}

	a.logger.Debug("generation completed", map[string]interface{}{
		"outputLength": len(text),
	})

	return &providers.Response{Text: text}, nil
}
