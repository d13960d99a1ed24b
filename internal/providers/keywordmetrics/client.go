// internal/providers/keywordmetrics/client.go
package keywordmetrics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"blueprint-engine/internal/common/config"
	apperrors "blueprint-engine/internal/common/errors"
	"blueprint-engine/internal/common/httpclient"
	"blueprint-engine/internal/common/logger"
	"blueprint-engine/internal/models"
	"blueprint-engine/internal/providers"

	"github.com/redis/go-redis/v9"
)

const ProviderName = "keyword_metrics"

const cacheTTL = 6 * time.Hour

// Client fetches raw keyword metrics (search volume, competition index) from
// the external metrics endpoint, with a Redis cache-aside in front of it.
type Client struct {
	providers.Base
	config config.ProviderConfig
	client *httpclient.Client
	redis  *redis.Client
	logger logger.Logger
}

func New(cfg config.ProviderConfig, rdb *redis.Client, log logger.Logger) *Client {
	return &Client{
		Base:   providers.NewBase(ProviderName, cfg),
		config: cfg,
		client: httpclient.NewClient(cfg.GetTimeout()),
		redis:  rdb,
		logger: log.WithFields(map[string]interface{}{"provider": ProviderName}),
	}
}

// GetMetrics returns metrics for a keyword, serving from cache when possible.
func (c *Client) GetMetrics(ctx context.Context, keyword string) (*models.KeywordMetrics, error) {
	cacheKey := "keyword:metrics:" + keyword
	if c.redis != nil {
		if val, err := c.redis.Get(ctx, cacheKey).Result(); err == nil {
			var cached models.KeywordMetrics
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return &cached, nil
			}
		}
	}

	metrics, err := c.fetch(ctx, keyword)
	if err != nil {
		return nil, err
	}

	if c.redis != nil {
		if data, err := json.Marshal(metrics); err == nil {
			c.redis.Set(ctx, cacheKey, string(data), cacheTTL)
		}
	}

	return metrics, nil
}

func (c *Client) fetch(ctx context.Context, keyword string) (*models.KeywordMetrics, error) {
	if err := c.Wait(ctx); err != nil {
		return nil, err
	}

	baseURL, _ := url.Parse(c.config.BaseURL)
	params := url.Values{}
	params.Add("keyword", keyword)
	params.Add("key", c.config.APIKey)
	baseURL.RawQuery = params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, "GET", baseURL.String(), nil)
	if err != nil {
		return nil, apperrors.NewTransientError(ProviderName, err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, c.ClassifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, c.ClassifyHTTPStatus(resp.StatusCode, string(body))
	}

	var apiResponse struct {
		SearchVolume     int     `json:"search_volume"`
		CompetitionIndex float64 `json:"competition_index"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, apperrors.NewMalformedError(ProviderName, err)
	}

	if apiResponse.CompetitionIndex < 0 || apiResponse.CompetitionIndex > 100 {
		return nil, apperrors.NewMalformedError(ProviderName,
			fmt.Errorf("competition index %f out of range", apiResponse.CompetitionIndex))
	}

	return &models.KeywordMetrics{
		SearchVolume:     apiResponse.SearchVolume,
		CompetitionIndex: apiResponse.CompetitionIndex,
	}, nil
}
