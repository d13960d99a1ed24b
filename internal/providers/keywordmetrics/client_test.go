// internal/providers/keywordmetrics/client_test.go

package keywordmetrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"blueprint-engine/internal/common/config"
	apperrors "blueprint-engine/internal/common/errors"
	"blueprint-engine/internal/common/logger"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) (*Client, redismock.ClientMock) {
	t.Helper()
	rdb, mock := redismock.NewClientMock()
	cfg := config.ProviderConfig{
		Enabled: true,
		BaseURL: baseURL,
		APIKey:  "test-key",
		Timeout: 2000,
	}
	return New(cfg, rdb, logger.NewTestLogger(t)), mock
}

func TestGetMetrics_ServesFromCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("cached keyword must not reach the upstream endpoint")
	}))
	defer server.Close()

	c, mock := newTestClient(t, server.URL)
	mock.ExpectGet("keyword:metrics:page speed").
		SetVal(`{"searchVolume":5400,"competitionIndex":62.5}`)

	m, err := c.GetMetrics(context.Background(), "page speed")
	require.NoError(t, err)
	assert.Equal(t, 5400, m.SearchVolume)
	assert.InDelta(t, 62.5, m.CompetitionIndex, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMetrics_FetchesAndCachesOnMiss(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "page speed", r.URL.Query().Get("keyword"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"search_volume":5400,"competition_index":62.5}`))
	}))
	defer server.Close()

	c, mock := newTestClient(t, server.URL)
	mock.ExpectGet("keyword:metrics:page speed").RedisNil()
	mock.Regexp().ExpectSet("keyword:metrics:page speed", `.*5400.*`, 6*time.Hour).SetVal("OK")

	m, err := c.GetMetrics(context.Background(), "page speed")
	require.NoError(t, err)
	assert.Equal(t, 5400, m.SearchVolume)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMetrics_QuotaExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c, mock := newTestClient(t, server.URL)
	mock.ExpectGet("keyword:metrics:busy").RedisNil()

	_, err := c.GetMetrics(context.Background(), "busy")
	require.Error(t, err)
	assert.Equal(t, apperrors.ClassQuotaExceeded, apperrors.ProviderErrorClassOf(err))
}

func TestGetMetrics_OutOfRangeCompetitionIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"search_volume":10,"competition_index":250}`))
	}))
	defer server.Close()

	c, mock := newTestClient(t, server.URL)
	mock.ExpectGet("keyword:metrics:weird").RedisNil()

	_, err := c.GetMetrics(context.Background(), "weird")
	require.Error(t, err)
	assert.Equal(t, apperrors.ClassMalformed, apperrors.ProviderErrorClassOf(err))
}

func TestGetMetrics_NilRedisStillFetches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"search_volume":900,"competition_index":12}`))
	}))
	defer server.Close()

	c := New(config.ProviderConfig{BaseURL: server.URL, APIKey: "k"}, nil, logger.NewTestLogger(t))
	m, err := c.GetMetrics(context.Background(), "no cache layer")
	require.NoError(t, err)
	assert.Equal(t, 900, m.SearchVolume)
}
