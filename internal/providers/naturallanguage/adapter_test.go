// internal/providers/naturallanguage/adapter_test.go

package naturallanguage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"blueprint-engine/internal/common/config"
	"blueprint-engine/internal/common/logger"
	"blueprint-engine/internal/providers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const annotatePath = "/v1/documents:annotateText"

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := config.ProviderConfig{
		Enabled: true,
		BaseURL: server.URL + annotatePath,
		APIKey:  "test-key",
		Timeout: 2000,
	}
	return New(cfg, logger.NewTestLogger(t))
}

func TestInvoke_CallsConfiguredEndpointExactly(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, annotatePath, r.URL.Path, "configured base URL is the full endpoint, nothing appended")
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Write([]byte(`{
			"entities":[{"name":"Core Web Vitals","type":"OTHER","salience":0.8}],
			"documentSentiment":{"score":0.2}
		}`))
	})

	resp, err := a.Invoke(context.Background(), providers.CapabilityTextAnalysis, &providers.Request{Text: "page speed"})
	require.NoError(t, err)
	require.NotNil(t, resp.Analysis)
	require.Len(t, resp.Analysis.Entities, 1)
	assert.Equal(t, "Core Web Vitals", resp.Analysis.Entities[0].Name)
	assert.Equal(t, []string{ProviderName}, resp.Analysis.Entities[0].SourceProviders)
	assert.InDelta(t, 0.2, resp.Analysis.SentimentScore, 1e-9)
}

func TestInvoke_EntityLookupOmitsAnalysis(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"entities":[{"name":"LCP","type":"OTHER","salience":0.5}],"documentSentiment":{"score":0}}`))
	})

	resp, err := a.Invoke(context.Background(), providers.CapabilityEntityLookup, &providers.Request{Text: "largest contentful paint"})
	require.NoError(t, err)
	assert.Nil(t, resp.Analysis)
	require.Len(t, resp.Entities, 1)
	assert.Equal(t, "LCP", resp.Entities[0].Name)
}

func TestInvoke_SkipsNamelessEntities(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"entities":[{"name":"","type":"OTHER","salience":0.9}],"documentSentiment":{"score":0}}`))
	})

	resp, err := a.Invoke(context.Background(), providers.CapabilityTextAnalysis, &providers.Request{Text: "text"})
	require.NoError(t, err)
	assert.Empty(t, resp.Analysis.Entities)
}

func TestInvoke_RejectsOtherCapabilities(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unsupported capability must not reach the endpoint")
	})

	_, err := a.Invoke(context.Background(), providers.CapabilityTextGeneration, &providers.Request{Prompt: "p"})
	assert.Error(t, err)
}
