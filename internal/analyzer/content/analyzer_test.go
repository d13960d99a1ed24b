// internal/analyzer/content/analyzer_test.go

package content

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "blueprint-engine/internal/common/errors"
	"blueprint-engine/internal/common/logger"
	"blueprint-engine/internal/models"
	"blueprint-engine/internal/providers"
	"blueprint-engine/internal/router"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	name   string
	invoke func(ctx context.Context, capability providers.Capability, req *providers.Request) (*providers.Response, error)
}

func (f *fakeAdapter) Name() string             { return f.name }
func (f *fakeAdapter) Health() providers.Health { return providers.Healthy }
func (f *fakeAdapter) Capabilities() []providers.Capability {
	return []providers.Capability{providers.CapabilityTextAnalysis}
}
func (f *fakeAdapter) Invoke(ctx context.Context, capability providers.Capability, req *providers.Request) (*providers.Response, error) {
	return f.invoke(ctx, capability, req)
}

func newRun(t *testing.T, adapters ...*fakeAdapter) *router.Run {
	t.Helper()
	r := router.New(logger.NewTestLogger(t), router.WithRetry(time.Millisecond, 2))
	for _, a := range adapters {
		r.Register(a, 1)
	}
	return r.NewRun()
}

const articleHTML = `
<h1>Website Speed Optimization</h1>
<h2>Why does page speed matter?</h2>
<p>Page speed is one of the strongest ranking signals available today.</p>
<p>The answer is that slow pages lose visitors before the content renders.</p>
<h2>Measuring load time</h2>
<ul><li>First Contentful Paint</li><li>Largest Contentful Paint</li></ul>
`

func TestExecute_UsesTextAnalysisProvider(t *testing.T) {
	nl := &fakeAdapter{
		name: "natural_language",
		invoke: func(ctx context.Context, capability providers.Capability, req *providers.Request) (*providers.Response, error) {
			assert.Equal(t, providers.CapabilityTextAnalysis, capability)
			assert.NotContains(t, req.Text, "<h2>", "provider receives cleaned text, not raw HTML")
			return &providers.Response{Analysis: &models.TextAnalysis{
				Entities: []models.EntityReference{
					{Name: "Largest Contentful Paint", Type: "OTHER", Confidence: 0.82},
				},
				SentimentScore: 0.3,
			}}, nil
		},
	}

	a := New(logger.NewTestLogger(t))
	analysis, err := a.Execute(context.Background(), newRun(t, nl), articleHTML)
	require.NoError(t, err)
	assert.False(t, analysis.StructuralOnly)
	assert.Equal(t, "natural_language", analysis.ProviderUsed)
	require.Len(t, analysis.Entities, 1)
	assert.InDelta(t, 0.3, analysis.Sentiment, 1e-9)
	assert.Greater(t, analysis.ReadinessScore, 0.0)
}

func TestExecute_StructuralFallbackWhenNoProvider(t *testing.T) {
	a := New(logger.NewTestLogger(t))
	analysis, err := a.Execute(context.Background(), newRun(t), articleHTML)
	require.NoError(t, err, "missing analysis capability degrades, it does not fail")
	assert.True(t, analysis.StructuralOnly)
	assert.Empty(t, analysis.Entities)
	assert.Empty(t, analysis.ProviderUsed)
	// structural features survive the fallback
	assert.Len(t, analysis.Structure.Headings, 3)
	assert.Equal(t, 2, analysis.Structure.ListCount)
	assert.Greater(t, analysis.ReadinessScore, 0.0)
}

func TestExecute_StructuralFallbackWhenProviderExhausted(t *testing.T) {
	broken := &fakeAdapter{
		name: "natural_language",
		invoke: func(ctx context.Context, capability providers.Capability, req *providers.Request) (*providers.Response, error) {
			return nil, apperrors.NewQuotaExceededError("natural_language", errors.New("status 429"))
		},
	}

	a := New(logger.NewTestLogger(t))
	analysis, err := a.Execute(context.Background(), newRun(t, broken), articleHTML)
	require.NoError(t, err)
	assert.True(t, analysis.StructuralOnly)
	assert.Empty(t, analysis.Entities)
}

func TestExecute_EmptyProviderResponseIsNotDegraded(t *testing.T) {
	empty := &fakeAdapter{
		name: "natural_language",
		invoke: func(ctx context.Context, capability providers.Capability, req *providers.Request) (*providers.Response, error) {
			return &providers.Response{}, nil
		},
	}

	a := New(logger.NewTestLogger(t))
	analysis, err := a.Execute(context.Background(), newRun(t, empty), articleHTML)
	require.NoError(t, err)
	assert.False(t, analysis.StructuralOnly, "an empty result is an answer, not a degradation")
	assert.Equal(t, "natural_language", analysis.ProviderUsed)
	assert.Empty(t, analysis.Entities)
}

func TestReadinessScore_RewardsAnswersAndStructure(t *testing.T) {
	bare := ReadinessScore(ParseStructure("just a handful of plain words"), 0)
	structured := ReadinessScore(ParseStructure(articleHTML), 2)

	assert.Less(t, bare, structured)
	assert.GreaterOrEqual(t, bare, 0.0)
	assert.LessOrEqual(t, structured, 100.0)
}

func TestReadinessScore_Bounded(t *testing.T) {
	var b []byte
	for i := 0; i < 12; i++ {
		b = append(b, []byte("<h2>Section heading</h2><p>The answer is right here in a direct sentence.</p>")...)
	}
	score := ReadinessScore(ParseStructure(string(b)), 500)
	assert.LessOrEqual(t, score, 100.0)
	assert.GreaterOrEqual(t, score, 0.0)
}
