// internal/analyzer/serp/analyzer_test.go

package serp

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
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
	name         string
	capabilities []providers.Capability
	invoke       func(ctx context.Context, capability providers.Capability, req *providers.Request) (*providers.Response, error)
}

func (f *fakeAdapter) Name() string                         { return f.name }
func (f *fakeAdapter) Capabilities() []providers.Capability { return f.capabilities }
func (f *fakeAdapter) Health() providers.Health             { return providers.Healthy }
func (f *fakeAdapter) Invoke(ctx context.Context, capability providers.Capability, req *providers.Request) (*providers.Response, error) {
	return f.invoke(ctx, capability, req)
}

// slowFetcher returns canned page bodies with a random per-call delay so that
// fetches complete out of order.
type slowFetcher struct {
	pages map[string]string
}

func (f *slowFetcher) Fetch(ctx context.Context, url string) (string, error) {
	time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
	body, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("fetch %s: connection refused", url)
	}
	return body, nil
}

func searchItems(n int) []models.SearchResultItem {
	items := make([]models.SearchResultItem, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, models.SearchResultItem{
			URL:            fmt.Sprintf("https://example.com/page-%d", i),
			Title:          fmt.Sprintf("Result %d", i),
			Snippet:        fmt.Sprintf("snippet for result %d", i),
			Rank:           i,
			SourceProvider: "google_search",
		})
	}
	return items
}

func newTestRouter(t *testing.T, adapters ...*fakeAdapter) *router.Router {
	t.Helper()
	r := router.New(logger.NewTestLogger(t), router.WithRetry(time.Millisecond, 2))
	for i, a := range adapters {
		r.Register(a, i+1)
	}
	return r
}

func pageBody(words int, headings ...string) string {
	var b strings.Builder
	for _, h := range headings {
		b.WriteString("<h2>" + h + "</h2>")
	}
	b.WriteString("<p>")
	for i := 0; i < words; i++ {
		b.WriteString("word ")
	}
	b.WriteString("</p>")
	return b.String()
}

func TestExecute_PreservesRankOrder(t *testing.T) {
	items := searchItems(8)
	pages := make(map[string]string, len(items))
	for _, item := range items {
		pages[item.URL] = pageBody(100+item.Rank, "Overview")
	}

	search := &fakeAdapter{
		name:         "search",
		capabilities: []providers.Capability{providers.CapabilitySearch},
		invoke: func(ctx context.Context, _ providers.Capability, _ *providers.Request) (*providers.Response, error) {
			return &providers.Response{Items: items}, nil
		},
	}
	entities := &fakeAdapter{
		name:         "entities",
		capabilities: []providers.Capability{providers.CapabilityEntityLookup},
		invoke: func(ctx context.Context, _ providers.Capability, _ *providers.Request) (*providers.Response, error) {
			return &providers.Response{Entities: []models.EntityReference{}}, nil
		},
	}

	a := New(&slowFetcher{pages: pages}, 4, logger.NewTestLogger(t))
	run := newTestRouter(t, search, entities).NewRun()

	result, err := a.Execute(context.Background(), run, "test keyword", 8)
	require.NoError(t, err)
	require.Len(t, result.Profiles, 8)

	for i, p := range result.Profiles {
		assert.Equal(t, i+1, p.Rank, "profiles must stay in search rank order")
		assert.Equal(t, items[i].URL, p.URL)
	}
	assert.Equal(t, "search", result.SearchProvider)
	assert.False(t, result.EntityLookupDegraded)
}

func TestExecute_SearchUnavailableSurfaces(t *testing.T) {
	a := New(&slowFetcher{}, 2, logger.NewTestLogger(t))
	run := newTestRouter(t).NewRun()

	result, err := a.Execute(context.Background(), run, "test keyword", 5)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apperrors.IsNoProviderAvailable(err))
}

func TestExecute_FetchFailureYieldsBareProfile(t *testing.T) {
	items := searchItems(3)
	pages := map[string]string{
		items[0].URL: pageBody(500, "Intro", "Details"),
		items[2].URL: pageBody(450, "Intro"),
		// items[1].URL intentionally missing: fetch fails
	}

	search := &fakeAdapter{
		name:         "search",
		capabilities: []providers.Capability{providers.CapabilitySearch},
		invoke: func(ctx context.Context, _ providers.Capability, _ *providers.Request) (*providers.Response, error) {
			return &providers.Response{Items: items}, nil
		},
	}

	a := New(&slowFetcher{pages: pages}, 3, logger.NewTestLogger(t))
	run := newTestRouter(t, search).NewRun()

	result, err := a.Execute(context.Background(), run, "test keyword", 3)
	require.NoError(t, err)
	require.Len(t, result.Profiles, 3)

	assert.Equal(t, 2, result.Profiles[1].Rank)
	assert.Zero(t, result.Profiles[1].WordCount)
	assert.Empty(t, result.Profiles[1].HeadingStructure)
	// entity lookup never had a provider registered
	assert.True(t, result.EntityLookupDegraded)
}

func TestExecute_ScoresPageReadiness(t *testing.T) {
	items := searchItems(2)
	pages := map[string]string{
		items[0].URL: pageBody(800, "What is page speed?", "Measuring", "Improving"),
		// items[1].URL missing: fetch fails, nothing to score
	}

	search := &fakeAdapter{
		name:         "search",
		capabilities: []providers.Capability{providers.CapabilitySearch},
		invoke: func(ctx context.Context, _ providers.Capability, _ *providers.Request) (*providers.Response, error) {
			return &providers.Response{Items: items}, nil
		},
	}

	a := New(&slowFetcher{pages: pages}, 2, logger.NewTestLogger(t))
	run := newTestRouter(t, search).NewRun()

	result, err := a.Execute(context.Background(), run, "test keyword", 2)
	require.NoError(t, err)
	require.Len(t, result.Profiles, 2)

	assert.Greater(t, result.Profiles[0].AIReadiness, 0.0)
	assert.LessOrEqual(t, result.Profiles[0].AIReadiness, 100.0)
	assert.Zero(t, result.Profiles[1].AIReadiness, "unfetched pages carry no readiness signal")
}

func TestExecute_EntityLookupDegradation(t *testing.T) {
	items := searchItems(2)
	pages := map[string]string{
		items[0].URL: pageBody(300, "Guide"),
		items[1].URL: pageBody(280, "Guide"),
	}
	search := &fakeAdapter{
		name:         "search",
		capabilities: []providers.Capability{providers.CapabilitySearch},
		invoke: func(ctx context.Context, _ providers.Capability, _ *providers.Request) (*providers.Response, error) {
			return &providers.Response{Items: items}, nil
		},
	}

	a := New(&slowFetcher{pages: pages}, 2, logger.NewTestLogger(t))
	run := newTestRouter(t, search).NewRun()

	result, err := a.Execute(context.Background(), run, "test keyword", 2)
	require.NoError(t, err)
	assert.True(t, result.EntityLookupDegraded)
	for _, p := range result.Profiles {
		assert.Empty(t, p.DetectedEntities)
	}
}

func TestAnnotateStrengths(t *testing.T) {
	profiles := []models.CompetitorProfile{
		{Rank: 1, WordCount: 2000, HeadingStructure: make([]models.Heading, 8), Strengths: []string{}, Weaknesses: []string{}},
		{Rank: 2, WordCount: 1000, HeadingStructure: make([]models.Heading, 4), Strengths: []string{}, Weaknesses: []string{}},
		{Rank: 3, WordCount: 300, HeadingStructure: make([]models.Heading, 2), Strengths: []string{}, Weaknesses: []string{}},
	}

	annotateStrengths(profiles)

	assert.Contains(t, profiles[0].Strengths, "comprehensive")
	assert.Contains(t, profiles[2].Weaknesses, "thin content")
	assert.Empty(t, profiles[1].Strengths)
	assert.Empty(t, profiles[1].Weaknesses)
}

func TestDetectFeatures_HeldVersusOpportunity(t *testing.T) {
	items := []models.SearchResultItem{
		{URL: "https://held.example.com", Title: "Page speed optimization is the practice of improving load times.", Snippet: "How fast should a page load? Most guides recommend under two seconds.", Rank: 1},
		{URL: "https://plain.example.com", Title: "Result 2", Snippet: "plain snippet", Rank: 2},
	}
	pages := []pageSignals{
		{fetched: true},
		{fetched: true, questionCount: 4},
	}

	signals := detectFeatures(items, pages)
	byName := make(map[string]models.SerpFeatureSignal, len(signals))
	for _, s := range signals {
		byName[s.FeatureName] = s
	}

	require.Len(t, signals, len(featureNames))

	held := byName["featured_snippet"]
	assert.Equal(t, models.FeatureHeld, held.Presence)
	assert.Equal(t, "https://held.example.com", held.HolderURL)
	assert.InDelta(t, 0.1, held.OpportunityScore, 1e-9)

	paa := byName["people_also_ask"]
	assert.Equal(t, models.FeatureHeld, paa.Presence, "question in snippet marks the feature held")

	assert.Equal(t, models.FeatureNone, byName["local_pack"].Presence)
	assert.Zero(t, byName["local_pack"].OpportunityScore)
}

func TestDetectFeatures_OpportunityScoreDecaysWithRank(t *testing.T) {
	items := searchItems(10)
	pages := make([]pageSignals, len(items))
	pages[3] = pageSignals{fetched: true, hasQAPattern: true}

	signals := detectFeatures(items, pages)
	for _, s := range signals {
		if s.FeatureName != "featured_snippet" {
			continue
		}
		assert.Equal(t, models.FeatureOpportunity, s.Presence)
		assert.InDelta(t, 0.6, s.OpportunityScore, 1e-9, "rank index 3 decays 0.9 by 0.3")
		return
	}
	t.Fatal("featured_snippet signal missing")
}

func TestOpportunityScoreFloor(t *testing.T) {
	assert.InDelta(t, 0.9, opportunityScore(0), 1e-9)
	assert.InDelta(t, 0.1, opportunityScore(8), 1e-9)
	assert.InDelta(t, 0.1, opportunityScore(30), 1e-9)
}
