// internal/analyzer/serp/analyzer.go

// Package serp derives per-competitor content signals and SERP-feature
// presence for a keyword from ranked search results.
package serp

import (
	"context"
	"sort"
	"sync"

	"blueprint-engine/internal/analyzer/content"
	apperrors "blueprint-engine/internal/common/errors"
	"blueprint-engine/internal/common/logger"
	"blueprint-engine/internal/fetcher"
	"blueprint-engine/internal/models"
	"blueprint-engine/internal/providers"
	"blueprint-engine/internal/router"

	"golang.org/x/sync/errgroup"
)

const DefaultResultCount = 10

// Result is the analyzer output for one keyword.
type Result struct {
	Profiles       []models.CompetitorProfile
	Features       []models.SerpFeatureSignal
	SearchProvider string
	EntityProvider string
	// EntityLookupDegraded is set when per-page entity enrichment had no
	// available provider; profiles then carry empty entity lists.
	EntityLookupDegraded bool
}

type Analyzer struct {
	fetcher     fetcher.Fetcher
	concurrency int
	logger      logger.Logger
}

func New(f fetcher.Fetcher, concurrency int, log logger.Logger) *Analyzer {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Analyzer{
		fetcher:     f,
		concurrency: concurrency,
		logger:      log.WithFields(map[string]interface{}{"component": "serp-analyzer"}),
	}
}

// Execute fetches ranked results for the keyword and builds one
// CompetitorProfile per result. Page fetch+enrich runs with bounded
// concurrency; output order is by original search rank, not completion order.
// The returned error is non-nil only when the search itself failed; callers
// distinguish capability exhaustion (fatal) from other failures.
func (a *Analyzer) Execute(ctx context.Context, run *router.Run, keyword string, count int) (*Result, error) {
	if count <= 0 {
		count = DefaultResultCount
	}

	resp, searchProvider, err := run.Execute(ctx, providers.CapabilitySearch, &providers.Request{
		Query: keyword,
		Count: count,
	})
	if err != nil {
		return nil, err
	}

	items := resp.Items
	result := &Result{SearchProvider: searchProvider}
	if len(items) == 0 {
		a.logger.Info("search returned no results", map[string]interface{}{"keyword": keyword})
		result.Profiles = []models.CompetitorProfile{}
		result.Features = []models.SerpFeatureSignal{}
		return result, nil
	}

	profiles := make([]models.CompetitorProfile, len(items))
	pages := make([]pageSignals, len(items))

	var mu sync.Mutex
	entityDegraded := false
	entityProvider := ""

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, item := range items {
		g.Go(func() error {
			profile, signals := a.buildProfile(gctx, run, item)

			mu.Lock()
			if signals.entityProvider != "" && entityProvider == "" {
				entityProvider = signals.entityProvider
			}
			if signals.entityDegraded {
				entityDegraded = true
			}
			mu.Unlock()

			// Slot by index: rank order survives out-of-order completion.
			profiles[i] = profile
			pages[i] = signals
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(profiles, func(x, y int) bool { return profiles[x].Rank < profiles[y].Rank })
	annotateStrengths(profiles)

	result.Profiles = profiles
	result.Features = detectFeatures(items, pages)
	result.EntityLookupDegraded = entityDegraded
	result.EntityProvider = entityProvider

	a.logger.Info("serp analysis completed", map[string]interface{}{
		"keyword":       keyword,
		"profileCount":  len(profiles),
		"searchProvider": searchProvider,
	})

	return result, nil
}

// buildProfile fetches and parses one competitor page, optionally enriching
// it with entity lookup. Fetch failures yield a bare profile rather than
// failing the run.
func (a *Analyzer) buildProfile(ctx context.Context, run *router.Run, item models.SearchResultItem) (models.CompetitorProfile, pageSignals) {
	profile := models.CompetitorProfile{
		URL:              item.URL,
		Rank:             item.Rank,
		Title:            item.Title,
		HeadingStructure: []models.Heading{},
		DetectedEntities: []models.EntityReference{},
		Strengths:        []string{},
		Weaknesses:       []string{},
	}
	signals := pageSignals{}

	raw, err := a.fetcher.Fetch(ctx, item.URL)
	if err != nil {
		a.logger.Warn("page fetch failed", map[string]interface{}{
			"url":   item.URL,
			"rank":  item.Rank,
			"error": err.Error(),
		})
		return profile, signals
	}

	st := content.ParseStructure(raw)
	profile.WordCount = st.WordCount
	profile.HeadingStructure = st.Headings
	signals = newPageSignals(st)

	resp, provider, err := run.Execute(ctx, providers.CapabilityEntityLookup, &providers.Request{Text: st.Text})
	switch {
	case err == nil:
		profile.DetectedEntities = resp.Entities
		if profile.DetectedEntities == nil {
			profile.DetectedEntities = []models.EntityReference{}
		}
		signals.entityProvider = provider
	case apperrors.IsNoProviderAvailable(err):
		signals.entityDegraded = true
	default:
		a.logger.Warn("entity enrichment failed", map[string]interface{}{
			"url":   item.URL,
			"error": err.Error(),
		})
	}

	profile.AIReadiness = content.ReadinessScore(st, len(profile.DetectedEntities))

	return profile, signals
}

// annotateStrengths compares each profile's structural metrics against the
// distribution across all profiles.
func annotateStrengths(profiles []models.CompetitorProfile) {
	if len(profiles) == 0 {
		return
	}

	wordCounts := make([]int, 0, len(profiles))
	headingCounts := make([]int, 0, len(profiles))
	for _, p := range profiles {
		wordCounts = append(wordCounts, p.WordCount)
		headingCounts = append(headingCounts, len(p.HeadingStructure))
	}
	medianWords := medianInt(wordCounts)
	medianHeadings := medianInt(headingCounts)

	for i := range profiles {
		p := &profiles[i]
		if medianWords > 0 && float64(p.WordCount) < 0.5*medianWords {
			p.Weaknesses = append(p.Weaknesses, "thin content")
		}
		if medianWords > 0 && float64(p.WordCount) > 1.5*medianWords && float64(len(p.HeadingStructure)) > medianHeadings {
			p.Strengths = append(p.Strengths, "comprehensive")
		}
		if len(p.HeadingStructure) == 0 && p.WordCount > 0 {
			p.Weaknesses = append(p.Weaknesses, "no heading structure")
		}
		if len(p.DetectedEntities) >= 5 {
			p.Strengths = append(p.Strengths, "entity rich")
		}
	}
}

func medianInt(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return float64(sorted[mid-1]+sorted[mid]) / 2
	}
	return float64(sorted[mid])
}
