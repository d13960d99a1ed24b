// internal/synthesizer/synthesizer.go

// Package synthesizer orchestrates a blueprint build: it fans analyzer work
// out, merges the signals, scores the keyword, and assembles the immutable
// Blueprint record with full provenance.
package synthesizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	contentanalyzer "blueprint-engine/internal/analyzer/content"
	serpanalyzer "blueprint-engine/internal/analyzer/serp"
	"blueprint-engine/internal/common/config"
	apperrors "blueprint-engine/internal/common/errors"
	"blueprint-engine/internal/common/logger"
	"blueprint-engine/internal/common/metrics"
	"blueprint-engine/internal/common/observability"
	"blueprint-engine/internal/models"
	"blueprint-engine/internal/providers"
	"blueprint-engine/internal/router"
	"blueprint-engine/internal/scorer"

	"github.com/google/uuid"
)

type Synthesizer struct {
	router   *router.Router
	serp     *serpanalyzer.Analyzer
	content  *contentanalyzer.Analyzer
	scorer   *scorer.Scorer
	pipeline config.PipelineConfig
	scoring  config.ScoringConfig
	obs      *observability.Observability
	logger   logger.Logger
}

func New(
	r *router.Router,
	serp *serpanalyzer.Analyzer,
	content *contentanalyzer.Analyzer,
	sc *scorer.Scorer,
	pipeline config.PipelineConfig,
	scoring config.ScoringConfig,
	obs *observability.Observability,
	log logger.Logger,
) *Synthesizer {
	return &Synthesizer{
		router:   r,
		serp:     serp,
		content:  content,
		scorer:   sc,
		pipeline: pipeline,
		scoring:  scoring,
		obs:      obs,
		logger:   log.WithFields(map[string]interface{}{"component": "synthesizer"}),
	}
}

type serpOutcome struct {
	result *serpanalyzer.Result
	err    error
}

type contentOutcome struct {
	analysis *contentanalyzer.Analysis
	err      error
}

// Build runs the full pipeline for one keyword. It returns an error only when
// the SEARCH capability is entirely unavailable; every other degradation
// (missing providers, per-subsystem timeouts) yields a DEGRADED_COMPLETE
// blueprint with provenance describing what fell back.
func (s *Synthesizer) Build(ctx context.Context, keyword string, opts models.BuildOptions) (*models.Blueprint, error) {
	start := time.Now()
	buildCtx, cancel := context.WithTimeout(ctx, s.pipeline.GetBuildTimeout())
	defer cancel()

	run := s.router.NewRun()
	log := s.logger.WithFields(map[string]interface{}{"keyword": keyword})
	log.Info("build started", map[string]interface{}{"state": string(models.BuildStateFetching)})

	resultCount := opts.ResultCount
	if resultCount <= 0 {
		resultCount = s.pipeline.ResultCount
	}

	// Both analyzer passes run concurrently. The channels are buffered so a
	// result arriving after the deadline is dropped on the floor instead of
	// blocking its goroutine or mutating an already-assembled blueprint.
	serpCh := make(chan serpOutcome, 1)
	contentCh := make(chan contentOutcome, 1)

	go func() {
		res, err := s.serp.Execute(buildCtx, run, keyword, resultCount)
		serpCh <- serpOutcome{result: res, err: err}
	}()
	go func() {
		an, err := s.content.Execute(buildCtx, run, keyword)
		contentCh <- contentOutcome{analysis: an, err: err}
	}()

	var serpRes *serpanalyzer.Result
	var serpErr error
	var keywordAnalysis *contentanalyzer.Analysis
	serpTimedOut, contentTimedOut := true, true

	for pending := 2; pending > 0; {
		select {
		case o := <-serpCh:
			serpRes, serpErr = o.result, o.err
			serpTimedOut = false
			pending--
		case o := <-contentCh:
			keywordAnalysis = o.analysis
			contentTimedOut = false
			pending--
		case <-buildCtx.Done():
			pending = 0
		}
	}

	if serpErr != nil && apperrors.IsNoProviderAvailable(serpErr) {
		log.WithError(serpErr).Error("build failed, search capability exhausted", nil)
		s.observe(models.BuildStateFailed, start)
		return nil, serpErr
	}

	provenance := make(map[string]string)
	degraded := false

	profiles := []models.CompetitorProfile{}
	features := []models.SerpFeatureSignal{}
	switch {
	case serpTimedOut:
		provenance["search"] = "timeout"
		degraded = true
	case serpErr != nil:
		provenance["search"] = "error:" + serpErr.Error()
		degraded = true
	default:
		profiles = serpRes.Profiles
		features = serpRes.Features
		provenance["search"] = serpRes.SearchProvider
		if serpRes.EntityLookupDegraded {
			provenance["entity_lookup"] = "degraded:no_provider"
			degraded = true
		} else if serpRes.EntityProvider != "" {
			provenance["entity_lookup"] = serpRes.EntityProvider
		}
	}

	keywordEntities := []models.EntityReference{}
	switch {
	case contentTimedOut:
		provenance["text_analysis"] = "timeout"
		degraded = true
	case keywordAnalysis == nil || keywordAnalysis.StructuralOnly:
		provenance["text_analysis"] = "degraded:structural_only"
		degraded = true
	default:
		keywordEntities = keywordAnalysis.Entities
		provenance["text_analysis"] = keywordAnalysis.ProviderUsed
	}

	log.Info("fetch completed", map[string]interface{}{
		"state":        string(models.BuildStateMerging),
		"profileCount": len(profiles),
	})

	entitySources := make([][]models.EntityReference, 0, len(profiles)+1)
	for _, p := range profiles {
		entitySources = append(entitySources, p.DetectedEntities)
	}
	entitySources = append(entitySources, keywordEntities)
	merged := mergeEntities(entitySources...)

	clusters, recommendations := clusterHeadings(profiles, merged, s.scoring.HighConfidenceEntity, s.scoring.TokenOverlap)

	log.Info("merge completed", map[string]interface{}{
		"state":        string(models.BuildStateScoring),
		"entityCount":  len(merged),
		"clusterCount": len(clusters),
	})

	score := s.scorer.Execute(buildCtx, scorer.Inputs{
		Keyword:        keyword,
		Profiles:       profiles,
		Features:       features,
		MergedEntities: merged,
		OwnContent:     opts.OwnContent,
	})
	if _, ok := score.SupportingFactors["metricsDegraded"]; ok {
		provenance["metrics"] = "degraded:neutral_default"
		degraded = true
	} else {
		provenance["metrics"] = "keyword_metrics"
	}

	summary := s.generateSummary(buildCtx, run, keyword, score, clusters, provenance)

	var ownReadiness *float64
	if opts.OwnContent != "" {
		st := contentanalyzer.ParseStructure(opts.OwnContent)
		v := contentanalyzer.ReadinessScore(st, entitiesPresent(merged, st.Text))
		ownReadiness = &v
	}

	state := models.BuildStateComplete
	if degraded {
		state = models.BuildStateDegradedComplete
	}

	bp := &models.Blueprint{
		ID:                     uuid.NewString(),
		Keyword:                keyword,
		State:                  state,
		CreatedAt:              time.Now().UTC(),
		CompetitorProfiles:     profiles,
		SerpFeatures:           features,
		KeywordScore:           score,
		TopicClusters:          clusters,
		HeadingRecommendations: recommendations,
		Summary:                summary,
		OwnContentReadiness:    ownReadiness,
		DataProvenance:         provenance,
	}

	s.observe(state, start)
	log.Info("build completed", map[string]interface{}{
		"state":      string(state),
		"durationMs": time.Since(start).Milliseconds(),
	})

	return bp, nil
}

// generateSummary asks a text-generation provider for short recommendation
// prose derived from the already-computed scores. The generated text is
// presentation only; its absence never degrades the build.
func (s *Synthesizer) generateSummary(ctx context.Context, run *router.Run, keyword string, score models.KeywordScore, clusters [][]string, provenance map[string]string) string {
	topics := make([]string, 0, len(clusters))
	for _, c := range clusters {
		topics = append(topics, c[0])
		if len(topics) == 5 {
			break
		}
	}

	prompt := fmt.Sprintf(
		"Write two sentences of content strategy advice for the keyword %q. "+
			"Difficulty is %.0f/100 and opportunity is %.0f/100. "+
			"Key topics to cover: %s. Do not mention the numeric scores directly.",
		keyword, score.Difficulty, score.Opportunity, strings.Join(topics, ", "),
	)

	resp, provider, err := run.Execute(ctx, providers.CapabilityTextGeneration, &providers.Request{Prompt: prompt})
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		provenance["text_generation"] = "unavailable"
		return ""
	}
	provenance["text_generation"] = provider
	return strings.TrimSpace(resp.Text)
}

func (s *Synthesizer) observe(state models.BuildState, start time.Time) {
	elapsed := time.Since(start)
	metrics.BuildsCompleted.WithLabelValues(string(state)).Inc()
	metrics.BuildDuration.WithLabelValues(string(state)).Observe(elapsed.Seconds())
	if s.obs != nil {
		ctx := context.Background()
		s.obs.RecordBuild(ctx, string(state))
		s.obs.RecordBuildDuration(ctx, elapsed, string(state))
	}
}
