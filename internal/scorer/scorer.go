// internal/scorer/scorer.go

// Package scorer turns raw keyword metrics and merged SERP/entity signals
// into an explainable difficulty/opportunity score.
package scorer

import (
	"context"
	"strings"

	"blueprint-engine/internal/common/config"
	"blueprint-engine/internal/common/logger"
	"blueprint-engine/internal/models"
)

// neutralCompetition stands in for the competition index when the metrics
// source is unavailable, so one degraded dependency does not zero the score.
const neutralCompetition = 50.0

// MetricsSource supplies search volume and competition data for a keyword.
type MetricsSource interface {
	GetMetrics(ctx context.Context, keyword string) (*models.KeywordMetrics, error)
}

// Inputs carries everything the scoring heuristic consumes. All fields except
// OwnContent are produced by the upstream analyzers.
type Inputs struct {
	Keyword        string
	Profiles       []models.CompetitorProfile
	Features       []models.SerpFeatureSignal
	MergedEntities []models.EntityReference
	// OwnContent is the caller's existing page text, used to compute the
	// entity gap. Empty means the caller has no content yet, so every
	// competitor entity counts as a gap.
	OwnContent string
}

type Scorer struct {
	metrics MetricsSource
	weights config.ScoringConfig
	logger  logger.Logger
}

func New(metrics MetricsSource, weights config.ScoringConfig, log logger.Logger) *Scorer {
	return &Scorer{
		metrics: metrics,
		weights: weights,
		logger:  log.WithFields(map[string]interface{}{"component": "scorer"}),
	}
}

// Execute computes a fresh KeywordScore. Every weighted term lands in
// SupportingFactors so the final numbers can be audited. Both outputs are
// clamped to [0, 100] independently.
func (s *Scorer) Execute(ctx context.Context, in Inputs) models.KeywordScore {
	factors := make(map[string]float64)

	competition := neutralCompetition
	if s.metrics != nil {
		m, err := s.metrics.GetMetrics(ctx, in.Keyword)
		if err != nil {
			s.logger.Warn("keyword metrics unavailable, using neutral competition", map[string]interface{}{
				"keyword": in.Keyword,
				"error":   err.Error(),
			})
			factors["metricsDegraded"] = 1
		} else {
			competition = m.CompetitionIndex
			factors["searchVolume"] = float64(m.SearchVolume)
		}
	} else {
		factors["metricsDegraded"] = 1
	}

	heldCount := 0.0
	opportunityCount := 0.0
	for _, f := range in.Features {
		switch f.Presence {
		case models.FeatureHeld:
			heldCount++
		case models.FeatureOpportunity:
			opportunityCount++
		}
	}

	competitionTerm := competition * s.weights.CompetitionWeight
	heldTerm := heldCount * s.weights.HeldFeaturePenalty
	wordCountTerm := wordCountPercentile(in.Profiles) * s.weights.WordCountWeight
	factors["competitionTerm"] = competitionTerm
	factors["heldFeatureTerm"] = heldTerm
	factors["wordCountTerm"] = wordCountTerm

	difficulty := clamp(competitionTerm + heldTerm + wordCountTerm)

	inverseTerm := (100 - difficulty) * s.weights.InverseWeight
	featureTerm := opportunityCount * s.weights.OpportunityBonus
	gapTerm := entityGapScore(in.MergedEntities, in.OwnContent) * s.weights.EntityGapWeight
	factors["inverseDifficultyTerm"] = inverseTerm
	factors["opportunityFeatureTerm"] = featureTerm
	factors["entityGapTerm"] = gapTerm

	opportunity := clamp(inverseTerm + featureTerm + gapTerm)

	return models.KeywordScore{
		Keyword:           in.Keyword,
		Difficulty:        difficulty,
		Opportunity:       opportunity,
		SupportingFactors: factors,
	}
}

// wordCountPercentile maps the average competitor word count onto a 0-100
// scale, saturating at 3000 words. A crowded field of long-form pages pushes
// difficulty up.
func wordCountPercentile(profiles []models.CompetitorProfile) float64 {
	if len(profiles) == 0 {
		return 0
	}
	total := 0
	for _, p := range profiles {
		total += p.WordCount
	}
	avg := float64(total) / float64(len(profiles))
	return clamp(avg / 30)
}

// entityGapScore is the fraction of competitor entities absent from the
// caller's own content, scaled 0-100. With no own content every entity is a
// gap.
func entityGapScore(entities []models.EntityReference, ownContent string) float64 {
	if len(entities) == 0 {
		return 0
	}
	own := strings.ToLower(ownContent)
	missing := 0
	for _, e := range entities {
		if own == "" || !strings.Contains(own, strings.ToLower(e.Name)) {
			missing++
		}
	}
	return float64(missing) / float64(len(entities)) * 100
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
