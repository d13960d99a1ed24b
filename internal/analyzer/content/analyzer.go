// internal/analyzer/content/analyzer.go

// Package content analyzes arbitrary text (page content or the query itself)
// for entities, structural features, and AI-summary readiness.
package content

import (
	"context"
	"math"

	apperrors "blueprint-engine/internal/common/errors"
	"blueprint-engine/internal/common/logger"
	"blueprint-engine/internal/models"
	"blueprint-engine/internal/providers"
	"blueprint-engine/internal/router"
)

// Readiness score weights: heading clarity, direct answers, entity density.
const (
	weightHeadingClarity = 0.4
	weightDirectAnswers  = 0.4
	weightEntityDensity  = 0.2
)

// Analysis is the combined semantic+structural result for one text.
type Analysis struct {
	Entities       []models.EntityReference
	Structure      Structure
	Sentiment      float64
	ReadinessScore float64 // 0 - 100
	// StructuralOnly marks the fallback taken when TEXT_ANALYSIS had no
	// available provider; the entity list is empty in that case.
	StructuralOnly bool
	ProviderUsed   string
}

type Analyzer struct {
	logger logger.Logger
}

func New(log logger.Logger) *Analyzer {
	return &Analyzer{
		logger: log.WithFields(map[string]interface{}{"component": "content-analyzer"}),
	}
}

// Execute analyzes text through the router's TEXT_ANALYSIS capability,
// degrading to a purely structural analysis when no provider is available.
// The degradation is recorded on the Analysis, never hidden.
func (a *Analyzer) Execute(ctx context.Context, run *router.Run, text string) (*Analysis, error) {
	st := ParseStructure(text)

	analysis := &Analysis{Structure: st}

	resp, provider, err := run.Execute(ctx, providers.CapabilityTextAnalysis, &providers.Request{Text: st.Text})
	switch {
	case err == nil && resp.Analysis != nil:
		analysis.Entities = resp.Analysis.Entities
		analysis.Sentiment = resp.Analysis.SentimentScore
		analysis.ProviderUsed = provider
	case err == nil:
		// Malformed upstream data was flattened to an empty response.
		analysis.ProviderUsed = provider
	case apperrors.IsNoProviderAvailable(err):
		analysis.StructuralOnly = true
		a.logger.Warn("text analysis unavailable, structural fallback", map[string]interface{}{
			"wordCount": st.WordCount,
		})
	default:
		analysis.StructuralOnly = true
		a.logger.Warn("text analysis failed, structural fallback", map[string]interface{}{
			"error": err.Error(),
		})
	}

	analysis.ReadinessScore = ReadinessScore(st, len(analysis.Entities))
	return analysis, nil
}

// ReadinessScore combines heading-structure clarity, direct-answer presence,
// and entity density into a 0-100 AI-summary-readiness score. The SERP
// analyzer applies it per competitor page and the synthesizer to the caller's
// own content.
func ReadinessScore(st Structure, entityCount int) float64 {
	clarity := headingClarity(st.Headings)

	answers := math.Min(1.0, float64(st.DirectAnswerCount)/3.0)

	density := 0.0
	if st.WordCount > 0 {
		perHundred := float64(entityCount) / float64(st.WordCount) * 100
		density = math.Min(1.0, perHundred/5.0) // 5 entities per 100 words saturates
	}

	score := (clarity*weightHeadingClarity + answers*weightDirectAnswers + density*weightEntityDensity) * 100
	return math.Round(score*100) / 100
}

// headingClarity scores the heading hierarchy on [0, 1]: enough headings to
// segment the page, and levels that descend without skipping.
func headingClarity(headings []models.Heading) float64 {
	if len(headings) == 0 {
		return 0
	}

	base := math.Min(1.0, float64(len(headings))/8.0)

	orderly := 1.0
	for i := 1; i < len(headings); i++ {
		if headings[i].Level > headings[i-1].Level+1 {
			orderly -= 0.15
		}
	}
	if orderly < 0.4 {
		orderly = 0.4
	}

	return math.Min(1.0, base*orderly+0.2)
}
