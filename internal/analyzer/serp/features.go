// internal/analyzer/serp/features.go

package serp

import (
	"regexp"

	"blueprint-engine/internal/analyzer/content"
	"blueprint-engine/internal/models"
)

// The detector works over a fixed feature vocabulary so downstream scoring
// sees a stable set of names regardless of what the results look like.
var featureNames = []string{
	"featured_snippet",
	"people_also_ask",
	"knowledge_panel",
	"image_pack",
	"video_results",
	"local_pack",
	"top_stories",
}

var (
	imageRe    = regexp.MustCompile(`(?i)\b(images?|photos?|pictures?|gallery|infographic)\b`)
	videoRe    = regexp.MustCompile(`(?i)\b(videos?|watch|youtube|tutorial video)\b`)
	localRe    = regexp.MustCompile(`(?i)\b(near me|locations?|directions|opening hours|store hours)\b`)
	newsRe     = regexp.MustCompile(`(?i)\b(news|breaking|latest|announced|update[sd]?)\b`)
	panelRe    = regexp.MustCompile(`(?i)\b(wikipedia|official site|encyclopedia)\b`)
	definingRe = regexp.MustCompile(`(?i)\b(is an?|refers to|is defined as|means)\b`)
	listStepRe = regexp.MustCompile(`(?m)^\s*(\d+[.)]|step \d+)`)
)

// pageSignals holds the per-page patterns the feature detector needs, captured
// while the competitor profile is built so pages are parsed exactly once.
type pageSignals struct {
	fetched         bool
	hasQAPattern    bool
	questionCount   int
	hasNumberedList bool
	hasDefinition   bool
	mediaHeavy      bool

	entityProvider string
	entityDegraded bool
}

func newPageSignals(st content.Structure) pageSignals {
	return pageSignals{
		fetched:         true,
		hasQAPattern:    content.HasQuestionAnswerPattern(st.Text),
		questionCount:   st.QuestionCount,
		hasNumberedList: listStepRe.MatchString(st.Text) || st.ListCount > 0,
		hasDefinition:   definingRe.MatchString(st.Text),
		mediaHeavy:      imageRe.MatchString(st.Text) || videoRe.MatchString(st.Text),
	}
}

// detectFeatures classifies each known SERP feature as held, opportunity, or
// absent. A feature is held when the ranked snippets or titles already show
// the pattern, meaning a competitor currently captures it; it is an
// opportunity when the pattern only appears inside fetched competitor pages.
// Opportunity scores decay with the rank of the first matching page:
// 0.9 at rank 1 down to a floor of 0.1.
func detectFeatures(items []models.SearchResultItem, pages []pageSignals) []models.SerpFeatureSignal {
	signals := make([]models.SerpFeatureSignal, 0, len(featureNames))
	for _, name := range featureNames {
		signals = append(signals, classifyFeature(name, items, pages))
	}
	return signals
}

func classifyFeature(name string, items []models.SearchResultItem, pages []pageSignals) models.SerpFeatureSignal {
	signal := models.SerpFeatureSignal{
		FeatureName:      name,
		Presence:         models.FeatureNone,
		OpportunityScore: 0,
	}

	for _, item := range items {
		if snippetMatches(name, item) {
			signal.Presence = models.FeatureHeld
			signal.OpportunityScore = 0.1
			signal.HolderURL = item.URL
			return signal
		}
	}

	for i := range pages {
		if pageMatches(name, pages[i]) {
			signal.Presence = models.FeatureOpportunity
			signal.OpportunityScore = opportunityScore(i)
			return signal
		}
	}

	return signal
}

// snippetMatches reports whether the search result already exhibits the
// feature pattern in its title or snippet.
func snippetMatches(name string, item models.SearchResultItem) bool {
	text := item.Title + " " + item.Snippet
	switch name {
	case "featured_snippet":
		return content.HasQuestionAnswerPattern(text)
	case "people_also_ask":
		return content.ContainsQuestion(item.Snippet)
	case "knowledge_panel":
		return panelRe.MatchString(text) || panelRe.MatchString(item.URL)
	case "image_pack":
		return imageRe.MatchString(text)
	case "video_results":
		return videoRe.MatchString(text) || videoRe.MatchString(item.URL)
	case "local_pack":
		return localRe.MatchString(text)
	case "top_stories":
		return newsRe.MatchString(text)
	}
	return false
}

// pageMatches reports whether a fetched competitor page carries content that
// could win the feature even though the snippets do not show it yet.
func pageMatches(name string, page pageSignals) bool {
	if !page.fetched {
		return false
	}
	switch name {
	case "featured_snippet":
		return page.hasQAPattern || page.hasNumberedList
	case "people_also_ask":
		return page.questionCount >= 3
	case "knowledge_panel":
		return page.hasDefinition
	case "image_pack", "video_results":
		return page.mediaHeavy
	}
	// local_pack and top_stories depend on result-page placement and are
	// not inferable from body text alone.
	return false
}

func opportunityScore(rankIndex int) float64 {
	score := 0.9 - 0.1*float64(rankIndex)
	if score < 0.1 {
		return 0.1
	}
	return score
}
