// internal/models/blueprint.go
package models

import "time"

// BuildState is the terminal (or in-flight) state of a blueprint build.
type BuildState string

const (
	BuildStatePending          BuildState = "PENDING"
	BuildStateFetching         BuildState = "FETCHING"
	BuildStateMerging          BuildState = "MERGING"
	BuildStateScoring          BuildState = "SCORING"
	BuildStateComplete         BuildState = "COMPLETE"
	BuildStateDegradedComplete BuildState = "DEGRADED_COMPLETE"
	BuildStateFailed           BuildState = "FAILED"
)

// Blueprint is the aggregate produced by one pipeline run. It is immutable
// after creation; a re-request produces a new version with a new id.
type Blueprint struct {
	ID                     string              `json:"id"`
	Keyword                string              `json:"keyword"`
	State                  BuildState          `json:"state"`
	CreatedAt              time.Time           `json:"createdAt"`
	CompetitorProfiles     []CompetitorProfile `json:"competitorProfiles"`
	SerpFeatures           []SerpFeatureSignal `json:"serpFeatures"`
	KeywordScore           KeywordScore        `json:"keywordScore"`
	TopicClusters          [][]string          `json:"topicClusters"`
	HeadingRecommendations []string            `json:"headingRecommendations"`
	Summary                string              `json:"summary,omitempty"`
	// OwnContentReadiness is the AI-readiness of the caller's existing page,
	// present only when the request supplied own_content.
	OwnContentReadiness *float64 `json:"ownContentReadiness,omitempty"`
	// DataProvenance records, per subsystem, which provider actually supplied
	// the data (or how the subsystem degraded). Every contributing subsystem
	// must appear here.
	DataProvenance map[string]string `json:"dataProvenance"`
}

// BuildOptions are the caller-controlled knobs that participate in the cache
// fingerprint (except ForceRebuild and the notify targets, which do not change
// the produced artifact).
type BuildOptions struct {
	ResultCount  int    `json:"resultCount,omitempty"`
	OwnContent   string `json:"ownContent,omitempty"`
	ForceRebuild bool   `json:"forceRebuild,omitempty"`
	NotifyEmail  string `json:"notifyEmail,omitempty"`
	NotifyPhone  string `json:"notifyPhone,omitempty"`
}

// SearchResultItem is one ranked organic result. Immutable once fetched.
type SearchResultItem struct {
	URL            string `json:"url"`
	Title          string `json:"title"`
	Snippet        string `json:"snippet"`
	Rank           int    `json:"rank"` // 1-based, unique and contiguous within a set
	SourceProvider string `json:"sourceProvider"`
}

// EntityReference is a single provider's view of an entity. The synthesizer
// merges references by normalized (name, type), keeping max confidence.
type EntityReference struct {
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	Confidence      float64  `json:"confidence"` // 0.0 - 1.0
	SourceProviders []string `json:"sourceProviders"`
}

// Heading is one element of a page's heading hierarchy.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// CompetitorProfile is derived from exactly one SearchResultItem.
type CompetitorProfile struct {
	URL              string            `json:"url"`
	Rank             int               `json:"rank"`
	Title            string            `json:"title"`
	WordCount        int               `json:"wordCount"`
	HeadingStructure []Heading         `json:"headingStructure"`
	DetectedEntities []EntityReference `json:"detectedEntities"`
	// AIReadiness scores how well this page answers an AI summary directly
	// (0-100): heading clarity, direct-answer paragraphs, entity density.
	AIReadiness float64  `json:"aiReadiness"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
}

// FeaturePresence classifies a SERP feature for a keyword.
type FeaturePresence string

const (
	FeatureNone        FeaturePresence = "none"
	FeatureOpportunity FeaturePresence = "opportunity"
	FeatureHeld        FeaturePresence = "held"
)

// SerpFeatureSignal is one SERP feature classification per keyword per run.
type SerpFeatureSignal struct {
	FeatureName      string          `json:"featureName"`
	Presence         FeaturePresence `json:"presence"`
	OpportunityScore float64         `json:"opportunityScore"` // 0.0 - 1.0
	HolderURL        string          `json:"holderUrl,omitempty"`
}

// KeywordScore is recomputed each run, never mutated in place.
type KeywordScore struct {
	Keyword     string  `json:"keyword"`
	Difficulty  float64 `json:"difficulty"`  // 0 - 100
	Opportunity float64 `json:"opportunity"` // 0 - 100
	// SupportingFactors retains every weighted term that contributed to the
	// final numbers, for auditability.
	SupportingFactors map[string]float64 `json:"supportingFactors"`
}

// KeywordMetrics are the raw numbers from the external metrics provider.
type KeywordMetrics struct {
	SearchVolume     int     `json:"searchVolume"`
	CompetitionIndex float64 `json:"competitionIndex"` // 0 - 100
}

// TextAnalysis is the semantic output of a TEXT_ANALYSIS provider.
type TextAnalysis struct {
	Entities       []EntityReference `json:"entities"`
	SentimentScore float64           `json:"sentimentScore"` // -1.0 - 1.0
}
