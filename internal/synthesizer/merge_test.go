// internal/synthesizer/merge_test.go

package synthesizer

import (
	"testing"

	"blueprint-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeEntities(t *testing.T) {
	groupA := []models.EntityReference{
		{Name: "Core Web Vitals", Type: "Thing", Confidence: 0.8, SourceProviders: []string{"knowledge_graph"}},
		{Name: "CDN", Type: "Thing", Confidence: 0.5, SourceProviders: []string{"knowledge_graph"}},
	}
	groupB := []models.EntityReference{
		{Name: "core  web   vitals", Type: "thing", Confidence: 0.95, SourceProviders: []string{"natural_language"}},
		{Name: "lazy loading", Type: "Other", Confidence: 0.4, SourceProviders: []string{"natural_language"}},
	}

	merged := mergeEntities(groupA, groupB)
	require.Len(t, merged, 3, "same entity under different casing and spacing must merge")

	byName := make(map[string]models.EntityReference, len(merged))
	for _, e := range merged {
		byName[e.Name] = e
	}

	cwv, ok := byName["core web vitals"]
	require.True(t, ok, "highest-confidence spelling wins: %v", merged)
	assert.InDelta(t, 0.95, cwv.Confidence, 1e-9, "max confidence wins")
	assert.Equal(t, []string{"knowledge_graph", "natural_language"}, cwv.SourceProviders)

	// sorted by confidence descending
	assert.Equal(t, "core web vitals", merged[0].Name)
}

func TestMergeEntities_SkipsEmptyNames(t *testing.T) {
	merged := mergeEntities([]models.EntityReference{
		{Name: "   ", Type: "Thing", Confidence: 0.9},
		{Name: "real", Type: "Thing", Confidence: 0.3},
	})
	require.Len(t, merged, 1)
	assert.Equal(t, "real", merged[0].Name)
}

func TestClusterHeadings_EntityOverlap(t *testing.T) {
	profiles := []models.CompetitorProfile{
		{HeadingStructure: []models.Heading{
			{Level: 2, Text: "Understanding Core Web Vitals"},
			{Level: 2, Text: "Choosing a Hosting Plan"},
		}},
		{HeadingStructure: []models.Heading{
			{Level: 2, Text: "Core Web Vitals Explained"},
		}},
	}
	entities := []models.EntityReference{
		{Name: "Core Web Vitals", Confidence: 0.9},
	}

	clusters, recommendations := clusterHeadings(profiles, entities, 0.7, 0.4)

	require.Len(t, clusters, 1)
	assert.ElementsMatch(t, []string{"Understanding Core Web Vitals", "Core Web Vitals Explained"}, clusters[0])
	assert.Equal(t, []string{"Choosing a Hosting Plan"}, recommendations)
}

func TestClusterHeadings_LowConfidenceEntityDoesNotLink(t *testing.T) {
	profiles := []models.CompetitorProfile{
		{HeadingStructure: []models.Heading{{Level: 2, Text: "About Caching Layers"}}},
		{HeadingStructure: []models.Heading{{Level: 2, Text: "Why Caching Helps Performance"}}},
	}
	entities := []models.EntityReference{
		{Name: "Caching", Confidence: 0.3},
	}

	clusters, recommendations := clusterHeadings(profiles, entities, 0.7, 0.6)
	assert.Empty(t, clusters)
	assert.Len(t, recommendations, 2)
}

func TestClusterHeadings_TokenOverlap(t *testing.T) {
	profiles := []models.CompetitorProfile{
		{HeadingStructure: []models.Heading{
			{Level: 2, Text: "Image Compression Techniques"},
			{Level: 2, Text: "Server Setup"},
		}},
		{HeadingStructure: []models.Heading{
			{Level: 2, Text: "Advanced Image Compression"},
		}},
	}

	clusters, recommendations := clusterHeadings(profiles, nil, 0.7, 0.4)

	require.Len(t, clusters, 1)
	assert.ElementsMatch(t, []string{"Image Compression Techniques", "Advanced Image Compression"}, clusters[0])
	assert.Equal(t, []string{"Server Setup"}, recommendations)
}

func TestTokenOverlap(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{"identical", "image compression", "image compression", 1.0},
		{"subset", "image compression techniques guide", "image compression", 1.0},
		{"disjoint", "server setup", "image compression", 0},
		{"stopwords ignored", "the a of", "the a of", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, tokenOverlap(tokenize(tt.a), tokenize(tt.b)), 1e-9)
		})
	}
}
