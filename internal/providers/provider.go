// internal/providers/provider.go

// Package providers defines the uniform adapter contract wrapping one external
// data source. Concrete adapters are selected only through the router, never
// referenced by concrete type elsewhere in the pipeline.
package providers

import (
	"context"

	"blueprint-engine/internal/models"
)

// Capability tags the kind of data an adapter can produce.
type Capability string

const (
	CapabilitySearch         Capability = "search"
	CapabilityEntityLookup   Capability = "entity_lookup"
	CapabilityTextAnalysis   Capability = "text_analysis"
	CapabilityTextGeneration Capability = "text_generation"
)

// Health reports an adapter's availability.
type Health int

const (
	Healthy Health = iota
	Degraded
	Unavailable
)

func (h Health) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Unavailable:
		return "unavailable"
	}
	return "unknown"
}

// Request carries the inputs for one invocation. Only the fields relevant to
// the requested capability are read.
type Request struct {
	Query  string // SEARCH
	Count  int    // SEARCH
	Text   string // ENTITY_LOOKUP, TEXT_ANALYSIS
	Prompt string // TEXT_GENERATION
}

// Response carries the outputs of one invocation. An empty Response is a valid
// "no results found" answer, distinct from an error.
type Response struct {
	Items    []models.SearchResultItem // SEARCH
	Entities []models.EntityReference  // ENTITY_LOOKUP
	Analysis *models.TextAnalysis      // TEXT_ANALYSIS
	Text     string                    // TEXT_GENERATION
}

// Adapter is the uniform interface over one external data source. Invoke must
// be side-effect-free with respect to other adapters.
type Adapter interface {
	Name() string
	Capabilities() []Capability
	Invoke(ctx context.Context, capability Capability, req *Request) (*Response, error)
	Health() Health
}
