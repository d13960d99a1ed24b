// internal/router/router.go

// Package router implements deterministic tiered provider selection with
// graceful degradation. Every subsystem calls the router, never a concrete
// provider, so fallback policy lives in exactly one place.
package router

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "blueprint-engine/internal/common/errors"
	"blueprint-engine/internal/common/logger"
	"blueprint-engine/internal/common/metrics"
	"blueprint-engine/internal/providers"
)

// Route binds one adapter to a priority tier for one capability. Lower tier =
// tried first.
type Route struct {
	Adapter providers.Adapter
	Tier    int
}

// Router is the read-mostly routing table. All per-build mutable state lives
// in Run.
type Router struct {
	routes      map[providers.Capability][]Route
	retryBase   time.Duration
	maxAttempts int
	logger      logger.Logger
}

type Option func(*Router)

// WithRetry overrides the transient-retry backoff base and attempt ceiling.
func WithRetry(base time.Duration, maxAttempts int) Option {
	return func(r *Router) {
		if base > 0 {
			r.retryBase = base
		}
		if maxAttempts > 0 {
			r.maxAttempts = maxAttempts
		}
	}
}

func New(log logger.Logger, opts ...Option) *Router {
	r := &Router{
		routes:      make(map[providers.Capability][]Route),
		retryBase:   200 * time.Millisecond,
		maxAttempts: 2,
		logger:      log.WithFields(map[string]interface{}{"component": "router"}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds an adapter to the routing table for every capability it
// declares, at the given tier.
func (r *Router) Register(adapter providers.Adapter, tier int) {
	for _, capability := range adapter.Capabilities() {
		r.routes[capability] = append(r.routes[capability], Route{Adapter: adapter, Tier: tier})
		sort.SliceStable(r.routes[capability], func(i, j int) bool {
			return r.routes[capability][i].Tier < r.routes[capability][j].Tier
		})
	}
}

// Capabilities lists the capabilities with at least one registered route.
func (r *Router) Capabilities() []providers.Capability {
	caps := make([]providers.Capability, 0, len(r.routes))
	for c := range r.routes {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// Adapters returns the distinct registered adapters, for health reporting.
func (r *Router) Adapters() []providers.Adapter {
	seen := make(map[string]bool)
	var out []providers.Adapter
	for _, routes := range r.routes {
		for _, rt := range routes {
			if !seen[rt.Adapter.Name()] {
				seen[rt.Adapter.Name()] = true
				out = append(out, rt.Adapter)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// NewRun creates the per-build routing state. Each blueprint build gets a
// fresh Run so one keyword's quota exhaustion never poisons another build's
// provider selection.
func (r *Router) NewRun() *Run {
	return &Run{
		router:   r,
		unusable: make(map[string]bool),
		calls:    make(map[string]int),
	}
}

// Run holds the only mutable routing state: the providers marked unusable for
// the remainder of one build, plus per-adapter call counts for round-robin
// tie-breaking within a tier.
type Run struct {
	router   *Router
	mu       sync.Mutex
	unusable map[string]bool
	calls    map[string]int
}

// Resolve returns the preferred usable adapter for a capability: lowest tier
// first, ties broken round-robin by call count.
func (run *Run) Resolve(capability providers.Capability) (providers.Adapter, error) {
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.resolveLocked(capability)
}

func (run *Run) resolveLocked(capability providers.Capability) (providers.Adapter, error) {
	routes := run.router.routes[capability]

	var best providers.Adapter
	bestTier, bestCalls := 0, 0
	for _, rt := range routes {
		name := rt.Adapter.Name()
		if run.unusable[name] || rt.Adapter.Health() == providers.Unavailable {
			continue
		}
		if best == nil || rt.Tier < bestTier || (rt.Tier == bestTier && run.calls[name] < bestCalls) {
			best = rt.Adapter
			bestTier = rt.Tier
			bestCalls = run.calls[name]
		}
	}

	if best == nil {
		return nil, &apperrors.NoProviderAvailableError{Capability: string(capability)}
	}
	return best, nil
}

// Execute resolves an adapter and invokes it, retrying one transient failure
// with backoff and falling through tiers on everything else. It returns the
// response together with the name of the provider that actually served it.
// A NoProviderAvailableError is returned only when every tier is exhausted;
// empty data is never silently mislabeled as success.
func (run *Run) Execute(ctx context.Context, capability providers.Capability, req *providers.Request) (*providers.Response, string, error) {
	tried := make(map[string]bool)

	for {
		adapter, err := run.Resolve(capability)
		if err != nil {
			return nil, "", err
		}
		name := adapter.Name()
		if tried[name] {
			// resolve returned an adapter we already exhausted; treat the
			// capability as spent rather than spinning
			return nil, "", &apperrors.NoProviderAvailableError{Capability: string(capability)}
		}
		tried[name] = true

		resp, invokeErr := run.invokeWithRetry(ctx, adapter, capability, req)
		if invokeErr == nil {
			return resp, name, nil
		}

		if apperrors.ProviderErrorClassOf(invokeErr) == apperrors.ClassMalformed {
			// Malformed responses count as an empty result, logged, not retried.
			run.router.logger.Warn("malformed provider response treated as empty", map[string]interface{}{
				"provider":   name,
				"capability": capability,
			})
			metrics.ProviderCalls.WithLabelValues(name, string(capability), "malformed").Inc()
			return &providers.Response{}, name, nil
		}

		run.markUnusable(name)
		metrics.ProviderFallbacks.WithLabelValues(string(capability)).Inc()
		run.router.logger.Warn("provider marked unusable for this run", map[string]interface{}{
			"provider":   name,
			"capability": capability,
			"class":      string(apperrors.ProviderErrorClassOf(invokeErr)),
			"error":      invokeErr.Error(),
		})

		// Adapter error classes stop at the router boundary; an aborted run
		// surfaces as the caller's own context error.
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
	}
}

// invokeWithRetry calls one adapter, permitting a single retry with bounded
// exponential backoff on transient errors.
func (run *Run) invokeWithRetry(ctx context.Context, adapter providers.Adapter, capability providers.Capability, req *providers.Request) (*providers.Response, error) {
	name := adapter.Name()
	var lastErr error

	for attempt := 0; attempt < run.router.maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := run.router.retryBase * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, apperrors.NewTransientError(name, ctx.Err())
			}
		}

		run.countCall(name)
		resp, err := adapter.Invoke(ctx, capability, req)
		if err == nil {
			metrics.ProviderCalls.WithLabelValues(name, string(capability), "success").Inc()
			return resp, nil
		}
		lastErr = err
		metrics.ProviderCalls.WithLabelValues(name, string(capability), "error").Inc()

		if apperrors.ProviderErrorClassOf(err) != apperrors.ClassTransient {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

func (run *Run) markUnusable(name string) {
	run.mu.Lock()
	defer run.mu.Unlock()
	run.unusable[name] = true
}

func (run *Run) countCall(name string) {
	run.mu.Lock()
	defer run.mu.Unlock()
	run.calls[name]++
}

// Unusable reports whether a provider has been marked unusable in this run.
func (run *Run) Unusable(name string) bool {
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.unusable[name]
}
