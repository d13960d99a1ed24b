// internal/providers/base.go
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"blueprint-engine/internal/common/config"
	apperrors "blueprint-engine/internal/common/errors"

	"golang.org/x/time/rate"
)

// Base carries the behavior every HTTP-backed adapter shares: a token-bucket
// rate limiter and the auth-disabled latch that drives Health().
type Base struct {
	name       string
	limiter    *rate.Limiter
	authFailed atomic.Bool
}

// NewBase builds the shared adapter state from provider configuration.
func NewBase(name string, cfg config.ProviderConfig) Base {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5.0
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 10
	}
	return Base{
		name:    name,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (b *Base) Name() string {
	return b.name
}

// Health reports Unavailable once an auth failure has latched; operator
// intervention (restart with fixed credentials) clears it.
func (b *Base) Health() Health {
	if b.authFailed.Load() {
		return Unavailable
	}
	return Healthy
}

// Wait blocks until the rate limiter admits a request or the context expires.
func (b *Base) Wait(ctx context.Context) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return apperrors.NewTransientError(b.name, err)
	}
	return nil
}

// ClassifyHTTPStatus maps a non-OK provider response to the error taxonomy.
func (b *Base) ClassifyHTTPStatus(status int, bodyHint string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return apperrors.NewQuotaExceededError(b.name, fmt.Errorf("status %d", status))
	case status == http.StatusForbidden && strings.Contains(strings.ToLower(bodyHint), "quota"):
		return apperrors.NewQuotaExceededError(b.name, fmt.Errorf("status %d", status))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		b.authFailed.Store(true)
		return apperrors.NewAuthError(b.name, fmt.Errorf("status %d", status))
	case status >= 500:
		return apperrors.NewTransientError(b.name, fmt.Errorf("status %d", status))
	default:
		return apperrors.NewMalformedError(b.name, fmt.Errorf("unexpected status %d", status))
	}
}

// ClassifyTransportError maps a transport-level failure. Context expiry and
// network errors are transient from the router's point of view.
func (b *Base) ClassifyTransportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(ctx.Err(), context.Canceled) {
		return apperrors.NewTransientError(b.name, ctx.Err())
	}
	return apperrors.NewTransientError(b.name, err)
}
