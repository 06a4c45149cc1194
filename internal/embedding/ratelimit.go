package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedEmbedder spaces provider calls with a token bucket.
type RateLimitedEmbedder struct {
	next    Embedder
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder allows rps calls per second with the given burst.
// rps <= 0 disables limiting.
func NewRateLimitedEmbedder(next Embedder, rps float64, burst int) *RateLimitedEmbedder {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedEmbedder{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Embed waits for a token, then delegates.
func (r *RateLimitedEmbedder) Embed(ctx context.Context, text string, task Task) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.Embed(ctx, text, task)
}

// Dimensions delegates to the wrapped embedder.
func (r *RateLimitedEmbedder) Dimensions() int { return r.next.Dimensions() }

// Close closes the wrapped embedder.
func (r *RateLimitedEmbedder) Close() error { return r.next.Close() }
