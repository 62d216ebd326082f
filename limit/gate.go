// Package limit provides an optional admission gate for fully concurrent
// event dispatch — a token-bucket rate limit combined with a concurrency
// cap. Keyed sequences are already serialized per key, so the gate applies
// only where the dispatcher would otherwise fan out without bound.
package limit

import (
	"context"

	"golang.org/x/time/rate"
)

// Config defines the gate's limits. Zero values disable the corresponding
// limit.
type Config struct {
	// MaxConcurrency caps how many gated tasks may run simultaneously.
	MaxConcurrency int

	// RateLimit is the maximum sustained admissions per second.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// Gate admits tasks subject to the configured rate and concurrency limits.
// It is safe for concurrent use.
type Gate struct {
	limiter *rate.Limiter
	slots   chan struct{}
}

// NewGate creates a Gate from the given config.
func NewGate(cfg Config) *Gate {
	g := &Gate{}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	if cfg.MaxConcurrency > 0 {
		g.slots = make(chan struct{}, cfg.MaxConcurrency)
	}
	return g
}

// Acquire blocks until the rate limiter grants a token and a concurrency
// slot is free, or the context is cancelled. On success the caller MUST
// call Release when the task completes.
func (g *Gate) Acquire(ctx context.Context) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if g.slots != nil {
		select {
		case g.slots <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Release frees the concurrency slot taken by a successful Acquire.
func (g *Gate) Release() {
	if g.slots != nil {
		<-g.slots
	}
}

// Active returns the number of concurrency slots currently held.
// Always zero when no concurrency limit is configured.
func (g *Gate) Active() int {
	if g.slots == nil {
		return 0
	}
	return len(g.slots)
}
