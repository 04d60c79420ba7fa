// Package ratelimit implements tiered fixed-window request limiting keyed
// by caller identity.
package ratelimit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Tier is one independent window/threshold pair.
type Tier struct {
	Name    string
	Limit   int
	Window  time.Duration
	Message string // shown to the caller when this tier denies
}

// Tiers guarding the AI chat endpoint, in evaluation order.
var (
	Burst = Tier{
		Name:    "burst",
		Limit:   1,
		Window:  3 * time.Second,
		Message: "Please wait a couple seconds before your next AI request.",
	}
	Minute = Tier{
		Name:    "minute",
		Limit:   10,
		Window:  time.Minute,
		Message: "Too many AI requests. Try again in a minute.",
	}
	Daily = Tier{
		Name:    "daily",
		Limit:   50,
		Window:  24 * time.Hour,
		Message: "Daily AI chat limit reached. Try again tomorrow.",
	}
)

// AITiers returns the burst, minute and daily tiers.
func AITiers() []Tier {
	return []Tier{Burst, Minute, Daily}
}

// Counter stores per-key hit counts.
type Counter interface {
	// Increment atomically records a hit for key and returns the count in
	// the current window together with the time the window resets. A new
	// window starts at the first hit after the previous one expired.
	Increment(ctx context.Context, key string, window time.Duration, now time.Time) (count int64, resetAt time.Time, err error)
}

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed   bool
	Tier      Tier // denying tier, or the most constrained tier when allowed
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long the caller should wait before retrying.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.ResetAt.Before(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

// Tiered runs a sequence of tiers; all must allow for a request to pass.
type Tiered struct {
	counter Counter
	tiers   []Tier
	prefix  string
	logger  zerolog.Logger
}

// NewTiered creates a limiter evaluating tiers in order.
func NewTiered(counter Counter, logger zerolog.Logger, prefix string, tiers ...Tier) *Tiered {
	return &Tiered{
		counter: counter,
		tiers:   tiers,
		prefix:  prefix,
		logger:  logger,
	}
}

// Tiers returns the configured tiers in evaluation order.
func (t *Tiered) Tiers() []Tier {
	return t.tiers
}

// Allow records a hit for identity against each tier in order and stops at
// the first tier that denies it; later tiers are neither checked nor
// charged. Counter failures fail open.
func (t *Tiered) Allow(ctx context.Context, identity string, now time.Time) Decision {
	var best Decision
	haveBest := false

	for _, tier := range t.tiers {
		key := t.prefix + tier.Name + ":" + identity

		count, resetAt, err := t.counter.Increment(ctx, key, tier.Window, now)
		if err != nil {
			t.logger.Warn().
				Err(err).
				Str("tier", tier.Name).
				Str("key", key).
				Msg("rate limit counter unavailable, allowing request")
			continue
		}

		remaining := tier.Limit - int(count)
		if remaining < 0 {
			remaining = 0
		}

		if count > int64(tier.Limit) {
			return Decision{Allowed: false, Tier: tier, Remaining: 0, ResetAt: resetAt}
		}

		if !haveBest || remaining < best.Remaining {
			best = Decision{Allowed: true, Tier: tier, Remaining: remaining, ResetAt: resetAt}
			haveBest = true
		}
	}

	if !haveBest {
		return Decision{Allowed: true}
	}
	return best
}
