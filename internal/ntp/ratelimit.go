package ntp

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter paces control queries. The global bucket bounds the exporter's
// total query rate, and each daemon gets its own bucket so that many targets
// behind one limit never push a single ntpd past its "restrict limited"
// threshold, at which point it stops answering mode 6 requests.
type RateLimiter struct {
	global        *rate.Limiter
	perTarget     map[Target]*rate.Limiter
	mu            sync.Mutex
	perTargetRate int
	burstSize     int
}

// NewRateLimiter creates a new rate limiter. Rates are queries per second.
func NewRateLimiter(globalRate, perTargetRate, burstSize int) *RateLimiter {
	return &RateLimiter{
		global:        rate.NewLimiter(rate.Limit(globalRate), burstSize),
		perTarget:     make(map[Target]*rate.Limiter),
		perTargetRate: perTargetRate,
		burstSize:     burstSize,
	}
}

// Wait blocks until a query to target is allowed or ctx is done. The
// per-target bucket is consulted first so that a target waiting on its own
// bucket does not hold a global token meanwhile.
func (rl *RateLimiter) Wait(ctx context.Context, target Target) error {
	if err := rl.limiterFor(target).Wait(ctx); err != nil {
		return fmt.Errorf("per-target rate limit for %s: %w", target, err)
	}

	if err := rl.global.Wait(ctx); err != nil {
		return fmt.Errorf("global rate limit: %w", err)
	}

	return nil
}

// Targets returns the number of daemons with a bucket
func (rl *RateLimiter) Targets() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return len(rl.perTarget)
}

func (rl *RateLimiter) limiterFor(target Target) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.perTarget[target]
	if !exists {
		limiter = rate.NewLimiter(rate.Limit(rl.perTargetRate), rl.burstSize)
		rl.perTarget[target] = limiter
	}
	return limiter
}
