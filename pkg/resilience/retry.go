// Package resilience provides the fault-tolerance primitives the engine
// tooling leans on at its process boundaries: retried batch operations
// for the indexer's document listing and rebuild announcement, a circuit
// breaker guarding the Redis query cache, and a wall-clock allowance on
// the feeder's snapshot flushes.
package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// RetryConfig bounds a retried operation. Zero values fall back to three
// tries starting at a 100ms wait, capped at ten seconds.
type RetryConfig struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

const (
	defaultAttempts  = 3
	defaultBaseDelay = 100 * time.Millisecond
	defaultMaxDelay  = 10 * time.Second
)

// Retry runs fn until it succeeds or the attempt allowance is spent,
// returning the last error wrapped with the operation name. Waits double
// per try with full jitter, so indexer runs restarted together do not
// hit a recovering Postgres in lockstep. ctx is passed through to fn and
// checked while backing off.
func Retry(ctx context.Context, op string, cfg RetryConfig, fn func(ctx context.Context) error) error {
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaultAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	log := slog.Default().With("component", "resilience", "op", op)
	for try := 1; ; try++ {
		err := fn(ctx)
		if err == nil {
			if try > 1 {
				log.Info("recovered", "try", try)
			}
			return nil
		}
		if try == cfg.Attempts {
			return fmt.Errorf("%s failed after %d tries: %w", op, try, err)
		}
		wait := jitteredWait(try, cfg)
		log.Warn("transient failure, backing off",
			"try", try,
			"of", cfg.Attempts,
			"wait", wait,
			"error", err,
		)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return fmt.Errorf("%s gave up while backing off: %w", op, context.Cause(ctx))
		}
	}
}

// jitteredWait draws uniformly from (0, BaseDelay*2^(try-1)], capped at
// MaxDelay.
func jitteredWait(try int, cfg RetryConfig) time.Duration {
	ceiling := cfg.BaseDelay << (try - 1)
	if ceiling <= 0 || ceiling > cfg.MaxDelay {
		ceiling = cfg.MaxDelay
	}
	return time.Duration(rand.Int63n(int64(ceiling))) + 1
}
