package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// WithTimeout gives fn a wall-clock allowance. The derived context is
// cancelled once the allowance is spent; an fn that ignores it, such as a
// snapshot flush stuck in disk I/O, is abandoned and the overrun reported
// as context.DeadlineExceeded. A non-positive allowance runs fn unbounded.
func WithTimeout(ctx context.Context, allowance time.Duration, op string, fn func(ctx context.Context) error) error {
	if allowance <= 0 {
		return fn(ctx)
	}
	runCtx, cancel := context.WithTimeout(ctx, allowance)
	defer cancel()

	outcome := make(chan error, 1)
	go func() { outcome <- fn(runCtx) }()

	select {
	case err := <-outcome:
		return err
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("%s interrupted: %w", op, context.Cause(ctx))
		}
		// The goroutine running fn is abandoned, not killed. Flag it so a
		// stuck flush is visible before the next tick piles another on.
		slog.Default().Warn("operation overran its allowance",
			"component", "resilience",
			"op", op,
			"allowance", allowance,
		)
		return fmt.Errorf("%s: %w after %v", op, context.DeadlineExceeded, allowance)
	}
}
