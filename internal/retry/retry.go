// Package retry implements the single backoff policy shared by the TTS and
// avatar clients. Only faults classified as transient are retried; everything
// else surfaces immediately.
package retry

import (
	"context"
	"math/rand"
	"time"

	"reelforge/internal/fault"

	"go.uber.org/zap"
)

// Policy describes exponential backoff with jitter.
type Policy struct {
	Base        time.Duration
	Factor      float64
	Jitter      float64 // fraction of the delay, e.g. 0.2 for ±20%
	Cap         time.Duration
	MaxAttempts int
}

// Default returns the pipeline-wide policy: base 1s, factor 2, jitter ±20%,
// cap 60s, five attempts.
func Default() Policy {
	return Policy{
		Base:        time.Second,
		Factor:      2,
		Jitter:      0.2,
		Cap:         60 * time.Second,
		MaxAttempts: 5,
	}
}

// Do runs fn up to MaxAttempts times, sleeping between attempts while the
// returned error is transient. The last error is returned when the attempt
// budget is exhausted. Sleeps are interrupted by ctx cancellation.
func (p Policy) Do(ctx context.Context, logger *zap.Logger, op string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !fault.Transient(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		delay := p.delay(attempt)
		if logger != nil {
			logger.Warn("Transient failure, backing off",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

// delay computes the backoff for the given 1-based attempt.
func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.Base)
	for i := 1; i < attempt; i++ {
		d *= p.Factor
	}
	if p.Cap > 0 && d > float64(p.Cap) {
		d = float64(p.Cap)
	}
	if p.Jitter > 0 {
		d += d * p.Jitter * (2*rand.Float64() - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
