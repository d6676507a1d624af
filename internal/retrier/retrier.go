// Package retrier implements a bounded-attempt execution contract with
// exponential backoff and jitter between attempts.
package retrier

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/yungbote/sagacore/internal/errtax"
)

// BackoffPolicy is the Retrier's exponential-backoff-with-jitter
// schedule. A JitterFrac of 0 disables jitter.
type BackoffPolicy struct {
	MinBackoff time.Duration
	MaxBackoff time.Duration
	JitterFrac float64
}

func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		MinBackoff: 1 * time.Second,
		MaxBackoff: 30 * time.Second,
		JitterFrac: 0.20,
	}
}

// Compute returns the delay before attempt number `attempt` (1-indexed).
func (b BackoffPolicy) Compute(attempt int) time.Duration {
	minB, maxB, j := b.MinBackoff, b.MaxBackoff, b.JitterFrac
	if minB <= 0 {
		minB = 1 * time.Second
	}
	if maxB <= 0 {
		maxB = 30 * time.Second
	}
	if j < 0 {
		j = 0
	}
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(minB) * math.Pow(2, float64(attempt-1)))
	if d > maxB {
		d = maxB
	}
	delta := float64(d) * j
	low := float64(d) - delta
	high := float64(d) + delta
	if low < 0 {
		low = 0
	}
	return time.Duration(low + rand.Float64()*(high-low))
}

// Retrier executes an Action up to MaxAttempts times, never retrying a
// PermanentFailure.
type Retrier struct {
	MaxAttempts int
	Backoff     BackoffPolicy
}

func New(maxAttempts int, backoff BackoffPolicy) *Retrier {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Retrier{MaxAttempts: maxAttempts, Backoff: backoff}
}

// Action is the unit of work Execute drives to completion or exhaustion.
type Action func(ctx context.Context) error

// Execute runs action up to r.MaxAttempts times. A PermanentFailure
// (including one wrapped via errors.As) aborts immediately without
// consuming further attempts. On exhaustion the returned error's message
// begins with "Action failed after " and ends with " attempts." exactly.
func (r *Retrier) Execute(ctx context.Context, action Action) error {
	var lastErr error
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		err := action(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if errtax.IsPermanent(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		delay := r.Backoff.Compute(attempt)
		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	msg := fmt.Sprintf("Action failed after %d attempts.", attempts)
	return &exhaustedError{
		msg:       msg,
		permanent: errtax.NewPermanentFailure(msg, lastErr),
	}
}

// exhaustedError's Error() is exactly "Action failed after %d attempts."
// It wraps a
// *errtax.PermanentFailure (carrying the same message plus the last
// underlying cause) so errtax.IsPermanent classifies exhaustion the same
// as any other permanent failure — the orchestrator must not retry or
// compensate a Down-phase step whose retries ran out, it must fail the
// job outright. The last underlying error is still reachable via Unwrap
// (through the wrapped PermanentFailure) for callers that want the real
// cause.
type exhaustedError struct {
	msg       string
	permanent *errtax.PermanentFailure
}

func (e *exhaustedError) Error() string { return e.msg }

func (e *exhaustedError) Unwrap() error { return e.permanent }
