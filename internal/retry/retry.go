// Package retry runs an operation until it succeeds, the attempt budget is
// spent, or the context is canceled. Waits between attempts follow an
// exponential schedule from cenkalti/backoff, capped at MaxBackoff.
//
// The zero MaxAttempts means "retry forever", which is how chunk
// acquisition is driven: a chunk is never skipped, the operator stops the
// process instead.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrAttemptsExhausted wraps the last error once MaxAttempts is reached.
var ErrAttemptsExhausted = errors.New("retry: attempts exhausted")

// Policy configures Do. Zero durations get defaults (1s initial, 1m max).
type Policy struct {
	// MaxAttempts bounds the number of attempts; 0 means unbounded.
	MaxAttempts int
	// InitialBackoff is the wait after the first failure.
	InitialBackoff time.Duration
	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration
	// OnRetry, if set, is called after a failed attempt and before waiting.
	OnRetry func(attempt int, wait time.Duration, err error)

	// sleep is swapped by tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Permanent marks err as not worth retrying; Do returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do calls op until it returns nil. Context errors and errors wrapped with
// Permanent stop the loop at once.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	initial := p.InitialBackoff
	if initial <= 0 {
		initial = time.Second
	}
	maxWait := p.MaxBackoff
	if maxWait <= 0 {
		maxWait = time.Minute
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	waits := newSchedule(initial, maxWait)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := op(ctx)
		if err == nil {
			return nil
		}
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, attempt, err)
		}

		wait := waits.next()
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// schedule yields initial, 2×initial, 4×initial, ... clamped to max.
type schedule struct {
	b   *backoff.ExponentialBackOff
	max time.Duration
}

func newSchedule(initial, maxWait time.Duration) *schedule {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     initial,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxWait,
	}
	b.Reset()
	return &schedule{b: b, max: maxWait}
}

func (s *schedule) next() time.Duration {
	return min(s.b.NextBackOff(), s.max)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
