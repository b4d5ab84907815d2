package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	var waits []time.Duration
	var retried []int
	p := Policy{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		OnRetry:        func(n int, _ time.Duration, _ error) { retried = append(retried, n) },
		sleep:          noSleep(&waits),
	}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 6 {
			return errors.New("corrupt gzip")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 6, calls)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, retried)
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond,
		800 * time.Millisecond, time.Second,
	}, waits)
}

func TestDo_UnboundedByDefault(t *testing.T) {
	t.Parallel()

	var waits []time.Duration
	p := Policy{sleep: noSleep(&waits)}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls <= 1000 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1001, calls)
	assert.Equal(t, time.Minute, waits[len(waits)-1])
}

func TestDo_MaxAttempts(t *testing.T) {
	t.Parallel()

	var waits []time.Duration
	p := Policy{MaxAttempts: 3, sleep: noSleep(&waits)}
	boom := errors.New("boom")

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error { calls++; return boom })
	require.ErrorIs(t, err, ErrAttemptsExhausted)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
	assert.Len(t, waits, 2)
}

func TestDo_Permanent(t *testing.T) {
	t.Parallel()

	var waits []time.Duration
	p := Policy{sleep: noSleep(&waits)}
	bad := errors.New("unsupported scheme")

	err := p.Do(context.Background(), func(context.Context) error { return Permanent(bad) })
	require.ErrorIs(t, err, bad)
	assert.Empty(t, waits)
	assert.NoError(t, Permanent(nil))
}

func TestDo_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Policy{InitialBackoff: time.Hour}.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("network down")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_RealSleepHonorsCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := Policy{InitialBackoff: time.Hour}.Do(ctx, func(context.Context) error {
		return errors.New("fail")
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSchedule(t *testing.T) {
	t.Parallel()

	cases := []struct {
		initial, max time.Duration
		want         []time.Duration
	}{
		{time.Second, time.Minute, []time.Duration{
			time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
			16 * time.Second, 32 * time.Second, time.Minute, time.Minute,
		}},
		{2 * time.Minute, time.Minute, []time.Duration{time.Minute, time.Minute}},
		{300 * time.Millisecond, time.Second, []time.Duration{
			300 * time.Millisecond, 600 * time.Millisecond, time.Second, time.Second,
		}},
	}
	for _, c := range cases {
		s := newSchedule(c.initial, c.max)
		got := make([]time.Duration, len(c.want))
		for i := range got {
			got[i] = s.next()
		}
		assert.Equal(t, c.want, got, "initial=%v max=%v", c.initial, c.max)
	}
}
