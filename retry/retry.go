package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

type Class int

const (
	Retryable Class = iota
	Fatal
)

// Policy describes a bounded retry with capped exponential backoff.
// A Multiplier of 1 gives a fixed delay between attempts.
type Policy struct {
	MaxAttempts int           // total attempts including the first one
	BaseDelay   time.Duration // delay after the first failure
	MaxDelay    time.Duration // cap on any single delay
	Multiplier  int           // backoff factor, defaults to 2
	Jitter      time.Duration // random extra delay, 0 to disable

	// Classify decides whether an error is retryable.
	// If nil, every non-nil error is retried.
	Classify func(error) Class

	// OnRetry is an optional hook for logging or metrics.
	OnRetry func(attempt int, wait time.Duration, err error)

	// immediate keeps a zero BaseDelay instead of the default.
	immediate bool
}

// Once is a policy that never retries.
func Once() Policy {
	return Policy{MaxAttempts: 1}
}

// Fixed retries up to attempts times with the same delay in between.
// A delay of zero or less retries immediately.
func Fixed(attempts int, delay time.Duration) Policy {
	if delay <= 0 {
		return Policy{MaxAttempts: attempts, Multiplier: 1, immediate: true}
	}
	return Policy{MaxAttempts: attempts, BaseDelay: delay, MaxDelay: delay, Multiplier: 1}
}

// Delay returns the wait after the given failed attempt (1-based), without jitter.
func (p Policy) Delay(attempt int) time.Duration {
	p = p.normalized()
	wait := p.BaseDelay
	for i := 1; i < attempt; i++ {
		wait *= time.Duration(p.Multiplier)
		if wait >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if wait > p.MaxDelay {
		wait = p.MaxDelay
	}
	return wait
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.immediate {
		p.BaseDelay = 0
	} else if p.BaseDelay <= 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Second
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return p
}

// Do runs fn until it succeeds, returns a Fatal error, attempts run out or ctx is done.
// The last error from fn is returned.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	p = p.normalized()

	classify := p.Classify
	if classify == nil {
		classify = func(error) Class { return Retryable }
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if classify(err) == Fatal || attempt == p.MaxAttempts {
			break
		}

		wait := p.Delay(attempt)
		if p.Jitter > 0 {
			wait += time.Duration(rand.Int63n(int64(p.Jitter)))
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}

		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = errors.New("retry: exhausted with no error")
	}
	return lastErr
}
