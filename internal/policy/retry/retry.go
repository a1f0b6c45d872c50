// Package retry centralizes the retry policy shared by the primary-site
// and mirror resolution paths.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net"
	"time"
)

// Policy is an exponential backoff retry policy with jitter. Retryable
// decides per error; when nil, everything except context cancellation and
// plain timeouts is retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Retryable   func(error) bool
}

// Default builds a policy with sane defaults.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// WithAttempts returns a copy of p bounded to n attempts. Zero or
// negative n leaves p unchanged.
func (p Policy) WithAttempts(n int) Policy {
	if n > 0 {
		p.MaxAttempts = n
	}
	return p
}

// Do runs op until it succeeds, the attempt budget is spent, or the error
// is not retryable. It returns the number of attempts made and the last
// error.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) (int, error) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt, err
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return attempt + 1, nil
		}
		if !p.shouldRetry(lastErr, attempt+1, attempts) {
			return attempt + 1, lastErr
		}
		select {
		case <-ctx.Done():
			return attempt + 1, lastErr
		case <-time.After(p.backoff(attempt)):
		}
	}
	return attempts, lastErr
}

func (p Policy) shouldRetry(err error, attempt, budget int) bool {
	if attempt >= budget {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return true
}

func (p Policy) backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	delay := float64(base) * math.Pow(2, float64(attempt))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	jitter := randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
