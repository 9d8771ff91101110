// Package retry retries startup connections (report datasource, engine
// database) that may not be reachable yet.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Config defines retry behavior with exponential backoff
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0.0-1.0, fraction of the delay added or removed at random
	// MaxSameErrorType escalates a transient error to permanent after this many
	// consecutive failures of the same kind. Zero disables escalation.
	MaxSameErrorType int
	// OnRetry, when set, is called before every wait.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultConfig returns defaults for database connects:
// 3 retries with 100ms initial delay, capped at 5s, doubling each time, with 10% jitter
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:       3,
		InitialDelay:     100 * time.Millisecond,
		MaxDelay:         5 * time.Second,
		Multiplier:       2.0,
		JitterFactor:     0.1,
		MaxSameErrorType: 5,
	}
}

// nextDelay returns the wait after delay, capped at MaxDelay.
func (c *Config) nextDelay(delay time.Duration) time.Duration {
	next := time.Duration(float64(delay) * c.Multiplier)
	if c.MaxDelay > 0 && next > c.MaxDelay {
		return c.MaxDelay
	}
	return next
}

// withJitter spreads delay by up to +/- JitterFactor.
func (c *Config) withJitter(delay time.Duration) time.Duration {
	if c.JitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * c.JitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}

// Do executes fn with exponential backoff, retrying every error.
// Returns the last error once retries are exhausted, or ctx.Err() when ctx
// ends during a wait.
func Do(ctx context.Context, cfg *Config, fn func() error) error {
	_, err := run(ctx, cfg, false, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult is Do for functions that produce a value, such as opening a
// connection pool. The last result is returned alongside the last error.
func DoWithResult[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	return run(ctx, cfg, false, fn)
}

// DoIfRetryable only retries transient errors (see IsRetryable).
// Permanent errors such as bad credentials or an unknown database return
// immediately.
func DoIfRetryable(ctx context.Context, cfg *Config, fn func() error) error {
	_, err := run(ctx, cfg, true, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResultIfRetryable is DoIfRetryable for functions that produce a value.
func DoWithResultIfRetryable[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	return run(ctx, cfg, true, fn)
}

func run[T any](ctx context.Context, cfg *Config, transientOnly bool, fn func() (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var (
		result   T
		lastErr  error
		lastKind string
		sameKind int
	)
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		r, err := fn()
		if err == nil {
			return r, nil
		}
		result, lastErr = r, err

		if transientOnly {
			if !IsRetryable(err) {
				return result, err
			}
			kind := classifyErrorType(err)
			if kind == lastKind {
				sameKind++
			} else {
				lastKind, sameKind = kind, 1
			}
			if cfg.MaxSameErrorType > 0 && sameKind >= cfg.MaxSameErrorType {
				return result, fmt.Errorf("repeated error (%d times, type=%s): %w", sameKind, kind, err)
			}
		}

		if attempt == cfg.MaxRetries {
			break
		}

		wait := cfg.withJitter(delay)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, wait, err)
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			delay = cfg.nextDelay(delay)
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		}
	}

	return result, lastErr
}

// RetryableError is implemented by errors that declare their own retryability.
type RetryableError interface {
	error
	IsRetryable() bool
}

var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"timeout",
	"timed out",
	"temporary failure",
	"too many connections",
	"network is unreachable",
	"the database system is starting up",
	"the database system is shutting down",
	"server closed the connection",
	"login timeout",
	"failed to connect",
	"unexpected eof",
	"database is locked",
}

// IsRetryable reports whether err is transient. A RetryableError decides for
// itself; anything else is matched against known connection failure messages.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var r RetryableError
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// classifyErrorType buckets err so repeated failures of one kind can be detected.
func classifyErrorType(err error) string {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "failed to connect"):
		return "connection"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return "timeout"
	case strings.Contains(msg, "starting up"), strings.Contains(msg, "shutting down"):
		return "startup"
	case strings.Contains(msg, "too many connections"):
		return "pool_exhausted"
	case strings.Contains(msg, "database is locked"):
		return "locked"
	}
	return "other"
}
