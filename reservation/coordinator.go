package reservation

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"
)

const (
	defaultMaxAttempts  = 5
	defaultBaseDelay    = 20 * time.Millisecond
	defaultJitterFactor = 0.3
)

var (
	ErrInvalidMaxAttempts  = errors.New("max attempts must be positive")
	ErrNegativeBaseDelay   = errors.New("base delay must not be negative")
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

type retryConfig struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
}

// RetryOption configures the coordinator's backoff.
type RetryOption func(*retryConfig) error

func WithMaxAttempts(n int) RetryOption {
	return func(c *retryConfig) error {
		if n <= 0 {
			return ErrInvalidMaxAttempts
		}
		c.maxAttempts = n
		return nil
	}
}

// WithBaseDelay sets the first backoff; later ones double it.
func WithBaseDelay(d time.Duration) RetryOption {
	return func(c *retryConfig) error {
		if d < 0 {
			return ErrNegativeBaseDelay
		}
		c.baseDelay = d
		return nil
	}
}

func WithJitterFactor(f float64) RetryOption {
	return func(c *retryConfig) error {
		if f < 0.0 || f > 1.0 {
			return ErrInvalidJitterFactor
		}
		c.jitterFactor = f
		return nil
	}
}

// Coordinator runs a unit of work in one transaction, retrying the whole
// unit on transient storage failures (lost connection, deadlock, lock wait
// timeout, serialization failure) with exponential backoff.
//
// Core errors (validation, conflict, permission, ...) are never retried: the
// same input against the same state would be rejected again.
type Coordinator struct {
	runner TxRunner
	cfg    retryConfig
	log    *slog.Logger
}

func NewCoordinator(runner TxRunner, log *slog.Logger, opts ...RetryOption) (*Coordinator, error) {
	cfg := retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{runner: runner, cfg: cfg, log: log}, nil
}

// Execute runs fn inside a transaction. fn may run more than once, so it must
// derive everything it writes from what it reads through tx.
//
// Every failure comes back as *Error: a cancelled context is transient, and
// a storage error that is neither a core error nor transient is internal.
func (c *Coordinator) Execute(ctx context.Context, op string, fn func(tx Tx) error) error {
	var lastErr error

	for attempt := 0; attempt < c.cfg.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			c.log.Debug("retrying transaction", "op", op, "attempt", attempt+1, "delay", delay, "err", lastErr)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return cancelled(op, ctx.Err())
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return cancelled(op, ctxErr)
		}

		lastErr = c.runner.RunInTx(ctx, fn)
		if lastErr == nil {
			return nil
		}
		if KindOf(lastErr) != "" {
			return withOp(op, lastErr)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return cancelled(op, errors.Join(ctxErr, lastErr))
		}
		if !c.runner.IsTransient(lastErr) {
			c.log.Error("transaction failed", "op", op, "err", lastErr)
			return &Error{Kind: KindInternal, Op: op, Msg: "storage failure", Err: lastErr}
		}
	}

	c.log.Error("transaction retries exhausted", "op", op, "attempts", c.cfg.maxAttempts, "err", lastErr)
	return &Error{
		Kind: KindTransient,
		Op:   op,
		Msg:  "storage temporarily unavailable, please retry",
		Err:  lastErr,
	}
}

func cancelled(op string, err error) error {
	return &Error{Kind: KindTransient, Op: op, Msg: "request cancelled before completion", Err: err}
}

// backoff is baseDelay * 2^(attempt-1) plus jitter.
func (c *Coordinator) backoff(attempt int) time.Duration {
	delay := c.cfg.baseDelay * time.Duration(1<<(attempt-1))
	jitter := rand.Float64() * float64(delay) * c.cfg.jitterFactor //nolint:gosec // jitter does not need crypto rand
	return delay + time.Duration(jitter)
}
