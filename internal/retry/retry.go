// Package retry runs outbound calls with bounded exponential backoff.
//
// The delay starts at Policy.InitialDelay and doubles after every failed attempt.
// There is no jitter. A call that keeps failing is attempted MaxRetries+1 times and
// then reported as ErrExhausted wrapping the last error. Errors marked with
// Permanent stop the loop immediately and are returned unchanged.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Multiplier is the fixed growth factor between consecutive delays.
const Multiplier = 2

// ErrExhausted is matched by errors.Is when every attempt failed.
var ErrExhausted = errors.New("retries exhausted")

// Policy configures how often and how patiently a call is retried.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
}

// DefaultPolicy matches the vendor plugin defaults: 5 retries starting at 1s.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 5, InitialDelay: time.Second}
}

// Validate rejects policies that cannot be executed.
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", p.MaxRetries)
	}
	if p.InitialDelay < 0 {
		return fmt.Errorf("initial delay must be >= 0, got %s", p.InitialDelay)
	}
	return nil
}

// Delays returns the waits the policy inserts between attempts, in order.
// Waits saturate at math.MaxInt64 like the backoff engine does.
func (p Policy) Delays() []time.Duration {
	n := max(p.MaxRetries, 0)
	out := make([]time.Duration, 0, n)
	d := p.InitialDelay
	for i := 0; i < n; i++ {
		out = append(out, d)
		if d > time.Duration(math.MaxInt64)/Multiplier {
			d = time.Duration(math.MaxInt64)
		} else {
			d *= Multiplier
		}
	}
	return out
}

// ExhaustedError carries the last failure after all attempts were used.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrExhausted) match.
func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Transport executes operations under a fixed Policy.
type Transport struct {
	policy Policy
	log    *slog.Logger

	// onRetry observes every scheduled wait; used by tests.
	onRetry func(attempt int, delay time.Duration, err error)
}

// New creates a Transport. A nil logger falls back to the default logger.
func New(p Policy, log *slog.Logger) *Transport {
	if log == nil {
		log = slog.Default().With("component", "retry")
	}
	return &Transport{policy: p, log: log}
}

// Policy returns the policy the transport was built with.
func (t *Transport) Policy() Policy { return t.policy }

func (t *Transport) backOff(ctx context.Context) backoff.BackOff {
	eb := &backoff.ExponentialBackOff{
		InitialInterval:     t.policy.InitialDelay,
		RandomizationFactor: 0,
		Multiplier:          Multiplier,
		MaxInterval:         time.Duration(math.MaxInt64),
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	var b backoff.BackOff = backoff.WithMaxRetries(eb, uint64(max(t.policy.MaxRetries, 0)))
	return backoff.WithContext(b, ctx)
}

// Run executes op until it succeeds, fails permanently or runs out of attempts.
func (t *Transport) Run(ctx context.Context, name string, op func(ctx context.Context) error) error {
	_, err := Do(ctx, t, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Do executes op with t's policy and returns its value.
//
// If ctx ends while waiting or while an attempt is in flight, Do stops and returns
// ctx.Err(). No timer outlives the call.
func Do[T any](ctx context.Context, t *Transport, name string, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := 0
	permanent := false

	wrapped := func() (T, error) {
		attempts++
		v, err := op(ctx)
		if err != nil {
			var perr *backoff.PermanentError
			permanent = errors.As(err, &perr)
		}
		return v, err
	}

	notify := func(err error, delay time.Duration) {
		t.log.Warn("call failed, backing off", "op", name, "attempt", attempts, "delay", delay, "error", err)
		if t.onRetry != nil {
			t.onRetry(attempts, delay, err)
		}
	}

	v, err := backoff.RetryNotifyWithData[T](wrapped, t.backOff(ctx), notify)
	if err == nil {
		if attempts > 1 {
			t.log.Debug("call succeeded after retry", "op", name, "attempts", attempts)
		}
		return v, nil
	}

	var zero T
	if cerr := ctx.Err(); cerr != nil {
		return zero, cerr
	}
	if permanent {
		return zero, err
	}
	t.log.Warn("giving up", "op", name, "attempts", attempts, "error", err)
	return zero, &ExhaustedError{Attempts: attempts, Err: err}
}
