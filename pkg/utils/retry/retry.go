// Package retry bounds external calls with a per-attempt timeout and a small
// number of retries separated by exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/googleapis/gax-go/v2"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/utils/logging"
)

// Policy describes how a call is bounded and retried
type Policy struct {
	// Timeout bounds a single attempt. Zero means no per-attempt timeout.
	Timeout time.Duration
	// MaxRetries is the number of attempts after the first one
	MaxRetries int
	Initial    time.Duration
	Max        time.Duration
}

// Default is used for AI Text Service and Persistence Adapter calls
var Default = Policy{
	Timeout:    60 * time.Second,
	MaxRetries: 2,
	Initial:    500 * time.Millisecond,
	Max:        4 * time.Second,
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Do returns it without further attempts
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

func (p Policy) backoff() *gax.Backoff {
	return &gax.Backoff{
		Initial:    p.Initial,
		Max:        p.Max,
		Multiplier: 2,
	}
}

// Do runs fn until it succeeds, returns a permanent error, the context is
// done, or the retry budget is exhausted. fn receives a context bounded by
// the policy timeout.
func Do(ctx context.Context, p Policy, name string, fn func(ctx context.Context) error) error {
	bo := p.backoff()

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			pause := bo.Pause()
			logging.From(ctx).Debug("retrying call",
				"name", name,
				"attempt", attempt,
				"pause", pause,
				"error", lastErr,
			)
			if err := gax.Sleep(ctx, pause); err != nil {
				return goerr.Wrap(lastErr, "retry interrupted", goerr.V("name", name))
			}
		}

		lastErr = attemptOnce(ctx, p.Timeout, fn)
		if lastErr == nil {
			return nil
		}
		if isPermanent(lastErr) || ctx.Err() != nil {
			break
		}
	}

	return goerr.Wrap(lastErr, "call failed", goerr.V("name", name), goerr.V("max_retries", p.MaxRetries))
}

func attemptOnce(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}
