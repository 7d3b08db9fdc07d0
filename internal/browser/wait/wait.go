// internal/browser/wait/wait.go
// Package wait implements the condition poller every readiness check is
// built on: evaluate a condition immediately, then at a fixed interval until
// it is satisfied, a non-ignored failure occurs, or the timeout elapses.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/xkilldash9x/webready/internal/browser/driver"
	"github.com/xkilldash9x/webready/internal/observability"
)

const (
	DefaultInterval = 50 * time.Millisecond
	DefaultTimeout  = 10 * time.Second
)

// Config parameterises one poll. It is a value: helpers return modified
// copies and a poll never observes later changes.
type Config struct {
	Interval time.Duration
	// Timeout is measured from the first evaluation. Zero means a single
	// evaluation.
	Timeout time.Duration
	// Ignored failure kinds count as "not yet ready" and are retried.
	Ignored driver.KindSet
	// SuppressTimeout turns the timeout failure into one final direct
	// evaluation whose result is returned as is.
	SuppressTimeout bool
}

// DefaultConfig polls every 50ms for up to 10s, ignoring the transient
// page states.
func DefaultConfig() Config {
	return Config{
		Interval: DefaultInterval,
		Timeout:  DefaultTimeout,
		Ignored:  driver.TransientKinds,
	}
}

func (c Config) WithTimeout(d time.Duration) Config  { c.Timeout = d; return c }
func (c Config) WithInterval(d time.Duration) Config { c.Interval = d; return c }

// Ignoring adds kinds to the ignored set.
func (c Config) Ignoring(kinds ...driver.Kind) Config {
	c.Ignored = c.Ignored.With(kinds...)
	return c
}

// Soft returns c with SuppressTimeout set.
func (c Config) Soft() Config { c.SuppressTimeout = true; return c }

func (c Config) String() string {
	return fmt.Sprintf("interval=%v timeout=%v ignored=%v soft=%t", c.Interval, c.Timeout, c.Ignored, c.SuppressTimeout)
}

func (c Config) normalize() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Timeout < 0 {
		c.Timeout = 0
	}
	return c
}

// Condition is evaluated on every attempt. It reports its value, whether the
// value satisfies the wait, and an error. An error of an ignored kind means
// "not yet ready"; any other error aborts the poll.
type Condition[T any] func(ctx context.Context) (T, bool, error)

// Predicate adapts a boolean check into a Condition whose value is the
// check's answer.
func Predicate(check func(ctx context.Context) (bool, error)) Condition[bool] {
	return func(ctx context.Context) (bool, bool, error) {
		ok, err := check(ctx)
		return ok, ok, err
	}
}

type outcome uint8

const (
	ready outcome = iota
	notYetReady
	failed
	cancelled
)

func (c Config) classify(ctx context.Context, satisfied bool, err error) outcome {
	switch {
	case err == nil && satisfied:
		return ready
	case err == nil:
		return notYetReady
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		return cancelled
	case c.Ignored.Has(driver.KindOf(err)):
		return notYetReady
	default:
		return failed
	}
}

// Until polls cond under cfg. It returns the first satisfying value. On
// timeout it fails with a KindTimeout *driver.Error wrapping the last ignored
// failure, unless cfg.SuppressTimeout is set, in which case cond is evaluated
// once more and that evaluation's value and error are returned.
//
// The interval is a lower bound between evaluations, so the poll can overrun
// the timeout by up to one interval. Cancelling ctx aborts the poll with
// ctx's error.
func Until[T any](ctx context.Context, cfg Config, cond Condition[T]) (T, error) {
	cfg = cfg.normalize()
	limiter := rate.NewLimiter(rate.Every(cfg.Interval), 1)
	start := time.Now()

	var (
		zero    T
		lastErr error
		evals   int
	)
	for {
		if err := pace(ctx, limiter); err != nil {
			observability.RecordPoll(observability.OutcomeCancelled, evals, time.Since(start))
			return zero, err
		}
		evals++
		v, ok, err := cond(ctx)
		switch cfg.classify(ctx, ok, err) {
		case ready:
			observability.RecordPoll(observability.OutcomeReady, evals, time.Since(start))
			return v, nil
		case failed:
			observability.RecordPoll(observability.OutcomeFailed, evals, time.Since(start))
			return v, err
		case cancelled:
			observability.RecordPoll(observability.OutcomeCancelled, evals, time.Since(start))
			return zero, err
		}
		if err != nil {
			lastErr = err
		}
		if time.Since(start) >= cfg.Timeout {
			break
		}
	}

	elapsed := time.Since(start)
	if cfg.SuppressTimeout {
		evals++
		v, _, err := cond(ctx)
		observability.RecordPoll(observability.OutcomeSoftTimeout, evals, time.Since(start))
		if err != nil {
			return v, fmt.Errorf("final evaluation after %v: %w", elapsed.Round(time.Millisecond), err)
		}
		return v, nil
	}

	observability.RecordPoll(observability.OutcomeTimeout, evals, elapsed)
	return zero, &driver.Error{Kind: driver.KindTimeout, Elapsed: elapsed, Err: lastErr}
}

// True polls check until it reports true. In soft mode a final false answer
// is returned with a nil error.
func True(ctx context.Context, cfg Config, check func(ctx context.Context) (bool, error)) (bool, error) {
	return Until(ctx, cfg, Predicate(check))
}

// pace blocks until the limiter grants the next evaluation. The first
// reservation of a fresh limiter is immediate.
func pace(ctx context.Context, limiter *rate.Limiter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r := limiter.Reserve()
	delay := r.Delay()
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
