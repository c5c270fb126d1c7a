// Package retry runs fallible operations with bounded attempts and pure
// exponential backoff. Failures are returned as data, never as panics.
package retry

import (
	"context"
	"fmt"
	"time"
)

const defaultInitialBackoff = time.Second

// Attempt describes one execution of an operation.
type Attempt struct {
	Timestamp time.Time
	Attempt   int
	Success   bool
	Error     string
	Duration  time.Duration
}

// LogFunc receives every attempt, successful or not.
type LogFunc func(Attempt)

// Policy controls how Execute retries.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// InitialBackoff is slept after the first failure and doubled after each
	// subsequent one.
	InitialBackoff time.Duration
	// Log is called once per attempt. Optional.
	Log LogFunc
	// Sleep replaces the real delay, mostly for tests. Optional.
	Sleep SleepFunc
}

// Outcome is the result of Execute.
type Outcome[T any] struct {
	Success       bool
	Data          T
	Error         string
	Err           error
	Attempts      int
	TotalDuration time.Duration
}

// TotalDurationMs reports the total duration in milliseconds.
func (o Outcome[T]) TotalDurationMs() int64 {
	return o.TotalDuration.Milliseconds()
}

// Operation is the unit of work retried by Execute.
type Operation[T any] func(ctx context.Context) (T, error)

// Execute runs op up to p.MaxRetries+1 times. It returns on the first success,
// after the last failed attempt, or when ctx is cancelled during a backoff.
func Execute[T any](ctx context.Context, op Operation[T], p Policy) Outcome[T] {
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := p.InitialBackoff
	if backoff <= 0 {
		backoff = defaultInitialBackoff
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	start := time.Now()
	var out Outcome[T]
	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		attemptStart := time.Now()
		data, err := call(ctx, op)
		out.Attempts = attempt

		rec := Attempt{
			Timestamp: attemptStart,
			Attempt:   attempt,
			Success:   err == nil,
			Duration:  time.Since(attemptStart),
		}
		if err != nil {
			rec.Error = err.Error()
		}
		if p.Log != nil {
			p.Log(rec)
		}

		if err == nil {
			out.Success = true
			out.Data = data
			out.TotalDuration = time.Since(start)
			return out
		}

		out.Err = err
		out.Error = err.Error()

		if attempt > maxRetries {
			break
		}
		if serr := sleep(ctx, backoff); serr != nil {
			out.Err = fmt.Errorf("retry aborted after attempt %d: %w", attempt, serr)
			out.Error = out.Err.Error()
			break
		}
		backoff *= 2
	}
	out.TotalDuration = time.Since(start)
	return out
}

func call[T any](ctx context.Context, op Operation[T]) (data T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()
	return op(ctx)
}
