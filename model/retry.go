package model

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/logging"
	"github.com/hupe1980/turnmesh/observability"
)

// RetryOptions configure the bounded transport retry schedule.
type RetryOptions struct {
	// MaxAttempts is the total number of attempts including the first one.
	MaxAttempts int
	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration
	// MaxInterval caps the exponential delay between retries.
	MaxInterval time.Duration
	// Logger receives one entry per failed attempt.
	Logger logging.Logger
	// Metrics records every attempt. Optional.
	Metrics *observability.Metrics
}

// DefaultRetryOptions returns three attempts with exponential backoff
// starting at 500ms and capped at 5s.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Logger:          logging.NoOpLogger{},
	}
}

type retryGenerator struct {
	next Generator
	opts RetryOptions
}

// WithRetry wraps g so transient failures are retried with exponential
// backoff. When every attempt fails the error is a *core.TransportError
// matching core.ErrTransportFailure. Context cancellation and deadline
// errors are never retried.
func WithRetry(g Generator, optFns ...func(o *RetryOptions)) Generator {
	opts := DefaultRetryOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	return &retryGenerator{next: g, opts: opts}
}

// Info implements Generator.
func (r *retryGenerator) Info() Info { return r.next.Info() }

// Generate implements Generator.
func (r *retryGenerator) Generate(ctx context.Context, prompt string, args Args) (string, error) {
	info := r.next.Info()
	attempts := 0

	op := func() (string, error) {
		attempts++
		start := time.Now()

		text, err := r.next.Generate(ctx, prompt, args)
		r.opts.Metrics.GenerationObserved(info.Provider, err, time.Since(start))
		if tl, ok := r.opts.Logger.(*logging.TurnLogger); ok {
			tl.LogGeneration(info.Provider, info.Name, attempts, time.Since(start), err)
		}
		if err == nil {
			return text, nil
		}

		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.InitialInterval
	b.MaxInterval = r.opts.MaxInterval

	text, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.opts.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.opts.Logger.Warn("model.generate.retry",
				"provider", info.Provider,
				"attempt", attempts,
				"next_in", next,
				"error", err.Error(),
			)
		}),
	)
	if err != nil {
		return "", &core.TransportError{Attempts: attempts, Err: err}
	}
	return text, nil
}
