package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Fetcher adds per-attempt timeouts and sequential retries to an Engine.
// Each attempt fully completes before the next begins, so a fetch takes at
// most (MaxRetries+1) * Timeout plus RetryDelay between attempts.
type Fetcher struct {
	engine     Engine
	retryDelay time.Duration
}

// NewFetcher wraps eng. retryDelay is slept between attempts; zero retries
// immediately.
func NewFetcher(eng Engine, retryDelay time.Duration) *Fetcher {
	return &Fetcher{engine: eng, retryDelay: retryDelay}
}

// Name reports the wrapped engine.
func (f *Fetcher) Name() string { return f.engine.Name() }

// Fetch runs up to req.MaxRetries+1 attempts. Timeouts, network errors and
// non-2xx responses are all retried. On failure the error is a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxAttempts := req.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	start := time.Now()
	fail := &FetchError{}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		result, err := f.engine.Fetch(attemptCtx, req)
		kind, status := KindNetwork, 0
		if err != nil {
			kind, status = classify(ctx, attemptCtx, err)
		}
		cancel()

		if err == nil {
			result.Elapsed = time.Since(start)
			result.Attempts = attempt
			if result.EngineName == "" {
				result.EngineName = f.engine.Name()
			}
			if attempt > 1 {
				slog.Info("fetch recovered after retry", "url", req.URL, "attempts", attempt)
			}
			return result, nil
		}

		fail.Kind = kind
		fail.Attempts = attempt
		fail.Err = err
		// Only the final attempt's status is reported.
		fail.StatusCode = status
		slog.Warn("fetch attempt failed",
			"url", req.URL,
			"engine", f.engine.Name(),
			"attempt", attempt,
			"kind", kind.String(),
			"error", err,
		)

		// The caller's context is done: further attempts cannot succeed.
		if ctx.Err() != nil {
			if kind != KindHTTP {
				fail.Kind = doneKind(ctx)
			}
			break
		}
		if attempt < maxAttempts && f.retryDelay > 0 {
			select {
			case <-ctx.Done():
				fail.Kind = doneKind(ctx)
				fail.Elapsed = time.Since(start)
				return nil, fail
			case <-time.After(f.retryDelay):
			}
		}
	}

	fail.Elapsed = time.Since(start)
	return nil, fail
}

// doneKind classifies a finished caller context. A caller deadline counts
// as a timeout, anything else as cancellation.
func doneKind(ctx context.Context) ErrorKind {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindCanceled
}
