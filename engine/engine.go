package engine

import (
	"context"
	"time"
)

// Engine is the interface that all fetch engines must implement.
// Fetch performs a single attempt; retries are layered on top by Fetcher.
type Engine interface {
	// Name returns the engine identifier (e.g. "http", "browser", "auto").
	Name() string

	// Fetch retrieves the page content for the given request. Engines must
	// abort the outbound request when ctx is done.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything needed to fetch a page. It is built
// fresh for every scan and never mutated.
type FetchRequest struct {
	URL     string
	Headers map[string]string

	// Timeout bounds each attempt. Non-positive means DefaultTimeout.
	Timeout time.Duration

	// MaxRetries is the number of extra attempts after a failure.
	MaxRetries int
}

// DefaultTimeout is used when a FetchRequest carries no timeout.
const DefaultTimeout = 45 * time.Second

// FetchResult is the output of a successful fetch.
type FetchResult struct {
	HTML       string
	Title      string
	StatusCode int
	FinalURL   string
	EngineName string

	// Elapsed runs from the start of the first attempt until the body of the
	// successful one was read. Set by Fetcher.
	Elapsed time.Duration

	// Attempts is the number of attempts made, including the successful one.
	Attempts int
}
