package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/use-agent/tabscan/models"
)

// ErrorKind classifies a failed fetch.
type ErrorKind int

const (
	// KindNetwork covers refused or reset connections and DNS failures.
	KindNetwork ErrorKind = iota
	// KindTimeout means an attempt got no complete response in time.
	KindTimeout
	// KindHTTP means the server answered with a non-2xx status.
	KindHTTP
	// KindCanceled means the caller gave up before the fetch finished.
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindHTTP:
		return "http_error"
	case KindCanceled:
		return "canceled"
	default:
		return "network_error"
	}
}

// Code maps the kind onto the API error code.
func (k ErrorKind) Code() string {
	switch k {
	case KindTimeout:
		return models.ErrCodeTimeout
	case KindHTTP:
		return models.ErrCodeHTTP
	case KindCanceled:
		return models.ErrCodeCanceled
	default:
		return models.ErrCodeNetwork
	}
}

// StatusError is returned by engines when the server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d %s for %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// FetchError is the classified failure returned by Fetcher once every
// attempt has failed or the caller's context ended.
type FetchError struct {
	Kind ErrorKind

	// StatusCode is the last HTTP status seen, or 0 if no response arrived.
	StatusCode int

	Elapsed  time.Duration
	Attempts int

	// Err is the error of the last attempt.
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed (%s) after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Message is the human-readable classification shown to callers.
func (e *FetchError) Message() string {
	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf("request timed out after %d attempt(s)", e.Attempts)
	case KindHTTP:
		return fmt.Sprintf("server responded with HTTP %d after %d attempt(s)", e.StatusCode, e.Attempts)
	case KindCanceled:
		return "scan canceled by caller"
	default:
		return fmt.Sprintf("network error after %d attempt(s): %v", e.Attempts, e.Err)
	}
}

// ToScanError converts the failure to the error type used in scan results.
func (e *FetchError) ToScanError() *models.ScanError {
	return models.NewScanError(e.Kind.Code(), e.Message(), e)
}

// classify decides the kind of a single failed attempt. attemptCtx is the
// per-attempt context and parent the caller's.
func classify(parent, attemptCtx context.Context, err error) (ErrorKind, int) {
	var se *StatusError
	if errors.As(err, &se) {
		return KindHTTP, se.StatusCode
	}
	if errors.Is(parent.Err(), context.Canceled) {
		return KindCanceled, 0
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return KindTimeout, 0
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled, 0
	}
	return KindNetwork, 0
}
