package engine

import (
	"context"
	"errors"
	"log/slog"
)

// Dispatcher tries engines in order, lightest first, and escalates to the
// next one when an engine fails or returns a page that looks like an empty
// JavaScript shell. It implements Engine so a Fetcher can retry it as a unit.
type Dispatcher struct {
	engines []Engine
}

// NewDispatcher creates a Dispatcher over engines, tried in the given order.
func NewDispatcher(engines ...Engine) *Dispatcher {
	return &Dispatcher{engines: engines}
}

func (d *Dispatcher) Name() string { return "auto" }

// Fetch returns the first acceptable result. If a later engine fails after an
// earlier one returned a shell page, the shell page is returned rather than
// nothing. With every engine failing, the last error is returned.
func (d *Dispatcher) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if len(d.engines) == 0 {
		return nil, errors.New("dispatcher: no engines configured")
	}

	var fallback *FetchResult
	var lastErr error
	for i, eng := range d.engines {
		last := i == len(d.engines)-1

		slog.Debug("engine starting", "engine", eng.Name(), "url", req.URL)
		result, err := eng.Fetch(ctx, req)
		if err != nil {
			slog.Debug("engine failed", "engine", eng.Name(), "url", req.URL, "error", err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if !last && NeedsBrowser(result.HTML) {
			slog.Debug("page looks client-rendered, escalating", "engine", eng.Name(), "url", req.URL)
			if fallback == nil {
				fallback = result
			}
			continue
		}
		return result, nil
	}

	if fallback != nil {
		return fallback, nil
	}
	return nil, lastErr
}
