// Package scanner combines fetching and extraction into single scans that
// always report their outcome in a models.ScanResult.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/use-agent/tabscan/config"
	"github.com/use-agent/tabscan/engine"
	"github.com/use-agent/tabscan/extractor"
	"github.com/use-agent/tabscan/models"
)

// Version is reported by Status.
const Version = "0.1.0"

// Options tune a single scan. Zero values select the configured defaults.
type Options struct {
	// Timeout bounds each fetch attempt. Clamped to the configured maximum.
	Timeout time.Duration

	// Retries is the number of extra attempts after a failure. Nil selects
	// the default; the value is clamped to the configured maximum.
	Retries *int

	// Mode is models.ModeListing (default) or models.ModeRaw.
	Mode string

	// Engine is models.EngineHTTP (default), models.EngineBrowser or
	// models.EngineAuto.
	Engine string
}

// OptionsFrom converts API scan options.
func OptionsFrom(o models.ScanOptions) Options {
	return Options{
		Timeout: time.Duration(o.TimeoutMs) * time.Millisecond,
		Retries: o.Retries,
		Mode:    o.Mode,
		Engine:  o.Engine,
	}
}

// Scanner runs scans against the configured site. It holds only immutable
// configuration and is safe for concurrent use.
type Scanner struct {
	site      config.SiteConfig
	cfg       config.ScannerConfig
	base      *url.URL
	extractor *extractor.Extractor
	engines   map[string]engine.Engine
}

// New builds a Scanner over the given engines, registered by name. When both
// an "http" and a "browser" engine are given, an "auto" engine that
// escalates from the first to the second is added.
func New(cfg *config.Config, engines ...engine.Engine) (*Scanner, error) {
	ex, err := extractor.New(cfg.Site, cfg.Selectors)
	if err != nil {
		return nil, fmt.Errorf("scanner: %w", err)
	}
	base, err := url.Parse(cfg.Site.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("scanner: base URL: %w", err)
	}

	s := &Scanner{
		site:      cfg.Site,
		cfg:       cfg.Scanner,
		base:      base,
		extractor: ex,
		engines:   make(map[string]engine.Engine, len(engines)+1),
	}
	for _, e := range engines {
		s.engines[e.Name()] = e
	}
	httpEng, hasHTTP := s.engines[models.EngineHTTP]
	browserEng, hasBrowser := s.engines[models.EngineBrowser]
	if hasHTTP && hasBrowser {
		s.engines[models.EngineAuto] = engine.NewDispatcher(httpEng, browserEng)
	}
	return s, nil
}

// ScanQuery searches the site for query and reports the result listings,
// or the raw search page in raw mode.
func (s *Scanner) ScanQuery(ctx context.Context, query string, opts Options) (result *models.ScanResult) {
	start := time.Now()
	defer s.recoverScan(start, &result)

	query = strings.TrimSpace(query)
	if query == "" {
		return s.fail(&models.ScanResult{}, start,
			models.NewScanError(models.ErrCodeInvalidInput, "query must not be empty", nil))
	}
	return s.scan(ctx, start, s.SearchURL(query), opts)
}

// ScanExplorePage scans one listing page. pageURL may be absolute, relative
// to the site, or empty for the configured explore page.
func (s *Scanner) ScanExplorePage(ctx context.Context, pageURL string, opts Options) (result *models.ScanResult) {
	start := time.Now()
	defer s.recoverScan(start, &result)

	target, err := s.ExploreURL(pageURL)
	if err != nil {
		return s.fail(&models.ScanResult{URL: pageURL}, start,
			models.NewScanError(models.ErrCodeInvalidInput, err.Error(), err))
	}
	return s.scan(ctx, start, target, opts)
}

func (s *Scanner) scan(ctx context.Context, start time.Time, target string, opts Options) *models.ScanResult {
	result := &models.ScanResult{URL: target}

	o, err := s.resolve(opts)
	if err != nil {
		return s.fail(result, start, err)
	}
	eng := s.engines[o.Engine]
	result.Engine = eng.Name()

	slog.Info("scan started", "url", target, "mode", o.Mode, "engine", eng.Name(),
		"timeout", o.Timeout, "retries", o.Retries)

	fetched, err := engine.NewFetcher(eng, s.cfg.RetryDelay).Fetch(ctx, &engine.FetchRequest{
		URL:        target,
		Timeout:    o.Timeout,
		MaxRetries: o.Retries,
	})
	if err != nil {
		var fe *engine.FetchError
		if errors.As(err, &fe) {
			result.HTTPStatus = fe.StatusCode
			result.Attempts = fe.Attempts
			return s.fail(result, start, fe.ToScanError())
		}
		return s.fail(result, start, models.NewScanError(models.ErrCodeInternal, "fetch failed", err))
	}

	result.HTTPStatus = fetched.StatusCode
	result.Attempts = fetched.Attempts
	result.Engine = fetched.EngineName

	switch o.Mode {
	case models.ModeRaw:
		page := extractor.ExtractSearchHTML(fetched.HTML)
		result.RawHTML = page.RawHTML
		result.Title = page.Title
		if result.Title == "" {
			result.Title = fetched.Title
		}
	default:
		songs, err := s.extractor.ExtractListingsAt(fetched.HTML, fetched.FinalURL)
		if err != nil {
			var se *models.ScanError
			if !errors.As(err, &se) {
				se = models.NewScanError(models.ErrCodeExtraction, "listing extraction failed", err)
			}
			return s.fail(result, start, se)
		}
		if len(songs) == 0 {
			slog.Info("scan found no listings", "url", target)
		}
		result.Results = &models.ScanResults{TotalSongs: len(songs), Songs: songs}
	}

	result.Success = true
	result.ResponseTimeMs = elapsedMs(start)
	slog.Info("scan finished", "url", target, "elapsed_ms", result.ResponseTimeMs,
		"attempts", result.Attempts, "songs", totalSongs(result))
	return result
}

// resolved is Options with defaults applied.
type resolved struct {
	Timeout time.Duration
	Retries int
	Mode    string
	Engine  string
}

func (s *Scanner) resolve(opts Options) (resolved, error) {
	o := resolved{
		Timeout: opts.Timeout,
		Retries: s.cfg.DefaultRetries,
		Mode:    opts.Mode,
		Engine:  opts.Engine,
	}
	if o.Timeout <= 0 {
		o.Timeout = s.cfg.DefaultTimeout
	}
	if s.cfg.MaxTimeout > 0 && o.Timeout > s.cfg.MaxTimeout {
		o.Timeout = s.cfg.MaxTimeout
	}
	if opts.Retries != nil {
		o.Retries = *opts.Retries
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.Retries > s.cfg.MaxRetries {
		o.Retries = s.cfg.MaxRetries
	}

	switch o.Mode {
	case "":
		o.Mode = models.ModeListing
	case models.ModeListing, models.ModeRaw:
	default:
		return o, models.NewScanError(models.ErrCodeInvalidInput, fmt.Sprintf("unknown mode %q", o.Mode), nil)
	}

	if o.Engine == "" {
		o.Engine = models.EngineHTTP
	}
	if _, ok := s.engines[o.Engine]; !ok {
		return o, models.NewScanError(models.ErrCodeInvalidInput, fmt.Sprintf("engine %q is not enabled", o.Engine), nil)
	}
	return o, nil
}

func (s *Scanner) fail(result *models.ScanResult, start time.Time, err error) *models.ScanResult {
	var se *models.ScanError
	if !errors.As(err, &se) {
		se = models.NewScanError(models.ErrCodeInternal, err.Error(), err)
	}
	result.Results = nil
	result.SetError(se.ToDetail())
	result.ResponseTimeMs = elapsedMs(start)
	slog.Warn("scan failed", "url", result.URL, "code", se.Code, "error", se.Error(),
		"elapsed_ms", result.ResponseTimeMs)
	return result
}

// recoverScan turns a panic anywhere in a scan into an INTERNAL_ERROR result.
func (s *Scanner) recoverScan(start time.Time, result **models.ScanResult) {
	if r := recover(); r != nil {
		slog.Error("scan panicked", "panic", r)
		target := ""
		if *result != nil {
			target = (*result).URL
		}
		*result = s.fail(&models.ScanResult{URL: target}, start,
			models.NewScanError(models.ErrCodeInternal, fmt.Sprintf("internal error: %v", r), nil))
	}
}

// elapsedMs rounds up so that any completed scan reports at least 1ms.
func elapsedMs(start time.Time) int64 {
	ms := int64((time.Since(start) + time.Millisecond - 1) / time.Millisecond)
	if ms < 1 {
		ms = 1
	}
	return ms
}

func totalSongs(r *models.ScanResult) int {
	if r.Results == nil {
		return 0
	}
	return r.Results.TotalSongs
}

// Engines lists the registered engine names in sorted order.
func (s *Scanner) Engines() []string {
	names := make([]string, 0, len(s.engines))
	for name := range s.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
