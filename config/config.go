package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Site      SiteConfig
	Scanner   ScannerConfig
	Selectors SelectorConfig
	Browser   BrowserConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Batch     BatchConfig
	Cache     CacheConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// SiteConfig describes the target tab site. Paths are resolved against BaseURL.
type SiteConfig struct {
	// BaseURL is the scheme and host of the target site.
	BaseURL string `json:"base_url"` // default: "https://www.ultimate-guitar.com"

	// SearchPath is the search endpoint; the query is appended as SearchParam.
	SearchPath string `json:"search_path"` // default: "/search.php?search_type=title"

	// SearchParam is the query-string key carrying the search terms.
	SearchParam string `json:"search_param"` // default: "value"

	// ExplorePath is the default listing page.
	ExplorePath string `json:"explore_path"` // default: "/explore"

	// TabURLTemplate builds a tab URL when an entry exposes only an id.
	// "{id}" is replaced with the tab id.
	TabURLTemplate string `json:"tab_url_template"` // default: "https://tabs.ultimate-guitar.com/tab/{id}"

	// TabPath marks a link as a tab page. Only links whose path contains it
	// may supply a tab id, so artist or forum links never do.
	TabPath string `json:"tab_path"` // default: "/tab/"
}

// ScannerConfig controls fetch timeouts and retries.
type ScannerConfig struct {
	// DefaultTimeout bounds each fetch attempt.
	DefaultTimeout time.Duration // default: 45s

	// MaxTimeout is the largest per-attempt timeout a caller may ask for.
	MaxTimeout time.Duration // default: 120s

	// DefaultRetries is the number of extra attempts after a failure.
	DefaultRetries int // default: 1

	// MaxRetries caps caller-supplied retries.
	MaxRetries int // default: 5

	// RetryDelay is slept between attempts. Zero means immediate retry.
	RetryDelay time.Duration // default: 0

	// UserAgent overrides the browser-like User-Agent sent by the HTTP engine.
	UserAgent string
}

// SelectorConfig holds the CSS selectors used to locate listing entries.
// Several comma-separated alternatives can be given for each field so the
// extractor keeps working across markup revisions.
type SelectorConfig struct {
	Entry string `json:"entry"`
	Band  string `json:"band"`
	Title string `json:"title"`
	Link  string `json:"link"`
	Store string `json:"store"`
}

// BrowserConfig controls the optional headless browser engine.
type BrowserConfig struct {
	// Enabled launches Chromium at startup and registers the browser engine.
	Enabled bool // default: false

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// BlockedResourceTypes lists resource types to block while rendering.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting of the API.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// BatchConfig controls batch scan jobs.
type BatchConfig struct {
	// Concurrency is the number of queries scanned at once per batch.
	Concurrency int // default: 4

	// JobTTL is how long finished jobs stay queryable.
	JobTTL time.Duration // default: 1h
}

// CacheConfig controls the scan result cache.
type CacheConfig struct {
	// MaxEntries bounds the number of cached results.
	MaxEntries int // default: 1000

	// TTL is how long a result is kept regardless of the caller's max age.
	TTL time.Duration // default: 1h
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// DefaultSite targets the public tab site.
func DefaultSite() SiteConfig {
	return SiteConfig{
		BaseURL:        "https://www.ultimate-guitar.com",
		SearchPath:     "/search.php?search_type=title",
		SearchParam:    "value",
		ExplorePath:    "/explore",
		TabURLTemplate: "https://tabs.ultimate-guitar.com/tab/{id}",
		TabPath:        "/tab/",
	}
}

// DefaultSelectors matches the listing markup of the explore and search pages.
func DefaultSelectors() SelectorConfig {
	return SelectorConfig{
		Entry: "[data-listing-entry], article.tab-listing, div.js-listing, tr.listing-row",
		Band:  "[data-band], .artist, .band",
		Title: "[data-song], .song, .title",
		Link:  "a[href*='/tab/'], a.tab-link",
		Store: "div.js-store[data-content]",
	}
}

// Load reads configuration from environment variables with sane defaults.
// If TABSCAN_CONFIG_FILE is set, the site and selector sections of that file
// are merged on top (see ApplyFile).
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: envOr("TABSCAN_HOST", "0.0.0.0"),
			Port: envIntOr("TABSCAN_PORT", 8080),
			Mode: envOr("TABSCAN_MODE", "release"),
		},
		Site: siteFromEnv(DefaultSite()),
		Scanner: ScannerConfig{
			DefaultTimeout: envDurationOr("TABSCAN_DEFAULT_TIMEOUT", 45*time.Second),
			MaxTimeout:     envDurationOr("TABSCAN_MAX_TIMEOUT", 120*time.Second),
			DefaultRetries: envIntOr("TABSCAN_DEFAULT_RETRIES", 1),
			MaxRetries:     envIntOr("TABSCAN_MAX_RETRIES", 5),
			RetryDelay:     envDurationOr("TABSCAN_RETRY_DELAY", 0),
			UserAgent:      os.Getenv("TABSCAN_USER_AGENT"),
		},
		Selectors: selectorsFromEnv(DefaultSelectors()),
		Browser: BrowserConfig{
			Enabled:    envBoolOr("TABSCAN_BROWSER_ENABLED", false),
			Headless:   envBoolOr("TABSCAN_HEADLESS", true),
			NoSandbox:  envBoolOr("TABSCAN_NO_SANDBOX", false),
			BrowserBin: os.Getenv("TABSCAN_BROWSER_BIN"),
			BlockedResourceTypes: envSliceOr("TABSCAN_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("TABSCAN_AUTH_ENABLED", true),
			APIKeys: envSliceOr("TABSCAN_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("TABSCAN_RATE_RPS", 2.0),
			Burst:             envIntOr("TABSCAN_RATE_BURST", 5),
		},
		Batch: BatchConfig{
			Concurrency: envIntOr("TABSCAN_BATCH_CONCURRENCY", 4),
			JobTTL:      envDurationOr("TABSCAN_BATCH_TTL", time.Hour),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("TABSCAN_CACHE_MAX_ENTRIES", 1000),
			TTL:        envDurationOr("TABSCAN_CACHE_TTL", time.Hour),
		},
		Log: LogConfig{
			Level:  envOr("TABSCAN_LOG_LEVEL", "info"),
			Format: envOr("TABSCAN_LOG_FORMAT", "json"),
		},
	}

	if path := os.Getenv("TABSCAN_CONFIG_FILE"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func siteFromEnv(s SiteConfig) SiteConfig {
	s.BaseURL = envOr("TABSCAN_BASE_URL", s.BaseURL)
	s.SearchPath = envOr("TABSCAN_SEARCH_PATH", s.SearchPath)
	s.SearchParam = envOr("TABSCAN_SEARCH_PARAM", s.SearchParam)
	s.ExplorePath = envOr("TABSCAN_EXPLORE_PATH", s.ExplorePath)
	s.TabURLTemplate = envOr("TABSCAN_TAB_URL_TEMPLATE", s.TabURLTemplate)
	s.TabPath = envOr("TABSCAN_TAB_PATH", s.TabPath)
	return s
}

// selectorsFromEnv overrides individual selectors. These are read whole
// because selector lists contain commas.
func selectorsFromEnv(s SelectorConfig) SelectorConfig {
	s.Entry = envOr("TABSCAN_SELECTOR_ENTRY", s.Entry)
	s.Band = envOr("TABSCAN_SELECTOR_BAND", s.Band)
	s.Title = envOr("TABSCAN_SELECTOR_TITLE", s.Title)
	s.Link = envOr("TABSCAN_SELECTOR_LINK", s.Link)
	s.Store = envOr("TABSCAN_SELECTOR_STORE", s.Store)
	return s
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
