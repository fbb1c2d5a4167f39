package models

// SongRecord is one validated listing entry.
// FullURL always contains TabID; records that fail that check are never emitted.
type SongRecord struct {
	Band      string `json:"band"`
	SongTitle string `json:"song_title"`
	TabID     string `json:"tab_id"`
	FullURL   string `json:"full_url"`
}

// ScanResults holds the structured output of a listing-mode scan.
type ScanResults struct {
	TotalSongs int          `json:"total_songs"`
	Songs      []SongRecord `json:"songs"`
}

// ScanResult is the uniform envelope returned for every scan, successful or not.
type ScanResult struct {
	// Success indicates whether the fetch and extraction both completed.
	Success bool `json:"success"`

	// ResponseTimeMs is the wall-clock duration of the whole scan, rounded up.
	ResponseTimeMs int64 `json:"response_time_ms"`

	// URL is the target page that was fetched.
	URL string `json:"url,omitempty"`

	// HTTPStatus is the status code of the last response received, if any.
	HTTPStatus int `json:"http_status,omitempty"`

	// Attempts is the number of fetch attempts made.
	Attempts int `json:"attempts,omitempty"`

	// Engine names the fetch engine that produced the body.
	Engine string `json:"engine,omitempty"`

	// Results is populated in listing mode.
	Results *ScanResults `json:"results,omitempty"`

	// RawHTML and Title are populated in raw (diagnostic) mode.
	RawHTML string `json:"raw_html,omitempty"`
	Title   string `json:"title,omitempty"`

	// CacheStatus is "hit" or "miss" when the caller asked for a cached result.
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false. ErrorMessage repeats
	// Error.Message for clients that read the error as a plain string.
	Error        *ErrorDetail `json:"error,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// SetError marks r as failed with detail.
func (r *ScanResult) SetError(detail *ErrorDetail) {
	r.Success = false
	r.Error = detail
	r.ErrorMessage = ""
	if detail != nil {
		r.ErrorMessage = detail.Message
	}
}

// ScraperStatus is the static readiness descriptor of the scanning subsystem.
type ScraperStatus struct {
	ConfiguredEndpoints []string `json:"configured_endpoints"`
	DefaultTimeoutMs    int64    `json:"default_timeout_ms"`
	DefaultRetries      int      `json:"default_retries"`
	Engines             []string `json:"engines"`
	Ready               bool     `json:"ready"`
	Version             string   `json:"version"`
}

// ErrorResponse is written by middleware that rejects a request before any scan runs.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}
