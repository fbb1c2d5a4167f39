package models

// Scan modes.
const (
	ModeListing = "listing"
	ModeRaw     = "raw"
)

// Fetch engines selectable per scan.
const (
	EngineHTTP    = "http"
	EngineBrowser = "browser"
	EngineAuto    = "auto"
)

// ScanOptions are the per-scan knobs shared by every scan endpoint.
type ScanOptions struct {
	// TimeoutMs bounds each fetch attempt. Default: server default. Max: server max.
	TimeoutMs int `json:"timeout_ms,omitempty" binding:"omitempty,min=1"`

	// Retries is the number of extra attempts after the first failure.
	// A nil value means the server default; 0 disables retries.
	Retries *int `json:"retries,omitempty" binding:"omitempty,min=0"`

	// Mode selects structured listings ("listing", default) or the raw page ("raw").
	Mode string `json:"mode,omitempty" binding:"omitempty,oneof=listing raw"`

	// Engine selects the fetch engine: "http" (default), "browser" or "auto".
	Engine string `json:"engine,omitempty" binding:"omitempty,oneof=http browser auto"`

	// MaxAgeMs, when positive, allows a cached successful result up to this
	// old to be returned instead of scanning. Batch scans ignore it.
	MaxAgeMs int `json:"max_age_ms,omitempty" binding:"omitempty,min=0"`
}

// ScanQueryRequest is the payload for POST /api/v1/scan/query.
type ScanQueryRequest struct {
	// Query is the free-text search, e.g. "Hotel California Eagles". Required.
	Query string `json:"query" binding:"required"`

	ScanOptions
}

// ScanExploreRequest is the payload for POST /api/v1/scan/explore.
type ScanExploreRequest struct {
	// URL is an absolute or site-relative listing page. Empty means the
	// configured explore page.
	URL string `json:"url,omitempty"`

	// Page selects a numbered explore page when URL is empty.
	Page int `json:"page,omitempty" binding:"omitempty,min=1"`

	ScanOptions
}
