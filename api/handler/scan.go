package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/tabscan/cache"
	"github.com/use-agent/tabscan/models"
	"github.com/use-agent/tabscan/scanner"
)

// StatusClientClosedRequest is the non-standard status used when the caller
// went away before the scan finished.
const StatusClientClosedRequest = 499

// ScanQuery returns a handler for POST /api/v1/scan/query.
//
// The body is always a full ScanResult; the HTTP status mirrors its error code.
// cc may be nil to disable caching.
func ScanQuery(sc *scanner.Scanner, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScanQueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondInvalid(c, err)
			return
		}

		key := cache.Key(sc.SearchURL(strings.TrimSpace(req.Query)), req.Mode, req.Engine)
		respondCached(c, cc, key, req.MaxAgeMs, func() *models.ScanResult {
			return sc.ScanQuery(c.Request.Context(), req.Query, scanner.OptionsFrom(req.ScanOptions))
		})
	}
}

// ScanExplore returns a handler for POST /api/v1/scan/explore.
//
// An empty url with page >= 2 scans that explore page; an empty url alone
// scans the configured explore page.
func ScanExplore(sc *scanner.Scanner, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScanExploreRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondInvalid(c, err)
			return
		}

		target := req.URL
		if target == "" && req.Page > 0 {
			target = sc.ExplorePageNumber(req.Page)
		}

		key := target
		if resolved, err := sc.ExploreURL(target); err == nil {
			key = resolved
		}
		respondCached(c, cc, cache.Key(key, req.Mode, req.Engine), req.MaxAgeMs, func() *models.ScanResult {
			return sc.ScanExplorePage(c.Request.Context(), target, scanner.OptionsFrom(req.ScanOptions))
		})
	}
}

// respondCached answers from cc when the caller allows a cached result,
// otherwise runs scan and caches a successful result.
func respondCached(c *gin.Context, cc *cache.Cache, key string, maxAgeMs int, scan func() *models.ScanResult) {
	useCache := cc != nil && maxAgeMs > 0
	if useCache {
		if hit, ok := cc.Get(key, time.Duration(maxAgeMs)*time.Millisecond); ok {
			hit.CacheStatus = "hit"
			c.JSON(http.StatusOK, hit)
			return
		}
	}

	result := scan()
	if useCache && result.Success {
		cc.Set(key, result)
		result.CacheStatus = "miss"
	}
	c.JSON(statusFor(result), result)
}

func respondInvalid(c *gin.Context, err error) {
	var result models.ScanResult
	result.SetError(&models.ErrorDetail{
		Code:    models.ErrCodeInvalidInput,
		Message: err.Error(),
	})
	c.JSON(http.StatusBadRequest, result)
}

// statusFor maps a scan outcome to the HTTP status code.
func statusFor(r *models.ScanResult) int {
	if r.Success || r.Error == nil {
		return http.StatusOK
	}
	switch r.Error.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNetwork, models.ErrCodeHTTP:
		return http.StatusBadGateway // 502
	case models.ErrCodeExtraction:
		return http.StatusUnprocessableEntity // 422
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeCanceled:
		return StatusClientClosedRequest // 499
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
