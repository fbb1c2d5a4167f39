package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/tabscan/api/handler"
	"github.com/use-agent/tabscan/api/middleware"
	"github.com/use-agent/tabscan/cache"
	"github.com/use-agent/tabscan/config"
	"github.com/use-agent/tabscan/scanner"
	"github.com/use-agent/tabscan/webhook"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
// Background housekeeping (rate-limit, cache and batch expiry) stops when
// ctx is done.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// The status endpoint sits outside auth so monitoring probes always work.
func NewRouter(ctx context.Context, sc *scanner.Scanner, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Status needs no auth.
	v1.GET("/status", handler.Status(sc))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	// Scans
	cc := cache.New(ctx, cfg.Cache.MaxEntries, cfg.Cache.TTL)
	protected.POST("/scan/query", handler.ScanQuery(sc, cc))
	protected.POST("/scan/explore", handler.ScanExplore(sc, cc))

	// Batch
	batches := handler.NewBatches(ctx, sc, cfg.Batch, webhook.New())
	protected.POST("/batch/scan", batches.Post())
	protected.GET("/batch/:id", batches.Get())

	return r
}
