package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/tabscan/api"
	"github.com/use-agent/tabscan/config"
	"github.com/use-agent/tabscan/engine"
	"github.com/use-agent/tabscan/scanner"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("tabscan starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"site", cfg.Site.BaseURL,
		"browser", cfg.Browser.Enabled,
	)

	// ── 3. Initialise engines ───────────────────────────────────────
	httpEngine := engine.NewHTTPEngine(cfg.Scanner.UserAgent)
	defer httpEngine.CloseIdleConnections()
	engines := []engine.Engine{httpEngine}

	if cfg.Browser.Enabled {
		browser, err := engine.NewBrowserEngine(cfg.Browser)
		if err != nil {
			slog.Error("failed to launch browser engine", "error", err)
			os.Exit(1)
		}
		defer browser.Close()
		engines = append(engines, browser)
	}

	// ── 4. Initialise scanner ───────────────────────────────────────
	sc, err := scanner.New(cfg, engines...)
	if err != nil {
		slog.Error("failed to initialise scanner", "error", err)
		os.Exit(1)
	}
	if st := sc.Status(); !st.Ready {
		slog.Warn("scanner configuration is incomplete", "endpoints", st.ConfiguredEndpoints)
	}
	slog.Info("scanner ready", "engines", sc.Engines())

	// ── 5. Setup router ─────────────────────────────────────────────
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	router := api.NewRouter(bgCtx, sc, cfg)

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// In-flight scans get the default per-attempt timeout to finish.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Scanner.DefaultTimeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Stops batch jobs and expiry loops; the browser closes via defer.
	stopBackground()
	slog.Info("tabscan stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
