package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/use-agent/tabscan/config"
	"github.com/use-agent/tabscan/engine"
	"github.com/use-agent/tabscan/models"
	"github.com/use-agent/tabscan/scanner"
)

var rootCmd = &cobra.Command{
	Use:   "tabscan-cli",
	Short: "tabscan-cli scans the guitar tab site from the command line.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if flags.verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// scanFlags are shared by every scanning subcommand.
type scanFlags struct {
	timeout time.Duration
	retries int
	raw     bool
	engine  string
	json    bool
	verbose bool
}

var flags scanFlags

func init() {
	pf := rootCmd.PersistentFlags()
	pf.DurationVar(&flags.timeout, "timeout", 0, "Per-attempt fetch timeout (default: configured default).")
	pf.IntVar(&flags.retries, "retries", -1, "Extra attempts after a failure (default: configured default).")
	pf.BoolVar(&flags.raw, "raw", false, "Return the raw page instead of structured listings.")
	pf.StringVar(&flags.engine, "engine", models.EngineHTTP, "Fetch engine: http, browser or auto.")
	pf.BoolVar(&flags.json, "json", false, "Print the full scan result as JSON.")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Log scan progress to stderr.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (f scanFlags) options() scanner.Options {
	opts := scanner.Options{Timeout: f.timeout, Engine: f.engine}
	if f.retries >= 0 {
		retries := f.retries
		opts.Retries = &retries
	}
	if f.raw {
		opts.Mode = models.ModeRaw
	}
	return opts
}

// newScanner builds an in-process scanner from the environment. The
// browser engine is launched only when it is asked for; the returned
// cleanup closes it.
func newScanner() (*scanner.Scanner, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	httpEngine := engine.NewHTTPEngine(cfg.Scanner.UserAgent)
	engines := []engine.Engine{httpEngine}
	cleanup := httpEngine.CloseIdleConnections

	if flags.engine != models.EngineHTTP {
		browser, err := engine.NewBrowserEngine(cfg.Browser)
		if err != nil {
			return nil, nil, fmt.Errorf("launch browser: %w", err)
		}
		engines = append(engines, browser)
		cleanup = func() {
			httpEngine.CloseIdleConnections()
			_ = browser.Close()
		}
	}

	sc, err := scanner.New(cfg, engines...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return sc, cleanup, nil
}

// printResult writes a scan result and turns a failed scan into an error
// so the process exits non-zero.
func printResult(w io.Writer, r *models.ScanResult) error {
	if flags.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return err
		}
	} else {
		renderResult(w, r)
	}
	if !r.Success {
		return fmt.Errorf("scan failed: [%s] %s", r.Error.Code, r.Error.Message)
	}
	return nil
}

func renderResult(w io.Writer, r *models.ScanResult) {
	if !r.Success {
		fmt.Fprintf(w, "%s: %s (%dms)\n", r.URL, r.Error.Code, r.ResponseTimeMs)
		return
	}
	if r.Results == nil {
		fmt.Fprintf(w, "%s\n%s\n", r.Title, r.RawHTML)
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Band", "Song", "Tab ID", "URL"})
	for i, song := range r.Results.Songs {
		t.AppendRow(table.Row{i + 1, song.Band, song.SongTitle, song.TabID, song.FullURL})
	}
	t.AppendFooter(table.Row{"", "", "", r.Results.TotalSongs, fmt.Sprintf("%s, %dms", r.Engine, r.ResponseTimeMs)})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
