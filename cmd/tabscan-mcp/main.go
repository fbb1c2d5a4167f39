package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/tabscan/models"
)

func main() {
	apiURL := os.Getenv("TABSCAN_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("TABSCAN_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "TABSCAN_API_KEY is required")
		os.Exit(1)
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(apiURL, "/")).
		SetHeader("X-API-Key", apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Minute)

	s := server.NewMCPServer(
		"tabscan",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	scanQueryTool := mcp.NewTool("scan_query",
		mcp.WithDescription("Search the guitar tab site for a song or band and return the matching listings (band, song title, tab id, tab URL)."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Free-text search, e.g. 'Hotel California Eagles'"),
		),
		mcp.WithString("mode",
			mcp.Description("'listing' (default) returns structured songs; 'raw' returns the search page HTML"),
			mcp.Enum(models.ModeListing, models.ModeRaw),
		),
		mcp.WithString("engine",
			mcp.Description("Fetch engine: 'http' (default), 'browser' or 'auto'"),
			mcp.Enum(models.EngineHTTP, models.EngineBrowser, models.EngineAuto),
		),
		mcp.WithNumber("timeout_ms",
			mcp.Description("Per-attempt timeout in milliseconds (default: server default)"),
		),
		mcp.WithNumber("retries",
			mcp.Description("Extra attempts after a failure (default: server default)"),
		),
	)
	s.AddTool(scanQueryTool, handleScanQuery(client))

	scanExploreTool := mcp.NewTool("scan_explore",
		mcp.WithDescription("Scan a listing page of the tab site (the explore page by default) and return its song listings."),
		mcp.WithString("url",
			mcp.Description("Absolute or site-relative listing URL; empty for the explore page"),
		),
		mcp.WithNumber("page",
			mcp.Description("Explore page number, used when url is empty"),
		),
		mcp.WithString("engine",
			mcp.Description("Fetch engine: 'http' (default), 'browser' or 'auto'"),
			mcp.Enum(models.EngineHTTP, models.EngineBrowser, models.EngineAuto),
		),
	)
	s.AddTool(scanExploreTool, handleScanExplore(client))

	batchScanTool := mcp.NewTool("batch_scan",
		mcp.WithDescription("Run several searches in parallel and return the listings found for each."),
		mcp.WithArray("queries",
			mcp.Required(),
			mcp.Description("List of search queries"),
		),
	)
	s.AddTool(batchScanTool, handleBatchScan(client))

	statusTool := mcp.NewTool("scraper_status",
		mcp.WithDescription("Report the scanner's configured endpoints, defaults and readiness."),
	)
	s.AddTool(statusTool, handleStatus(client))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// scanOptions reads the shared option arguments of a tool call.
func scanOptions(request mcp.CallToolRequest) models.ScanOptions {
	opts := models.ScanOptions{
		TimeoutMs: request.GetInt("timeout_ms", 0),
		Mode:      request.GetString("mode", ""),
		Engine:    request.GetString("engine", ""),
	}
	if _, ok := request.GetArguments()["retries"]; ok {
		retries := request.GetInt("retries", 0)
		opts.Retries = &retries
	}
	return opts
}

// postScan posts a scan request and renders its ScanResult. Failed scans
// come back with a non-2xx status but still carry the envelope.
func postScan(ctx context.Context, client *resty.Client, path string, payload any) (*mcp.CallToolResult, error) {
	var result models.ScanResult
	resp, err := client.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		SetError(&result).
		Post(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
	}
	if !result.Success {
		if result.Error == nil {
			return mcp.NewToolResultError(fmt.Sprintf("scan failed with status %d", resp.StatusCode())), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", result.Error.Code, result.Error.Message)), nil
	}
	return mcp.NewToolResultText(formatResult(&result)), nil
}

func formatResult(r *models.ScanResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Source: %s (%s, %dms)\n\n", r.URL, r.Engine, r.ResponseTimeMs)
	if r.Results == nil {
		if r.Title != "" {
			fmt.Fprintf(&sb, "Title: %s\n\n", r.Title)
		}
		sb.WriteString(r.RawHTML)
		return sb.String()
	}
	fmt.Fprintf(&sb, "Found %d songs:\n\n", r.Results.TotalSongs)
	for _, song := range r.Results.Songs {
		fmt.Fprintf(&sb, "- %s - %s [%s] %s\n", song.Band, song.SongTitle, song.TabID, song.FullURL)
	}
	return sb.String()
}

func handleScanQuery(client *resty.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}
		return postScan(ctx, client, "/api/v1/scan/query", models.ScanQueryRequest{
			Query:       query,
			ScanOptions: scanOptions(request),
		})
	}
}

func handleScanExplore(client *resty.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return postScan(ctx, client, "/api/v1/scan/explore", models.ScanExploreRequest{
			URL:         request.GetString("url", ""),
			Page:        request.GetInt("page", 0),
			ScanOptions: scanOptions(request),
		})
	}
}

func handleBatchScan(client *resty.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		queries, err := request.RequireStringSlice("queries")
		if err != nil {
			return mcp.NewToolResultError("queries is required and must be an array of strings"), nil
		}

		var accepted models.BatchResponse
		resp, err := client.R().
			SetContext(ctx).
			SetBody(models.BatchRequest{Queries: queries}).
			SetResult(&accepted).
			Post("/api/v1/batch/scan")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("batch request failed: %v", err)), nil
		}
		if resp.IsError() || accepted.ID == "" {
			return mcp.NewToolResultError(fmt.Sprintf("batch job creation failed: %s", resp.String())), nil
		}

		status, err := pollBatch(ctx, client, accepted.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling batch job failed: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Batch %s: %s (%d/%d completed)\n\n", status.ID, status.Status, status.Completed, status.Total)
		for i, r := range status.Results {
			switch {
			case r == nil:
				fmt.Fprintf(&sb, "--- [%d] %s: pending ---\n\n", i+1, queries[i])
			case !r.Success:
				fmt.Fprintf(&sb, "--- [%d] %s: FAILED: %s ---\n\n", i+1, queries[i], r.Error.Message)
			default:
				fmt.Fprintf(&sb, "--- [%d] %s ---\n%s\n", i+1, queries[i], formatResult(r))
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// pollBatch polls a batch job until it leaves the processing state or ctx
// is done.
func pollBatch(ctx context.Context, client *resty.Client, id string) (*models.BatchStatusResponse, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			var status models.BatchStatusResponse
			resp, err := client.R().SetContext(ctx).SetResult(&status).Get("/api/v1/batch/" + id)
			if err != nil {
				return nil, fmt.Errorf("poll request failed: %w", err)
			}
			if resp.IsError() {
				return nil, fmt.Errorf("poll returned status %d", resp.StatusCode())
			}
			if status.Status != models.BatchProcessing {
				return &status, nil
			}
		}
	}
}

func handleStatus(client *resty.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp, err := client.R().SetContext(ctx).Get("/api/v1/status")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("status request failed: %v", err)), nil
		}

		var status models.ScraperStatus
		if err := json.Unmarshal(resp.Body(), &status); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse status: %v", err)), nil
		}
		pretty, _ := json.MarshalIndent(status, "", "  ")
		return mcp.NewToolResultText(string(pretty)), nil
	}
}
