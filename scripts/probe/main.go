package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/use-agent/tabscan/models"
)

// CLI flags
var (
	apiURL = flag.String("api-url", "http://localhost:8080", "Tabscan API base URL")
	apiKey = flag.String("api-key", "", "API key for authenticated requests")
	runs   = flag.Int("runs", 3, "Number of runs per probe for averaging")
	engine = flag.String("engine", models.EngineHTTP, "Fetch engine to probe: http, browser or auto")
	output = flag.String("output", "probe-results.json", "JSON output file path")
)

// Probes cover the search endpoint with common and obscure queries plus
// the first two explore pages.
var probes = []struct {
	Label string
	Query string
	Page  int
}{
	{Label: "Search/popular", Query: "Hotel California Eagles"},
	{Label: "Search/band", Query: "Metallica"},
	{Label: "Search/rare", Query: "zzqx no such song"},
	{Label: "Explore/1", Page: 1},
	{Label: "Explore/2", Page: 2},
}

// --- Probe result types ---

type runResult struct {
	Run            int    `json:"run"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	HTTPStatus     int    `json:"http_status"`
	Attempts       int    `json:"attempts"`
	Songs          int    `json:"songs"`
	Success        bool   `json:"success"`
	ErrorCode      string `json:"error_code,omitempty"`
	Error          string `json:"error,omitempty"`
}

type probeAverages struct {
	ResponseTimeMs float64 `json:"response_time_ms"`
	Attempts       float64 `json:"attempts"`
	Songs          float64 `json:"songs"`
}

type probeResult struct {
	Label    string         `json:"label"`
	Target   string         `json:"target"`
	Runs     []runResult    `json:"runs"`
	Averages *probeAverages `json:"averages,omitempty"`
}

type probeReport struct {
	Timestamp  string               `json:"timestamp"`
	APIURL     string               `json:"api_url"`
	Engine     string               `json:"engine"`
	RunsPerURL int                  `json:"runs_per_probe"`
	Status     models.ScraperStatus `json:"status"`
	Results    []probeResult        `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== Tabscan Probe ===")
	fmt.Printf("API URL:     %s\n", *apiURL)
	fmt.Printf("Engine:      %s\n", *engine)
	fmt.Printf("Runs/probe:  %d\n", *runs)
	fmt.Printf("Output:      %s\n", *output)
	fmt.Println()

	client := resty.New().
		SetBaseURL(*apiURL).
		SetTimeout(5 * time.Minute).
		SetHeader("Content-Type", "application/json")
	if *apiKey != "" {
		client.SetAuthToken(*apiKey)
	}

	// Quick connectivity check.
	status, err := checkAPI(client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure tabscan is running (e.g. go run ./cmd/tabscan)\n")
		os.Exit(1)
	}
	if !status.Ready {
		fmt.Fprintln(os.Stderr, "Warning: scanner reports not ready")
	}

	report := probeReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		APIURL:     *apiURL,
		Engine:     *engine,
		RunsPerURL: *runs,
		Status:     status,
	}

	for _, p := range probes {
		target := p.Query
		if target == "" {
			target = fmt.Sprintf("explore page %d", p.Page)
		}
		fmt.Printf("Probing [%s] %s ...\n", p.Label, target)
		pr := probeResult{Label: p.Label, Target: target}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := probe(client, p.Query, p.Page, i)
			if rr.Success {
				fmt.Printf("OK  %dms  %d songs\n", rr.ResponseTimeMs, rr.Songs)
			} else {
				fmt.Printf("FAILED: [%s] %s\n", rr.ErrorCode, rr.Error)
			}
			pr.Runs = append(pr.Runs, rr)
		}

		pr.Averages = computeAverages(pr.Runs)
		report.Results = append(report.Results, pr)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(client *resty.Client) (models.ScraperStatus, error) {
	var status models.ScraperStatus
	resp, err := client.R().SetResult(&status).Get("/api/v1/status")
	if err != nil {
		return status, err
	}
	if resp.IsError() {
		return status, fmt.Errorf("status endpoint returned %d", resp.StatusCode())
	}
	return status, nil
}

func probe(client *resty.Client, query string, page, run int) runResult {
	rr := runResult{Run: run}

	var payload any
	path := "/api/v1/scan/query"
	opts := models.ScanOptions{Engine: *engine}
	if query != "" {
		payload = models.ScanQueryRequest{Query: query, ScanOptions: opts}
	} else {
		path = "/api/v1/scan/explore"
		payload = models.ScanExploreRequest{Page: page, ScanOptions: opts}
	}

	// Failed scans still return the envelope with a non-2xx status.
	var sr models.ScanResult
	_, err := client.R().SetBody(payload).SetResult(&sr).SetError(&sr).Post(path)
	if err != nil {
		rr.ErrorCode = "CLIENT"
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}

	rr.Success = sr.Success
	rr.ResponseTimeMs = sr.ResponseTimeMs
	rr.HTTPStatus = sr.HTTPStatus
	rr.Attempts = sr.Attempts
	if sr.Results != nil {
		rr.Songs = sr.Results.TotalSongs
	}
	if sr.Error != nil {
		rr.ErrorCode = sr.Error.Code
		rr.Error = sr.Error.Message
	}
	return rr
}

func computeAverages(runs []runResult) *probeAverages {
	var successCount int
	var avg probeAverages

	for _, r := range runs {
		if !r.Success {
			continue
		}
		successCount++
		avg.ResponseTimeMs += float64(r.ResponseTimeMs)
		avg.Attempts += float64(r.Attempts)
		avg.Songs += float64(r.Songs)
	}

	if successCount == 0 {
		return nil
	}

	n := float64(successCount)
	avg.ResponseTimeMs /= n
	avg.Attempts /= n
	avg.Songs /= n
	return &avg
}

func printTable(results []probeResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Probe", "Avg Latency", "Avg Attempts", "Avg Songs", "Errors"})

	for _, r := range results {
		errs := errorCodes(r.Runs)
		if r.Averages == nil {
			t.AppendRow(table.Row{r.Label, "FAILED", "-", "-", errs})
			continue
		}
		t.AppendRow(table.Row{
			r.Label,
			fmt.Sprintf("%dms", int64(r.Averages.ResponseTimeMs)),
			fmt.Sprintf("%.1f", r.Averages.Attempts),
			fmt.Sprintf("%.0f", r.Averages.Songs),
			errs,
		})
	}

	t.SetStyle(table.StyleLight)
	t.Render()
}

// errorCodes summarises failed runs as "CODE×n" in code order.
func errorCodes(runs []runResult) string {
	counts := map[string]int{}
	for _, r := range runs {
		if !r.Success {
			counts[r.ErrorCode]++
		}
	}
	if len(counts) == 0 {
		return "-"
	}
	codes := make([]string, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var out string
	for i, code := range codes {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s×%d", code, counts[code])
	}
	return out
}

func writeJSON(path string, report probeReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
