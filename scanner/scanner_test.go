package scanner

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/tabscan/config"
	"github.com/use-agent/tabscan/engine"
	"github.com/use-agent/tabscan/models"
)

const searchPage = `<!DOCTYPE html>
<html><head><title>Hotel California Eagles - search</title></head>
<body>
  <table>
    <tr class="listing-row">
      <td class="band"><a href="/artist/eagles-41">Eagles</a></td>
      <td><a class="tab-link title" href="/tab/eagles/hotel-california-chords-46190">Hotel California</a></td>
    </tr>
    <tr class="listing-row">
      <td class="band"><a href="/artist/eagles-41">Eagles</a></td>
      <td><a class="tab-link title" href="/tab/eagles/hotel-california-solo-tabs-11412">Hotel California (Solo)</a></td>
    </tr>
  </table>
</body></html>`

const explorePage = `<html><head><title>Explore</title></head><body>
  <article class="tab-listing">
    <span class="artist">Metallica</span>
    <a class="song" href="/tab/metallica/enter-sandman-tabs-12345">Enter Sandman</a>
  </article>
  <article class="tab-listing">
    <span class="artist">Broken entry without a song</span>
  </article>
</body></html>`

func ptr(i int) *int { return &i }

func testConfig(baseURL string) *config.Config {
	site := config.DefaultSite()
	site.BaseURL = baseURL
	return &config.Config{
		Site: site,
		Scanner: config.ScannerConfig{
			DefaultTimeout: 45 * time.Second,
			MaxTimeout:     120 * time.Second,
			DefaultRetries: 1,
			MaxRetries:     5,
		},
		Selectors: config.DefaultSelectors(),
	}
}

func newTestScanner(t *testing.T, baseURL string) *Scanner {
	t.Helper()
	s, err := New(testConfig(baseURL), engine.NewHTTPEngine(""))
	require.NoError(t, err)
	return s
}

func siteServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search.php", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("value") != "Hotel California Eagles" || r.URL.Query().Get("search_type") != "title" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(searchPage))
	})
	mux.HandleFunc("/explore", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(explorePage))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestScanQueryRawMode(t *testing.T) {
	srv := siteServer(t)
	s := newTestScanner(t, srv.URL)

	res := s.ScanQuery(context.Background(), "Hotel California Eagles", Options{
		Timeout: 45 * time.Second,
		Retries: ptr(1),
		Mode:    models.ModeRaw,
	})

	require.True(t, res.Success, "error: %+v", res.Error)
	assert.Positive(t, res.ResponseTimeMs)
	assert.NotEmpty(t, res.RawHTML)
	assert.Equal(t, searchPage, res.RawHTML)
	assert.Equal(t, "Hotel California Eagles - search", res.Title)
	assert.Nil(t, res.Results)
	assert.Nil(t, res.Error)
	assert.Equal(t, http.StatusOK, res.HTTPStatus)
	assert.Equal(t, 1, res.Attempts)
}

func TestScanQueryListingMode(t *testing.T) {
	srv := siteServer(t)
	s := newTestScanner(t, srv.URL)

	res := s.ScanQuery(context.Background(), "  Hotel California Eagles ", Options{Timeout: 45 * time.Second, Retries: ptr(1)})

	require.True(t, res.Success, "error: %+v", res.Error)
	assert.Positive(t, res.ResponseTimeMs)
	require.NotNil(t, res.Results)
	require.Equal(t, 2, res.Results.TotalSongs)
	require.Len(t, res.Results.Songs, 2)

	first := res.Results.Songs[0]
	assert.Equal(t, "Eagles", first.Band)
	assert.Equal(t, "Hotel California", first.SongTitle)
	assert.Equal(t, "46190", first.TabID)
	assert.Equal(t, srv.URL+"/tab/eagles/hotel-california-chords-46190", first.FullURL)
	assert.Equal(t, "11412", res.Results.Songs[1].TabID)
	assert.Empty(t, res.RawHTML)
}

func TestScanExplorePage(t *testing.T) {
	srv := siteServer(t)
	s := newTestScanner(t, srv.URL)

	for _, page := range []string{"", "/explore", srv.URL + "/explore"} {
		res := s.ScanExplorePage(context.Background(), page, Options{})
		require.True(t, res.Success, "page %q: %+v", page, res.Error)
		require.Equal(t, srv.URL+"/explore", res.URL)
		require.Equal(t, 1, res.Results.TotalSongs)

		rec := res.Results.Songs[0]
		assert.Equal(t, "Metallica", rec.Band)
		assert.Equal(t, "Enter Sandman", rec.SongTitle)
		assert.Equal(t, "12345", rec.TabID)
		assert.Contains(t, rec.FullURL, "12345")
	}
}

func TestScanEmptyListingIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>Nothing found</p></body></html>"))
	}))
	defer srv.Close()

	res := newTestScanner(t, srv.URL).ScanQuery(context.Background(), "zzzz", Options{})
	require.True(t, res.Success)
	require.NotNil(t, res.Results)
	assert.Zero(t, res.Results.TotalSongs)
	assert.NotNil(t, res.Results.Songs)
}

func TestScanFetchFailureShortCircuits(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(explorePage))
	}))
	defer srv.Close()

	res := newTestScanner(t, srv.URL).ScanExplorePage(context.Background(), "", Options{Retries: ptr(1)})

	require.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, models.ErrCodeHTTP, res.Error.Code)
	assert.Contains(t, res.Error.Message, "503")
	assert.Equal(t, res.Error.Message, res.ErrorMessage)
	assert.Equal(t, http.StatusServiceUnavailable, res.HTTPStatus)
	assert.Equal(t, 2, res.Attempts)
	assert.Nil(t, res.Results)
	assert.Empty(t, res.RawHTML)
	assert.Positive(t, res.ResponseTimeMs)
	assert.Equal(t, int32(2), calls.Load())
}

func TestScanTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	res := newTestScanner(t, srv.URL).ScanQuery(context.Background(), "slow", Options{
		Timeout: 50 * time.Millisecond,
		Retries: ptr(0),
	})
	require.False(t, res.Success)
	assert.Equal(t, models.ErrCodeTimeout, res.Error.Code)
	assert.Equal(t, 1, res.Attempts)
	assert.GreaterOrEqual(t, res.ResponseTimeMs, int64(50))
}

func TestScanNetworkError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()
	require.NoError(t, ln.Close())

	res := newTestScanner(t, base).ScanExplorePage(context.Background(), "", Options{Retries: ptr(0)})
	require.False(t, res.Success)
	assert.Equal(t, models.ErrCodeNetwork, res.Error.Code)
}

func TestScanInvalidInput(t *testing.T) {
	s := newTestScanner(t, "https://www.ultimate-guitar.com")
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() *models.ScanResult
	}{
		{"blank query", func() *models.ScanResult { return s.ScanQuery(ctx, "   ", Options{}) }},
		{"bad scheme", func() *models.ScanResult { return s.ScanExplorePage(ctx, "ftp://example.com/list", Options{}) }},
		{"unknown mode", func() *models.ScanResult { return s.ScanQuery(ctx, "x", Options{Mode: "pdf"}) }},
		{"engine not enabled", func() *models.ScanResult { return s.ScanQuery(ctx, "x", Options{Engine: models.EngineBrowser}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.run()
			require.False(t, res.Success)
			require.NotNil(t, res.Error)
			assert.Equal(t, models.ErrCodeInvalidInput, res.Error.Code)
			assert.Positive(t, res.ResponseTimeMs)
		})
	}
}

func TestScanCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	res := newTestScanner(t, srv.URL).ScanQuery(ctx, "anything", Options{Retries: ptr(3)})
	require.False(t, res.Success)
	assert.Equal(t, models.ErrCodeCanceled, res.Error.Code)
}

func TestResolveClampsOptions(t *testing.T) {
	s := newTestScanner(t, "https://www.ultimate-guitar.com")

	o, err := s.resolve(Options{})
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, o.Timeout)
	assert.Equal(t, 1, o.Retries)
	assert.Equal(t, models.ModeListing, o.Mode)
	assert.Equal(t, models.EngineHTTP, o.Engine)

	o, err = s.resolve(Options{Timeout: time.Hour, Retries: ptr(99)})
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, o.Timeout)
	assert.Equal(t, 5, o.Retries)

	o, err = s.resolve(Options{Retries: ptr(-3)})
	require.NoError(t, err)
	assert.Zero(t, o.Retries)
}

func TestURLs(t *testing.T) {
	s := newTestScanner(t, "https://www.ultimate-guitar.com")

	assert.Equal(t,
		"https://www.ultimate-guitar.com/search.php?search_type=title&value=Hotel+California+Eagles",
		s.SearchURL("Hotel California Eagles"))

	u, err := s.ExploreURL("")
	require.NoError(t, err)
	assert.Equal(t, "https://www.ultimate-guitar.com/explore", u)

	u, err = s.ExploreURL("/explore?type=Chords")
	require.NoError(t, err)
	assert.Equal(t, "https://www.ultimate-guitar.com/explore?type=Chords", u)

	assert.Equal(t, "https://www.ultimate-guitar.com/explore?page=3", s.ExplorePageNumber(3))
	assert.Equal(t, "https://www.ultimate-guitar.com/explore", s.ExplorePageNumber(1))
}

func TestStatus(t *testing.T) {
	s := newTestScanner(t, "https://www.ultimate-guitar.com")

	st := s.Status()
	assert.True(t, st.Ready)
	assert.Equal(t, []string{
		"https://www.ultimate-guitar.com/search.php?search_type=title&value={query}",
		"https://www.ultimate-guitar.com/explore",
	}, st.ConfiguredEndpoints)
	assert.Equal(t, int64(45000), st.DefaultTimeoutMs)
	assert.Equal(t, 1, st.DefaultRetries)
	assert.Equal(t, []string{"http"}, st.Engines)
	assert.Equal(t, Version, st.Version)

	// Pure: repeated calls agree.
	assert.Equal(t, st, s.Status())
}

func TestStatusNotReady(t *testing.T) {
	cfg := testConfig("https://www.ultimate-guitar.com")
	cfg.Scanner.DefaultTimeout = 0
	s, err := New(cfg, engine.NewHTTPEngine(""))
	require.NoError(t, err)
	assert.False(t, s.Status().Ready)

	s, err = New(testConfig("https://www.ultimate-guitar.com"))
	require.NoError(t, err)
	assert.False(t, s.Status().Ready, "no engines registered")
}

type namedEngine struct{ name string }

func (e namedEngine) Name() string { return e.name }

func (e namedEngine) Fetch(context.Context, *engine.FetchRequest) (*engine.FetchResult, error) {
	return &engine.FetchResult{HTML: explorePage, StatusCode: 200, EngineName: e.name}, nil
}

func TestNewRegistersAutoEngine(t *testing.T) {
	s, err := New(testConfig("https://www.ultimate-guitar.com"), namedEngine{"http"}, namedEngine{"browser"})
	require.NoError(t, err)
	assert.Equal(t, []string{"auto", "browser", "http"}, s.Engines())

	// The explore fixture is short enough to look client-rendered, so auto
	// escalates to the browser engine.
	res := s.ScanExplorePage(context.Background(), "", Options{Engine: models.EngineAuto})
	require.True(t, res.Success)
	assert.Equal(t, "browser", res.Engine)
}
