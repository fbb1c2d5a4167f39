package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultSite(), cfg.Site)
	assert.Equal(t, DefaultSelectors(), cfg.Selectors)
	assert.Equal(t, 45*time.Second, cfg.Scanner.DefaultTimeout)
	assert.Equal(t, 1, cfg.Scanner.DefaultRetries)
	assert.Zero(t, cfg.Scanner.RetryDelay)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Auth.Enabled)
	assert.False(t, cfg.Browser.Enabled)
	assert.Equal(t, "/tab/", cfg.Site.TabPath)
	assert.NotContains(t, cfg.Selectors.Link, "a[href]", "the link selector must not match every anchor")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TABSCAN_PORT", "9090")
	t.Setenv("TABSCAN_DEFAULT_TIMEOUT", "3s")
	t.Setenv("TABSCAN_DEFAULT_RETRIES", "0")
	t.Setenv("TABSCAN_RETRY_DELAY", "250ms")
	t.Setenv("TABSCAN_API_KEYS", "a, b,,c")
	t.Setenv("TABSCAN_BASE_URL", "http://mirror.test")
	t.Setenv("TABSCAN_SELECTOR_ENTRY", "li.song, li.tab")
	t.Setenv("TABSCAN_RATE_RPS", "0.5")
	t.Setenv("TABSCAN_TAB_PATH", "/tabs/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Scanner.DefaultTimeout)
	assert.Equal(t, 0, cfg.Scanner.DefaultRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Scanner.RetryDelay)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Auth.APIKeys)
	assert.Equal(t, "http://mirror.test", cfg.Site.BaseURL)
	assert.Equal(t, DefaultSite().SearchPath, cfg.Site.SearchPath)
	assert.Equal(t, "li.song, li.tab", cfg.Selectors.Entry)
	assert.Equal(t, 0.5, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, "/tabs/", cfg.Site.TabPath)
}

func TestLoadIgnoresMalformedEnv(t *testing.T) {
	t.Setenv("TABSCAN_PORT", "eighty")
	t.Setenv("TABSCAN_DEFAULT_TIMEOUT", "soon")
	t.Setenv("TABSCAN_BROWSER_ENABLED", "maybe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 45*time.Second, cfg.Scanner.DefaultTimeout)
	assert.False(t, cfg.Browser.Enabled)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestApplyFileWithLocalOverride(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "tabscan.json5")
	writeFile(t, name, `{
		// mirror of the tab site
		site: {
			base_url: "https://mirror.test",
			search_param: "q",
		},
		selectors: {
			entry: "li.result",
			band: ".who",
		},
	}`)
	writeFile(t, filepath.Join(dir, "tabscan.local.json5"), `{
		selectors: { band: ".artist-name" },
	}`)
	t.Setenv("TABSCAN_CONFIG_FILE", name)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://mirror.test", cfg.Site.BaseURL)
	assert.Equal(t, "q", cfg.Site.SearchParam)
	assert.Equal(t, DefaultSite().ExplorePath, cfg.Site.ExplorePath)
	assert.Equal(t, "li.result", cfg.Selectors.Entry)
	assert.Equal(t, ".artist-name", cfg.Selectors.Band)
	assert.Equal(t, DefaultSelectors().Title, cfg.Selectors.Title)
}

func TestApplyFileLocalOnly(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "tabscan.json5")
	writeFile(t, filepath.Join(dir, "tabscan.local.json5"), `{site: {explore_path: "/charts"}}`)

	f, err := ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "/charts", f.Site.ExplorePath)
}

func TestApplyFileMissing(t *testing.T) {
	t.Setenv("TABSCAN_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.json5"))

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestApplyFileMalformed(t *testing.T) {
	name := filepath.Join(t.TempDir(), "tabscan.json5")
	writeFile(t, name, `{site: {base_url: }`)

	cfg := &Config{Site: DefaultSite()}
	err := cfg.ApplyFile(name)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
	assert.Equal(t, DefaultSite(), cfg.Site)
}

func TestLocalName(t *testing.T) {
	assert.Equal(t, filepath.Join("etc", "tabscan.local.json5"), localName(filepath.Join("etc", "tabscan.json5")))
	assert.Equal(t, "tabscan.local", localName("tabscan"))
}
