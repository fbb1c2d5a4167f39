package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var serverRendered = "<html><body><table>" + strings.Repeat("<tr><td>Metallica</td><td>Enter Sandman</td></tr>", 20) + "</table></body></html>"

const spaShell = `<html><body><div id="root"></div><script src="/app.js"></script></body></html>`

func TestDispatcherPrefersFirstEngine(t *testing.T) {
	d := NewDispatcher(
		&stubEngine{name: "http", html: serverRendered},
		&stubEngine{name: "browser", html: "<html>rendered</html>"},
	)
	res, err := d.Fetch(context.Background(), &FetchRequest{URL: "https://example.com"})
	require.NoError(t, err)
	require.Equal(t, "http", res.EngineName)
}

func TestDispatcherEscalatesOnShell(t *testing.T) {
	d := NewDispatcher(
		&stubEngine{name: "http", html: spaShell},
		&stubEngine{name: "browser", html: serverRendered},
	)
	res, err := d.Fetch(context.Background(), &FetchRequest{URL: "https://example.com"})
	require.NoError(t, err)
	require.Equal(t, "browser", res.EngineName)
}

func TestDispatcherFallsBackToShell(t *testing.T) {
	d := NewDispatcher(
		&stubEngine{name: "http", html: spaShell},
		&stubEngine{name: "browser", err: errors.New("chromium crashed")},
	)
	res, err := d.Fetch(context.Background(), &FetchRequest{URL: "https://example.com"})
	require.NoError(t, err)
	require.Equal(t, "http", res.EngineName)
}

func TestDispatcherReturnsLastError(t *testing.T) {
	d := NewDispatcher(
		&stubEngine{name: "http", err: &StatusError{StatusCode: 403, URL: "https://example.com"}},
		&stubEngine{name: "browser", err: &StatusError{StatusCode: 429, URL: "https://example.com"}},
	)
	_, err := d.Fetch(context.Background(), &FetchRequest{URL: "https://example.com"})

	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, 429, se.StatusCode)
}

func TestNeedsBrowser(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"server rendered", serverRendered, false},
		{"spa shell", spaShell, true},
		{"embedded store", `<html><body><div class="js-store" data-content="{}"></div></body></html>`, false},
		{"noscript warning", "<html><body>" + strings.Repeat("word ", 60) + `<noscript>Please enable JavaScript</noscript></body></html>`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, NeedsBrowser(tt.body))
		})
	}
}
