package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliverSignsBody(t *testing.T) {
	type received struct {
		sig   string
		body  []byte
		event Event
	}
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var ev Event
		_ = json.Unmarshal(body, &ev)
		got <- received{sig: r.Header.Get(SignatureHeader), body: body, event: ev}
	}))
	defer srv.Close()

	err := New().Deliver(context.Background(), srv.URL, "s3cret", &Event{Type: "batch.completed", JobID: "batch-1", Timestamp: 42})
	require.NoError(t, err)

	r := <-got
	assert.Equal(t, Sign("s3cret", r.body), r.sig)
	assert.Equal(t, "batch.completed", r.event.Type)
	assert.Equal(t, "batch-1", r.event.JobID)
}

func TestDeliverWithoutSecretIsUnsigned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(SignatureHeader) != "" {
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	require.NoError(t, New().Deliver(context.Background(), srv.URL, "", &Event{Type: "batch.completed"}))
}

func TestDeliverReportsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := New().Deliver(context.Background(), srv.URL, "", &Event{Type: "batch.completed"})
	require.ErrorContains(t, err, "500")
}

func TestDeliverAsyncRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	c := New()
	c.delays = []time.Duration{0, 10 * time.Millisecond, time.Hour}
	c.DeliverAsync(srv.URL, "", &Event{Type: "batch.completed"})

	require.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestSign(t *testing.T) {
	assert.Equal(t, "sha256=a777724d943eb48dc69bca8a4a6d57a04db3f9ec7e1de4e581e860265bdf3032", Sign("key", []byte("{}")))
}
