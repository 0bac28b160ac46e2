package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveFetch(KindDetail, time.Second, nil)
		m.IncRetry()
		m.ObserveWorkUnit(errors.New("boom"), "Unknown")
		m.IncSkipped()
		m.IncNameCollision()
		m.SetQueueDepth(3)
		m.WorkerBusy(1)
		m.SetIndexSize(1, 2)
		m.ObserveCache(true)
		m.ObserveToolCall("query_index", nil)
	})

	// Middleware on nil metrics passes through
	h := m.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestCrawlCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveFetch(KindListing, 10*time.Millisecond, nil)
	m.ObserveFetch(KindDetail, 20*time.Millisecond, nil)
	m.ObserveFetch(KindDetail, 30*time.Millisecond, errors.New("transport"))
	m.IncRetry()
	m.IncRetry()
	m.ObserveWorkUnit(nil, "None")
	m.ObserveWorkUnit(errors.New("x"), "Content_MissingTitle")
	m.IncSkipped()
	m.SetIndexSize(7, 42)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PagesFetchedTotal.WithLabelValues(KindListing, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PagesFetchedTotal.WithLabelValues(KindDetail, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PagesFetchedTotal.WithLabelValues(KindDetail, "failure")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FetchRetriesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkUnitsTotal.WithLabelValues("success", "None")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkUnitsTotal.WithLabelValues("failure", "Content_MissingTitle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DetailLinksSkipped))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.IndexRecords))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.IndexTerms))
}

func TestWorkerBusyGauge(t *testing.T) {
	m := New(nil)

	m.WorkerBusy(1)
	m.WorkerBusy(1)
	m.WorkerBusy(-1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkersBusy))
}

func TestNew_SeparateRegistries(t *testing.T) {
	// Registering twice on distinct registries must not panic
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(m.Middleware())
	r.Get("/terms/{term}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	})
	r.Get("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, term := range []string{"jane", "doe", "heat"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/terms/"+term, http.NoBody))
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/missing", http.NoBody))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/terms/{term}", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/missing", "404")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.HTTPRequestDuration))
}

func TestHandler_ExposesRegistry(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveCache(true)
	m.ObserveCache(false)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, "film_indexer_query_cache_hits_total 1"), text)
	assert.True(t, strings.Contains(text, "film_indexer_query_cache_misses_total 1"), text)
}
