package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"runtime/debug"

	"github.com/go-chi/chi/v5"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/film-indexer/pkg/config"
	"github.com/Sriram-PR/film-indexer/pkg/index"
	"github.com/Sriram-PR/film-indexer/pkg/metrics"
	"github.com/Sriram-PR/film-indexer/pkg/models"
)

// Server answers term lookups over HTTP from a finished index.
// The index must not change while it is served; cached responses are never invalidated.
type Server struct {
	idx     *index.InvertedIndex
	cfg     config.ServerConfig
	log     *logrus.Entry
	metrics *metrics.Metrics
	summary *models.CrawlSummary
	cache   *lru.Cache[string, []byte] // Encoded responses keyed by normalized term
	router  chi.Router
}

// Option configures a Server
type Option func(*Server)

// WithMetrics records HTTP and cache metrics on m and exposes it at /metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithSummary includes the crawl summary in /stats
func WithSummary(summary models.CrawlSummary) Option {
	return func(s *Server) { s.summary = &summary }
}

// New builds the router. cfg must have been validated (cache_size > 0).
func New(idx *index.InvertedIndex, cfg config.ServerConfig, log *logrus.Entry, opts ...Option) (*Server, error) {
	if idx == nil {
		return nil, errors.New("server: nil index")
	}
	cache, err := lru.New[string, []byte](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("server: create response cache: %w", err)
	}

	s := &Server{
		idx:   idx,
		cfg:   cfg,
		log:   log.WithField("component", "server"),
		cache: cache,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.recoverer)
	r.Use(s.metrics.Middleware())

	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	r.Get("/terms/{term}", s.handleTerm)
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusBadRequest, "a term is required, e.g. GET /terms/{term}")
	})
	// Legacy single-segment lookup
	r.Get("/{term}", s.handleTerm)
	return r
}

// Handler returns the HTTP handler, for embedding or httptest.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on cfg.ListenAddr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done. It closes ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", ln.Addr().String()).Info("Starting HTTP server")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	<-errCh
	s.log.Info("HTTP server stopped")
	return nil
}

func (s *Server) handleTerm(w http.ResponseWriter, r *http.Request) {
	term := chi.URLParam(r, "term")
	if r.URL.RawPath != "" {
		// chi routed on the escaped path
		unescaped, err := url.PathUnescape(term)
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed term")
			return
		}
		term = unescaped
	}
	key := index.NormalizeTerm(term)
	var err error

	body, hit := s.cache.Get(key)
	s.metrics.ObserveCache(hit)
	if !hit {
		body, err = json.Marshal(s.idx.Query(key))
		if err != nil {
			s.log.WithField("term", key).Errorf("Encoding query result: %v", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		s.cache.Add(key, body)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "records": s.idx.Len()})
}

type statsResponse struct {
	Index     index.Stats          `json:"index"`
	CacheSize int                  `json:"cache_entries"`
	Crawl     *models.CrawlSummary `json:"crawl,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		Index:     s.idx.Stats(),
		CacheSize: s.cache.Len(),
		Crawl:     s.summary,
	})
}

// recoverer turns a handler panic into a JSON 500 instead of a dropped connection.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				s.log.WithFields(logrus.Fields{
					"panic_info":  rvr,
					"stack_trace": string(debug.Stack()),
					"path":        r.URL.Path,
				}).Error("PANIC recovered in HTTP handler")
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
