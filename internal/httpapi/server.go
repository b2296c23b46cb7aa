// Package httpapi exposes the backtest engine over HTTP: submit runs,
// browse results, and list the available strategies and symbols.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"vela/internal/config"
	"vela/internal/domain"
	"vela/internal/store"
	"vela/internal/strategy"
)

// Server serves the backtest HTTP API. Completed runs are kept in memory,
// keyed by run ID; restarting the server clears them.
type Server struct {
	cfg      *config.Config
	source   store.BarSource
	registry *strategy.Registry
	log      *slog.Logger

	mu   sync.RWMutex
	runs map[string]*domain.RunResult
	ids  []string // insertion order, oldest first
}

// NewServer creates a Server backed by the given bar source and strategy
// registry.
func NewServer(cfg *config.Config, source store.BarSource, registry *strategy.Registry, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		source:   source,
		registry: registry,
		log:      log,
		runs:     make(map[string]*domain.RunResult),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/strategies", s.handleStrategies)
	mux.HandleFunc("GET /api/v1/symbols", s.handleSymbols)
	mux.HandleFunc("POST /api/v1/backtests", s.handleRunBacktest)
	mux.HandleFunc("GET /api/v1/backtests", s.handleListRuns)
	mux.HandleFunc("GET /api/v1/backtests/{id}", s.handleGetRun)
	mux.HandleFunc("GET /api/v1/backtests/{id}/curve.csv", s.handleRunCurveCSV)
	mux.HandleFunc("GET /api/v1/backtests/{id}/trades.csv", s.handleRunTradesCSV)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

// ListenAndServe starts the HTTP listener and blocks until the context is
// cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // synchronous backtests can be slow
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// storeRun saves a completed run for later retrieval.
func (s *Server) storeRun(res *domain.RunResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[res.ID] = res
	s.ids = append(s.ids, res.ID)
}

// getRun returns a stored run by ID.
func (s *Server) getRun(id string) (*domain.RunResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.runs[id]
	return res, ok
}

// listRuns returns all stored runs, newest first.
func (s *Server) listRuns() []*domain.RunResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.RunResult, 0, len(s.ids))
	for i := len(s.ids) - 1; i >= 0; i-- {
		out = append(out, s.runs[s.ids[i]])
	}
	return out
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sortedCopy(xs []string) []string {
	out := append([]string(nil), xs...)
	sort.Strings(out)
	return out
}
