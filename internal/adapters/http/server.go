// Package http is the web API of ccmem: a thin JSON veneer over the
// primary ports, served by `ccmem serve`.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/lazygophers/ccmem/internal/core/memory"
	"github.com/lazygophers/ccmem/internal/ctxutil"
	"github.com/lazygophers/ccmem/internal/ports/primary"
)

// Actor recorded as changed_by for writes made through the web API.
const Actor = "web"

const maxBodySize = 10 << 20 // 10 MB

// Services are the primary ports the web API drives.
type Services struct {
	Memories  primary.MemoryService
	Relations primary.RelationService
	Transfer  primary.TransferService
	Hooks     primary.HookService
}

// Server routes /api requests to the services.
type Server struct {
	svc     Services
	mux     *http.ServeMux
	limiter *rate.Limiter
}

// NewServer creates a Server. A non-positive limit disables rate limiting.
func NewServer(svc Services, limit float64, burst int) *Server {
	s := &Server{
		svc:     svc,
		mux:     http.NewServeMux(),
		limiter: rate.NewLimiter(toLimit(limit), burst),
	}
	s.registerRoutes()
	return s
}

func toLimit(limit float64) rate.Limit {
	if limit <= 0 {
		return rate.Inf
	}
	return rate.Limit(limit)
}

// SetRateLimit changes the request rate limit of a running server.
func (s *Server) SetRateLimit(limit float64, burst int) {
	s.limiter.SetLimit(toLimit(limit))
	s.limiter.SetBurst(burst)
}

func (s *Server) registerRoutes() {
	mux := s.mux
	mux.HandleFunc("GET /api/memories", s.handleList)
	mux.HandleFunc("POST /api/memories", s.handleCreate)
	mux.HandleFunc("GET /api/memories/{scheme}/{path...}", s.handleGet)
	mux.HandleFunc("PUT /api/memories/{scheme}/{path...}", s.handleUpdate)
	mux.HandleFunc("DELETE /api/memories/{scheme}/{path...}", s.handleDelete)

	mux.HandleFunc("POST /api/priority/{scheme}/{path...}", s.handleSetPriority)
	mux.HandleFunc("POST /api/deprecate/{scheme}/{path...}", s.handleDeprecate)
	mux.HandleFunc("POST /api/archive/{scheme}/{path...}", s.handleArchive)
	mux.HandleFunc("POST /api/restore/{scheme}/{path...}", s.handleRestore)

	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	mux.HandleFunc("GET /api/versions/{scheme}/{path...}", s.handleVersions)
	mux.HandleFunc("POST /api/rollback/{scheme}/{path...}", s.handleRollback)
	mux.HandleFunc("GET /api/diff/{scheme}/{path...}", s.handleDiff)

	mux.HandleFunc("GET /api/relations/{scheme}/{path...}", s.handleRelations)
	mux.HandleFunc("POST /api/relations", s.handleAddRelation)
	mux.HandleFunc("DELETE /api/relations", s.handleRemoveRelation)

	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("POST /api/cleanup", s.handleCleanup)
	mux.HandleFunc("POST /api/hooks", s.handleHook)
}

// ServeHTTP applies the rate limit and the web actor, then routes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		slog.Warn("request rate limited", "method", r.Method, "path", r.URL.Path)
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		return
	}

	start := time.Now()
	r = r.WithContext(ctxutil.WithActor(r.Context(), Actor))
	s.mux.ServeHTTP(w, r)
	slog.Debug("request served", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	slog.Info("web api listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, memory.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, memory.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, memory.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, memory.ErrPolicyDenied):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeNotFound(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": what + " not found"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return false
	}
	return true
}
