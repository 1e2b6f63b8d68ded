// Package devserver is a local HireOps REST backend for development and
// integration tests. It serves the same contract the CLI consumes, under
// the /api prefix.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonathan/hireops/internal/logging"
)

// Config holds server configuration.
type Config struct {
	Port       int
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int

	// StrictTransitions enforces forward-only moves: one stage at a time,
	// rejection from any open stage, nothing out of hired or rejected.
	StrictTransitions bool

	Logger *logging.Logger
}

// DefaultConfig returns a configuration suitable for tests.
func DefaultConfig() Config {
	return Config{
		JWTSecret:  "hireops-dev-secret",
		TokenTTL:   24 * time.Hour,
		BcryptCost: 4,
	}
}

// Server is the dev backend.
type Server struct {
	repo    Repository
	jwt     *JWTService
	hasher  *Hasher
	logger  *logging.Logger
	strict  bool
	port    int
	handler http.Handler

	mu          sync.Mutex
	failUpdates int
	failCode    int
}

// New creates a server over repo.
func New(repo Repository, cfg Config) (*Server, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	jwtService, err := NewJWTService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}
	hasher, err := NewHasher(cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to create password hasher: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	s := &Server{
		repo:   repo,
		jwt:    jwtService,
		hasher: hasher,
		logger: logger.WithComponent("devserver"),
		strict: cfg.StrictTransitions,
		port:   cfg.Port,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("GET /auth/me", s.requireAuth(s.handleMe))

	mux.HandleFunc("GET /jobs", s.requireAuth(s.handleListJobs))
	mux.HandleFunc("GET /candidates", s.requireAuth(s.handleListCandidates))
	mux.HandleFunc("GET /applications", s.requireAuth(s.handleListApplications))
	mux.HandleFunc("POST /applications", s.requireAuth(s.handleCreateApplication))
	mux.HandleFunc("GET /applications/{id}", s.requireAuth(s.handleGetApplication))
	mux.HandleFunc("GET /applications/{id}/history", s.requireAuth(s.handleHistory))

	// All three status update route styles are served.
	mux.HandleFunc("PATCH /applications/{id}/status", s.requireAuth(s.handleUpdateStatus))
	mux.HandleFunc("PUT /applications/{id}/status", s.requireAuth(s.handleUpdateStatus))
	mux.HandleFunc("PUT /applications/{id}", s.requireAuth(s.handleUpdateStatus))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", mux))
	root.HandleFunc("GET /health", s.handleHealth)

	s.handler = s.withLogging(s.withCORS(root))
	return s, nil
}

// Handler returns the root handler, for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Seed validates doc, hashes its passwords and replaces the repository
// contents with it.
func (s *Server) Seed(ctx context.Context, doc []byte) error {
	seed, err := ParseSeed(doc)
	if err != nil {
		return err
	}
	ds, err := seed.Dataset(s.hasher)
	if err != nil {
		return err
	}
	if err := s.repo.Load(ctx, ds); err != nil {
		return fmt.Errorf("failed to load seed: %w", err)
	}
	s.logger.Info("seed loaded",
		"users", len(ds.Users), "jobs", len(ds.Jobs),
		"candidates", len(ds.Candidates), "applications", len(ds.Applications))
	return nil
}

// FailStatusUpdates makes the next n status updates fail with code before
// anything is written. n <= 0 clears the injection.
func (s *Server) FailStatusUpdates(n, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 {
		n = 0
	}
	s.failUpdates = n
	s.failCode = code
}

// takeFailure consumes one injected failure, if any.
func (s *Server) takeFailure() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdates == 0 {
		return 0, false
	}
	s.failUpdates--
	return s.failCode, true
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

// errorResponse writes {"detail": message}.
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"detail": message})
}

// validationItem is one entry of a validation error detail list.
type validationItem struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// errorFor maps err to a status code and writes it.
func (s *Server) errorFor(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)

	var validation *ErrValidation
	if errors.As(err, &validation) {
		items := make([]validationItem, 0, len(validation.Messages))
		for _, msg := range validation.Messages {
			items = append(items, validationItem{Loc: []string{"body"}, Msg: msg, Type: "value_error"})
		}
		s.jsonResponse(w, status, map[string]any{"detail": items})
		return
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
		message = "Internal Server Error"
	}
	if errors.Is(err, ErrConflict) {
		message = conflictDetail(err)
	}
	s.errorResponse(w, status, message)
}

// conflictDetail strips the sentinel prefix from a wrapped ErrConflict.
func conflictDetail(err error) string {
	return strings.TrimPrefix(err.Error(), ErrConflict.Error()+": ")
}
