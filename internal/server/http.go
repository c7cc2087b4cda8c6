// Package server exposes the upstream HTTP surface consumed by the rest of
// the application: document upload registration, document removal, and
// question answering, all scoped to the authenticated tenant.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dayaobuxiao/EchoSage/internal/auth"
	"github.com/dayaobuxiao/EchoSage/internal/embedder"
	"github.com/dayaobuxiao/EchoSage/internal/llm"
	"github.com/dayaobuxiao/EchoSage/internal/manager"
	"github.com/dayaobuxiao/EchoSage/internal/service"
)

// Config holds configuration for the HTTP server.
type Config struct {
	Port   int
	Logger *slog.Logger
}

// Server wires the manager and query engine behind a chi router.
type Server struct {
	server *http.Server
	logger *slog.Logger
	mgr    *manager.Manager
	rag    *service.RAGService
}

// New creates the HTTP server with auth, logging, and recovery middleware.
func New(cfg Config, mgr *manager.Manager, rag *service.RAGService, jwtMgr *auth.JWTManager) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		logger: logger,
		mgr:    mgr,
		rag:    rag,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLoggingMiddleware(logger))
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	router.Route("/v1", func(r chi.Router) {
		r.Use(jwtMgr.Middleware)
		r.Post("/documents", s.handleAddDocument)
		r.Delete("/documents", s.handleRemoveDocument)
		r.Post("/query", s.handleQuery)
	})

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // rebuilds and generation are slow
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

type addDocumentRequest struct {
	Ref  string `json:"ref"`
	Name string `json:"name"`
}

type addDocumentResponse struct {
	ChunkIDs []uint64 `json:"chunk_ids"`
}

func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := auth.TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	var req addDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Ref == "" {
		http.Error(w, "ref is required", http.StatusBadRequest)
		return
	}

	ids, err := s.mgr.AddDocument(r.Context(), tenantID, req.Ref, req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ids == nil {
		ids = []uint64{}
	}
	writeJSON(w, http.StatusCreated, addDocumentResponse{ChunkIDs: ids})
}

type removeDocumentRequest struct {
	Ref string `json:"ref"`
}

func (s *Server) handleRemoveDocument(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := auth.TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	var req removeDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Ref == "" {
		http.Error(w, "ref is required", http.StatusBadRequest)
		return
	}

	if err := s.mgr.RemoveDocument(r.Context(), tenantID, req.Ref); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type queryRequest struct {
	Question string `json:"question"`
}

type queryResponse struct {
	Answer string `json:"answer"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := auth.TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	answer, err := s.rag.Ask(r.Context(), tenantID, req.Question)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{Answer: answer})
}

// writeError maps core errors to HTTP statuses so callers can distinguish
// failure kinds without parsing messages.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var srcErr *manager.SourceUnavailableError
	switch {
	case errors.Is(err, service.ErrEmptyQuestion):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &srcErr):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, embedder.ErrEmbedding), errors.Is(err, service.ErrEmbedQuery):
		http.Error(w, "embedding service unavailable", http.StatusBadGateway)
	case errors.Is(err, llm.ErrGeneration), errors.Is(err, service.ErrGenerate):
		http.Error(w, "generation service unavailable", http.StatusBadGateway)
	default:
		s.logger.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// requestLoggingMiddleware logs HTTP requests
func requestLoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
