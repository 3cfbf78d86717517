package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nstogner/cortex/pkg/artifact"
	"github.com/nstogner/cortex/pkg/controller"
	"github.com/nstogner/cortex/pkg/layer"
	"github.com/nstogner/cortex/pkg/memory"
	"github.com/nstogner/cortex/pkg/model"
	"github.com/nstogner/cortex/pkg/store"
	"github.com/nstogner/cortex/pkg/tools"
)

// Deps are the components the server exposes.
type Deps struct {
	Sessions   store.SessionStore
	Controller *controller.Controller
	Memory     *memory.Memory
	Artifacts  *artifact.Collection
	Layers     *layer.Catalog
	Tools      *tools.Registry
	Provider   model.Provider
}

// Server serves the REST API and the chat WebSocket.
type Server struct {
	sessions   store.SessionStore
	controller *controller.Controller
	memory     *memory.Memory
	artifacts  *artifact.Collection
	layers     *layer.Catalog
	tools      *tools.Registry
	provider   model.Provider
	srv        *http.Server
}

func New(d Deps) *Server {
	return &Server{
		sessions:   d.Sessions,
		controller: d.Controller,
		memory:     d.Memory,
		artifacts:  d.Artifacts,
		layers:     d.Layers,
		tools:      d.Tools,
		provider:   d.Provider,
	}
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Sessions
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("PUT /api/sessions/{id}", s.handleUpdateSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)

	// Conversation
	mux.HandleFunc("POST /api/sessions/{id}/messages", s.handlePostMessage)
	mux.HandleFunc("GET /api/sessions/{id}/events", s.handleGetEvents)
	mux.HandleFunc("GET /api/sessions/{id}/state", s.handleGetState)
	mux.HandleFunc("GET /api/sessions/{id}/context", s.handleCompileContext)

	// Artifacts
	mux.HandleFunc("GET /api/sessions/{id}/artifacts", s.handleListArtifacts)
	mux.HandleFunc("POST /api/sessions/{id}/artifacts", s.handleAttachArtifact)
	mux.HandleFunc("DELETE /api/sessions/{id}/artifacts/{artifactID}", s.handleDetachArtifact)

	// Facts
	mux.HandleFunc("GET /api/sessions/{id}/facts", s.handleListFacts)
	mux.HandleFunc("POST /api/sessions/{id}/facts", s.handleAddFact)
	mux.HandleFunc("DELETE /api/facts/{id}", s.handleDeleteFact)

	// Memory
	mux.HandleFunc("GET /api/memory", s.handleListMemory)
	mux.HandleFunc("POST /api/memory", s.handleStoreMemory)
	mux.HandleFunc("GET /api/memory/search", s.handleSearchMemory)
	mux.HandleFunc("DELETE /api/memory", s.handleWipeMemory)

	// Layers
	mux.HandleFunc("GET /api/layers", s.handleListLayers)
	mux.HandleFunc("POST /api/layers", s.handleDefineLayer)
	mux.HandleFunc("DELETE /api/layers/{id}", s.handleRemoveLayer)

	// Tools and models
	mux.HandleFunc("GET /api/tools", s.handleListTools)
	mux.HandleFunc("GET /api/models", s.handleListModels)

	mux.Handle("GET /metrics", promhttp.Handler())

	// WebSocket
	mux.HandleFunc("/api/sessions/{id}/chat", s.handleChatWebSocket)

	return s.corsMiddleware(mux)
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	slog.Info("Starting web server", "addr", addr)
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, err error) {
	slog.Error("API Error", "error", err)
	s.jsonResponse(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, memory.ErrKeyExists), errors.Is(err, layer.ErrStaticLayer):
		return http.StatusConflict
	case errors.Is(err, memory.ErrInvalidRecord),
		errors.Is(err, artifact.ErrInvalidArtifact),
		errors.Is(err, layer.ErrInvalidLayer),
		errors.Is(err, controller.ErrInvalidFact):
		return http.StatusBadRequest
	case errors.Is(err, memory.ErrSemanticUnavailable):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
