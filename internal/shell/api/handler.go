// Package api provides the HTTP handlers of the greeter service, the
// demonstration workload the pipeline builds and deploys.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/artpar/deployline/internal/shell/api/openapi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Greeting is the body served on the index route.
const Greeting = "Hello World from deployline!"

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the greeter service.
type Handler struct {
	version string
	logger  *slog.Logger
	spec    *openapi.Generator
}

// NewHandler creates a new greeter handler.
func NewHandler(version string, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	if version == "" {
		version = "dev"
	}
	return &Handler{
		version: version,
		logger:  l.With("component", "api"),
		spec:    newSpec(version),
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.requestIDHeader)
	r.Use(h.accessLog)

	r.Get("/", h.handleIndex)
	r.Get("/health", h.handleHealth)
	r.Get("/openapi.json", h.spec.Handler())

	return r
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// =============================================================================
// Handlers
// =============================================================================

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(Greeting + "\n"))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: h.version})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func newSpec(version string) *openapi.Generator {
	g := openapi.NewGenerator(
		openapi.WithTitle("Greeter"),
		openapi.WithVersion(version),
		openapi.WithDescription("Demonstration service deployed by deployline"),
	)
	g.RegisterRoute(openapi.Route{
		Path:        "/",
		Summary:     "Greeting",
		ContentType: "text/plain",
	})
	g.RegisterRoute(openapi.Route{
		Path:        "/health",
		Summary:     "Liveness check",
		ContentType: "application/json",
		Model:       HealthResponse{},
	})
	return g
}
