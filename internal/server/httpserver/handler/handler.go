package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/yndnr/kernelgate/internal/core/domain"
	"github.com/yndnr/kernelgate/internal/core/service"

	"github.com/yndnr/kernelgate/internal/telemetry/logger"
)

// DefaultMaxBodyBytes bounds one MCP request body.
const DefaultMaxBodyBytes = 8 << 20

// Registry is the view of the session registry the handlers need.
type Registry interface {
	Stats() service.Stats
	List() []domain.Session
}

// Config configures a Handler.
type Config struct {
	Registry     Registry     // Required
	MCP          http.Handler // Required, mounted on /mcp
	Logger       logger.Logger
	StartedAt    time.Time
	MaxBodyBytes int64
}

// Handler is the main HTTP handler that routes requests to appropriate handlers.
type Handler struct {
	registry     Registry
	mcp          http.Handler
	logger       logger.Logger
	startedAt    time.Time
	maxBodyBytes int64

	mux *http.ServeMux
}

// New creates a new Handler.
func New(cfg Config) (*Handler, error) {
	if cfg.Registry == nil || cfg.MCP == nil {
		return nil, errors.New("handler: registry and mcp server are required")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	started := cfg.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	h := &Handler{
		registry:     cfg.Registry,
		mcp:          cfg.MCP,
		logger:       log,
		startedAt:    started,
		maxBodyBytes: maxBody,
		mux:          http.NewServeMux(),
	}
	h.registerRoutes()
	return h, nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	// Health endpoints
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	// MCP endpoint
	h.mux.Handle("/mcp", http.MaxBytesHandler(h.mcp, h.maxBodyBytes))

	// Admin endpoints
	h.mux.HandleFunc("GET /admin/v1/status/summary", h.acceptJSON(h.handleAdminStatus))
	h.mux.HandleFunc("GET /admin/v1/sessions", h.acceptJSON(h.handleListSessions))
}

var jsonMediaTypes = []contenttype.MediaType{contenttype.NewMediaType("application/json")}

// acceptJSON rejects requests whose Accept header rules out JSON.
func (h *Handler) acceptJSON(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := contenttype.GetAcceptableMediaType(r, jsonMediaTypes); err != nil {
			h.writeError(w, r, http.StatusNotAcceptable, "KG-HTTP-4060", "client must accept application/json")
			return
		}
		next(w, r)
	}
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := getRequestID(r)
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	requestID := getRequestID(r)
	response := NewErrorResponse(requestID, code, message, nil)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// getRequestID returns the id assigned by the RequestID middleware.
func getRequestID(r *http.Request) string {
	if id := logger.RequestIDFromContext(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}
