package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/yndnr/kernelgate/internal/server/httpserver/handler"
	"github.com/yndnr/kernelgate/internal/server/mcpserver"
	"github.com/yndnr/kernelgate/internal/telemetry/logger"
	"github.com/yndnr/kernelgate/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Registry backs the admin and readiness endpoints.
	Registry handler.Registry

	// MCP serves the streamable HTTP transport on /mcp.
	MCP *mcpserver.Server

	// Metrics serves /metrics when non-nil.
	Metrics *metric.Registry

	// Logger for request logging.
	Logger logger.Logger

	// CORSAllowedOrigins is the list of allowed CORS origins (empty = CORS off).
	CORSAllowedOrigins []string

	// StartedAt is reported as the uptime origin.
	StartedAt time.Time

	// MaxBodyBytes bounds MCP request bodies.
	MaxBodyBytes int64
}

// NewRouter creates the HTTP handler with all routes and middleware.
func NewRouter(cfg RouterConfig) (http.Handler, error) {
	if cfg.Registry == nil || cfg.MCP == nil {
		return nil, errors.New("httpserver: registry and mcp server are required")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	h, err := handler.New(handler.Config{
		Registry:     cfg.Registry,
		MCP:          cfg.MCP.HTTPHandler(),
		Logger:       log,
		StartedAt:    cfg.StartedAt,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/", h)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	// Order: Recover -> RequestID -> AccessLog -> CORS -> routes
	middlewares := []Middleware{Recover(log), RequestID(), AccessLog(log)}
	if len(cfg.CORSAllowedOrigins) > 0 {
		middlewares = append(middlewares, CORS(cfg.CORSAllowedOrigins))
	}
	return Chain(mux, middlewares...), nil
}
