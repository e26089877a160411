package mcpserver

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/oklog/ulid/v2"

	"github.com/yndnr/kernelgate/internal/core/domain"
	"github.com/yndnr/kernelgate/internal/core/service"
	"github.com/yndnr/kernelgate/internal/infra/buildinfo"
	"github.com/yndnr/kernelgate/internal/telemetry/logger"
	"github.com/yndnr/kernelgate/internal/telemetry/metric"
)

// ServerName is reported in the initialize result.
const ServerName = "kernelgate"

// MCP methods that get their own metric label.
const (
	MethodInitialize  = "initialize"
	MethodPing        = "ping"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
	NotifyInitialized = "notifications/initialized"
	NotifyCancelled   = "notifications/cancelled"

	methodLabelUnknown = "unknown"
)

// Transport labels used in metrics and logs.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Registry is the session registry used by the tools.
type Registry interface {
	Create(ctx context.Context) (*service.CreateResponse, error)
	Execute(ctx context.Context, req *service.ExecuteRequest) (*service.ExecuteResponse, error)
	Close(ctx context.Context, tok string) error
}

// Config configures a Server.
type Config struct {
	Registry Registry // Required
	Metrics  *metric.Registry
	Logger   logger.Logger

	// Language names the kernel language in tool descriptions.
	Language string

	// OpaqueTokenErrors reports invalid tokens as unknown sessions.
	OpaqueTokenErrors bool

	// Instructions is returned from initialize.
	Instructions string
}

// Server exposes the session registry as MCP tools. One mcp.Server is
// built per transport so request metrics keep their transport label.
type Server struct {
	registry          Registry
	metrics           *metric.Registry
	log               logger.Logger
	language          string
	opaqueTokenErrors bool
	instructions      string
	tools             map[string]toolDef

	stdio *mcp.Server
	http  *mcp.Server
}

// New creates a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("mcpserver: registry is required")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	lang := cfg.Language
	if lang == "" {
		lang = "Wolfram Language"
	}
	instructions := cfg.Instructions
	if instructions == "" {
		instructions = "Create a session with " + ToolCreateSession + ", run code with " +
			ToolExecute + " using the returned session ID, and close it with " + ToolCloseSession + " when done."
	}

	s := &Server{
		registry:          cfg.Registry,
		metrics:           cfg.Metrics,
		log:               log,
		language:          lang,
		opaqueTokenErrors: cfg.OpaqueTokenErrors,
		instructions:      instructions,
	}
	s.tools = s.buildTools()
	s.stdio = s.newSDK(TransportStdio)
	s.http = s.newSDK(TransportHTTP)
	return s, nil
}

// newSDK builds an mcp.Server carrying the kernel tools.
func (s *Server) newSDK(transport string) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: buildinfo.Version,
	}, &mcp.ServerOptions{
		Instructions: s.instructions,
	})
	for _, t := range s.Tools() {
		srv.AddTool(t, s.tools[t.Name].handler)
	}
	srv.AddReceivingMiddleware(s.observe(transport), resolveAliases)
	return srv
}

// observe tags each request with an id, then logs and counts it.
func (s *Server) observe(transport string) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			start := time.Now()
			if logger.RequestIDFromContext(ctx) == "" {
				ctx = logger.WithRequestID(ctx, ulid.Make().String())
			}

			if init, ok := req.(*mcp.InitializeRequest); ok && init.Params != nil {
				var name, version string
				if ci := init.Params.ClientInfo; ci != nil {
					name, version = ci.Name, ci.Version
				}
				s.log.WithContext(ctx).Info("client initialized",
					"transport", transport,
					"client", name,
					"client_version", version,
					"protocol", init.Params.ProtocolVersion,
				)
			}

			res, err := next(ctx, method, req)

			status := resultStatus(res, err)
			elapsed := time.Since(start)
			s.metrics.Request(transport, methodLabel(method), status, elapsed)
			s.log.WithContext(ctx).Debug("mcp request",
				"transport", transport,
				"method", method,
				"status", status,
				"duration_ms", elapsed.Milliseconds(),
			)
			return res, err
		}
	}
}

// resolveAliases rewrites legacy tool names to their canonical form before
// the SDK looks the tool up.
func resolveAliases(next mcp.MethodHandler) mcp.MethodHandler {
	return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
		if call, ok := req.(*mcp.CallToolRequest); ok && call.Params != nil {
			if canonical, ok := toolAliases[call.Params.Name]; ok {
				call.Params.Name = canonical
			}
		}
		return next(ctx, method, req)
	}
}

// resultStatus is "ok", "rpc_error", or the error kind of a failed tool.
func resultStatus(res mcp.Result, err error) string {
	if err != nil {
		return "rpc_error"
	}
	tr, ok := res.(*mcp.CallToolResult)
	if !ok || !tr.IsError {
		return "ok"
	}
	if sc, ok := tr.StructuredContent.(map[string]any); ok {
		if e, ok := sc["error"].(map[string]any); ok {
			if kind, ok := e["kind"].(string); ok && kind != "" {
				return kind
			}
		}
	}
	return string(domain.KindInternal)
}

// methodLabel bounds the metric label set to known methods.
func methodLabel(method string) string {
	switch method {
	case MethodInitialize, MethodPing, MethodToolsList, MethodToolsCall, NotifyInitialized, NotifyCancelled:
		return method
	}
	return methodLabelUnknown
}
