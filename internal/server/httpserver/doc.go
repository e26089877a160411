// Package httpserver serves kernelgate over HTTP.
//
// The router exposes:
//
//   - MCP endpoint: /mcp (stateless streamable HTTP)
//   - Health endpoints: /health, /ready
//   - Admin endpoints: /admin/v1/status/summary, /admin/v1/sessions
//   - Prometheus metrics: /metrics (when enabled)
//
// Every route runs behind Recover, RequestID and AccessLog; CORS is added
// when origins are configured. TLS is optional.
package httpserver
