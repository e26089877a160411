package mcpserver

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HTTPHandler returns the streamable HTTP transport for /mcp. It runs
// stateless: every POST is served on a fresh, pre-initialized session and
// no Mcp-Session-Id is tracked.
// Responses are plain application/json rather than event streams.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.http
	}, &mcp.StreamableHTTPOptions{
		Stateless:    true,
		JSONResponse: true,
	})
}
