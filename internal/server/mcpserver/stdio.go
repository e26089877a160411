package mcpserver

import (
	"context"
	"errors"
	"io"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ServeStdio serves one MCP client over newline-delimited JSON-RPC on in
// and out. It returns nil when the client closes its end, or ctx.Err()
// when ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context, in io.ReadCloser, out io.WriteCloser) error {
	err := s.stdio.Run(ctx, &mcp.IOTransport{Reader: in, Writer: out})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err == nil || errors.Is(err, io.EOF) {
		s.log.Info("stdin closed")
		return nil
	}
	s.log.Error("stdio transport failed", "error", err)
	return err
}
