// Package mcpserver implements the MCP tool surface of kernelgate.
//
// Server registers the create_session, execute and close_session tools on
// a go-sdk mcp.Server and routes them to the session registry. ServeStdio
// runs it over newline-delimited stdin/stdout; HTTPHandler returns a
// stateless streamable HTTP handler that the httpserver package mounts on
// /mcp.
//
// Tool failures are reported as tool results with isError set and the
// error code and kind in structuredContent. JSON-RPC errors are reserved
// for malformed messages, unknown methods, unknown tools and arguments
// that do not decode.
package mcpserver
