// Package main provides the entry point for kernelgate-server.
//
// kernelgate-server exposes persistent compute-kernel sessions to MCP
// clients. Each session is one kernel subprocess addressed by a
// word-token; the server speaks MCP over stdio (the default) or HTTP,
// and optionally opens a local management socket.
//
// Usage:
//
//	kernelgate-server [flags]
//	kernelgate-server --config /etc/kernelgate/kernelgate.yaml
//	kernelgate-server --transport http --http-addr 127.0.0.1:5080
//	kernelgate-server check-config --config kernelgate.yaml
package main
