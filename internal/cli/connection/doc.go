// Package connection provides the clients kernelgate-cli uses to reach a
// server: the MCP streamable HTTP client for session tools, a plain HTTP
// client for the admin API, and the local management socket client.
package connection
