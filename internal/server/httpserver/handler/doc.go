// Package handler provides the HTTP request handlers of kernelgate-server:
// health probes, the admin API and the MCP endpoint.
package handler
