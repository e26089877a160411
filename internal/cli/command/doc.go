// Package command defines the kernelgate-cli commands using urfave/cli/v2.
//
//   - root.go: App, global flags and profile resolution
//   - session.go: session create, exec, close and list
//   - tools.go: tools advertised by the server
//   - system.go: status and health over the HTTP API
//   - local.go: commands sent over the local management socket
//   - token.go: offline token generation and verification
//   - config.go, connect.go: CLI profiles
//   - repl.go: interactive mode bound to one kernel session
//
// Session commands speak MCP to the server; they never talk to a kernel
// directly.
package command
