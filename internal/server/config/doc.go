// Package config provides server configuration for kernelgate-server.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: default values
//   - verify.go: validation and kernel path / secret resolution
//   - sanitize.go: copies safe to log
//
// Configuration is loaded via internal/infra/confloader.
package config
