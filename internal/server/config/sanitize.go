package config

import "strings"

// Sanitize returns a copy of the config with secrets masked, for logging.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg
	sanitized.Kernel.Args = append([]string(nil), cfg.Kernel.Args...)
	sanitized.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)

	if sanitized.Security.SecretKey != "" {
		sanitized.Security.SecretKey = maskSecret(sanitized.Security.SecretKey)
	}

	return &sanitized
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
