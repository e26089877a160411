package config

import "time"

// ServerConfig is the root configuration for kernelgate-server.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server" yaml:"server"`
	Security SecuritySection `koanf:"security" yaml:"security"`
	Token    TokenSection    `koanf:"token" yaml:"token"`
	Kernel   KernelSection   `koanf:"kernel" yaml:"kernel"`
	Events   EventsSection   `koanf:"events" yaml:"events"`
	Metrics  MetricsSection  `koanf:"metrics" yaml:"metrics"`
	Log      LogSection      `koanf:"log" yaml:"log"`
}

// ServerSection configures the transports.
type ServerSection struct {
	// Transport is "stdio" or "http".
	Transport   string `koanf:"transport" yaml:"transport"`
	HTTPAddr    string `koanf:"http_addr" yaml:"http_addr"`
	TLSCertFile string `koanf:"tls_cert_file" yaml:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file" yaml:"tls_key_file"`

	// CORSOrigins lists browser origins allowed to call the HTTP endpoints.
	CORSOrigins []string `koanf:"cors_origins" yaml:"cors_origins"`

	// SocketPath enables the local management socket when set.
	SocketPath string `koanf:"socket_path" yaml:"socket_path"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// SecuritySection configures the token secret.
type SecuritySection struct {
	SecretKey     string `koanf:"secret_key" yaml:"secret_key"`
	SecretKeyFile string `koanf:"secret_key_file" yaml:"secret_key_file"`

	// OpaqueTokenErrors reports malformed tokens as not found on the wire.
	OpaqueTokenErrors bool `koanf:"opaque_token_errors" yaml:"opaque_token_errors"`
}

// TokenSection configures the token codec.
type TokenSection struct {
	Words     int    `koanf:"words" yaml:"words"`
	Delimiter string `koanf:"delimiter" yaml:"delimiter"`
	Hash      string `koanf:"hash" yaml:"hash"`
}

// KernelSection configures the kernel backend.
type KernelSection struct {
	// Path overrides kernel discovery. "~" and $VARS are expanded.
	Path             string        `koanf:"path" yaml:"path"`
	Dialect          string        `koanf:"dialect" yaml:"dialect"`
	Args             []string      `koanf:"args" yaml:"args"`
	EvalTimeout      time.Duration `koanf:"eval_timeout" yaml:"eval_timeout"`
	TerminateTimeout time.Duration `koanf:"terminate_timeout" yaml:"terminate_timeout"`
	StartTimeout     time.Duration `koanf:"start_timeout" yaml:"start_timeout"`
}

// EventsSection configures lifecycle event publishing.
type EventsSection struct {
	Backend   string `koanf:"backend" yaml:"backend"`
	RedisAddr string `koanf:"redis_addr" yaml:"redis_addr"`
	Channel   string `koanf:"channel" yaml:"channel"`
}

// MetricsSection configures the /metrics endpoint.
type MetricsSection struct {
	Enabled bool `koanf:"enabled" yaml:"enabled"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}
