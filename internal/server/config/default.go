package config

import (
	"time"

	"github.com/yndnr/kernelgate/internal/events"
	"github.com/yndnr/kernelgate/internal/kernel"
	"github.com/yndnr/kernelgate/pkg/token"
)

// Default configuration values.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"

	DefaultHTTPAddr        = "127.0.0.1:5080"
	DefaultShutdownTimeout = 30 * time.Second

	// DevSecretKey is used when no secret is configured. It is fine for
	// local experiments only; tokens minted with it are forgeable.
	DevSecretKey = "default-secret-key-for-dev"

	DefaultDialect   = "wolfram"
	DefaultRedisAddr = "127.0.0.1:6379"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Legacy environment variables honored as aliases.
const (
	EnvLegacySecretKey  = "ANIMALID_SECRET_KEY"
	EnvLegacyKernelPath = "WOLFRAM_KERNEL_PATH"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Transport:       TransportStdio,
			HTTPAddr:        DefaultHTTPAddr,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Security: SecuritySection{
			SecretKey: DevSecretKey,
		},
		Token: TokenSection{
			Words:     token.DefaultWords,
			Delimiter: token.DefaultDelimiter,
			Hash:      string(token.HashHMACSHA256),
		},
		Kernel: KernelSection{
			Dialect:          DefaultDialect,
			TerminateTimeout: kernel.DefaultTerminateTimeout,
			StartTimeout:     kernel.DefaultStartTimeout,
		},
		Events: EventsSection{
			Backend:   "none",
			RedisAddr: DefaultRedisAddr,
			Channel:   events.DefaultChannel,
		},
		Metrics: MetricsSection{
			Enabled: true,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// EnvAliases maps legacy environment variables to config keys.
func EnvAliases() map[string]string {
	return map[string]string{
		EnvLegacySecretKey:  "security.secret_key",
		EnvLegacyKernelPath: "kernel.path",
	}
}
