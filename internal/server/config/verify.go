package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/yndnr/kernelgate/internal/kernel"
	"github.com/yndnr/kernelgate/internal/telemetry/logger"
	"github.com/yndnr/kernelgate/pkg/token"
)

// Verify validates the configuration and resolves derived values in place:
// the secret is read from secret_key_file when set, and kernel.path is
// expanded and checked.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifySecurity(&cfg.Security); err != nil {
		return err
	}
	if err := verifyToken(&cfg.Token); err != nil {
		return err
	}
	if err := verifyKernel(&cfg.Kernel); err != nil {
		return err
	}
	if err := verifyEvents(&cfg.Events); err != nil {
		return err
	}
	if err := verifyLog(&cfg.Log); err != nil {
		return err
	}
	return nil
}

func verifyServer(cfg *ServerSection) error {
	switch cfg.Transport {
	case TransportStdio:
	case TransportHTTP:
		if _, _, err := net.SplitHostPort(cfg.HTTPAddr); err != nil {
			return fmt.Errorf("server.http_addr %q: %w", cfg.HTTPAddr, err)
		}
	default:
		return fmt.Errorf("server.transport must be %q or %q, got %q", TransportStdio, TransportHTTP, cfg.Transport)
	}

	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return errors.New("server.tls_cert_file and server.tls_key_file must be set together")
	}
	for _, f := range []string{cfg.TLSCertFile, cfg.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("tls file: %w", err)
		}
	}

	if cfg.SocketPath != "" {
		dir := filepath.Dir(cfg.SocketPath)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return fmt.Errorf("server.socket_path: directory %q does not exist", dir)
		}
	}

	if cfg.ShutdownTimeout < 0 {
		return errors.New("server.shutdown_timeout must not be negative")
	}
	return nil
}

func verifySecurity(cfg *SecuritySection) error {
	if cfg.SecretKeyFile != "" {
		data, err := os.ReadFile(cfg.SecretKeyFile)
		if err != nil {
			return fmt.Errorf("security.secret_key_file: %w", err)
		}
		cfg.SecretKey = strings.TrimSpace(string(data))
	}
	if cfg.SecretKey == "" {
		return errors.New("security.secret_key must not be empty")
	}
	return nil
}

func verifyToken(cfg *TokenSection) error {
	// The codec performs the full validation; the secret is irrelevant here.
	_, err := token.NewCodec([]byte("x"),
		token.WithWords(cfg.Words),
		token.WithDelimiter(cfg.Delimiter),
		token.WithHash(token.Hash(cfg.Hash)),
	)
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	return nil
}

func verifyKernel(cfg *KernelSection) error {
	if _, err := kernel.LookupDialect(cfg.Dialect); err != nil {
		return fmt.Errorf("kernel.dialect: %w", err)
	}

	resolved, err := kernel.ResolvePath(cfg.Path)
	if err != nil {
		return err
	}
	cfg.Path = resolved

	if cfg.EvalTimeout < 0 || cfg.TerminateTimeout < 0 || cfg.StartTimeout < 0 {
		return errors.New("kernel timeouts must not be negative")
	}
	return nil
}

func verifyEvents(cfg *EventsSection) error {
	switch strings.ToLower(cfg.Backend) {
	case "", "none", "memory":
	case "redis":
		if cfg.RedisAddr == "" {
			return errors.New("events.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("events.backend must be none, memory or redis, got %q", cfg.Backend)
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(cfg.Format) {
	case "", "json", "text", "console":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", cfg.Format)
	}
	return nil
}

// UsesDevSecret reports whether the built-in development secret is active.
func UsesDevSecret(cfg *ServerConfig) bool {
	return cfg.Security.SecretKey == DevSecretKey
}
