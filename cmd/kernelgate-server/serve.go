package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kernelgate/internal/core/service"
	"github.com/yndnr/kernelgate/internal/events"
	"github.com/yndnr/kernelgate/internal/infra/buildinfo"
	"github.com/yndnr/kernelgate/internal/infra/confloader"
	"github.com/yndnr/kernelgate/internal/infra/shutdown"
	"github.com/yndnr/kernelgate/internal/infra/tlsroots"
	"github.com/yndnr/kernelgate/internal/kernel"
	"github.com/yndnr/kernelgate/internal/server/config"
	"github.com/yndnr/kernelgate/internal/server/httpserver"
	"github.com/yndnr/kernelgate/internal/server/localserver"
	"github.com/yndnr/kernelgate/internal/server/mcpserver"
	"github.com/yndnr/kernelgate/internal/telemetry/logger"
	"github.com/yndnr/kernelgate/internal/telemetry/metric"
	"github.com/yndnr/kernelgate/pkg/token"
)

// startupPingTimeout bounds the events backend probe at startup.
const startupPingTimeout = 3 * time.Second

func serve(c *cli.Context) error {
	configFile := c.String("config")
	overrides := flagOverrides(c)

	cfg, err := loadConfig(configFile, overrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Logs go to stderr; stdout carries the stdio transport.
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	info := buildinfo.Get()
	log.Info("starting kernelgate-server",
		"version", info.Version,
		"commit", info.Commit,
		"transport", cfg.Server.Transport,
		"config", configFile,
	)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))
	if config.UsesDevSecret(cfg) {
		log.Warn("using the built-in development secret; session tokens can be forged",
			"hint", "set security.secret_key, KERNELGATE_SECURITY_SECRET_KEY or "+config.EnvLegacySecretKey)
	}

	startedAt := time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := newBackend(cfg, log)
	if err != nil {
		return err
	}

	publisher, err := newPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}

	codec, err := token.NewCodec([]byte(cfg.Security.SecretKey),
		token.WithWords(cfg.Token.Words),
		token.WithDelimiter(cfg.Token.Delimiter),
		token.WithHash(token.Hash(cfg.Token.Hash)),
	)
	if err != nil {
		return fmt.Errorf("init token codec: %w", err)
	}

	var metrics *metric.Registry
	if cfg.Metrics.Enabled {
		metrics = metric.NewRegistry()
	}

	registry, err := service.NewRegistry(service.RegistryConfig{
		Codec:   codec,
		Backend: backend,
		Events:  publisher,
		Metrics: metrics,
		Logger:  log.With("component", "registry"),
	})
	if err != nil {
		return fmt.Errorf("init registry: %w", err)
	}
	if metrics != nil {
		if err := metrics.Register(metric.NewCollector(registry)); err != nil {
			return fmt.Errorf("register collector: %w", err)
		}
	}

	dialect, _ := kernel.LookupDialect(cfg.Kernel.Dialect)
	mcp, err := mcpserver.New(mcpserver.Config{
		Registry:          registry,
		Metrics:           metrics,
		Logger:            log.With("component", "mcp"),
		Language:          dialect.Language,
		OpaqueTokenErrors: cfg.Security.OpaqueTokenErrors,
	})
	if err != nil {
		return fmt.Errorf("init mcp server: %w", err)
	}

	sd := shutdown.NewHandler(cfg.Server.ShutdownTimeout, shutdown.WithLogger(log))

	// Hooks run in reverse order: transports stop first, then sessions,
	// then the events backend.
	sd.OnShutdown("events", func(context.Context) error { return publisher.Close() })
	sd.OnShutdown("registry", registry.Shutdown)

	if configFile != "" {
		stop, err := watchConfig(configFile, overrides, log)
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			sd.OnShutdown("config-watcher", func(context.Context) error { return stop() })
		}
	}

	if cfg.Server.SocketPath != "" {
		if err := startLocalServer(cfg, registry, sd, configFile, overrides, startedAt, log); err != nil {
			return err
		}
	}

	switch cfg.Server.Transport {
	case config.TransportHTTP:
		if err := startHTTP(cfg, registry, mcp, metrics, sd, startedAt, log); err != nil {
			return err
		}
	default:
		stdioCtx, stopStdio := context.WithCancel(ctx)
		sd.OnShutdown("stdio", func(context.Context) error {
			stopStdio()
			return nil
		})
		go func() {
			log.Info("serving MCP on stdio")
			if err := mcp.ServeStdio(stdioCtx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("stdio transport error", "error", err)
			}
			sd.Trigger("stdin closed")
		}()
	}

	if err := sd.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}

func newBackend(cfg *config.ServerConfig, log logger.Logger) (*kernel.ProcessBackend, error) {
	dialect, err := kernel.LookupDialect(cfg.Kernel.Dialect)
	if err != nil {
		return nil, err
	}

	backend, err := kernel.NewProcessBackend(kernel.ProcessConfig{
		Dialect:          dialect,
		Path:             cfg.Kernel.Path,
		Args:             cfg.Kernel.Args,
		EvalTimeout:      cfg.Kernel.EvalTimeout,
		TerminateTimeout: cfg.Kernel.TerminateTimeout,
		StartTimeout:     cfg.Kernel.StartTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init kernel backend (set kernel.path or %s): %w", config.EnvLegacyKernelPath, err)
	}

	source := "discovered on PATH"
	if cfg.Kernel.Path != "" {
		source = "configured"
	}
	log.Info("kernel backend ready",
		"dialect", dialect.Name,
		"path", backend.Path(),
		"source", source,
	)
	return backend, nil
}

func newPublisher(ctx context.Context, cfg *config.ServerConfig, log logger.Logger) (events.Publisher, error) {
	publisher, err := events.New(events.Config{
		Backend:   cfg.Events.Backend,
		RedisAddr: cfg.Events.RedisAddr,
		Channel:   cfg.Events.Channel,
	})
	if err != nil {
		return nil, fmt.Errorf("init events: %w", err)
	}

	if r, ok := publisher.(*events.Redis); ok {
		pctx, cancel := context.WithTimeout(ctx, startupPingTimeout)
		defer cancel()
		if err := r.Ping(pctx); err != nil {
			// Publishing failures are logged per event; startup proceeds.
			log.Warn("events backend unreachable", "addr", cfg.Events.RedisAddr, "error", err)
		} else {
			log.Info("publishing session events", "backend", "redis", "channel", r.Channel())
		}
	}
	return publisher, nil
}

func startHTTP(
	cfg *config.ServerConfig,
	registry *service.Registry,
	mcp *mcpserver.Server,
	metrics *metric.Registry,
	sd *shutdown.Handler,
	startedAt time.Time,
	log logger.Logger,
) error {
	router, err := httpserver.NewRouter(httpserver.RouterConfig{
		Registry:           registry,
		MCP:                mcp,
		Metrics:            metrics,
		Logger:             log.With("component", "http"),
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		StartedAt:          startedAt,
	})
	if err != nil {
		return fmt.Errorf("init http router: %w", err)
	}

	var tlsConfig *tls.Config
	if cfg.Server.TLSCertFile != "" {
		certs, err := tlsroots.NewCertReloader(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile,
			tlsroots.WithLogger(log.With("component", "tls")))
		if err != nil {
			return err
		}
		if err := certs.Watch(); err != nil {
			// Rotation then needs a restart; serving continues.
			log.Warn("certificate watch disabled", "error", err)
		}
		sd.OnShutdown("tls", func(context.Context) error { return certs.Stop() })
		tlsConfig = certs.ServerConfig()
	}

	l, err := net.Listen("tcp", cfg.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.HTTPAddr, err)
	}
	srv := httpserver.New(cfg.Server.HTTPAddr, router)
	sd.OnShutdown("http", srv.Shutdown)

	go func() {
		log.Info("HTTP server listening",
			"addr", l.Addr().String(),
			"tls", tlsConfig != nil,
		)
		err := srv.Serve(l, tlsConfig)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
			sd.Trigger("http server failed")
		}
	}()
	return nil
}

func startLocalServer(
	cfg *config.ServerConfig,
	registry *service.Registry,
	sd *shutdown.Handler,
	configFile string,
	overrides map[string]any,
	startedAt time.Time,
	log logger.Logger,
) error {
	h, err := localserver.NewHandler(localserver.HandlerConfig{
		Registry:  registry,
		Shutdown:  sd.Trigger,
		Reload:    func() error { return reloadLogLevel(configFile, overrides, log) },
		StartedAt: startedAt,
	})
	if err != nil {
		return err
	}

	ls := localserver.New(cfg.Server.SocketPath, h, log.With("component", "local"))
	if err := ls.Listen(); err != nil {
		return fmt.Errorf("local socket: %w", err)
	}
	sd.OnShutdown("local", ls.Shutdown)

	go func() {
		log.Info("local management socket listening", "path", ls.Path())
		if err := ls.Serve(); err != nil {
			log.Error("local socket error", "error", err)
		}
	}()
	return nil
}

// watchConfig reloads the log level whenever the config file changes.
func watchConfig(file string, overrides map[string]any, log logger.Logger) (stop func() error, err error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log.With("component", "config")))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(file); err != nil {
		_ = w.Stop()
		return nil, err
	}
	w.OnChange(func(string) {
		if err := reloadLogLevel(file, overrides, log); err != nil {
			log.Warn("config reload rejected", "error", err)
		}
	})
	w.StartAsync()
	return w.Stop, nil
}

// reloadLogLevel re-reads the configuration and applies the one setting
// that can change at runtime. Other changes need a restart.
func reloadLogLevel(file string, overrides map[string]any, log logger.Logger) error {
	cfg, err := loadConfig(file, overrides)
	if err != nil {
		return err
	}
	if cfg.Log.Level == logger.GetLevel() {
		return nil
	}
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return err
	}
	log.Info("log level changed", "level", cfg.Log.Level)
	return nil
}
