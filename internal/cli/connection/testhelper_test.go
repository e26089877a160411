package connection

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yndnr/kernelgate/internal/core/service"
	"github.com/yndnr/kernelgate/internal/kernel/kerneltest"
	"github.com/yndnr/kernelgate/internal/server/httpserver"
	"github.com/yndnr/kernelgate/internal/server/localserver"
	"github.com/yndnr/kernelgate/internal/server/mcpserver"
	"github.com/yndnr/kernelgate/internal/telemetry/logger"
	"github.com/yndnr/kernelgate/pkg/token"
)

// startServer runs a kernelgate HTTP router backed by the fake kernel.
func startServer(t *testing.T) (*httptest.Server, *service.Registry) {
	t.Helper()

	codec, err := token.NewCodec([]byte("cli-test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	reg, err := service.NewRegistry(service.RegistryConfig{
		Codec:   codec,
		Backend: kerneltest.New(),
		Logger:  logger.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = reg.Shutdown(context.Background()) })

	mcp, err := mcpserver.New(mcpserver.Config{Registry: reg, Logger: logger.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	router, err := httpserver.NewRouter(httpserver.RouterConfig{
		Registry: reg,
		MCP:      mcp,
		Logger:   logger.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, reg
}

// startLocal runs a local management socket over reg and returns its path.
func startLocal(t *testing.T, reg *service.Registry) string {
	t.Helper()

	dir, err := os.MkdirTemp("", "kgc")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	h, err := localserver.NewHandler(localserver.HandlerConfig{Registry: reg})
	if err != nil {
		t.Fatal(err)
	}
	s := localserver.New(filepath.Join(dir, "admin.sock"), h, logger.Discard())
	if err := s.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go func() { _ = s.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s.Path()
}
