package command

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kernelgate/internal/core/service"
	"github.com/yndnr/kernelgate/internal/kernel/kerneltest"
	"github.com/yndnr/kernelgate/internal/server/httpserver"
	"github.com/yndnr/kernelgate/internal/server/localserver"
	"github.com/yndnr/kernelgate/internal/server/mcpserver"
	"github.com/yndnr/kernelgate/internal/telemetry/logger"
	"github.com/yndnr/kernelgate/pkg/token"
)

// testEnv is a kernelgate server on the fake kernel, reachable over HTTP
// and a local socket, plus an isolated CLI config file.
type testEnv struct {
	srv        *httptest.Server
	reg        *service.Registry
	socket     string
	configPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	codec, err := token.NewCodec([]byte("command-test-secret"))
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

	// Unix socket paths must stay short.
	dir, err := os.MkdirTemp("", "kgcmd")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	h, err := localserver.NewHandler(localserver.HandlerConfig{Registry: reg})
	if err != nil {
		t.Fatal(err)
	}
	local := localserver.New(filepath.Join(dir, "admin.sock"), h, logger.Discard())
	if err := local.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go func() { _ = local.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = local.Shutdown(ctx)
	})

	return &testEnv{
		srv:        srv,
		reg:        reg,
		socket:     local.Path(),
		configPath: filepath.Join(t.TempDir(), "cli.yaml"),
	}
}

// run executes the CLI against the test server with the given stdin.
func (e *testEnv) run(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	full := append([]string{"kernelgate-cli", "--server", e.srv.URL, "--socket", e.socket}, args...)
	return e.runRaw(t, input, full...)
}

// runRaw executes the CLI with only the config flag added.
func (e *testEnv) runRaw(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = &errOut
	app.Reader = strings.NewReader(input)
	app.ExitErrHandler = func(*cli.Context, error) {}

	full := append([]string{args[0], "--config", e.configPath}, args[1:]...)
	err := app.Run(full)
	return out.String(), err
}

// mustRun is run that fails the test on error.
func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, "", args...)
	if err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out)
	}
	return out
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	return strings.TrimSpace(e.mustRun(t, "session", "create", "-q"))
}
