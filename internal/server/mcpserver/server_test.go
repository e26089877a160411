package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/kernelgate/internal/core/service"
	"github.com/yndnr/kernelgate/internal/kernel/kerneltest"
	"github.com/yndnr/kernelgate/internal/telemetry/logger"
	"github.com/yndnr/kernelgate/internal/telemetry/metric"
	"github.com/yndnr/kernelgate/pkg/token"
)

type harness struct {
	srv     *Server
	sdk     *mcp.Server
	reg     *service.Registry
	backend *kerneltest.Backend
	metrics *metric.Registry
	session *mcp.ClientSession
}

func newHarness(t *testing.T, mutate ...func(*Config)) *harness {
	t.Helper()

	codec, err := token.NewCodec([]byte("mcp-test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{backend: kerneltest.New(), metrics: metric.NewRegistry()}
	h.reg, err = service.NewRegistry(service.RegistryConfig{
		Codec:   codec,
		Backend: h.backend,
		Logger:  logger.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = h.reg.Shutdown(context.Background()) })

	cfg := Config{Registry: h.reg, Metrics: h.metrics, Logger: logger.Discard()}
	for _, m := range mutate {
		m(&cfg)
	}
	h.srv, err = New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	h.sdk = h.srv.newSDK("test")
	h.session = h.connect(t)
	return h
}

// connect attaches a new client to the test server over in-memory
// transports.
func (h *harness) connect(t *testing.T) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	st, ct := mcp.NewInMemoryTransports()
	ss, err := h.sdk.Connect(ctx, st, nil)
	if err != nil {
		t.Fatalf("server Connect() error = %v", err)
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "1"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatalf("client Connect() error = %v", err)
	}
	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
	})
	return cs
}

type toolOutcome struct {
	text       string
	isError    bool
	code       string
	kind       string
	structured map[string]any
}

func (h *harness) call(t *testing.T, name string, args map[string]any) toolOutcome {
	t.Helper()
	return callOn(t, h.session, name, args)
}

func callOn(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) toolOutcome {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s) error = %v", name, err)
	}
	return outcomeOf(t, res)
}

func outcomeOf(t *testing.T, res *mcp.CallToolResult) toolOutcome {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("tool result has no content")
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] = %T, want text", res.Content[0])
	}
	out := toolOutcome{text: tc.Text, isError: res.IsError}
	if sc, ok := res.StructuredContent.(map[string]any); ok {
		out.structured = sc
		if e, ok := sc["error"].(map[string]any); ok {
			out.code, _ = e["code"].(string)
			out.kind, _ = e["kind"].(string)
		}
	}
	return out
}

func (h *harness) create(t *testing.T) string {
	t.Helper()
	out := h.call(t, ToolCreateSession, nil)
	if out.isError {
		t.Fatalf("create_session failed: %s", out.text)
	}
	return out.structured["session_id"].(string)
}

func TestNew_RequiresRegistry(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() without registry succeeded")
	}
}

func TestInitialize(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Instructions = "use the tools" })

	res := h.session.InitializeResult()
	if res == nil || res.ServerInfo == nil {
		t.Fatal("no initialize result")
	}
	if res.ServerInfo.Name != ServerName {
		t.Errorf("serverInfo.name = %q, want %q", res.ServerInfo.Name, ServerName)
	}
	if res.Capabilities == nil || res.Capabilities.Tools == nil {
		t.Error("tools capability not advertised")
	}
	if res.Instructions != "use the tools" {
		t.Errorf("instructions = %q", res.Instructions)
	}

	if err := h.session.Ping(context.Background(), nil); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestToolsList(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Language = "POSIX shell" })

	res, err := h.session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	if len(res.Tools) != 3 {
		t.Fatalf("tools = %d, want 3", len(res.Tools))
	}

	byName := map[string]*mcp.Tool{}
	for _, tool := range res.Tools {
		byName[tool.Name] = tool
		if !strings.Contains(tool.Description, "POSIX shell") {
			t.Errorf("%s description does not name the language", tool.Name)
		}
	}
	for _, name := range []string{ToolCreateSession, ToolExecute, ToolCloseSession} {
		if _, ok := byName[name]; !ok {
			t.Errorf("tool %s not listed", name)
		}
	}
	for alias := range toolAliases {
		if _, ok := byName[alias]; ok {
			t.Errorf("alias %s should not be listed", alias)
		}
	}

	exec, ok := byName[ToolExecute]
	if !ok {
		t.FailNow()
	}
	data, err := json.Marshal(exec.InputSchema)
	if err != nil {
		t.Fatal(err)
	}
	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err != nil {
		t.Fatal(err)
	}
	if schema["type"] != "object" {
		t.Errorf("execute schema type = %v", schema["type"])
	}
	props, _ := schema["properties"].(map[string]any)
	for _, p := range []string{"session_id", "code"} {
		prop, ok := props[p].(map[string]any)
		if !ok {
			t.Fatalf("execute schema lacks %s", p)
		}
		if prop["type"] != "string" || prop["description"] == "" {
			t.Errorf("%s property = %v", p, prop)
		}
	}
	required := fmt.Sprint(schema["required"])
	if !strings.Contains(required, "session_id") || !strings.Contains(required, "code") {
		t.Errorf("required = %s", required)
	}
}

func TestCallErrors(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		tool string
		args map[string]any
	}{
		{"unknown tool", "rm_rf", nil},
		{"unknown argument", ToolCreateSession, map[string]any{"x": 1}},
		{"wrong argument type", ToolExecute, map[string]any{"session_id": 5, "code": "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.session.CallTool(context.Background(), &mcp.CallToolParams{Name: tt.tool, Arguments: tt.args})
			if err == nil && !res.IsError {
				t.Error("CallTool() succeeded, want rejection")
			}
		})
	}

	if h.backend.Opened() != 0 {
		t.Error("rejected calls reached the backend")
	}
}

func TestToolLifecycle(t *testing.T) {
	h := newHarness(t)

	out := h.call(t, ToolCreateSession, map[string]any{})
	if out.isError {
		t.Fatalf("create failed: %s", out.text)
	}
	id := out.structured["session_id"].(string)
	if out.text != "Session created successfully. Your session ID is: "+id {
		t.Errorf("create text = %q", out.text)
	}

	if out := h.call(t, ToolExecute, map[string]any{"session_id": id, "code": "set x 42"}); out.isError {
		t.Fatalf("execute failed: %s", out.text)
	}
	if out := h.call(t, ToolExecute, map[string]any{"session_id": id, "code": "get x"}); out.text != "42" {
		t.Errorf("execute output = %q, want 42", out.text)
	}

	out = h.call(t, ToolCloseSession, map[string]any{"session_id": id})
	if out.isError || out.text != fmt.Sprintf("Session '%s' closed successfully.", id) {
		t.Errorf("close = %+v", out)
	}

	out = h.call(t, ToolExecute, map[string]any{"session_id": id, "code": "get x"})
	if !out.isError || out.kind != "session_not_found" || out.code != "KG-SESS-4040" {
		t.Errorf("execute after close = %+v", out)
	}
	if out.text != fmt.Sprintf("Session with ID '%s' not found or has been closed.", id) {
		t.Errorf("execute after close text = %q", out.text)
	}

	out = h.call(t, ToolCloseSession, map[string]any{"session_id": id})
	if out.text != fmt.Sprintf("Session with ID '%s' not found or already closed.", id) {
		t.Errorf("second close text = %q", out.text)
	}
}

func TestToolAliases(t *testing.T) {
	h := newHarness(t)

	out := h.call(t, "create_mathematica_session", nil)
	id := out.structured["session_id"].(string)
	if out := h.call(t, "execute_mathematica_code", map[string]any{"session_id": id, "code": "hello"}); out.text != "hello" {
		t.Errorf("aliased execute = %+v", out)
	}
	if out := h.call(t, "close_mathematica_session", map[string]any{"session_id": id}); out.isError {
		t.Errorf("aliased close = %+v", out)
	}
}

func TestInvalidToken(t *testing.T) {
	h := newHarness(t)

	out := h.call(t, ToolExecute, map[string]any{"session_id": "not-a-token", "code": "1"})
	if !out.isError || out.kind != "invalid_token" || out.code != "KG-TOKN-4010" {
		t.Errorf("execute = %+v", out)
	}
	if out.text != "Invalid session ID. It might be malformed or tampered with." {
		t.Errorf("execute text = %q", out.text)
	}

	out = h.call(t, ToolCloseSession, map[string]any{"session_id": "not-a-token"})
	if out.text != "Invalid session ID." || out.kind != "invalid_token" {
		t.Errorf("close = %+v", out)
	}
}

func TestOpaqueTokenErrors(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.OpaqueTokenErrors = true })

	out := h.call(t, ToolExecute, map[string]any{"session_id": "not-a-token", "code": "1"})
	if out.kind != "session_not_found" {
		t.Errorf("kind = %q, want session_not_found", out.kind)
	}
	if out.text != "Session with ID 'not-a-token' not found or has been closed." {
		t.Errorf("text = %q", out.text)
	}
}

func TestMissingArguments(t *testing.T) {
	h := newHarness(t)
	id := h.create(t)

	tests := []struct {
		tool string
		args map[string]any
		want string
	}{
		{ToolExecute, map[string]any{"code": "1"}, "session_id"},
		{ToolExecute, map[string]any{"session_id": id}, "code"},
		{ToolCloseSession, map[string]any{}, "session_id"},
		{ToolCloseSession, nil, "session_id"},
	}
	for _, tt := range tests {
		out := h.call(t, tt.tool, tt.args)
		if !out.isError || out.code != "KG-ARG-1002" {
			t.Errorf("%s %v = %+v", tt.tool, tt.args, out)
		}
		if out.text != "Missing required argument: "+tt.want {
			t.Errorf("text = %q", out.text)
		}
	}

	// An empty code string is forwarded, not rejected.
	if out := h.call(t, ToolExecute, map[string]any{"session_id": id, "code": ""}); out.isError {
		t.Errorf("empty code rejected: %+v", out)
	}
}

func TestBackendFailures(t *testing.T) {
	h := newHarness(t)
	id := h.create(t)

	out := h.call(t, ToolExecute, map[string]any{"session_id": id, "code": "fail"})
	if !out.isError || out.kind != "backend_failure" {
		t.Errorf("execute = %+v", out)
	}
	want := fmt.Sprintf("An error occurred during execution in session '%s': %s", id, kerneltest.ErrInjected)
	if out.text != want {
		t.Errorf("execute text = %q, want %q", out.text, want)
	}

	h.backend.TerminateErr = kerneltest.ErrInjected
	out = h.call(t, ToolCloseSession, map[string]any{"session_id": id})
	if !strings.HasPrefix(out.text, fmt.Sprintf("An error occurred while closing session '%s': ", id)) {
		t.Errorf("close text = %q", out.text)
	}

	h.backend.OpenErr = kerneltest.ErrInjected
	out = h.call(t, ToolCreateSession, nil)
	if !out.isError || out.code != "KG-KERN-5020" || !strings.HasPrefix(out.text, "Failed to create session: ") {
		t.Errorf("create = %+v", out)
	}
}

func TestRequestMetrics(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.session.Ping(ctx, nil); err != nil {
		t.Fatal(err)
	}
	h.call(t, ToolExecute, map[string]any{"session_id": "bad", "code": "1"})
	if _, err := h.session.CallTool(ctx, &mcp.CallToolParams{Name: "no_such_tool"}); err == nil {
		t.Fatal("unknown tool succeeded")
	}

	checks := []struct {
		method, status string
	}{
		{MethodInitialize, "ok"},
		{MethodPing, "ok"},
		{MethodToolsCall, "invalid_token"},
		{MethodToolsCall, "rpc_error"},
	}
	for _, c := range checks {
		got := testutil.ToFloat64(h.metrics.RequestsTotal.WithLabelValues("test", c.method, c.status))
		if got != 1 {
			t.Errorf("requests{%s,%s} = %v, want 1", c.method, c.status, got)
		}
	}
}

func TestMethodLabel(t *testing.T) {
	for _, m := range []string{MethodInitialize, MethodPing, MethodToolsList, MethodToolsCall, NotifyInitialized, NotifyCancelled} {
		if got := methodLabel(m); got != m {
			t.Errorf("methodLabel(%q) = %q", m, got)
		}
	}
	if got := methodLabel("resources/list"); got != methodLabelUnknown {
		t.Errorf("methodLabel(resources/list) = %q, want %q", got, methodLabelUnknown)
	}
}

func TestConcurrentSessions(t *testing.T) {
	h := newHarness(t)
	other := h.connect(t)
	slow := h.create(t)
	fast := h.create(t)

	done := make(chan toolOutcome, 1)
	go func() {
		res, err := h.session.CallTool(context.Background(), &mcp.CallToolParams{
			Name:      ToolExecute,
			Arguments: map[string]any{"session_id": slow, "code": "sleep 1s"},
		})
		if err != nil {
			done <- toolOutcome{isError: true, text: err.Error()}
			return
		}
		done <- toolOutcome{isError: res.IsError}
	}()
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	if out := callOn(t, other, ToolExecute, map[string]any{"session_id": fast, "code": "quick"}); out.isError {
		t.Fatalf("fast execute = %+v", out)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("fast session waited for the slow one")
	}
	if out := <-done; out.isError {
		t.Errorf("slow execute = %+v", out)
	}
}
