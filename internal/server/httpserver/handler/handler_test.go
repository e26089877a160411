package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yndnr/kernelgate/internal/core/service"
	"github.com/yndnr/kernelgate/internal/kernel/kerneltest"
	"github.com/yndnr/kernelgate/internal/server/mcpserver"
	"github.com/yndnr/kernelgate/internal/telemetry/logger"
	"github.com/yndnr/kernelgate/internal/telemetry/metric"
	"github.com/yndnr/kernelgate/pkg/token"
)

type testEnv struct {
	handler *Handler
	reg     *service.Registry
	backend *kerneltest.Backend
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	codec, err := token.NewCodec([]byte("handler-test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	env := &testEnv{backend: kerneltest.New()}
	env.reg, err = service.NewRegistry(service.RegistryConfig{
		Codec:   codec,
		Backend: env.backend,
		Logger:  logger.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = env.reg.Shutdown(context.Background()) })

	mcp, err := mcpserver.New(mcpserver.Config{
		Registry: env.reg,
		Metrics:  metric.NewRegistry(),
		Logger:   logger.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	env.handler, err = New(Config{
		Registry:     env.reg,
		MCP:          mcp.HTTPHandler(),
		Logger:       logger.Discard(),
		MaxBodyBytes: 4096,
	})
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func mcpRequest(t *testing.T, msg map[string]any) *http.Request {
	t.Helper()
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	return req
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body)
	}
	return resp
}

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New(Config{}) should fail")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Code != "OK" {
		t.Errorf("code = %q, want OK", resp.Code)
	}
	data := resp.Data.(map[string]any)
	if data["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", data["status"])
	}
}

func TestReady(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(httptest.NewRequest(http.MethodGet, "/ready", nil)); rec.Code != http.StatusOK {
		t.Fatalf("ready status = %d, want 200", rec.Code)
	}

	env.reg.CloseAll(context.Background())

	rec := env.do(httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready status after drain = %d, want 503", rec.Code)
	}
	if got := rec.Header().Get("X-Error-Code"); got != "KG-SYS-5030" {
		t.Errorf("X-Error-Code = %q", got)
	}
}

func TestAdminStatus(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.reg.Create(context.Background()); err != nil {
		t.Fatal(err)
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/admin/v1/status/summary", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Data StatusSummary `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	got := body.Data
	if got.Status != "running" || got.Backend != "fake" {
		t.Errorf("summary = %+v", got)
	}
	if got.ActiveSessions != 1 || got.SessionsCreated != 1 {
		t.Errorf("sessions: active=%d created=%d, want 1/1", got.ActiveSessions, got.SessionsCreated)
	}
	if got.Version == "" {
		t.Error("version should be set")
	}
}

func TestAdminSessions_MasksTokens(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.reg.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/admin/v1/sessions", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), created.Token) {
		t.Fatal("session list leaked a full token")
	}
	var body struct {
		Data SessionList `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Data.Total != 1 || len(body.Data.Sessions) != 1 {
		t.Fatalf("list = %+v", body.Data)
	}
	if body.Data.Sessions[0].ID != created.Session.ID {
		t.Errorf("id = %q, want %q", body.Data.Sessions[0].ID, created.Session.ID)
	}
}

func TestAdmin_AcceptNegotiation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		accept string
		want   int
	}{
		{"", http.StatusOK},
		{"*/*", http.StatusOK},
		{"application/json", http.StatusOK},
		{"text/html, application/json;q=0.5", http.StatusOK},
		{"text/html", http.StatusNotAcceptable},
	}
	for _, path := range []string{"/admin/v1/status/summary", "/admin/v1/sessions"} {
		for _, tt := range tests {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			rec := env.do(req)
			if rec.Code != tt.want {
				t.Errorf("%s Accept=%q status = %d, want %d", path, tt.accept, rec.Code, tt.want)
			}
			if tt.want == http.StatusNotAcceptable {
				if got := rec.Header().Get("X-Error-Code"); got != "KG-HTTP-4060" {
					t.Errorf("X-Error-Code = %q, want KG-HTTP-4060", got)
				}
			}
		}
	}
}

func TestMCP_ToolRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	call := func(id int, name string, args map[string]any) map[string]any {
		rec := env.do(mcpRequest(t, map[string]any{
			"jsonrpc": "2.0", "id": id, "method": "tools/call",
			"params": map[string]any{"name": name, "arguments": args},
		}))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d, body %s", name, rec.Code, rec.Body)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Errorf("Content-Type = %q", ct)
		}
		var out struct {
			Result map[string]any `json:"result"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatal(err)
		}
		return out.Result
	}

	created := call(2, "create_session", map[string]any{})
	tok := created["structuredContent"].(map[string]any)["session_id"].(string)

	executed := call(3, "execute", map[string]any{"session_id": tok, "code": "1+1"})
	text := executed["content"].([]any)[0].(map[string]any)["text"]
	if text != "1+1" {
		t.Errorf("execute text = %v, want 1+1", text)
	}

	closed := call(4, "close_session", map[string]any{"session_id": tok})
	if closed["isError"] == true {
		t.Errorf("close returned error: %v", closed)
	}
}

func TestMCP_RepeatedInitializeKeepsNoState(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 100; i++ {
		rec := env.do(mcpRequest(t, map[string]any{
			"jsonrpc": "2.0", "id": i, "method": "initialize",
			"params": map[string]any{
				"protocolVersion": "2025-06-18",
				"capabilities":    map[string]any{},
				"clientInfo":      map[string]any{"name": "flood", "version": "1"},
			},
		}))
		if rec.Code != http.StatusOK {
			t.Fatalf("initialize #%d status = %d, body %s", i, rec.Code, rec.Body)
		}
	}

	rec := env.do(mcpRequest(t, map[string]any{"jsonrpc": "2.0", "id": "list", "method": "tools/list"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("tools/list without session id status = %d, body %s", rec.Code, rec.Body)
	}
	if env.backend.Opened() != 0 {
		t.Error("initialize opened kernels")
	}
}

func TestMCP_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(mcpRequest(t, map[string]any{
		"jsonrpc": "2.0", "id": 1, "method": "tools/call",
		"params": map[string]any{"name": "create_session", "arguments": map[string]any{}, "pad": strings.Repeat("x", 8192)},
	}))
	if rec.Code == http.StatusOK {
		t.Errorf("oversized body accepted: %s", rec.Body)
	}
	if env.backend.Opened() != 0 {
		t.Error("oversized body reached the backend")
	}
}

func TestRequestIDInEnvelope(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req = req.WithContext(logger.WithRequestID(req.Context(), "01TESTREQ"))
	resp := decodeEnvelope(t, env.do(req))
	if resp.RequestID != "01TESTREQ" {
		t.Errorf("request_id = %q, want 01TESTREQ", resp.RequestID)
	}
}
