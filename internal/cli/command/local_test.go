package command

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/yndnr/kernelgate/internal/server/localserver"
	"github.com/yndnr/kernelgate/internal/telemetry/logger"
)

func TestLocal_PingStatusSessions(t *testing.T) {
	env := newTestEnv(t)
	env.createSession(t)

	if out := env.mustRun(t, "local", "ping"); out != "pong\n" {
		t.Errorf("ping output = %q", out)
	}

	out := env.mustRun(t, "-o", "json", "local", "status")
	var status localserver.Status
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if status.Registry.ActiveSessions != 1 || status.LogLevel == "" {
		t.Errorf("status = %+v", status)
	}

	if out := env.mustRun(t, "local", "status"); !strings.Contains(out, "registry.active_sessions") {
		t.Errorf("table status = %q", out)
	}

	out = env.mustRun(t, "local", "sessions")
	if !strings.Contains(out, "TOKEN") || !strings.Contains(out, "fake") {
		t.Errorf("sessions output = %q", out)
	}
}

func TestLocal_Level(t *testing.T) {
	env := newTestEnv(t)
	prev := logger.GetLevel()
	t.Cleanup(func() { _ = logger.SetLevel(prev) })

	if out := env.mustRun(t, "local", "level", "DEBUG"); out != "Log level: debug\n" {
		t.Errorf("level output = %q", out)
	}
	if out := env.mustRun(t, "local", "level"); out != "Log level: debug\n" {
		t.Errorf("level output = %q", out)
	}
	if _, err := env.run(t, "", "local", "level", "loud"); err == nil {
		t.Error("unknown level should fail")
	}
	if _, err := env.run(t, "", "local", "level", "info", "debug"); err == nil {
		t.Error("two levels should fail")
	}
}

func TestLocal_UnavailableCommands(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "", "local", "reload")
	if err == nil || !strings.Contains(err.Error(), "reload is not available") {
		t.Errorf("reload error = %v", err)
	}
	_, err = env.run(t, "", "local", "shutdown", "--force")
	if err == nil || !strings.Contains(err.Error(), "shutdown is not available") {
		t.Errorf("shutdown error = %v", err)
	}
}

func TestLocal_NoSocket(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.runRaw(t, "", "kernelgate-cli", "--server", env.srv.URL, "local", "ping")
	if err == nil || !strings.Contains(err.Error(), "no socket path") {
		t.Errorf("error = %v", err)
	}
}
