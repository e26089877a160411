package localserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/yndnr/kernelgate/internal/core/domain"
	"github.com/yndnr/kernelgate/internal/core/service"
	"github.com/yndnr/kernelgate/internal/kernel/kerneltest"
	"github.com/yndnr/kernelgate/internal/telemetry/logger"
	"github.com/yndnr/kernelgate/pkg/token"
)

func newTestRegistry(t *testing.T) *service.Registry {
	t.Helper()
	codec, err := token.NewCodec([]byte("local-test-secret"))
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
	return reg
}

func run(t *testing.T, h *Handler, line string) Reply {
	t.Helper()
	var buf bytes.Buffer
	if err := h.Execute(context.Background(), &buf, line); err != nil {
		t.Fatalf("Execute(%q) error = %v", line, err)
	}
	out := buf.String()
	if !strings.HasSuffix(out, "\n") || strings.Count(out, "\n") != 1 {
		t.Fatalf("reply %q is not a single line", out)
	}
	var reply Reply
	if err := json.Unmarshal([]byte(out), &reply); err != nil {
		t.Fatalf("decode reply %q: %v", out, err)
	}
	return reply
}

func TestNewHandler_RequiresRegistry(t *testing.T) {
	if _, err := NewHandler(HandlerConfig{}); err == nil {
		t.Error("NewHandler without registry should fail")
	}
}

func TestHandler_Ping(t *testing.T) {
	h, _ := NewHandler(HandlerConfig{Registry: newTestRegistry(t)})

	reply := run(t, h, "ping")
	if !reply.OK || string(reply.Data) != `"pong"` {
		t.Errorf("reply = %+v", reply)
	}
}

func TestHandler_Status(t *testing.T) {
	reg := newTestRegistry(t)
	if _, err := reg.Create(context.Background()); err != nil {
		t.Fatal(err)
	}
	h, _ := NewHandler(HandlerConfig{Registry: reg})

	reply := run(t, h, "STATUS")
	if !reply.OK {
		t.Fatalf("status failed: %s", reply.Error)
	}
	var st Status
	if err := json.Unmarshal(reply.Data, &st); err != nil {
		t.Fatal(err)
	}
	if st.Registry.ActiveSessions != 1 || st.Registry.Backend != "fake" {
		t.Errorf("registry = %+v", st.Registry)
	}
	if st.Version == "" || st.LogLevel == "" {
		t.Errorf("status = %+v", st)
	}
}

func TestHandler_SessionsMasked(t *testing.T) {
	reg := newTestRegistry(t)
	created, err := reg.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	h, _ := NewHandler(HandlerConfig{Registry: reg})

	reply := run(t, h, "sessions")
	if strings.Contains(string(reply.Data), created.Token) {
		t.Fatal("sessions reply leaked a full token")
	}
	var sessions []domain.Session
	if err := json.Unmarshal(reply.Data, &sessions); err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].ID != created.Session.ID {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestHandler_Drain(t *testing.T) {
	reg := newTestRegistry(t)
	for i := 0; i < 3; i++ {
		if _, err := reg.Create(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	h, _ := NewHandler(HandlerConfig{Registry: reg})

	reply := run(t, h, "drain")
	if !reply.OK || string(reply.Data) != `{"closed":3}` {
		t.Errorf("drain reply = %+v (data %s)", reply, reply.Data)
	}
	if _, err := reg.Create(context.Background()); domain.KindOf(err) != domain.KindResourceExhaustion {
		t.Errorf("Create after drain error = %v, want resource exhaustion", err)
	}
}

func TestHandler_Level(t *testing.T) {
	h, _ := NewHandler(HandlerConfig{Registry: newTestRegistry(t)})
	prev := logger.GetLevel()
	t.Cleanup(func() { _ = logger.SetLevel(prev) })

	reply := run(t, h, "level debug")
	if !reply.OK || string(reply.Data) != `{"level":"debug"}` {
		t.Errorf("level debug reply = %+v (data %s)", reply, reply.Data)
	}
	if logger.GetLevel() != "debug" {
		t.Errorf("GetLevel() = %q", logger.GetLevel())
	}

	if reply := run(t, h, "level"); string(reply.Data) != `{"level":"debug"}` {
		t.Errorf("level reply data = %s", reply.Data)
	}
	if reply := run(t, h, "level loud"); reply.OK {
		t.Error("unknown level should fail")
	}
	if reply := run(t, h, "level info warn"); reply.OK {
		t.Error("two arguments should fail")
	}
}

func TestHandler_ReloadAndShutdown(t *testing.T) {
	reg := newTestRegistry(t)

	t.Run("unavailable", func(t *testing.T) {
		h, _ := NewHandler(HandlerConfig{Registry: reg})
		for _, cmd := range []string{"reload", "shutdown"} {
			if reply := run(t, h, cmd); reply.OK {
				t.Errorf("%s should fail without a callback", cmd)
			}
		}
	})

	t.Run("wired", func(t *testing.T) {
		var reason string
		reloadErr := errors.New("bad yaml")
		h, _ := NewHandler(HandlerConfig{
			Registry: reg,
			Shutdown: func(r string) { reason = r },
			Reload:   func() error { return reloadErr },
		})

		if reply := run(t, h, "shutdown"); !reply.OK || reason == "" {
			t.Errorf("shutdown reply = %+v, reason %q", reply, reason)
		}
		if reply := run(t, h, "reload"); reply.OK || reply.Error != "bad yaml" {
			t.Errorf("reload reply = %+v", reply)
		}
	})
}

func TestHandler_Unknown(t *testing.T) {
	h, _ := NewHandler(HandlerConfig{Registry: newTestRegistry(t)})

	for _, line := range []string{"", "   ", "explode"} {
		if reply := run(t, h, line); reply.OK || reply.Error == "" {
			t.Errorf("Execute(%q) reply = %+v, want error", line, reply)
		}
	}
}
