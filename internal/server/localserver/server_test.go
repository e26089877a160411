package localserver

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// shortSocketPath keeps the path under the sun_path limit.
func shortSocketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "kg")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "admin.sock")
}

func startServer(t *testing.T) *Server {
	t.Helper()
	h, err := NewHandler(HandlerConfig{Registry: newTestRegistry(t)})
	if err != nil {
		t.Fatal(err)
	}
	s := New(shortSocketPath(t), h, nil)
	if err := s.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("Serve returned %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("Serve did not return after Shutdown")
		}
	})
	return s
}

func TestServer_RoundTrip(t *testing.T) {
	s := startServer(t)

	fi, err := os.Stat(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if perm := fi.Mode().Perm(); perm != 0o600 {
		t.Errorf("socket mode = %o, want 600", perm)
	}

	conn, err := net.Dial("unix", s.Path())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	reader := bufio.NewReader(conn)

	for _, cmd := range []string{"ping", "status", "sessions"} {
		if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
			t.Fatal(err)
		}
		line, err := reader.ReadBytes('\n')
		if err != nil {
			t.Fatalf("%s: read reply: %v", cmd, err)
		}
		var reply Reply
		if err := json.Unmarshal(line, &reply); err != nil {
			t.Fatal(err)
		}
		if !reply.OK {
			t.Errorf("%s failed: %s", cmd, reply.Error)
		}
	}
}

func TestServer_ShutdownClosesIdleConnections(t *testing.T) {
	h, _ := NewHandler(HandlerConfig{Registry: newTestRegistry(t)})
	s := New(shortSocketPath(t), h, nil)
	if err := s.Listen(); err != nil {
		t.Fatal(err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve() }()

	conn, err := net.Dial("unix", s.Path())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	// Make sure the server has picked up the connection.
	if _, err := conn.Write([]byte("ping\n")); err != nil {
		t.Fatal(err)
	}
	if _, err := bufio.NewReader(conn).ReadBytes('\n'); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Errorf("Serve returned %v", err)
	}
	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Errorf("socket file still present: %v", err)
	}
}

func TestServer_ReplacesStaleSocket(t *testing.T) {
	path := shortSocketPath(t)

	// A listener closed without unlinking leaves a stale socket file.
	l, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	l.(*net.UnixListener).SetUnlinkOnClose(false)
	l.Close()

	h, _ := NewHandler(HandlerConfig{Registry: newTestRegistry(t)})
	s := New(path, h, nil)
	if err := s.Listen(); err != nil {
		t.Fatalf("Listen over stale socket: %v", err)
	}
	_ = s.Shutdown(context.Background())
}

func TestServer_RefusesSocketInUse(t *testing.T) {
	s := startServer(t)

	h, _ := NewHandler(HandlerConfig{Registry: newTestRegistry(t)})
	other := New(s.Path(), h, nil)
	if err := other.Listen(); err == nil {
		t.Fatal("Listen on a live socket should fail")
	}
}

func TestServer_RefusesRegularFile(t *testing.T) {
	path := shortSocketPath(t)
	if err := os.WriteFile(path, []byte("not a socket"), 0o600); err != nil {
		t.Fatal(err)
	}

	h, _ := NewHandler(HandlerConfig{Registry: newTestRegistry(t)})
	if err := New(path, h, nil).Listen(); err == nil {
		t.Fatal("Listen over a regular file should fail")
	}
}

func TestServer_ServeBeforeListen(t *testing.T) {
	h, _ := NewHandler(HandlerConfig{Registry: newTestRegistry(t)})
	if err := New("unused.sock", h, nil).Serve(); err == nil {
		t.Fatal("Serve before Listen should fail")
	}
}
