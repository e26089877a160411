package shutdown

import (
	"context"
	"errors"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

func TestNewHandler(t *testing.T) {
	h := NewHandler(5 * time.Second)
	if h == nil {
		t.Fatal("NewHandler returned nil")
	}
	if h.timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", h.timeout)
	}
	if len(h.signals) != 2 {
		t.Errorf("signals = %v, want SIGINT and SIGTERM", h.signals)
	}
	if h.done == nil {
		t.Error("done channel should be initialized")
	}
}

func TestHandler_HooksRunInReverseOrder(t *testing.T) {
	h := NewHandler(time.Second, WithSignals())

	var (
		mu    sync.Mutex
		order []int
	)
	for i := 1; i <= 3; i++ {
		h.OnShutdown("hook", func(context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}

	h.Trigger("test")
	if err := h.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	want := []int{3, 2, 1}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestHandler_JoinsHookErrors(t *testing.T) {
	h := NewHandler(time.Second, WithSignals())
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	ran := false

	h.OnShutdown("a", func(context.Context) error { return errA })
	h.OnShutdown("ok", func(context.Context) error { ran = true; return nil })
	h.OnShutdown("b", func(context.Context) error { return errB })

	h.Trigger("test")
	err := h.Wait(context.Background())
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("Wait() error = %v, want both hook errors", err)
	}
	if !strings.Contains(err.Error(), "b: b failed") {
		t.Errorf("error %q should name the hook", err)
	}
	if !ran {
		t.Error("a failing hook must not stop later hooks")
	}
}

func TestHandler_ContextCancelStartsShutdown(t *testing.T) {
	h := NewHandler(time.Second, WithSignals())

	var hookCtxErr error
	h.OnShutdown("check", func(ctx context.Context) error {
		hookCtxErr = ctx.Err()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := h.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if hookCtxErr != nil {
		t.Errorf("hook context already done: %v", hookCtxErr)
	}
}

func TestHandler_HookDeadline(t *testing.T) {
	h := NewHandler(20*time.Millisecond, WithSignals())
	h.OnShutdown("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	h.Trigger("test")
	err := h.Wait(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}

func TestHandler_TriggerIsIdempotent(t *testing.T) {
	h := NewHandler(time.Second, WithSignals())
	h.Trigger("first")
	h.Trigger("second")

	if err := h.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

func TestHandler_Done(t *testing.T) {
	h := NewHandler(time.Second, WithSignals())

	select {
	case <-h.Done():
		t.Fatal("Done() closed before shutdown")
	default:
	}

	go h.Trigger("test")
	if err := h.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() not closed after Wait")
	}
}

func TestHandler_Signal(t *testing.T) {
	h := NewHandler(time.Second, WithSignals(syscall.SIGUSR1))

	result := make(chan error, 1)
	go func() { result <- h.Wait(context.Background()) }()

	// Give signal.Notify time to register.
	time.Sleep(50 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("kill: %v", err)
	}

	select {
	case err := <-result:
		if err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return after signal")
	}
}
