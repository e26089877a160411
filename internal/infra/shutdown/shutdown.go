package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/yndnr/kernelgate/internal/telemetry/logger"
)

type hook struct {
	name string
	fn   func(context.Context) error
}

// Handler handles graceful shutdown.
type Handler struct {
	timeout time.Duration
	signals []os.Signal
	logger  logger.Logger

	mu    sync.Mutex
	hooks []hook

	trigger     chan string
	triggerOnce sync.Once
	done        chan struct{}
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger used to report hook progress.
func WithLogger(l logger.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithSignals replaces the default SIGINT/SIGTERM set. Passing no signals
// disables signal handling.
func WithSignals(sigs ...os.Signal) Option {
	return func(h *Handler) {
		h.signals = sigs
	}
}

// NewHandler creates a new shutdown handler.
func NewHandler(timeout time.Duration, opts ...Option) *Handler {
	h := &Handler{
		timeout: timeout,
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		logger:  logger.Discard(),
		hooks:   make([]hook, 0),
		trigger: make(chan string, 1),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnShutdown registers a named shutdown hook.
// Hooks are called in reverse order of registration.
func (h *Handler) OnShutdown(name string, fn func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook{name: name, fn: fn})
}

// Trigger starts shutdown without a signal. Only the first call has an effect.
func (h *Handler) Trigger(reason string) {
	h.triggerOnce.Do(func() {
		h.trigger <- reason
	})
}

// Wait blocks until a signal, a Trigger or ctx cancellation, then runs
// the hooks. The returned error joins every hook failure.
func (h *Handler) Wait(ctx context.Context) error {
	reason := h.waitForReason(ctx)
	h.logger.Info("shutdown started", "reason", reason, "timeout", h.timeout)

	// Hooks get a fresh deadline; ctx may already be done.
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
	defer cancel()

	err := h.run(hctx)
	close(h.done)
	return err
}

func (h *Handler) waitForReason(ctx context.Context) string {
	var sigCh chan os.Signal
	if len(h.signals) > 0 {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, h.signals...)
		defer signal.Stop(sigCh)
	}

	select {
	case sig := <-sigCh:
		return "signal " + sig.String()
	case reason := <-h.trigger:
		return reason
	case <-ctx.Done():
		return "context canceled"
	}
}

func (h *Handler) run(ctx context.Context) error {
	h.mu.Lock()
	hooks := make([]hook, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		start := time.Now()
		if err := hooks[i].fn(ctx); err != nil {
			h.logger.Warn("shutdown hook failed", "hook", hooks[i].name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", hooks[i].name, err))
			continue
		}
		h.logger.Debug("shutdown hook done", "hook", hooks[i].name, "elapsed", time.Since(start))
	}
	return errors.Join(errs...)
}

// Done returns a channel that closes when shutdown is complete.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
