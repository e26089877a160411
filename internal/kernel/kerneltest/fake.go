// Package kerneltest provides an in-memory kernel backend for tests.
package kerneltest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/kernelgate/internal/kernel"
)

// ErrInjected is returned by operations configured to fail.
var ErrInjected = errors.New("kerneltest: injected failure")

// Backend is a fake kernel.Backend. Each handle keeps a variable store so
// tests can observe per-session state:
//
//	set NAME VALUE   stores a value, returns ""
//	get NAME         returns the stored value
//	sleep DURATION   blocks for the duration (or until terminated)
//	fail             returns an evaluation error
//	anything else    echoed back
type Backend struct {
	// OpenErr, when set, makes Open fail.
	OpenErr error
	// TerminateErr, when set, is returned by every Terminate.
	TerminateErr error
	// OpenDelay is slept in Open before the handle is created.
	OpenDelay time.Duration

	opened     atomic.Int64
	terminated atomic.Int64

	mu      sync.Mutex
	handles []*Handle
}

// New returns a fake backend.
func New() *Backend {
	return &Backend{}
}

// Name implements kernel.Backend.
func (b *Backend) Name() string { return "fake" }

// Open implements kernel.Backend.
func (b *Backend) Open(ctx context.Context) (kernel.Handle, error) {
	if b.OpenDelay > 0 {
		select {
		case <-time.After(b.OpenDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}

	h := &Handle{
		backend: b,
		vars:    make(map[string]string),
		stop:    make(chan struct{}),
	}
	b.opened.Add(1)

	b.mu.Lock()
	b.handles = append(b.handles, h)
	b.mu.Unlock()
	return h, nil
}

// Opened returns the number of handles opened.
func (b *Backend) Opened() int64 { return b.opened.Load() }

// Terminated returns the number of Terminate calls that reached a handle,
// including repeated calls on the same handle.
func (b *Backend) Terminated() int64 { return b.terminated.Load() }

// Handles returns every handle opened so far.
func (b *Backend) Handles() []*Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Handle(nil), b.handles...)
}

// Live returns the number of handles not yet terminated.
func (b *Backend) Live() int {
	n := 0
	for _, h := range b.Handles() {
		if !h.IsTerminated() {
			n++
		}
	}
	return n
}

// Handle is a fake kernel.Handle.
type Handle struct {
	backend *Backend

	mu         sync.Mutex
	vars       map[string]string
	terminated bool
	calls      int

	stop     chan struct{}
	stopOnce sync.Once
}

// IsTerminated reports whether Terminate has been called.
func (h *Handle) IsTerminated() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.terminated
}

// TerminateCalls returns how many times Terminate was called.
func (h *Handle) TerminateCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// Evaluate implements kernel.Handle.
func (h *Handle) Evaluate(ctx context.Context, code string) (string, error) {
	if h.IsTerminated() {
		return "", kernel.ErrClosed
	}

	fields := strings.Fields(code)
	if len(fields) == 0 {
		return "", nil
	}

	switch fields[0] {
	case "set":
		if len(fields) < 3 {
			return "", &kernel.EvalError{Status: "1", Output: "usage: set NAME VALUE"}
		}
		h.mu.Lock()
		h.vars[fields[1]] = strings.Join(fields[2:], " ")
		h.mu.Unlock()
		return "", nil

	case "get":
		if len(fields) != 2 {
			return "", &kernel.EvalError{Status: "1", Output: "usage: get NAME"}
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.vars[fields[1]], nil

	case "sleep":
		d, err := time.ParseDuration(strings.Join(fields[1:], ""))
		if err != nil {
			return "", &kernel.EvalError{Status: "1", Output: err.Error()}
		}
		select {
		case <-time.After(d):
			return "slept " + d.String(), nil
		case <-h.stop:
			return "", kernel.ErrClosed
		case <-ctx.Done():
			return "", ctx.Err()
		}

	case "fail":
		return "", ErrInjected

	default:
		return code, nil
	}
}

// Terminate implements kernel.Handle. It is not idempotent on its own:
// every call is counted so tests can check that the owner calls it once.
func (h *Handle) Terminate(ctx context.Context) error {
	h.mu.Lock()
	h.calls++
	h.terminated = true
	h.mu.Unlock()

	h.stopOnce.Do(func() { close(h.stop) })
	h.backend.terminated.Add(1)
	return h.backend.TerminateErr
}
