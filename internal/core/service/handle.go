package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/kernelgate/internal/core/domain"
	"github.com/yndnr/kernelgate/internal/kernel"
)

// ownedHandle wraps a backend handle so it is terminated at most once,
// whatever the backend does on repeated calls.
type ownedHandle struct {
	kernel.Handle

	once sync.Once
	err  error
}

func (h *ownedHandle) terminate(ctx context.Context) error {
	h.once.Do(func() {
		h.err = h.Handle.Terminate(ctx)
	})
	return h.err
}

// entry is one registry slot.
type entry struct {
	serial    string
	mask      string
	handle    *ownedHandle
	createdAt time.Time

	lastActive  atomic.Int64 // unix nanos
	evaluations atomic.Uint64
	inFlight    atomic.Int64
}

func (e *entry) begin(now time.Time) {
	e.lastActive.Store(now.UnixNano())
	e.evaluations.Add(1)
	e.inFlight.Add(1)
}

func (e *entry) end() {
	e.inFlight.Add(-1)
}

func (e *entry) snapshot(backend string) domain.Session {
	s := domain.Session{
		ID:          e.serial,
		TokenMask:   e.mask,
		Backend:     backend,
		CreatedAt:   e.createdAt,
		Evaluations: e.evaluations.Load(),
		InFlight:    e.inFlight.Load(),
	}
	if ns := e.lastActive.Load(); ns != 0 {
		s.LastActive = time.Unix(0, ns)
	}
	return s
}
