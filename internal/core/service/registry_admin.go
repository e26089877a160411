package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yndnr/kernelgate/internal/core/domain"
	"github.com/yndnr/kernelgate/internal/events"
)

// Stats summarizes registry state.
type Stats struct {
	Backend             string `json:"backend" yaml:"backend"`
	ActiveSessions      int    `json:"active_sessions" yaml:"active_sessions"`
	InFlightEvaluations int64  `json:"in_flight_evaluations" yaml:"in_flight_evaluations"`
	SessionsCreated     uint64 `json:"sessions_created" yaml:"sessions_created"`
	SessionsClosed      uint64 `json:"sessions_closed" yaml:"sessions_closed"`
	ShuttingDown        bool   `json:"shutting_down" yaml:"shutting_down"`
}

// Stats returns a summary of registry state.
func (r *Registry) Stats() Stats {
	return Stats{
		Backend:             r.backend.Name(),
		ActiveSessions:      r.sessions.Count(),
		InFlightEvaluations: r.inFlight.Load(),
		SessionsCreated:     r.created.Load(),
		SessionsClosed:      r.closed.Load(),
		ShuttingDown:        r.closing.Load(),
	}
}

// ActiveSessions implements metric.StatsSource.
func (r *Registry) ActiveSessions() int {
	return r.sessions.Count()
}

// InFlightEvaluations implements metric.StatsSource.
func (r *Registry) InFlightEvaluations() int64 {
	return r.inFlight.Load()
}

// List returns a snapshot of live sessions, oldest first. Tokens appear
// masked only.
func (r *Registry) List() []domain.Session {
	name := r.backend.Name()
	out := make([]domain.Session, 0, r.sessions.Count())
	r.sessions.Range(func(_ string, e *entry) bool {
		out = append(out, e.snapshot(name))
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// CloseAll stops accepting new sessions, removes every live session and
// terminates the kernels concurrently. It returns the number of sessions
// closed. Calling it again closes nothing.
func (r *Registry) CloseAll(ctx context.Context) int {
	r.closing.Store(true)
	drained := r.sessions.Drain()
	if len(drained) == 0 {
		return 0
	}

	r.log.Info("closing all sessions", "count", len(drained))

	var wg sync.WaitGroup
	for _, e := range drained {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			err := e.handle.terminate(ctx)

			r.closed.Add(1)
			r.metrics.SessionClosed()
			ev := events.Event{
				Type:      events.SessionClosed,
				SessionID: e.serial,
				Token:     e.mask,
				Backend:   r.backend.Name(),
				Time:      r.now(),
			}
			if err != nil {
				ev.Error = err.Error()
				r.log.Warn("kernel termination failed during shutdown", "session", e.serial, "error", err)
			}
			r.events.emit(ev)
		}(e)
	}
	wg.Wait()

	return len(drained)
}

// Shutdown closes every session and flushes pending lifecycle events.
func (r *Registry) Shutdown(ctx context.Context) error {
	start := time.Now()
	n := r.CloseAll(ctx)
	r.events.stop(ctx)
	r.log.Info("registry stopped", "sessions_closed", n, "duration_ms", time.Since(start).Milliseconds())
	return ctx.Err()
}

// Backend returns the name of the kernel backend.
func (r *Registry) Backend() string {
	return r.backend.Name()
}
