package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/kernelgate/internal/core/domain"
	"github.com/yndnr/kernelgate/internal/events"
	"github.com/yndnr/kernelgate/internal/kernel"
	"github.com/yndnr/kernelgate/internal/telemetry/logger"
	"github.com/yndnr/kernelgate/internal/telemetry/metric"
	"github.com/yndnr/kernelgate/pkg/cmap"
)

// DefaultMaxCreateAttempts bounds how many fresh tokens Create tries when a
// generated token collides with a live one.
const DefaultMaxCreateAttempts = 8

// TokenCodec generates and verifies session tokens.
type TokenCodec interface {
	Generate() (string, error)
	Verify(candidate string) bool
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	Codec   TokenCodec     // Required
	Backend kernel.Backend // Required

	Events  events.Publisher // Optional, defaults to events.Nop
	Metrics *metric.Registry // Optional
	Logger  logger.Logger    // Optional, defaults to logger.Default()

	// MaxCreateAttempts defaults to DefaultMaxCreateAttempts.
	MaxCreateAttempts int

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Registry owns the mapping from session tokens to live kernel handles.
// It is safe for concurrent use.
type Registry struct {
	codec       TokenCodec
	backend     kernel.Backend
	metrics     *metric.Registry
	log         logger.Logger
	events      *eventPump
	maxAttempts int
	now         func() time.Time

	sessions *cmap.Map[*entry]
	closing  atomic.Bool
	inFlight atomic.Int64
	created  atomic.Uint64
	closed   atomic.Uint64

	// invalidLog throttles warnings about rejected tokens, which an
	// untrusted caller can trigger at will.
	invalidLog rate.Sometimes

	// afterInsert runs between the map insert and the shutdown recheck.
	// Tests only.
	afterInsert func()
}

// NewRegistry creates a Registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Codec == nil {
		return nil, errors.New("service: token codec is required")
	}
	if cfg.Backend == nil {
		return nil, errors.New("service: kernel backend is required")
	}

	pub := cfg.Events
	if pub == nil {
		pub = events.Nop{}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	log = log.With("component", "registry")

	maxAttempts := cfg.MaxCreateAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxCreateAttempts
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Registry{
		codec:       cfg.Codec,
		backend:     cfg.Backend,
		metrics:     cfg.Metrics,
		log:         log,
		events:      newEventPump(pub, log),
		maxAttempts: maxAttempts,
		now:         now,
		sessions:    cmap.New[*entry](),
		invalidLog:  rate.Sometimes{First: 3, Interval: 10 * time.Second},
	}, nil
}

// ============================================================================
// Create
// ============================================================================

// CreateResponse contains the result of session creation.
type CreateResponse struct {
	Token   string         // The session token, returned to the caller only
	Session domain.Session // Metadata snapshot
}

// Create opens a kernel session and registers it under a fresh token.
//
// If the kernel fails to open, nothing is registered and the generated
// token is discarded.
func (r *Registry) Create(ctx context.Context) (*CreateResponse, error) {
	// 1. Refuse new work once shutdown has begun
	if r.closing.Load() {
		return nil, domain.ErrResourceExhausted.WithDetails("registry is shutting down")
	}

	// 2. Generate the token before touching the backend
	tok, err := r.codec.Generate()
	if err != nil {
		r.log.Error("token generation failed", "error", err)
		return nil, domain.ErrResourceExhausted.WithDetails("secure random source unavailable").WithCause(err)
	}

	serial, err := domain.GenerateSessionID()
	if err != nil {
		return nil, err
	}

	// 3. Open the kernel with no lock held
	start := r.now()
	h, err := r.backend.Open(ctx)
	if err != nil {
		r.metrics.SessionOpenFailed()
		r.events.emit(events.Event{
			Type:      events.SessionFailed,
			SessionID: serial,
			Backend:   r.backend.Name(),
			Time:      r.now(),
			Error:     err.Error(),
		})
		r.log.Warn("kernel open failed", "session", serial, "error", err)
		return nil, domain.ErrKernelOpen.WithDetailsf("op=create session=%s", serial).WithCause(err)
	}
	owned := &ownedHandle{Handle: h}

	// 4. Insert, retrying with a fresh token if the token is already live
	e := &entry{
		serial:    serial,
		handle:    owned,
		createdAt: r.now(),
	}
	inserted := false
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			if tok, err = r.codec.Generate(); err != nil {
				break
			}
		}
		e.mask = domain.MaskToken(tok)
		if r.sessions.SetIfAbsent(tok, e) {
			inserted = true
			break
		}
		r.log.Warn("token collision, regenerating", "session", serial, "attempt", attempt+1)
	}
	if !inserted {
		r.discard(owned, serial)
		if err != nil {
			return nil, domain.ErrResourceExhausted.WithDetails("secure random source unavailable").WithCause(err)
		}
		return nil, domain.ErrResourceExhausted.WithDetailsf("no free token after %d attempts", r.maxAttempts)
	}

	if r.afterInsert != nil {
		r.afterInsert()
	}

	// 5. A concurrent CloseAll may have raced the insert. If the entry is
	// still ours we terminate it, otherwise CloseAll already owns it.
	if r.closing.Load() {
		if _, ok := r.sessions.Pop(tok); ok {
			r.discard(owned, serial)
		}
		return nil, domain.ErrResourceExhausted.WithDetails("registry is shutting down")
	}

	r.created.Add(1)
	r.metrics.SessionCreated()
	r.events.emit(events.Event{
		Type:      events.SessionCreated,
		SessionID: serial,
		Token:     e.mask,
		Backend:   r.backend.Name(),
		Time:      e.createdAt,
	})
	r.log.Info("session created",
		"session", serial,
		"token", e.mask,
		"backend", r.backend.Name(),
		"open_ms", r.now().Sub(start).Milliseconds(),
	)

	return &CreateResponse{Token: tok, Session: e.snapshot(r.backend.Name())}, nil
}

// discard terminates a handle that never became visible to callers.
func (r *Registry) discard(h *ownedHandle, serial string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := h.terminate(ctx); err != nil {
		r.log.Warn("terminating unregistered kernel failed", "session", serial, "error", err)
	}
}

// ============================================================================
// Execute
// ============================================================================

// ExecuteRequest contains parameters for code execution.
type ExecuteRequest struct {
	Token string // Required
	Code  string // Forwarded to the kernel verbatim
}

// ExecuteResponse contains the kernel's output.
type ExecuteResponse struct {
	Output   string
	Session  domain.Session
	Duration time.Duration
}

// Execute evaluates code in the session identified by the token.
//
// The token is verified before the map is consulted; an unknown but valid
// token yields ErrSessionNotFound. Kernel failures are returned wrapped in
// ErrKernelEvaluate and are never retried.
func (r *Registry) Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error) {
	// 1. Resolve the token to a live entry
	e, err := r.lookup("execute", req.Token)
	if err != nil {
		return nil, err
	}

	// 2. Evaluate with no lock held
	start := r.now()
	e.begin(start)
	r.inFlight.Add(1)
	out, evalErr := e.handle.Evaluate(logger.WithSession(ctx, e.serial), req.Code)
	r.inFlight.Add(-1)
	e.end()
	elapsed := r.now().Sub(start)

	r.metrics.Evaluation(evalErr == nil, elapsed)

	// 3. Wrap backend failures with operation and session context
	if evalErr != nil {
		r.log.Info("evaluation failed",
			"session", e.serial,
			"duration_ms", elapsed.Milliseconds(),
			"error", evalErr,
		)
		return nil, domain.ErrKernelEvaluate.
			WithDetailsf("op=execute session=%s token=%s", e.serial, e.mask).
			WithCause(evalErr)
	}

	r.log.Debug("evaluation completed", "session", e.serial, "duration_ms", elapsed.Milliseconds())
	return &ExecuteResponse{
		Output:   out,
		Session:  e.snapshot(r.backend.Name()),
		Duration: elapsed,
	}, nil
}

// ============================================================================
// Close
// ============================================================================

// Close terminates the session identified by the token.
//
// The entry is removed before the kernel is terminated. Closing an unknown
// or already closed session fails with ErrSessionNotFound. If termination
// fails the session is still gone and the failure is returned wrapped in
// ErrKernelTerminate.
func (r *Registry) Close(ctx context.Context, tok string) error {
	// 1. Verify before touching the map
	if !r.verify("close", tok) {
		return domain.ErrInvalidToken
	}

	// 2. Remove under the shard lock
	e, ok := r.sessions.Pop(tok)
	if !ok {
		r.metrics.TokenRejected("close", string(domain.KindSessionNotFound))
		return domain.ErrSessionNotFound
	}

	// 3. Terminate with no lock held
	termErr := e.handle.terminate(ctx)

	r.closed.Add(1)
	r.metrics.SessionClosed()
	ev := events.Event{
		Type:      events.SessionClosed,
		SessionID: e.serial,
		Token:     e.mask,
		Backend:   r.backend.Name(),
		Time:      r.now(),
	}
	if termErr != nil {
		ev.Error = termErr.Error()
	}
	r.events.emit(ev)

	if termErr != nil {
		r.log.Warn("session closed, kernel termination failed", "session", e.serial, "error", termErr)
		return domain.ErrKernelTerminate.
			WithDetailsf("op=close session=%s token=%s", e.serial, e.mask).
			WithCause(termErr)
	}

	r.log.Info("session closed",
		"session", e.serial,
		"evaluations", e.evaluations.Load(),
		"age_ms", r.now().Sub(e.createdAt).Milliseconds(),
	)
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

// lookup verifies tok and returns its live entry.
func (r *Registry) lookup(op, tok string) (*entry, error) {
	if !r.verify(op, tok) {
		return nil, domain.ErrInvalidToken
	}
	e, ok := r.sessions.Get(tok)
	if !ok {
		r.metrics.TokenRejected(op, string(domain.KindSessionNotFound))
		return nil, domain.ErrSessionNotFound
	}
	return e, nil
}

func (r *Registry) verify(op, tok string) bool {
	if r.codec.Verify(tok) {
		return true
	}
	r.metrics.TokenRejected(op, string(domain.KindInvalidToken))
	r.invalidLog.Do(func() {
		r.log.Warn("rejected invalid session token", "op", op, "length", len(tok))
	})
	return false
}
