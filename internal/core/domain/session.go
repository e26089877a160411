package domain

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionIDPrefix is the prefix for session IDs.
const SessionIDPrefix = "kgss-"

// Session is a point-in-time view of one live kernel session.
//
// The session token is the registry key and is never part of this record;
// only its masked form is. ID is a log-safe serial that can be shown to
// operators without granting access.
type Session struct {
	// ID is the session serial. Format: kgss-{ulid_lowercase}.
	ID string `json:"id" yaml:"id"`

	// TokenMask is the masked session token (e.g. "fox-***").
	TokenMask string `json:"token" yaml:"token"`

	// Backend names the kernel backend serving the session.
	Backend string `json:"backend" yaml:"backend"`

	// CreatedAt is when the session was registered.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// LastActive is when the session last started an evaluation.
	LastActive time.Time `json:"last_active" yaml:"last_active"`

	// Evaluations counts evaluations started on the session.
	Evaluations uint64 `json:"evaluations" yaml:"evaluations"`

	// InFlight is the number of evaluations currently running.
	InFlight int64 `json:"in_flight" yaml:"in_flight"`
}

// GenerateSessionID generates a new session ID using ULID.
func GenerateSessionID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", ErrResourceExhausted.WithCause(err)
	}
	return SessionIDPrefix + strings.ToLower(id.String()), nil
}

// Age returns how long the session has existed at now.
func (s *Session) Age(now time.Time) time.Duration {
	if s.CreatedAt.IsZero() {
		return 0
	}
	return now.Sub(s.CreatedAt)
}

// Idle returns how long the session has been idle at now.
func (s *Session) Idle(now time.Time) time.Duration {
	last := s.LastActive
	if last.IsZero() {
		last = s.CreatedAt
	}
	if last.IsZero() {
		return 0
	}
	return now.Sub(last)
}
