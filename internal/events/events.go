// Package events publishes session lifecycle events.
//
// Publishers are best effort: a failed publish is logged by the caller and
// never fails the session operation that produced it.
package events

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Type is the kind of lifecycle event.
type Type string

const (
	SessionCreated Type = "session.created"
	SessionClosed  Type = "session.closed"
	SessionFailed  Type = "session.failed"
)

// Event describes one session lifecycle change. It carries the session
// serial and the masked token only.
type Event struct {
	ID        string    `json:"id"` // Unique per event, for consumer dedup
	Type      Type      `json:"type"`
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	Backend   string    `json:"backend"`
	Time      time.Time `json:"time"`
	Error     string    `json:"error,omitempty"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Config selects and configures a publisher.
type Config struct {
	Backend   string // none, memory, redis
	RedisAddr string
	Channel   string
}

// New creates the publisher named by cfg.Backend.
func New(cfg Config) (Publisher, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "none":
		return Nop{}, nil
	case "memory":
		return NewMemory(0), nil
	case "redis":
		return NewRedis(RedisConfig{Addr: cfg.RedisAddr, Channel: cfg.Channel}), nil
	default:
		return nil, fmt.Errorf("events: unknown backend %q", cfg.Backend)
	}
}
