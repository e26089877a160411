package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yndnr/kernelgate/internal/events"
	"github.com/yndnr/kernelgate/internal/telemetry/logger"
)

const (
	eventQueueSize      = 256
	eventPublishTimeout = 2 * time.Second
)

// eventPump publishes lifecycle events in order on one goroutine so a slow
// publisher never delays a session operation. Events are dropped when the
// queue is full.
type eventPump struct {
	pub   events.Publisher
	log   logger.Logger
	queue chan events.Event
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func newEventPump(pub events.Publisher, log logger.Logger) *eventPump {
	p := &eventPump{
		pub:   pub,
		log:   log,
		queue: make(chan events.Event, eventQueueSize),
		done:  make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *eventPump) run() {
	defer close(p.done)
	for ev := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), eventPublishTimeout)
		if err := p.pub.Publish(ctx, ev); err != nil {
			p.log.Warn("event publish failed", "type", string(ev.Type), "session", ev.SessionID, "error", err)
		}
		cancel()
	}
}

func (p *eventPump) emit(ev events.Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- ev:
	default:
		p.log.Warn("event queue full, dropping event", "type", string(ev.Type), "session", ev.SessionID)
	}
}

// stop flushes queued events, waiting at most until ctx is done.
func (p *eventPump) stop(ctx context.Context) {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
	case <-ctx.Done():
	}
}
