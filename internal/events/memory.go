package events

import (
	"context"
	"sync"
)

// DefaultBufferSize is the per-subscriber buffer of a Memory publisher.
const DefaultBufferSize = 64

// Memory fans events out to in-process subscribers. A subscriber that
// falls behind loses events rather than blocking publishers.
type Memory struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	next    int
	buffer  int
	closed  bool
	dropped uint64
}

// NewMemory creates a Memory publisher. buffer <= 0 uses DefaultBufferSize.
func NewMemory(buffer int) *Memory {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	return &Memory{subs: make(map[int]chan Event), buffer: buffer}
}

// Subscribe returns a channel of events and a function that cancels the
// subscription and closes the channel.
func (m *Memory) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Event, m.buffer)
	if m.closed {
		close(ch)
		return ch, func() {}
	}

	id := m.next
	m.next++
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if c, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(c)
			}
		})
	}
}

// Publish implements Publisher.
func (m *Memory) Publish(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			m.dropped++
		}
	}
	return nil
}

// Dropped returns how many deliveries were dropped for slow subscribers.
func (m *Memory) Dropped() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dropped
}

// Close implements Publisher and closes every subscriber channel.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
	return nil
}
