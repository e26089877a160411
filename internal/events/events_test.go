package events

import (
	"context"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		backend string
		want    string
		wantErr bool
	}{
		{"", "events.Nop", false},
		{"none", "events.Nop", false},
		{"memory", "*events.Memory", false},
		{"Redis", "*events.Redis", false},
		{"kafka", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			p, err := New(Config{Backend: tt.backend})
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer p.Close()
			if got := typeName(p); got != tt.want {
				t.Errorf("New() type = %s, want %s", got, tt.want)
			}
		})
	}
}

func typeName(p Publisher) string {
	switch p.(type) {
	case Nop:
		return "events.Nop"
	case *Memory:
		return "*events.Memory"
	case *Redis:
		return "*events.Redis"
	}
	return "unknown"
}

func TestMemory_FanOut(t *testing.T) {
	m := NewMemory(4)
	defer m.Close()

	a, cancelA := m.Subscribe()
	b, cancelB := m.Subscribe()
	defer cancelB()

	ev := Event{Type: SessionCreated, SessionID: "kgss-1", Token: "fox-***", Time: time.Now()}
	if err := m.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case got := <-ch:
			if got.SessionID != "kgss-1" || got.Type != SessionCreated {
				t.Errorf("subscriber %s got %+v", name, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s got nothing", name)
		}
	}

	cancelA()
	cancelA()
	if _, ok := <-a; ok {
		t.Error("cancelled subscription channel still open")
	}
	if err := m.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish() after cancel error = %v", err)
	}
}

func TestMemory_SlowSubscriberDrops(t *testing.T) {
	m := NewMemory(1)
	defer m.Close()

	_, cancel := m.Subscribe()
	defer cancel()

	for i := 0; i < 3; i++ {
		_ = m.Publish(context.Background(), Event{Type: SessionClosed})
	}
	if got := m.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
}

func TestMemory_Close(t *testing.T) {
	m := NewMemory(0)
	ch, _ := m.Subscribe()

	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("subscriber channel open after Close")
	}
	if err := m.Publish(context.Background(), Event{}); err != nil {
		t.Errorf("Publish() after Close error = %v", err)
	}

	late, _ := m.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscription after Close should be closed")
	}
}
