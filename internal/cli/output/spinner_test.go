package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer is a bytes.Buffer safe to read while the spinner writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinner_StartStop(t *testing.T) {
	var buf syncBuffer
	s := NewSpinner(&buf, "Starting kernel")
	s.interval = 10 * time.Millisecond

	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	out := buf.String()
	if !strings.Contains(out, "Starting kernel") {
		t.Errorf("output = %q, want message", out)
	}
	if !strings.HasSuffix(out, "\r\033[K") {
		t.Errorf("Stop should clear the line: %q", out)
	}

	// A second stop is a no-op.
	s.Stop()
	s.Fail("late")
	if strings.Contains(buf.String(), "late") {
		t.Error("Fail after Stop should write nothing")
	}
}

func TestSpinner_Success(t *testing.T) {
	var buf syncBuffer
	s := NewSpinner(&buf, "Working")
	s.Start()
	s.Success("done")

	if !strings.HasSuffix(buf.String(), "✓ done\n") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestSpinner_FailWithoutStart(t *testing.T) {
	var buf syncBuffer
	s := NewSpinner(&buf, "Working")
	s.Fail("boom")

	if !strings.HasSuffix(buf.String(), "✗ boom\n") {
		t.Errorf("output = %q", buf.String())
	}
}
