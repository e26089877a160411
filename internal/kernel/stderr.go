package kernel

import (
	"bytes"
	"sync"

	"github.com/yndnr/kernelgate/internal/telemetry/logger"
)

// maxStderrLine caps a single logged stderr line.
const maxStderrLine = 4096

// lineLogger forwards a kernel's stderr to the logger one line at a time.
type lineLogger struct {
	mu  sync.Mutex
	log logger.Logger
	buf bytes.Buffer
}

func newLineLogger(l logger.Logger) *lineLogger {
	return &lineLogger{log: l}
}

func (w *lineLogger) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			if w.buf.Len() > maxStderrLine {
				w.emit(w.buf.Next(maxStderrLine))
			}
			return len(p), nil
		}
		w.emit(w.buf.Next(i + 1))
	}
}

func (w *lineLogger) emit(line []byte) {
	line = bytes.TrimRight(line, "\r\n")
	if len(line) == 0 {
		return
	}
	w.log.Debug("kernel stderr", "line", string(line))
}
