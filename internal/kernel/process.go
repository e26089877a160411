package kernel

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/yndnr/kernelgate/internal/telemetry/logger"
)

// Default process backend settings.
const (
	DefaultTerminateTimeout = 5 * time.Second
	DefaultStartTimeout     = 60 * time.Second
)

// ProcessConfig configures a ProcessBackend.
type ProcessConfig struct {
	// Dialect selects how code is framed. Required.
	Dialect Dialect

	// Path is the kernel executable. Empty means discover on PATH.
	Path string

	// Args are appended after the dialect's own arguments.
	Args []string

	// Env is appended to the server's environment.
	Env []string

	// Dir is the working directory of kernel processes.
	Dir string

	// EvalTimeout bounds each evaluation. Zero means no bound.
	EvalTimeout time.Duration

	// TerminateTimeout is how long Terminate waits for a graceful exit
	// after closing stdin before killing the process.
	TerminateTimeout time.Duration

	// StartTimeout bounds the startup probe when the Open context has no
	// deadline.
	StartTimeout time.Duration
}

// ProcessBackend runs one kernel subprocess per session.
type ProcessBackend struct {
	cfg  ProcessConfig
	path string
}

// NewProcessBackend creates a process backend. The kernel executable is
// resolved once here.
func NewProcessBackend(cfg ProcessConfig) (*ProcessBackend, error) {
	if cfg.Dialect.Frame == nil {
		return nil, errors.New("kernel: dialect is required")
	}
	if cfg.TerminateTimeout <= 0 {
		cfg.TerminateTimeout = DefaultTerminateTimeout
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = DefaultStartTimeout
	}

	path := cfg.Path
	if path == "" {
		discovered, err := Discover(cfg.Dialect)
		if err != nil {
			return nil, err
		}
		path = discovered
	}

	return &ProcessBackend{cfg: cfg, path: path}, nil
}

// Name returns the dialect name.
func (b *ProcessBackend) Name() string {
	return b.cfg.Dialect.Name
}

// Path returns the kernel executable in use.
func (b *ProcessBackend) Path() string {
	return b.path
}

// Open starts a kernel process and waits for it to answer a probe.
func (b *ProcessBackend) Open(ctx context.Context) (Handle, error) {
	args := append(append([]string(nil), b.cfg.Dialect.Args...), b.cfg.Args...)

	// The kernel outlives the request that opened it, so ctx is not bound
	// to the command.
	cmd := exec.Command(b.path, args...)
	cmd.Dir = b.cfg.Dir
	cmd.WaitDelay = b.cfg.TerminateTimeout
	isolate(cmd)
	if len(b.cfg.Env) > 0 {
		cmd.Env = append(cmd.Environ(), b.cfg.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr := newLineLogger(logger.L(ctx).With("component", "kernel", "dialect", b.cfg.Dialect.Name))
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("starting %s: %w", b.path, err)
	}

	h := &processHandle{
		cmd:              cmd,
		stdin:            stdin,
		dialect:          b.cfg.Dialect,
		evalTimeout:      b.cfg.EvalTimeout,
		terminateTimeout: b.cfg.TerminateTimeout,
		lines:            make(chan string, 64),
		quit:             make(chan struct{}),
		done:             make(chan struct{}),
	}
	go h.readLoop(stdout)

	probeCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, b.cfg.StartTimeout)
		defer cancel()
	}
	if _, err := h.Evaluate(probeCtx, b.cfg.Dialect.Probe); err != nil {
		_ = h.Terminate(context.Background())
		return nil, fmt.Errorf("kernel did not become ready: %w", err)
	}

	logger.L(ctx).Debug("kernel process started",
		"dialect", b.cfg.Dialect.Name,
		"pid", cmd.Process.Pid,
	)
	return h, nil
}

// processHandle is one kernel subprocess.
type processHandle struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	dialect Dialect

	evalTimeout      time.Duration
	terminateTimeout time.Duration

	// evalMu serializes evaluations; the kernel handles one at a time.
	evalMu sync.Mutex
	// broken is set when an evaluation was abandoned mid-output and the
	// stream can no longer be trusted. Guarded by evalMu.
	broken bool

	lines chan string   // stdout lines; closed at EOF
	quit  chan struct{} // closed by Terminate; unblocks readLoop
	done  chan struct{} // closed after the process has been reaped

	waitErr error

	terminateOnce sync.Once
	terminateErr  error
}

// readLoop forwards stdout lines until EOF, then reaps the process.
func (h *processHandle) readLoop(stdout io.Reader) {
	r := bufio.NewReader(stdout)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			select {
			case h.lines <- line:
			case <-h.quit:
			}
		}
		if err != nil {
			break
		}
	}
	close(h.lines)
	h.waitErr = h.cmd.Wait()
	close(h.done)
}

func (h *processHandle) isTerminated() bool {
	select {
	case <-h.quit:
		return true
	default:
		return false
	}
}

// Evaluate sends code to the kernel and returns its printed output.
func (h *processHandle) Evaluate(ctx context.Context, code string) (string, error) {
	h.evalMu.Lock()
	defer h.evalMu.Unlock()

	if h.isTerminated() {
		return "", ErrClosed
	}
	if h.broken {
		return "", fmt.Errorf("%w: previous evaluation was abandoned", ErrClosed)
	}

	if h.evalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.evalTimeout)
		defer cancel()
	}

	h.drainStale()

	sentinel, err := newSentinel()
	if err != nil {
		return "", err
	}
	if _, err := io.WriteString(h.stdin, h.dialect.Frame(code, sentinel)); err != nil {
		if h.isTerminated() {
			return "", ErrClosed
		}
		return "", fmt.Errorf("%w: write: %v", ErrExited, err)
	}

	var out strings.Builder
	marker := sentinel + " "
	for {
		select {
		case line, ok := <-h.lines:
			if !ok {
				return "", h.exitError()
			}
			trimmed := strings.TrimRight(line, "\r\n")
			if strings.HasPrefix(trimmed, marker) {
				output := strings.TrimRight(out.String(), "\r\n")
				status := strings.TrimSpace(strings.TrimPrefix(trimmed, marker))
				if status != "0" {
					return output, &EvalError{Status: status, Output: output}
				}
				return output, nil
			}
			out.WriteString(line)

		case <-h.quit:
			return "", ErrClosed

		case <-ctx.Done():
			// The kernel is still producing output for this frame.
			h.broken = true
			return "", fmt.Errorf("evaluation abandoned: %w", ctx.Err())
		}
	}
}

// drainStale discards output the kernel printed outside any evaluation,
// such as a startup banner.
func (h *processHandle) drainStale() {
	for {
		select {
		case _, ok := <-h.lines:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (h *processHandle) exitError() error {
	if h.isTerminated() {
		return ErrClosed
	}
	<-h.done
	if h.waitErr != nil {
		return fmt.Errorf("%w: %v", ErrExited, h.waitErr)
	}
	return ErrExited
}

// Terminate closes the kernel's stdin, waits for it to exit, and kills it
// if it has not exited within the terminate timeout. It is safe to call
// more than once; later calls return the first result.
func (h *processHandle) Terminate(ctx context.Context) error {
	h.terminateOnce.Do(func() {
		close(h.quit)
		_ = h.stdin.Close()

		timer := time.NewTimer(h.terminateTimeout)
		defer timer.Stop()

		select {
		case <-h.done:
			return
		case <-timer.C:
		case <-ctx.Done():
		}

		if err := kill(h.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
			h.terminateErr = fmt.Errorf("killing kernel: %w", err)
			return
		}
		<-h.done
	})
	return h.terminateErr
}

func newSentinel() (string, error) {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("kernel: sentinel: %w", err)
	}
	return "__KG_END_" + hex.EncodeToString(b[:]) + "__", nil
}
