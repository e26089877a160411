package localserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/yndnr/kernelgate/internal/telemetry/logger"
)

// maxLineBytes bounds one command line.
const maxLineBytes = 64 << 10

// Server represents the local management server.
type Server struct {
	path    string
	handler *Handler
	logger  logger.Logger

	listener net.Listener
	running  atomic.Bool
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// New creates a new local server.
func New(socketPath string, handler *Handler, log logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	return &Server{
		path:    socketPath,
		handler: handler,
		logger:  log,
		conns:   make(map[net.Conn]struct{}),
	}
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// Listen binds the socket. A stale socket file left by a previous run is
// removed; any other existing file is an error.
func (s *Server) Listen() error {
	if fi, err := os.Lstat(s.path); err == nil {
		if fi.Mode()&os.ModeSocket == 0 {
			return fmt.Errorf("localserver: %s exists and is not a socket", s.path)
		}
		if conn, err := net.Dial("unix", s.path); err == nil {
			conn.Close()
			return fmt.Errorf("localserver: %s is in use", s.path)
		}
		if err := os.Remove(s.path); err != nil {
			return fmt.Errorf("localserver: remove stale socket: %w", err)
		}
	}

	l, err := net.Listen("unix", s.path)
	if err != nil {
		return err
	}
	if err := os.Chmod(s.path, 0o600); err != nil {
		l.Close()
		return fmt.Errorf("localserver: chmod socket: %w", err)
	}
	s.listener = l
	s.running.Store(true)
	return nil
}

// ListenAndServe binds the socket and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Serve accepts connections on the bound socket. It returns nil after
// Shutdown.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("localserver: Serve called before Listen")
	}
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		s.track(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			s.handleConnection(conn)
		}()
	}
}

// Shutdown stops accepting connections, closes idle ones and waits for
// in-progress commands to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	var closeErr error
	if s.listener != nil {
		closeErr = s.listener.Close()
	}

	s.mu.Lock()
	for conn := range s.conns {
		// Unblocks readers; a command already executing finishes its reply.
		if uc, ok := conn.(*net.UnixConn); ok {
			_ = uc.CloseRead()
		} else {
			_ = conn.Close()
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Text()
		s.logger.Debug("local command", "command", firstWord(line))
		if err := s.handler.Execute(context.Background(), conn, line); err != nil {
			s.logger.Debug("local reply failed", "error", err)
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Debug("local connection ended", "error", err)
	}
}

func firstWord(line string) string {
	for i, c := range line {
		if c == ' ' || c == '\t' {
			return line[:i]
		}
	}
	return line
}
