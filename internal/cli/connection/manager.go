package connection

import (
	"context"
	"errors"
	"sync"
)

// Manager lazily opens the clients a command needs and closes them
// together.
type Manager struct {
	server  string
	socket  string
	httpOpt []HTTPOption

	mu     sync.Mutex
	http   *HTTPClient
	mcp    *MCPClient
	sock   *SocketClient
	dialer func(ctx context.Context, hc *HTTPClient) (*MCPClient, error)
}

// NewManager creates a manager for one server URL and socket path.
func NewManager(server, socket string, opts ...HTTPOption) *Manager {
	return &Manager{
		server:  server,
		socket:  socket,
		httpOpt: opts,
		dialer: func(ctx context.Context, hc *HTTPClient) (*MCPClient, error) {
			return DialMCP(ctx, hc.BaseURL(), hc.HTTPClient())
		},
	}
}

// Server returns the configured server URL.
func (m *Manager) Server() string {
	return m.server
}

// Socket returns the configured socket path.
func (m *Manager) Socket() string {
	return m.socket
}

// HTTP returns the admin HTTP client.
func (m *Manager) HTTP() *HTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.httpLocked()
}

func (m *Manager) httpLocked() *HTTPClient {
	if m.http == nil {
		m.http = NewHTTPClient(m.server, m.httpOpt...)
	}
	return m.http
}

// MCP returns a connected MCP client, dialing on first use.
func (m *Manager) MCP(ctx context.Context) (*MCPClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mcp != nil {
		return m.mcp, nil
	}
	c, err := m.dialer(ctx, m.httpLocked())
	if err != nil {
		return nil, err
	}
	m.mcp = c
	return c, nil
}

// Local returns the client for the local management socket.
func (m *Manager) Local() (*SocketClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.socket == "" {
		return nil, errors.New("no socket path configured (use --socket or KERNELGATE_SOCKET)")
	}
	if m.sock == nil {
		m.sock = NewSocketClient(m.socket)
	}
	return m.sock, nil
}

// IsConnected reports whether an MCP session is open.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mcp != nil
}

// Close closes every open client.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.mcp != nil {
		errs = append(errs, m.mcp.Close())
		m.mcp = nil
	}
	if m.sock != nil {
		errs = append(errs, m.sock.Close())
		m.sock = nil
	}
	return errors.Join(errs...)
}
