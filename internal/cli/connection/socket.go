package connection

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// SocketReply is one reply line from the local management socket.
type SocketReply struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// SocketClient provides Unix socket communication for local management.
type SocketClient struct {
	path    string
	timeout time.Duration
	conn    net.Conn
	reader  *bufio.Reader
}

// NewSocketClient creates a new socket client.
func NewSocketClient(socketPath string) *SocketClient {
	return &SocketClient{path: socketPath, timeout: 30 * time.Second}
}

// Path returns the socket path.
func (c *SocketClient) Path() string {
	return c.path
}

// Connect connects to the local socket.
func (c *SocketClient) Connect() error {
	conn, err := net.DialTimeout("unix", c.path, c.timeout)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.path, err)
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// Close closes the socket connection.
func (c *SocketClient) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn, c.reader = nil, nil
	return err
}

// Execute sends a command line and returns the raw reply line.
func (c *SocketClient) Execute(cmd string) (string, error) {
	if strings.ContainsAny(cmd, "\r\n") {
		return "", errors.New("command must be a single line")
	}
	if c.conn == nil {
		if err := c.Connect(); err != nil {
			return "", err
		}
	}

	_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
	if _, err := c.conn.Write([]byte(cmd + "\n")); err != nil {
		c.Close()
		return "", err
	}

	response, err := c.reader.ReadString('\n')
	if err != nil {
		c.Close()
		return "", err
	}
	return strings.TrimRight(response, "\n"), nil
}

// Call sends a command and decodes the reply. A reply with ok=false is
// returned as an error; otherwise its data is decoded into target.
func (c *SocketClient) Call(cmd string, target any) error {
	line, err := c.Execute(cmd)
	if err != nil {
		return err
	}

	var reply SocketReply
	if err := json.Unmarshal([]byte(line), &reply); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	if !reply.OK {
		return errors.New(reply.Error)
	}
	if target != nil && len(reply.Data) > 0 {
		if err := json.Unmarshal(reply.Data, target); err != nil {
			return fmt.Errorf("decode reply data: %w", err)
		}
	}
	return nil
}
