package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/yndnr/kernelgate/internal/infra/buildinfo"
)

// Tool names served by kernelgate-server.
const (
	ToolCreateSession = "create_session"
	ToolExecute       = "execute"
	ToolCloseSession  = "close_session"
)

// ToolError is a tool result flagged isError by the server.
type ToolError struct {
	Code    string // e.g. KG-SESS-4040
	Kind    string // e.g. session_not_found
	Message string
}

func (e *ToolError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// MCPClient is a connected MCP client session.
type MCPClient struct {
	endpoint string
	session  *sdk.ClientSession
}

// DialMCP connects to the MCP endpoint of server and runs the initialize
// handshake. httpClient may be nil.
func DialMCP(ctx context.Context, server string, httpClient *http.Client) (*MCPClient, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	endpoint := strings.TrimRight(server, "/") + "/mcp"

	client := sdk.NewClient(&sdk.Implementation{
		Name:    "kernelgate-cli",
		Version: buildinfo.Get().Version,
	}, &sdk.ClientOptions{})

	transport := &sdk.StreamableClientTransport{
		Endpoint:   endpoint,
		HTTPClient: httpClient,
	}
	session, err := client.Connect(ctx, transport, &sdk.ClientSessionOptions{})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", endpoint, err)
	}
	return &MCPClient{endpoint: endpoint, session: session}, nil
}

// Endpoint returns the MCP endpoint URL.
func (c *MCPClient) Endpoint() string {
	return c.endpoint
}

// ServerName returns the server name reported during initialize.
func (c *MCPClient) ServerName() string {
	if res := c.session.InitializeResult(); res != nil && res.ServerInfo != nil {
		return res.ServerInfo.Name
	}
	return ""
}

// ListTools returns the tools advertised by the server.
func (c *MCPClient) ListTools(ctx context.Context) ([]*sdk.Tool, error) {
	res, err := c.session.ListTools(ctx, &sdk.ListToolsParams{})
	if err != nil {
		return nil, err
	}
	return res.Tools, nil
}

// CreateSession creates a kernel session and returns its token.
func (c *MCPClient) CreateSession(ctx context.Context) (string, error) {
	res, err := c.callTool(ctx, ToolCreateSession, map[string]any{})
	if err != nil {
		return "", err
	}

	var sc struct {
		SessionID string `json:"session_id"`
	}
	if decodeStructured(res.StructuredContent, &sc) == nil && sc.SessionID != "" {
		return sc.SessionID, nil
	}

	// Older servers only put the token in the text.
	text := resultText(res)
	if i := strings.LastIndex(text, ": "); i >= 0 {
		return strings.TrimSpace(text[i+2:]), nil
	}
	return "", fmt.Errorf("no session id in reply: %q", text)
}

// Execute evaluates code in a session and returns the output text.
func (c *MCPClient) Execute(ctx context.Context, sessionID, code string) (string, error) {
	res, err := c.callTool(ctx, ToolExecute, map[string]any{
		"session_id": sessionID,
		"code":       code,
	})
	if err != nil {
		return "", err
	}
	return resultText(res), nil
}

// CloseSession closes a session and returns the confirmation text.
func (c *MCPClient) CloseSession(ctx context.Context, sessionID string) (string, error) {
	res, err := c.callTool(ctx, ToolCloseSession, map[string]any{"session_id": sessionID})
	if err != nil {
		return "", err
	}
	return resultText(res), nil
}

// Close ends the MCP session. Kernel sessions stay open on the server.
func (c *MCPClient) Close() error {
	return c.session.Close()
}

func (c *MCPClient) callTool(ctx context.Context, name string, args map[string]any) (*sdk.CallToolResult, error) {
	res, err := c.session.CallTool(ctx, &sdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if res.IsError {
		return nil, toolError(res)
	}
	return res, nil
}

func toolError(res *sdk.CallToolResult) *ToolError {
	te := &ToolError{Message: resultText(res)}
	var sc struct {
		Error struct {
			Code string `json:"code"`
			Kind string `json:"kind"`
		} `json:"error"`
	}
	if decodeStructured(res.StructuredContent, &sc) == nil {
		te.Code = sc.Error.Code
		te.Kind = sc.Error.Kind
	}
	return te
}

// decodeStructured re-encodes structured content into target, whatever
// concrete type the SDK decoded it as.
func decodeStructured(v any, target any) error {
	if v == nil {
		return errors.New("no structured content")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

func resultText(res *sdk.CallToolResult) string {
	var b strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*sdk.TextContent); ok {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// IsToolError reports whether err is a ToolError of the given kind.
func IsToolError(err error, kind string) bool {
	var te *ToolError
	return errors.As(err, &te) && te.Kind == kind
}
