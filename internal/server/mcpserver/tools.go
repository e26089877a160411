package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	sdkschema "github.com/google/jsonschema-go/jsonschema"
	"github.com/invopop/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/yndnr/kernelgate/internal/core/domain"
	"github.com/yndnr/kernelgate/internal/core/service"
)

// Canonical tool names.
const (
	ToolCreateSession = "create_session"
	ToolExecute       = "execute"
	ToolCloseSession  = "close_session"
)

// Names accepted from clients configured for the original Mathematica
// server. They are not listed by tools/list.
var toolAliases = map[string]string{
	"create_mathematica_session": ToolCreateSession,
	"execute_mathematica_code":   ToolExecute,
	"close_mathematica_session":  ToolCloseSession,
}

// CreateSessionArgs takes no arguments.
type CreateSessionArgs struct{}

// ExecuteArgs are the arguments of the execute tool.
type ExecuteArgs struct {
	SessionID *string `json:"session_id" jsonschema:"required,minLength=1,example=bee-sloth-auk-mole" jsonschema_description:"The unique identifier for an active session, provided by create_session."`
	Code      *string `json:"code" jsonschema:"required" jsonschema_description:"The code to evaluate. It is passed to the kernel verbatim and should be syntactically correct."`
}

// CloseSessionArgs are the arguments of the close_session tool.
type CloseSessionArgs struct {
	SessionID *string `json:"session_id" jsonschema:"required,minLength=1,example=bee-sloth-auk-mole" jsonschema_description:"The unique identifier of the session to close. It must belong to an active, open session."`
}

type toolDef struct {
	tool    *mcp.Tool
	handler mcp.ToolHandler
}

func (s *Server) buildTools() map[string]toolDef {
	lang := s.language
	return map[string]toolDef{
		ToolCreateSession: {
			tool: &mcp.Tool{
				Name: ToolCreateSession,
				Description: fmt.Sprintf(`Creates and initializes a new, isolated %[1]s session.

This tool is the first step for any %[1]s task. It returns a unique, secure
session identifier (e.g., 'fox-wolf-bear-lion') that you MUST use in
subsequent calls to '%[2]s' and '%[3]s'.

Each session is completely independent and maintains its own state
(variables, function definitions, etc.).

Returns a success message containing the session ID, for example:
"Session created successfully. Your session ID is: bee-sloth-auk-mole"`, lang, ToolExecute, ToolCloseSession),
				InputSchema: reflectInputSchema[CreateSessionArgs](),
			},
			handler: s.callCreate,
		},
		ToolExecute: {
			tool: &mcp.Tool{
				Name: ToolExecute,
				Description: fmt.Sprintf(`Executes a string of %[1]s code within a specific, active session.

You must provide a valid 'session_id' obtained from a previous call to
'%[2]s'. The code runs in the context of that session, so it can access
variables and functions defined by earlier calls in the same session.

Returns the output of the evaluation as text.`, lang, ToolCreateSession),
				InputSchema: reflectInputSchema[ExecuteArgs](),
			},
			handler: s.callExecute,
		},
		ToolCloseSession: {
			tool: &mcp.Tool{
				Name: ToolCloseSession,
				Description: fmt.Sprintf(`Terminates a specific %s session and releases all associated resources.

Call this when you are finished with a session to free memory and kernel
licenses. Once a session is closed its ID can no longer be used.

Returns a confirmation message.`, lang),
				InputSchema: reflectInputSchema[CloseSessionArgs](),
			},
			handler: s.callClose,
		},
	}
}

// Tools returns the advertised tools sorted by name. Aliases are not
// listed.
func (s *Server) Tools() []*mcp.Tool {
	out := make([]*mcp.Tool, 0, len(s.tools))
	for _, def := range s.tools {
		out = append(out, def.tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Server) callCreate(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := decodeArgs[CreateSessionArgs](req); err != nil {
		return nil, err
	}

	resp, err := s.registry.Create(ctx)
	if err != nil {
		return s.toolError(err, fmt.Sprintf("Failed to create session: %s", causeText(err))), nil
	}

	res := textResult(fmt.Sprintf("Session created successfully. Your session ID is: %s", resp.Token))
	res.StructuredContent = map[string]any{"session_id": resp.Token}
	return res, nil
}

func (s *Server) callExecute(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decodeArgs[ExecuteArgs](req)
	if err != nil {
		return nil, err
	}
	if args.SessionID == nil {
		return s.missingArgument("session_id"), nil
	}
	if args.Code == nil {
		return s.missingArgument("code"), nil
	}
	id := *args.SessionID

	resp, err := s.registry.Execute(ctx, &service.ExecuteRequest{Token: id, Code: *args.Code})
	if err != nil {
		err = s.tokenError(err)
		var text string
		switch domain.KindOf(err) {
		case domain.KindInvalidToken:
			text = "Invalid session ID. It might be malformed or tampered with."
		case domain.KindSessionNotFound:
			text = fmt.Sprintf("Session with ID '%s' not found or has been closed.", id)
		default:
			text = fmt.Sprintf("An error occurred during execution in session '%s': %s", id, causeText(err))
		}
		return s.toolError(err, text), nil
	}

	return textResult(resp.Output), nil
}

func (s *Server) callClose(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decodeArgs[CloseSessionArgs](req)
	if err != nil {
		return nil, err
	}
	if args.SessionID == nil {
		return s.missingArgument("session_id"), nil
	}
	id := *args.SessionID

	if err := s.registry.Close(ctx, id); err != nil {
		err = s.tokenError(err)
		var text string
		switch domain.KindOf(err) {
		case domain.KindInvalidToken:
			text = "Invalid session ID."
		case domain.KindSessionNotFound:
			text = fmt.Sprintf("Session with ID '%s' not found or already closed.", id)
		default:
			text = fmt.Sprintf("An error occurred while closing session '%s': %s", id, causeText(err))
		}
		return s.toolError(err, text), nil
	}

	return textResult(fmt.Sprintf("Session '%s' closed successfully.", id)), nil
}

// tokenError folds invalid-token into session-not-found when opaque token
// errors are configured.
func (s *Server) tokenError(err error) error {
	if s.opaqueTokenErrors && domain.KindOf(err) == domain.KindInvalidToken {
		return domain.ErrSessionNotFound
	}
	return err
}

func (s *Server) toolError(err error, text string) *mcp.CallToolResult {
	res := textResult(text)
	res.IsError = true
	res.StructuredContent = map[string]any{
		"error": map[string]any{
			"code": domain.GetErrorCode(err),
			"kind": string(domain.KindOf(err)),
		},
	}
	return res
}

func (s *Server) missingArgument(name string) *mcp.CallToolResult {
	err := domain.ErrMissingArgument.WithDetails(name)
	return s.toolError(err, fmt.Sprintf("Missing required argument: %s", name))
}

// causeText returns the innermost useful message: the backend's own error
// when a DomainError wraps one.
func causeText(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) && de.Cause != nil {
		return de.Cause.Error()
	}
	return err.Error()
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

// decodeArgs decodes tool arguments strictly. Absent or null arguments
// decode to the zero value.
func decodeArgs[T any](req *mcp.CallToolRequest) (T, error) {
	var args T
	if req.Params == nil {
		return args, nil
	}
	raw := bytes.TrimSpace(req.Params.Arguments)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return args, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&args); err != nil {
		return args, fmt.Errorf("invalid arguments for %s: %w", req.Params.Name, err)
	}
	return args, nil
}

// reflectInputSchema derives a tool input schema from an argument struct.
// The reflected schema is re-read as a jsonschema-go schema, the type the
// SDK inspects when a tool is added.
func reflectInputSchema[A any]() *sdkschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	reflected := r.Reflect(new(A))
	reflected.Version = ""
	reflected.Type = "object"

	data, err := json.Marshal(reflected)
	if err != nil {
		panic(fmt.Sprintf("mcpserver: marshal schema for %T: %v", *new(A), err))
	}
	out := new(sdkschema.Schema)
	if err := json.Unmarshal(data, out); err != nil {
		panic(fmt.Sprintf("mcpserver: convert schema for %T: %v", *new(A), err))
	}
	return out
}
