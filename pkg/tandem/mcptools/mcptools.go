// Package mcptools bridges connected MCP server sessions into the
// backend tool loop: listing their tools and running tool calls
// against the owning session.
package mcptools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tandem-dev/tandem/pkg/tandem/backend"
)

// Runner routes tool calls to MCP sessions by tool name. It
// implements backend.ToolRunner for every tool discovered on its
// sessions.
type Runner struct {
	mu       sync.Mutex
	sessions map[string]*mcp.ClientSession
	// toolOwner maps tool name to the session name serving it.
	toolOwner map[string]string
}

// NewRunner creates an empty runner.
func NewRunner() *Runner {
	return &Runner{
		sessions:  make(map[string]*mcp.ClientSession),
		toolOwner: make(map[string]string),
	}
}

var _ backend.ToolRunner = (*Runner)(nil)

// AddSession registers a connected session and discovers its tools.
// A tool name claimed by an earlier session keeps its first owner.
func (r *Runner) AddSession(ctx context.Context, name string, session *mcp.ClientSession) error {
	result, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return fmt.Errorf("list tools on %s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[name] = session
	for _, tool := range result.Tools {
		if _, taken := r.toolOwner[tool.Name]; !taken {
			r.toolOwner[tool.Name] = name
		}
	}

	return nil
}

// Tools returns the discovered tool names.
func (r *Runner) Tools() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.toolOwner))
	for name := range r.toolOwner {
		out = append(out, name)
	}

	return out
}

// Handles reports whether the runner serves the named tool.
func (r *Runner) Handles(toolName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.toolOwner[toolName]

	return ok
}

// Run implements backend.ToolRunner: the call is forwarded to the
// owning session and its content folded into a ToolResult. An MCP
// IsError result becomes a failed ToolResult rather than a transport
// error.
func (r *Runner) Run(ctx context.Context, call backend.ToolCall) backend.ToolResult {
	r.mu.Lock()
	owner, ok := r.toolOwner[call.Name]
	session := r.sessions[owner]
	r.mu.Unlock()

	if !ok || session == nil {
		return backend.ToolResult{
			Err: fmt.Errorf("no MCP server provides tool %q", call.Name),
		}
	}

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      call.Name,
		Arguments: call.Args,
	})
	if err != nil {
		return backend.ToolResult{
			Err: fmt.Errorf("call tool %s on %s: %w", call.Name, owner, err),
		}
	}

	text := contentText(result.Content)
	if result.IsError {
		if text == "" {
			text = "tool execution failed"
		}

		return backend.ToolResult{ResultDisplay: text, Err: fmt.Errorf("%s", text)}
	}

	return backend.ToolResult{
		ResultDisplay: text,
		Parts: []backend.Part{backend.FunctionResponsePart{
			CallID:   call.CallID,
			Name:     call.Name,
			Response: map[string]any{"output": text},
		}},
	}
}

// Close closes every registered session, returning the first error.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var first error
	for name, session := range r.sessions {
		if err := session.Close(); err != nil && first == nil {
			first = fmt.Errorf("close session %s: %w", name, err)
		}
	}

	return first
}

func contentText(content []mcp.Content) string {
	var sb strings.Builder
	for _, c := range content {
		if tc, ok := c.(*mcp.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}

	return sb.String()
}
