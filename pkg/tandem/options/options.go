// Package options defines the agent invocation configuration and
// turns it into the argument vector the CLI subprocess is spawned
// with.
package options

import (
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// ApprovalMode controls how tool executions are confirmed.
type ApprovalMode string

const (
	// ApprovalDefault prompts for destructive tools.
	ApprovalDefault ApprovalMode = "default"
	// ApprovalAutoEdit auto-approves file edits.
	ApprovalAutoEdit ApprovalMode = "auto_edit"
	// ApprovalYolo auto-approves everything.
	ApprovalYolo ApprovalMode = "yolo"
)

// AuthType selects the credential mechanism for the backend.
type AuthType string

const (
	AuthAPIKey AuthType = "api-key"
	AuthOAuth  AuthType = "oauth"
	AuthVertex AuthType = "vertex-ai"
)

// AgentOptions configures one agent invocation.
type AgentOptions struct {
	// Model selects the backend model, empty for the default.
	Model string

	// Cwd is the working directory for the agent process.
	Cwd string

	// ApprovalMode controls tool confirmation, empty for default.
	ApprovalMode ApprovalMode

	// MaxSessionTurns bounds the agent loop; zero means unlimited.
	MaxSessionTurns int

	// CoreTools restricts the built-in tool set when non-empty.
	CoreTools []string

	// ExcludeTools removes tools from the available set.
	ExcludeTools []string

	// AuthType selects the credential mechanism, empty for default.
	AuthType AuthType

	// IncludePartialMessages enables stream_event envelopes.
	IncludePartialMessages bool

	// MCPServers maps server name to its connection config.
	MCPServers map[string]MCPServerConfig

	// SystemPrompt overrides the agent's system prompt.
	SystemPrompt string

	// Env adds to the child's environment.
	Env map[string]string

	// ExtraArgs appends user flags. A nil value means a bare flag.
	ExtraArgs map[string]*string

	// Stderr receives each stderr line from the child.
	Stderr func(string)
}

// MCPServerConfig is the marker union of server connection shapes.
type MCPServerConfig interface {
	mcpServerConfig()
}

// StdioServerConfig launches an MCP server as a subprocess speaking
// stdio.
type StdioServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

func (StdioServerConfig) mcpServerConfig() {}

// HTTPServerConfig connects to a streamable-HTTP MCP server.
type HTTPServerConfig struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

func (HTTPServerConfig) mcpServerConfig() {}

// SSEServerConfig connects to a legacy SSE MCP server.
type SSEServerConfig struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

func (SSEServerConfig) mcpServerConfig() {}

// SDKServerConfig runs an in-process MCP server instance. It never
// crosses the wire; the runner serves it directly.
type SDKServerConfig struct {
	Instance *mcpserver.MCPServer
}

func (SDKServerConfig) mcpServerConfig() {}
