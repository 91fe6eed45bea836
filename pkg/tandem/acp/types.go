package acp

import "encoding/json"

const jsonRPCVersion = "2.0"

// Method names spoken over the agent pipe.
const (
	MethodInitialize   = "initialize"
	MethodAuthenticate = "authenticate"
	MethodSessionNew   = "session/new"
	MethodSessionLoad  = "session/load"
	MethodSessionList  = "session/list"
	MethodPrompt       = "session/prompt"
	MethodCancel       = "session/cancel"
	MethodSetMode      = "session/set_mode"
	MethodSessionSave  = "session/save"

	// MethodSessionUpdate is sent BY the agent as a notification.
	MethodSessionUpdate = "session/update"
)

// rpcRequest is the outbound wire shape. A nil ID makes it a
// notification.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// InitializeParams negotiates protocol version and capabilities.
type InitializeParams struct {
	ProtocolVersion int                `json:"protocolVersion"`
	ClientInfo      ClientInfo         `json:"clientInfo"`
	Capabilities    ClientCapabilities `json:"clientCapabilities"`
}

// ClientInfo identifies the connecting client.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ClientCapabilities advertises what the client can service.
type ClientCapabilities struct {
	FS       FSCapabilities `json:"fs"`
	Terminal bool           `json:"terminal,omitempty"`
}

// FSCapabilities advertises filesystem access offered to the agent.
type FSCapabilities struct {
	ReadTextFile  bool `json:"readTextFile"`
	WriteTextFile bool `json:"writeTextFile"`
}

// InitializeResult is the agent's half of the handshake.
type InitializeResult struct {
	ProtocolVersion int             `json:"protocolVersion"`
	AgentInfo       *ClientInfo     `json:"agentInfo,omitempty"`
	AuthMethods     []AuthMethod    `json:"authMethods,omitempty"`
	Capabilities    json.RawMessage `json:"agentCapabilities,omitempty"`
}

// AuthMethod describes one way the agent can be authenticated.
type AuthMethod struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AuthenticateParams selects an advertised auth method.
type AuthenticateParams struct {
	MethodID string `json:"methodId"`
}

// NewSessionParams creates a fresh agent session.
type NewSessionParams struct {
	Cwd        string            `json:"cwd"`
	MCPServers []json.RawMessage `json:"mcpServers,omitempty"`
}

// NewSessionResult carries the assigned session id.
type NewSessionResult struct {
	SessionID string      `json:"sessionId"`
	Modes     *ModeState  `json:"modes,omitempty"`
	Models    []ModelInfo `json:"models,omitempty"`
}

// ModeState reports the agent's current mode and the available set.
type ModeState struct {
	CurrentModeID  string     `json:"currentModeId"`
	AvailableModes []ModeInfo `json:"availableModes"`
}

// ModeInfo names one selectable agent mode.
type ModeInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ModelInfo names one selectable model.
type ModelInfo struct {
	ID   string `json:"modelId"`
	Name string `json:"name"`
}

// LoadSessionParams resumes a previously saved session.
type LoadSessionParams struct {
	SessionID  string            `json:"sessionId"`
	Cwd        string            `json:"cwd"`
	MCPServers []json.RawMessage `json:"mcpServers,omitempty"`
}

// ListSessionsResult enumerates resumable sessions.
type ListSessionsResult struct {
	Sessions []SessionSummary `json:"sessions"`
}

// SessionSummary is one entry in the session list.
type SessionSummary struct {
	SessionID string `json:"sessionId"`
	Title     string `json:"title,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// PromptParams sends one user prompt into a session.
type PromptParams struct {
	SessionID string        `json:"sessionId"`
	Prompt    []PromptBlock `json:"prompt"`
}

// PromptBlock is one content block of a prompt. Only text blocks are
// produced today; the type field keeps the wire shape open.
type PromptBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// TextPrompt wraps plain text as a single-block prompt.
func TextPrompt(text string) []PromptBlock {
	return []PromptBlock{{Type: "text", Text: text}}
}

// PromptResult reports how the turn ended.
type PromptResult struct {
	StopReason string `json:"stopReason"`
}

// Stop reasons an agent may report for a turn.
const (
	StopReasonEndTurn   = "end_turn"
	StopReasonMaxTurns  = "max_turn_requests"
	StopReasonCancelled = "cancelled"
	StopReasonRefusal   = "refusal"
)

// CancelParams identifies the session whose turn to interrupt. Sent as
// a notification, never awaited.
type CancelParams struct {
	SessionID string `json:"sessionId"`
}

// SetModeParams switches the agent's mode mid-session.
type SetModeParams struct {
	SessionID string `json:"sessionId"`
	ModeID    string `json:"modeId"`
}

// SaveSessionParams persists the session transcript agent-side.
type SaveSessionParams struct {
	SessionID string `json:"sessionId"`
}

// SessionUpdate is the payload of a session/update notification from
// the agent: incremental turn progress the client renders or composes.
type SessionUpdate struct {
	SessionID string          `json:"sessionId"`
	Update    json.RawMessage `json:"update"`
}
