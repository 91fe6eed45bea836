package messages

// Result subtypes.
const (
	ResultSubtypeSuccess         = "success"
	ResultSubtypeErrorDuringExec = "error_during_execution"
	ResultSubtypeErrorMaxTurns   = "error_max_turns"
)

// ResultError is the error detail attached to failed results.
type ResultError struct {
	// Type classifies the failure.
	Type string `json:"type,omitempty"`

	// Message is the human-readable description.
	Message string `json:"message"`

	// Code is the stable error code, when known.
	Code string `json:"code,omitempty"`
}

// ResultStats carries optional turn statistics.
type ResultStats struct {
	// ToolCalls is the number of tool invocations in the turn.
	ToolCalls int `json:"tool_calls"`

	// Subagents is the number of subagent threads spawned.
	Subagents int `json:"subagents,omitempty"`
}

// ResultEnvelope is the terminal envelope of a turn. IsError
// discriminates the success and failure shapes.
type ResultEnvelope struct {
	// Type is always "result".
	Type string `json:"type"`

	// Subtype is "success", "error_during_execution" or
	// "error_max_turns".
	Subtype string `json:"subtype"`

	// IsError is true for the error shapes.
	IsError bool `json:"is_error"`

	// SessionID identifies the conversation session.
	SessionID string `json:"session_id"`

	// ParentToolUseID threads the result to a subagent conversation;
	// null for the main agent.
	ParentToolUseID *string `json:"parent_tool_use_id"`

	// Result is the final response text on success.
	Result string `json:"result,omitempty"`

	// Error holds the failure detail on error.
	Error *ResultError `json:"error,omitempty"`

	// DurationMs is total wall-clock time for the turn.
	DurationMs int64 `json:"duration_ms"`

	// DurationAPIMs is time spent waiting on the backend.
	DurationAPIMs int64 `json:"duration_api_ms"`

	// NumTurns is the number of model round-trips consumed.
	NumTurns int `json:"num_turns"`

	// Usage is the aggregated token accounting.
	Usage Usage `json:"usage"`

	// Stats carries optional turn statistics.
	Stats *ResultStats `json:"stats,omitempty"`
}

func (*ResultEnvelope) message() {}
