package messages

// Stream event subtypes emitted when partial-message streaming is
// enabled. They interleave with the coarse envelopes so a UI can
// render token by token without changing the state machine.
const (
	StreamEventMessageStart      = "message_start"
	StreamEventContentBlockDelta = "content_block_delta"
	StreamEventMessageStop       = "message_stop"
)

// StreamEventEnvelope wraps one fine-grained streaming event.
type StreamEventEnvelope struct {
	// Type is always "stream_event".
	Type string `json:"type"`

	// UUID uniquely identifies this event.
	UUID string `json:"uuid"`

	// SessionID identifies the conversation session.
	SessionID string `json:"session_id"`

	// ParentToolUseID is null for the main agent, or the spawning
	// tool-use id for a subagent.
	ParentToolUseID *string `json:"parent_tool_use_id"`

	// Event is the raw event payload, keyed by "type"
	// (message_start, content_block_delta, message_stop).
	Event map[string]any `json:"event"`
}

func (*StreamEventEnvelope) message() {}
