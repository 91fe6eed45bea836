package messages

// UserPayload is the message body carried by a user envelope. User
// envelopes carry both genuine user input and tool results echoed
// back to the model.
type UserPayload struct {
	// Role is always "user".
	Role string `json:"role"`

	// Content is the ordered block list (text or tool_result).
	Content []ContentBlock `json:"content"`
}

// UserEnvelope is a user message on the wire.
type UserEnvelope struct {
	// Type is always "user".
	Type string `json:"type"`

	// UUID uniquely identifies this message.
	UUID string `json:"uuid"`

	// SessionID identifies the conversation session.
	SessionID string `json:"session_id"`

	// ParentToolUseID is null for the main agent, or the spawning
	// tool-use id for a subagent.
	ParentToolUseID *string `json:"parent_tool_use_id"`

	// Message is the user payload.
	Message UserPayload `json:"message"`
}

func (*UserEnvelope) message() {}

// Owner returns the conversation thread this envelope belongs to.
func (e *UserEnvelope) Owner() Owner {
	return OwnerFromWire(e.ParentToolUseID)
}
