package messages

// AssistantPayload is the message body carried by an assistant
// envelope.
type AssistantPayload struct {
	// Role is always "assistant".
	Role string `json:"role"`

	// Model identifies the generating model.
	Model string `json:"model"`

	// Content is the ordered block list. Within one message every
	// block has the same discriminator.
	Content []ContentBlock `json:"content"`

	// StopReason is "tool_use" when every block is a tool call,
	// null otherwise.
	StopReason *string `json:"stop_reason"`

	// Usage is the normalized token accounting for this message.
	Usage Usage `json:"usage"`
}

// AssistantEnvelope is a finalized assistant message on the wire.
type AssistantEnvelope struct {
	// Type is always "assistant".
	Type string `json:"type"`

	// UUID uniquely identifies this message.
	UUID string `json:"uuid"`

	// SessionID identifies the conversation session.
	SessionID string `json:"session_id"`

	// ParentToolUseID is null for the main agent, or the spawning
	// tool-use id for a subagent.
	ParentToolUseID *string `json:"parent_tool_use_id"`

	// Message is the assistant payload.
	Message AssistantPayload `json:"message"`
}

func (*AssistantEnvelope) message() {}

// Owner returns the conversation thread this envelope belongs to.
func (e *AssistantEnvelope) Owner() Owner {
	return OwnerFromWire(e.ParentToolUseID)
}

// TextContent concatenates the text of every text block in the
// message, in order.
func (e *AssistantEnvelope) TextContent() string {
	var out string
	for _, b := range e.Message.Content {
		if tb, ok := b.(*TextBlock); ok {
			out += tb.Text
		}
	}

	return out
}
