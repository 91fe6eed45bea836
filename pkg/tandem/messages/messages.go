// Package messages defines the wire-level domain model for the tandem
// stream-json protocols: the Envelope discriminated union exchanged on
// stdin/stdout, the ContentBlock variants carried inside user and
// assistant messages, and the normalized token-usage shapes.
package messages

// Message is the root interface for all envelopes on the wire.
// Every envelope carries a "type" discriminator when serialized.
type Message interface {
	// message is a marker method for type safety.
	message()
}

// ContentBlock is one unit of message content: text, thinking,
// tool_use, or tool_result.
type ContentBlock interface {
	contentBlock()
	// BlockType returns the wire discriminator for this block.
	BlockType() string
}

// Envelope type discriminators.
const (
	TypeUser                 = "user"
	TypeAssistant            = "assistant"
	TypeSystem               = "system"
	TypeResult               = "result"
	TypeControlRequest       = "control_request"
	TypeControlResponse      = "control_response"
	TypeControlCancelRequest = "control_cancel_request"
	TypeStreamEvent          = "stream_event"
)

// Owner identifies which conversation thread a message belongs to:
// the main agent or a subagent spawned by a tool call. The zero value
// is the main agent, so an Owner can be passed by value everywhere
// without a nil-sentinel convention.
type Owner struct {
	toolUseID string
	subagent  bool
}

// MainAgent returns the Owner for the top-level conversation.
func MainAgent() Owner { return Owner{} }

// SubagentOwner returns the Owner for the subagent spawned by the
// given tool-use id.
func SubagentOwner(toolUseID string) Owner {
	return Owner{toolUseID: toolUseID, subagent: true}
}

// OwnerFromWire converts a nullable parent_tool_use_id field into an
// Owner.
func OwnerFromWire(parentToolUseID *string) Owner {
	if parentToolUseID == nil {
		return MainAgent()
	}

	return SubagentOwner(*parentToolUseID)
}

// IsMain reports whether this Owner is the main agent.
func (o Owner) IsMain() bool { return !o.subagent }

// ToolUseID returns the spawning tool-use id for a subagent owner.
// The second return is false for the main agent.
func (o Owner) ToolUseID() (string, bool) {
	return o.toolUseID, o.subagent
}

// WireID returns the nullable parent_tool_use_id representation used
// on envelopes: nil for the main agent, the id for a subagent.
func (o Owner) WireID() *string {
	if !o.subagent {
		return nil
	}
	id := o.toolUseID

	return &id
}

// String implements fmt.Stringer for log output.
func (o Owner) String() string {
	if !o.subagent {
		return "main"
	}

	return "subagent:" + o.toolUseID
}
