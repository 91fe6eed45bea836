package messages

// Block type discriminators.
const (
	BlockTypeText       = "text"
	BlockTypeThinking   = "thinking"
	BlockTypeToolUse    = "tool_use"
	BlockTypeToolResult = "tool_result"
)

// TextBlock carries plain text content.
type TextBlock struct {
	// Type is always "text".
	Type string `json:"type"`

	// Text is the content, whitespace preserved byte for byte.
	Text string `json:"text"`
}

// NewTextBlock creates a text block.
func NewTextBlock(text string) *TextBlock {
	return &TextBlock{Type: BlockTypeText, Text: text}
}

func (*TextBlock) contentBlock() {}

// BlockType returns the wire discriminator.
func (*TextBlock) BlockType() string { return BlockTypeText }

// ThinkingBlock carries the model's reasoning stream. Thinking may be
// empty when only a subject line arrived; Signature then carries the
// subject verbatim.
type ThinkingBlock struct {
	// Type is always "thinking".
	Type string `json:"type"`

	// Thinking is the reasoning text, possibly empty.
	Thinking string `json:"thinking,omitempty"`

	// Signature is the thought subject, verbatim.
	Signature string `json:"signature,omitempty"`
}

func (*ThinkingBlock) contentBlock() {}

// BlockType returns the wire discriminator.
func (*ThinkingBlock) BlockType() string { return BlockTypeThinking }

// ToolUseBlock represents a tool invocation requested by the model.
type ToolUseBlock struct {
	// Type is always "tool_use".
	Type string `json:"type"`

	// ID is the backend-assigned call id.
	ID string `json:"id"`

	// Name is the tool being invoked.
	Name string `json:"name"`

	// Input holds the tool arguments. Kept loose because inputs
	// vary by tool.
	Input map[string]any `json:"input"`
}

func (*ToolUseBlock) contentBlock() {}

// BlockType returns the wire discriminator.
func (*ToolUseBlock) BlockType() string { return BlockTypeToolUse }

// ToolResultBlock carries the outcome of one tool execution back to
// the model.
type ToolResultBlock struct {
	// Type is always "tool_result".
	Type string `json:"type"`

	// ToolUseID links this result to its tool_use block.
	ToolUseID string `json:"tool_use_id"`

	// Content is the textual result payload.
	Content string `json:"content"`

	// IsError reports whether the tool execution failed.
	IsError bool `json:"is_error"`
}

func (*ToolResultBlock) contentBlock() {}

// BlockType returns the wire discriminator.
func (*ToolResultBlock) BlockType() string { return BlockTypeToolResult }
