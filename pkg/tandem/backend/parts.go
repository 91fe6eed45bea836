package backend

import "fmt"

// Part is one unit of backend-native multi-part content: plain text,
// a function response, or anything else the backend defines.
type Part interface {
	part()
}

// TextPart is plain text content.
type TextPart struct {
	Text string
}

func (TextPart) part() {}

// FunctionResponsePart carries a tool execution result back to the
// model. The Response map's "output" entry is the textual payload.
type FunctionResponsePart struct {
	// CallID correlates the originating tool call.
	CallID string

	// Name is the tool that produced this response.
	Name string

	// Response is the structured result; "output" holds the text.
	Response map[string]any
}

func (FunctionResponsePart) part() {}

// OpaquePart wraps a part type this client does not interpret.
type OpaquePart struct {
	// Kind names the unrecognized part type.
	Kind string
}

func (OpaquePart) part() {}

// PartText extracts the displayable text of a part: the text itself,
// a function response's output field, or a readable placeholder for
// anything else.
func PartText(p Part) string {
	switch v := p.(type) {
	case TextPart:
		return v.Text
	case FunctionResponsePart:
		if out, ok := v.Response["output"].(string); ok {
			return out
		}

		return fmt.Sprintf("[function response: %s]", v.Name)
	case OpaquePart:
		return fmt.Sprintf("[unsupported part: %s]", v.Kind)
	default:
		return fmt.Sprintf("[unsupported part: %T]", p)
	}
}
