package messages

import (
	"fmt"

	"github.com/tandem-dev/tandem/pkg/tandemerrs"
)

// Decode narrows a raw envelope (as produced by the line-JSON codec)
// into a concrete Message variant. The discriminator is validated
// first; anything that does not match a known variant is rejected
// rather than optimistically field-probed.
func Decode(raw map[string]any) (Message, error) {
	msgType, ok := raw["type"].(string)
	if !ok {
		return nil, tandemerrs.NewProtocolError(
			tandemerrs.ErrCodeMissingType,
			"missing required type field",
			nil,
		)
	}

	switch msgType {
	case TypeUser:
		return decodeUser(raw)
	case TypeAssistant:
		return decodeAssistant(raw)
	case TypeSystem:
		return decodeSystem(raw)
	case TypeResult:
		return decodeResult(raw)
	case TypeStreamEvent:
		return decodeStreamEvent(raw)
	case TypeControlRequest:
		return decodeControlRequest(raw)
	case TypeControlResponse:
		return decodeControlResponse(raw)
	case TypeControlCancelRequest:
		return decodeControlCancel(raw)
	default:
		return nil, tandemerrs.NewProtocolError(
			tandemerrs.ErrCodeUnknownType,
			fmt.Sprintf("unknown message type: %s", msgType),
			nil,
		)
	}
}

func decodeUser(raw map[string]any) (Message, error) {
	msg, _ := raw["message"].(map[string]any)
	if msg == nil {
		return nil, tandemerrs.NewProtocolError(
			tandemerrs.ErrCodeMalformedJSON,
			"user envelope missing message field",
			nil,
		)
	}

	var blocks []ContentBlock
	switch content := msg["content"].(type) {
	case string:
		blocks = []ContentBlock{NewTextBlock(content)}
	case []any:
		var err error
		blocks, err = decodeBlocks(content)
		if err != nil {
			return nil, err
		}
	default:
		return nil, tandemerrs.NewProtocolError(
			tandemerrs.ErrCodeMalformedJSON,
			"user message content must be string or array",
			nil,
		)
	}

	role, _ := msg["role"].(string)
	if role == "" {
		role = "user"
	}

	return &UserEnvelope{
		Type:            TypeUser,
		UUID:            stringField(raw, "uuid"),
		SessionID:       stringField(raw, "session_id"),
		ParentToolUseID: stringPtrField(raw, "parent_tool_use_id"),
		Message:         UserPayload{Role: role, Content: blocks},
	}, nil
}

func decodeAssistant(raw map[string]any) (Message, error) {
	msg, _ := raw["message"].(map[string]any)
	if msg == nil {
		return nil, tandemerrs.NewProtocolError(
			tandemerrs.ErrCodeMalformedJSON,
			"assistant envelope missing message field",
			nil,
		)
	}

	contentArr, _ := msg["content"].([]any)
	blocks, err := decodeBlocks(contentArr)
	if err != nil {
		return nil, err
	}

	var stopReason *string
	if sr, ok := msg["stop_reason"].(string); ok {
		stopReason = &sr
	}

	usage := Usage{}
	if um, ok := msg["usage"].(map[string]any); ok {
		usage.InputTokens = intField(um, "input_tokens")
		usage.OutputTokens = intField(um, "output_tokens")
		if v, ok := um["cache_read_input_tokens"]; ok {
			n := toInt(v)
			usage.CacheReadInputTokens = &n
		}
		if v, ok := um["total_tokens"]; ok {
			n := toInt(v)
			usage.TotalTokens = &n
		}
	}

	return &AssistantEnvelope{
		Type:            TypeAssistant,
		UUID:            stringField(raw, "uuid"),
		SessionID:       stringField(raw, "session_id"),
		ParentToolUseID: stringPtrField(raw, "parent_tool_use_id"),
		Message: AssistantPayload{
			Role:       "assistant",
			Model:      stringField(msg, "model"),
			Content:    blocks,
			StopReason: stopReason,
			Usage:      usage,
		},
	}, nil
}

func decodeSystem(raw map[string]any) (Message, error) {
	subtype, ok := raw["subtype"].(string)
	if !ok {
		return nil, tandemerrs.NewProtocolError(
			tandemerrs.ErrCodeMalformedJSON,
			"system envelope missing subtype field",
			nil,
		)
	}

	data, _ := raw["data"].(map[string]any)

	return &SystemEnvelope{
		Type:      TypeSystem,
		Subtype:   subtype,
		SessionID: stringField(raw, "session_id"),
		Data:      data,
	}, nil
}

func decodeResult(raw map[string]any) (Message, error) {
	subtype, ok := raw["subtype"].(string)
	if !ok {
		return nil, tandemerrs.NewProtocolError(
			tandemerrs.ErrCodeMalformedJSON,
			"result envelope missing subtype field",
			nil,
		)
	}

	env := &ResultEnvelope{
		Type:            TypeResult,
		Subtype:         subtype,
		SessionID:       stringField(raw, "session_id"),
		ParentToolUseID: stringPtrField(raw, "parent_tool_use_id"),
		Result:          stringField(raw, "result"),
		DurationMs:      int64(intField(raw, "duration_ms")),
		DurationAPIMs:   int64(intField(raw, "duration_api_ms")),
		NumTurns:        intField(raw, "num_turns"),
	}
	env.IsError, _ = raw["is_error"].(bool)
	if em, ok := raw["error"].(map[string]any); ok {
		env.Error = &ResultError{
			Type:    stringField(em, "type"),
			Message: stringField(em, "message"),
			Code:    stringField(em, "code"),
		}
	}

	return env, nil
}

func decodeStreamEvent(raw map[string]any) (Message, error) {
	event, ok := raw["event"].(map[string]any)
	if !ok {
		return nil, tandemerrs.NewProtocolError(
			tandemerrs.ErrCodeMalformedJSON,
			"stream_event envelope missing event field",
			nil,
		)
	}

	return &StreamEventEnvelope{
		Type:            TypeStreamEvent,
		UUID:            stringField(raw, "uuid"),
		SessionID:       stringField(raw, "session_id"),
		ParentToolUseID: stringPtrField(raw, "parent_tool_use_id"),
		Event:           event,
	}, nil
}

func decodeControlRequest(raw map[string]any) (Message, error) {
	requestID, ok := raw["request_id"].(string)
	if !ok {
		return nil, tandemerrs.NewProtocolError(
			tandemerrs.ErrCodeMalformedJSON,
			"control_request envelope missing request_id field",
			nil,
		)
	}

	req, _ := raw["request"].(map[string]any)
	body := ControlRequestBody{Extra: map[string]any{}}
	for k, v := range req {
		if k == "subtype" {
			body.Subtype, _ = v.(string)

			continue
		}
		body.Extra[k] = v
	}

	return &ControlRequestEnvelope{
		Type:      TypeControlRequest,
		RequestID: requestID,
		Request:   body,
	}, nil
}

func decodeControlResponse(raw map[string]any) (Message, error) {
	resp, ok := raw["response"].(map[string]any)
	if !ok {
		return nil, tandemerrs.NewProtocolError(
			tandemerrs.ErrCodeMalformedJSON,
			"control_response envelope missing response field",
			nil,
		)
	}

	body := ControlResponseBody{
		Subtype:   stringField(resp, "subtype"),
		RequestID: stringField(resp, "request_id"),
		Error:     stringField(resp, "error"),
	}
	body.Response, _ = resp["response"].(map[string]any)

	return &ControlResponseEnvelope{
		Type:     TypeControlResponse,
		Response: body,
	}, nil
}

func decodeControlCancel(raw map[string]any) (Message, error) {
	requestID, ok := raw["request_id"].(string)
	if !ok {
		return nil, tandemerrs.NewProtocolError(
			tandemerrs.ErrCodeMalformedJSON,
			"control_cancel_request envelope missing request_id field",
			nil,
		)
	}

	return &ControlCancelEnvelope{
		Type:      TypeControlCancelRequest,
		RequestID: requestID,
	}, nil
}

func decodeBlocks(items []any) ([]ContentBlock, error) {
	blocks := make([]ContentBlock, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, tandemerrs.NewProtocolError(
				tandemerrs.ErrCodeMalformedJSON,
				"content block must be an object",
				nil,
			)
		}

		blockType, _ := m["type"].(string)
		switch blockType {
		case BlockTypeText:
			blocks = append(blocks, NewTextBlock(stringField(m, "text")))
		case BlockTypeThinking:
			blocks = append(blocks, &ThinkingBlock{
				Type:      BlockTypeThinking,
				Thinking:  stringField(m, "thinking"),
				Signature: stringField(m, "signature"),
			})
		case BlockTypeToolUse:
			input, _ := m["input"].(map[string]any)
			blocks = append(blocks, &ToolUseBlock{
				Type:  BlockTypeToolUse,
				ID:    stringField(m, "id"),
				Name:  stringField(m, "name"),
				Input: input,
			})
		case BlockTypeToolResult:
			isErr, _ := m["is_error"].(bool)
			blocks = append(blocks, &ToolResultBlock{
				Type:      BlockTypeToolResult,
				ToolUseID: stringField(m, "tool_use_id"),
				Content:   stringField(m, "content"),
				IsError:   isErr,
			})
		default:
			return nil, tandemerrs.NewProtocolError(
				tandemerrs.ErrCodeUnknownType,
				fmt.Sprintf("unknown content block type: %q", blockType),
				nil,
			)
		}
	}

	return blocks, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)

	return s
}

func stringPtrField(m map[string]any, key string) *string {
	if s, ok := m[key].(string); ok {
		return &s
	}

	return nil
}

func intField(m map[string]any, key string) int {
	return toInt(m[key])
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}
