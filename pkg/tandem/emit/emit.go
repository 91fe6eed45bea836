// Package emit implements the output adapter: it serializes
// finalized envelopes to one of the stream-json wire formats (a
// single JSON array flushed at turn end, or one envelope per line)
// and builds the auxiliary envelopes: user messages, tool results,
// system messages, and the terminal result.
package emit

import (
	"strings"

	"github.com/google/uuid"

	"github.com/tandem-dev/tandem/pkg/tandem/backend"
	"github.com/tandem-dev/tandem/pkg/tandem/messages"
)

// Writer is one wire strategy. Implementations must be safe for use
// from a single goroutine; the adapter serializes access.
type Writer interface {
	// WriteEnvelope hands one envelope to the strategy.
	WriteEnvelope(msg messages.Message) error

	// Flush completes the turn's output (array mode writes its one
	// array here; line mode is a no-op).
	Flush() error
}

// Adapter is the output adapter shared by both wire strategies. It
// implements compose.Sink and, when partial streaming is enabled,
// compose.PartialSink.
type Adapter struct {
	sessionID string
	writer    Writer
	partial   bool
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithPartialStreaming enables fine-grained stream_event envelopes
// interleaved with the coarse ones.
func WithPartialStreaming() Option {
	return func(a *Adapter) { a.partial = true }
}

// NewAdapter creates an output adapter for one session.
func NewAdapter(sessionID string, w Writer, opts ...Option) *Adapter {
	a := &Adapter{sessionID: sessionID, writer: w}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// EmitAssistant implements compose.Sink.
func (a *Adapter) EmitAssistant(env *messages.AssistantEnvelope) error {
	return a.writer.WriteEnvelope(env)
}

// EmitUserMessage converts backend-native parts into a user envelope
// for the given owner. Consecutive text-bearing parts merge into one
// text block.
func (a *Adapter) EmitUserMessage(parts []backend.Part, owner messages.Owner) error {
	var merged strings.Builder
	for _, p := range parts {
		merged.WriteString(backend.PartText(p))
	}

	env := &messages.UserEnvelope{
		Type:            messages.TypeUser,
		UUID:            uuid.NewString(),
		SessionID:       a.sessionID,
		ParentToolUseID: owner.WireID(),
		Message: messages.UserPayload{
			Role:    "user",
			Content: []messages.ContentBlock{messages.NewTextBlock(merged.String())},
		},
	}

	return a.writer.WriteEnvelope(env)
}

// EmitToolResult wraps one tool execution outcome as a tool_result
// block inside a user envelope. Content priority: a non-blank
// ResultDisplay, else the first text-bearing part, else the error
// message. IsError is set exactly when the execution failed.
func (a *Adapter) EmitToolResult(call backend.ToolCall, res backend.ToolResult, owner messages.Owner) error {
	// Non-blankness is only the selection test; the chosen display
	// text carries over verbatim.
	content := ""
	if strings.TrimSpace(res.ResultDisplay) != "" {
		content = res.ResultDisplay
	}
	if content == "" {
		for _, p := range res.Parts {
			if text := backend.PartText(p); text != "" {
				content = text

				break
			}
		}
	}
	if content == "" && res.Err != nil {
		content = res.Err.Error()
	}

	block := &messages.ToolResultBlock{
		Type:      messages.BlockTypeToolResult,
		ToolUseID: call.CallID,
		Content:   content,
		IsError:   res.Err != nil,
	}

	env := &messages.UserEnvelope{
		Type:            messages.TypeUser,
		UUID:            uuid.NewString(),
		SessionID:       a.sessionID,
		ParentToolUseID: owner.WireID(),
		Message: messages.UserPayload{
			Role:    "user",
			Content: []messages.ContentBlock{block},
		},
	}

	return a.writer.WriteEnvelope(env)
}

// EmitSystemMessage emits an auxiliary system envelope.
func (a *Adapter) EmitSystemMessage(subtype string, data map[string]any) error {
	return a.writer.WriteEnvelope(&messages.SystemEnvelope{
		Type:      messages.TypeSystem,
		Subtype:   subtype,
		SessionID: a.sessionID,
		Data:      data,
	})
}

// ResultOptions parameterizes the terminal result envelope.
type ResultOptions struct {
	// Owner scopes the result to a conversation thread; the zero
	// value is the main agent (null parent_tool_use_id).
	Owner         messages.Owner
	IsError       bool
	ErrMessage    string
	ErrType       string
	ErrCode       string
	Subtype       string // overrides the error subtype, optional
	Summary       string
	DurationMs    int64
	DurationAPIMs int64
	NumTurns      int
	Usage         messages.Usage
	Stats         *messages.ResultStats
}

// BuildResultMessage assembles the turn's terminal envelope. On
// success the result text is the caller's summary when present, else
// the concatenated text of the last assistant message, else empty.
func (a *Adapter) BuildResultMessage(opts ResultOptions, last *messages.AssistantEnvelope) *messages.ResultEnvelope {
	env := &messages.ResultEnvelope{
		Type:            messages.TypeResult,
		SessionID:       a.sessionID,
		ParentToolUseID: opts.Owner.WireID(),
		DurationMs:      opts.DurationMs,
		DurationAPIMs:   opts.DurationAPIMs,
		NumTurns:        opts.NumTurns,
		Usage:           opts.Usage,
		Stats:           opts.Stats,
	}

	if opts.IsError {
		env.IsError = true
		env.Subtype = messages.ResultSubtypeErrorDuringExec
		if opts.Subtype != "" {
			env.Subtype = opts.Subtype
		}
		env.Error = &messages.ResultError{
			Type:    opts.ErrType,
			Message: opts.ErrMessage,
			Code:    opts.ErrCode,
		}

		return env
	}

	env.Subtype = messages.ResultSubtypeSuccess
	switch {
	case opts.Summary != "":
		env.Result = opts.Summary
	case last != nil:
		env.Result = last.TextContent()
	}

	return env
}

// EmitResult writes the terminal envelope and flushes the strategy.
func (a *Adapter) EmitResult(env *messages.ResultEnvelope) error {
	if err := a.writer.WriteEnvelope(env); err != nil {
		return err
	}

	return a.writer.Flush()
}

// EmitMessageStart implements compose.PartialSink.
func (a *Adapter) EmitMessageStart(owner messages.Owner, messageID string) error {
	return a.emitStreamEvent(owner, map[string]any{
		"type": messages.StreamEventMessageStart,
		"message": map[string]any{
			"id":   messageID,
			"role": "assistant",
		},
	})
}

// EmitContentDelta implements compose.PartialSink.
func (a *Adapter) EmitContentDelta(owner messages.Owner, messageID string, delta map[string]any) error {
	return a.emitStreamEvent(owner, map[string]any{
		"type":       messages.StreamEventContentBlockDelta,
		"message_id": messageID,
		"delta":      delta,
	})
}

// EmitMessageStop implements compose.PartialSink.
func (a *Adapter) EmitMessageStop(owner messages.Owner, messageID string) error {
	return a.emitStreamEvent(owner, map[string]any{
		"type":       messages.StreamEventMessageStop,
		"message_id": messageID,
	})
}

// PartialEnabled reports whether stream_event envelopes are emitted.
func (a *Adapter) PartialEnabled() bool { return a.partial }

func (a *Adapter) emitStreamEvent(owner messages.Owner, event map[string]any) error {
	if !a.partial {
		return nil
	}

	return a.writer.WriteEnvelope(&messages.StreamEventEnvelope{
		Type:            messages.TypeStreamEvent,
		UUID:            uuid.NewString(),
		SessionID:       a.sessionID,
		ParentToolUseID: owner.WireID(),
		Event:           event,
	})
}
