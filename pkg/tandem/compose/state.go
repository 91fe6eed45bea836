// Package compose implements the per-conversation message state
// machine: it assembles streamed backend events into well-formed
// assistant messages, enforcing that every block in one message
// shares a single discriminator, and tracks one independent state per
// conversation thread (main agent plus any subagents).
//
// Callers must preserve a single-writer-per-owner discipline: two
// goroutines may safely drive different owners concurrently, but one
// owner's state must only ever be mutated from one goroutine at a
// time.
package compose

import (
	"github.com/google/uuid"

	"github.com/tandem-dev/tandem/pkg/tandem/messages"
	"github.com/tandem-dev/tandem/pkg/tandemerrs"
)

// MessageState accumulates a single in-flight assistant message.
// Lifecycle: zero value -> Start -> append calls -> finalize.
// Finalization is one-way and idempotent; append calls arriving after
// finalization are ignored.
type MessageState struct {
	messageID string
	blocks    []messages.ContentBlock
	open      map[int]struct{}
	usage     messages.Usage
	started   bool
	finalized bool
	current   string
	built     *messages.AssistantEnvelope
}

// NewMessageState creates an idle state (no message in flight).
func NewMessageState() *MessageState {
	return &MessageState{open: make(map[int]struct{})}
}

// Start resets the state for a fresh message with a newly generated
// id. Calling Start with a message in flight discards it without
// finalizing; the caller finalizes first if the content matters.
func (s *MessageState) Start() {
	s.messageID = uuid.NewString()
	s.blocks = nil
	s.open = make(map[int]struct{})
	s.usage = messages.Usage{}
	s.started = false
	s.finalized = false
	s.current = ""
	s.built = nil
}

// MessageID returns the in-flight message id, empty when idle.
func (s *MessageState) MessageID() string { return s.messageID }

// Started reports whether any block has been appended.
func (s *MessageState) Started() bool { return s.started }

// Finalized reports whether the message has been frozen.
func (s *MessageState) Finalized() bool { return s.finalized }

// CurrentBlockType returns the fixed block discriminator for this
// message, empty while no block has been appended.
func (s *MessageState) CurrentBlockType() string { return s.current }

// Blocks returns the accumulated blocks in emission order.
func (s *MessageState) Blocks() []messages.ContentBlock { return s.blocks }

// OpenBlockCount returns how many blocks still await a closing
// transition.
func (s *MessageState) OpenBlockCount() int { return len(s.open) }

// Usage returns the accumulated token counters.
func (s *MessageState) Usage() messages.Usage { return s.usage }

// MergeUsage folds backend token metadata into the state's counters.
// Counters never decrease.
func (s *MessageState) MergeUsage(md *messages.TokenMetadata) {
	s.usage.Merge(messages.NewUsage(md))
}

// ensureType fixes the message's block discriminator. It returns
// false when the state already accumulates a different type, in which
// case the caller must rotate to a fresh state.
func (s *MessageState) ensureType(blockType string) bool {
	if s.current == "" {
		s.current = blockType

		return true
	}

	return s.current == blockType
}

// ensureStarted lazily assigns a message id and flips the started
// flag on the first append.
func (s *MessageState) ensureStarted() {
	if s.messageID == "" {
		s.Start()
	}
	s.started = true
}

// appendText adds a text fragment, extending the trailing open text
// block when possible. Whitespace is preserved byte for byte.
func (s *MessageState) appendText(fragment string) {
	s.ensureStarted()

	last := len(s.blocks) - 1
	if last >= 0 {
		if tb, ok := s.blocks[last].(*messages.TextBlock); ok {
			if _, isOpen := s.open[last]; isOpen {
				tb.Text += fragment

				return
			}
		}
	}

	s.blocks = append(s.blocks, messages.NewTextBlock(fragment))
	s.open[len(s.blocks)-1] = struct{}{}
}

// appendThinking adds a thought fragment. The first fragment of a
// block formats "subject: description"; later fragments concatenate
// the description only, supporting incremental thought streaming.
func (s *MessageState) appendThinking(subject, description string) {
	s.ensureStarted()

	last := len(s.blocks) - 1
	if last >= 0 {
		if tb, ok := s.blocks[last].(*messages.ThinkingBlock); ok {
			if _, isOpen := s.open[last]; isOpen {
				tb.Thinking += description
				if tb.Signature == "" && subject != "" {
					tb.Signature = subject
				}

				return
			}
		}
	}

	block := &messages.ThinkingBlock{
		Type:      messages.BlockTypeThinking,
		Signature: subject,
	}
	switch {
	case subject != "" && description != "":
		block.Thinking = subject + ": " + description
	case subject == "":
		block.Thinking = description
	}

	s.blocks = append(s.blocks, block)
	s.open[len(s.blocks)-1] = struct{}{}
}

// appendToolUse opens a fresh tool_use block. Any pending open
// text/thinking block is closed first.
func (s *MessageState) appendToolUse(callID, name string, args map[string]any) {
	s.FinalizePendingBlocks()
	s.ensureStarted()

	s.blocks = append(s.blocks, &messages.ToolUseBlock{
		Type:  messages.BlockTypeToolUse,
		ID:    callID,
		Name:  name,
		Input: args,
	})
	s.open[len(s.blocks)-1] = struct{}{}
}

// FinalizePendingBlocks closes the trailing block when it is an open
// text or thinking block. Tool-use blocks stay open until the message
// finalizes.
func (s *MessageState) FinalizePendingBlocks() {
	last := len(s.blocks) - 1
	if last < 0 {
		return
	}
	if _, isOpen := s.open[last]; !isOpen {
		return
	}
	switch s.blocks[last].BlockType() {
	case messages.BlockTypeText, messages.BlockTypeThinking:
		delete(s.open, last)
	}
}

// Build assembles the assistant envelope for the accumulated blocks.
// It fails when no message was started, and re-checks the
// single-block-type invariant defensively.
func (s *MessageState) Build(sessionID, model string, owner messages.Owner) (*messages.AssistantEnvelope, error) {
	if s.messageID == "" {
		return nil, tandemerrs.NewStateError(
			tandemerrs.ErrCodeMessageNotStarted,
			"message not started",
		)
	}

	seen := ""
	allToolUse := len(s.blocks) > 0
	for _, b := range s.blocks {
		bt := b.BlockType()
		if seen == "" {
			seen = bt
		} else if seen != bt {
			return nil, tandemerrs.NewStateError(
				tandemerrs.ErrCodeMixedBlockTypes,
				"assistant message must contain only one type of ContentBlock",
			)
		}
		if bt != messages.BlockTypeToolUse {
			allToolUse = false
		}
	}

	var stopReason *string
	if allToolUse {
		sr := messages.BlockTypeToolUse
		stopReason = &sr
	}

	return &messages.AssistantEnvelope{
		Type:            messages.TypeAssistant,
		UUID:            s.messageID,
		SessionID:       sessionID,
		ParentToolUseID: owner.WireID(),
		Message: messages.AssistantPayload{
			Role:       "assistant",
			Model:      model,
			Content:    s.blocks,
			StopReason: stopReason,
			Usage:      s.usage,
		},
	}, nil
}
