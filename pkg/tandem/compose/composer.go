package compose

import (
	"github.com/tandem-dev/tandem/pkg/tandem/messages"
)

// Sink receives finalized assistant messages. The output adapter
// implements this.
type Sink interface {
	// EmitAssistant emits one finalized assistant envelope.
	EmitAssistant(env *messages.AssistantEnvelope) error
}

// PartialSink is optionally implemented by sinks that want
// fine-grained stream events (message_start, content_block_delta,
// message_stop) in addition to finalized messages.
type PartialSink interface {
	EmitMessageStart(owner messages.Owner, messageID string) error
	EmitContentDelta(owner messages.Owner, messageID string, delta map[string]any) error
	EmitMessageStop(owner messages.Owner, messageID string) error
}

// Rotation is the observable outcome of a block-type consistency
// check. When the incoming block type differs from the message's
// fixed type, the current message is finalized and a fresh state
// takes its place; the caller sees both facts here instead of the
// transition happening invisibly.
type Rotation struct {
	// Rotated is true when a new message state was started.
	Rotated bool

	// Finalized is the message closed by the rotation, nil when no
	// rotation happened.
	Finalized *messages.AssistantEnvelope
}

// Composer drives one MessageState per conversation owner and hands
// finalized messages to the sink. All append methods ignore events
// arriving after the owner's message has been finalized.
type Composer struct {
	sessionID string
	model     string
	sink      Sink
	states    *Registry
}

// NewComposer creates a composer for one session.
func NewComposer(sessionID, model string, sink Sink) *Composer {
	return &Composer{
		sessionID: sessionID,
		model:     model,
		sink:      sink,
		states:    NewRegistry(),
	}
}

// State exposes the owner's underlying message state for
// introspection (primarily a testing seam).
func (c *Composer) State(owner messages.Owner) *MessageState {
	return c.states.State(owner)
}

// StartMessage resets the owner's state for a fresh message,
// discarding any in-flight content without finalizing it.
func (c *Composer) StartMessage(owner messages.Owner) {
	c.states.State(owner).Start()
}

// AppendText appends a text fragment to the owner's in-flight
// message. Empty fragments are ignored. Whitespace is preserved
// exactly.
func (c *Composer) AppendText(owner messages.Owner, fragment string) (Rotation, error) {
	if fragment == "" {
		return Rotation{}, nil
	}

	st := c.states.State(owner)
	if st.Finalized() {
		return Rotation{}, nil
	}

	rot, st, err := c.ensureBlockType(owner, st, messages.BlockTypeText)
	if err != nil {
		return rot, err
	}

	started := st.Started()
	st.appendText(fragment)

	if err := c.notifyAppend(owner, st, started, map[string]any{
		"type": "text_delta",
		"text": fragment,
	}); err != nil {
		return rot, err
	}

	return rot, nil
}

// AppendThinking appends a thought fragment to the owner's in-flight
// message. A call with both subject and description empty is ignored.
func (c *Composer) AppendThinking(owner messages.Owner, subject, description string) (Rotation, error) {
	if subject == "" && description == "" {
		return Rotation{}, nil
	}

	st := c.states.State(owner)
	if st.Finalized() {
		return Rotation{}, nil
	}

	rot, st, err := c.ensureBlockType(owner, st, messages.BlockTypeThinking)
	if err != nil {
		return rot, err
	}

	started := st.Started()
	st.appendThinking(subject, description)

	if err := c.notifyAppend(owner, st, started, map[string]any{
		"type":     "thinking_delta",
		"thinking": description,
	}); err != nil {
		return rot, err
	}

	return rot, nil
}

// AppendToolUse opens a tool_use block for the given call. Pending
// text/thinking blocks close first; tool calls always start a fresh
// block.
func (c *Composer) AppendToolUse(owner messages.Owner, callID, name string, args map[string]any) (Rotation, error) {
	st := c.states.State(owner)
	if st.Finalized() {
		return Rotation{}, nil
	}

	st.FinalizePendingBlocks()

	rot, st, err := c.ensureBlockType(owner, st, messages.BlockTypeToolUse)
	if err != nil {
		return rot, err
	}

	started := st.Started()
	st.appendToolUse(callID, name, args)

	if !started {
		if err := c.notifyStart(owner, st); err != nil {
			return rot, err
		}
	}

	return rot, nil
}

// MergeUsage folds backend token metadata into the owner's counters.
func (c *Composer) MergeUsage(owner messages.Owner, md *messages.TokenMetadata) {
	c.states.State(owner).MergeUsage(md)
}

// Finalize closes the owner's in-flight message, emits it to the
// sink, and returns it. Finalize is idempotent: repeat calls return
// the previously built message without re-emitting. Calling it on an
// owner whose message never started is a contract violation and
// fails.
func (c *Composer) Finalize(owner messages.Owner) (*messages.AssistantEnvelope, error) {
	return c.finalizeState(owner, c.states.State(owner))
}

// Reset clears every conversation state. Called at turn end.
func (c *Composer) Reset() {
	c.states.Reset()
}

// Subagents returns the subagent thread ids seen this turn.
func (c *Composer) Subagents() []string {
	return c.states.Subagents()
}

// ensureBlockType is the enforcement point for the single-block-type
// invariant. On mismatch it finalizes the current message, installs a
// fresh started state, and reports the rotation to the caller.
func (c *Composer) ensureBlockType(
	owner messages.Owner,
	st *MessageState,
	blockType string,
) (Rotation, *MessageState, error) {
	if st.ensureType(blockType) {
		return Rotation{}, st, nil
	}

	finalized, err := c.finalizeState(owner, st)
	if err != nil {
		return Rotation{}, st, err
	}

	fresh := NewMessageState()
	fresh.Start()
	fresh.ensureType(blockType)
	c.states.Replace(owner, fresh)

	return Rotation{Rotated: true, Finalized: finalized}, fresh, nil
}

func (c *Composer) finalizeState(owner messages.Owner, st *MessageState) (*messages.AssistantEnvelope, error) {
	if st.Finalized() {
		return st.built, nil
	}

	st.FinalizePendingBlocks()
	for idx := range st.open {
		delete(st.open, idx)
	}

	// The finalized flag latches only on a successful build; a failed
	// finalize must fail again on retry instead of returning a nil
	// message.
	env, err := st.Build(c.sessionID, c.model, owner)
	if err != nil {
		return nil, err
	}
	st.finalized = true
	st.built = env

	if c.sink != nil {
		if err := c.sink.EmitAssistant(env); err != nil {
			return nil, err
		}
		if ps, ok := c.sink.(PartialSink); ok {
			if err := ps.EmitMessageStop(owner, st.MessageID()); err != nil {
				return nil, err
			}
		}
	}

	return env, nil
}

func (c *Composer) notifyStart(owner messages.Owner, st *MessageState) error {
	ps, ok := c.sink.(PartialSink)
	if !ok {
		return nil
	}

	return ps.EmitMessageStart(owner, st.MessageID())
}

func (c *Composer) notifyAppend(
	owner messages.Owner,
	st *MessageState,
	wasStarted bool,
	delta map[string]any,
) error {
	ps, ok := c.sink.(PartialSink)
	if !ok {
		return nil
	}

	if !wasStarted {
		if err := ps.EmitMessageStart(owner, st.MessageID()); err != nil {
			return err
		}
	}

	return ps.EmitContentDelta(owner, st.MessageID(), delta)
}
