package compose

import "github.com/tandem-dev/tandem/pkg/tandem/messages"

// Registry maps conversation owners to their message states. The
// main agent has a dedicated slot; subagent states are created lazily
// on first reference and live until the turn completes.
type Registry struct {
	main *MessageState
	subs map[string]*MessageState
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		main: NewMessageState(),
		subs: make(map[string]*MessageState),
	}
}

// State returns the owner's message state, creating it on first
// reference.
func (r *Registry) State(owner messages.Owner) *MessageState {
	id, sub := owner.ToolUseID()
	if !sub {
		return r.main
	}

	st, ok := r.subs[id]
	if !ok {
		st = NewMessageState()
		r.subs[id] = st
	}

	return st
}

// Replace swaps in a fresh state for the owner. Used when a block
// type rotation finalizes the previous message mid-stream.
func (r *Registry) Replace(owner messages.Owner, st *MessageState) {
	id, sub := owner.ToolUseID()
	if !sub {
		r.main = st

		return
	}
	r.subs[id] = st
}

// Reset discards every state. Called when the orchestrator's turn
// completes.
func (r *Registry) Reset() {
	r.main = NewMessageState()
	r.subs = make(map[string]*MessageState)
}

// Subagents returns the ids of all subagent threads seen this turn.
func (r *Registry) Subagents() []string {
	ids := make([]string, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}

	return ids
}
