// Package backend defines what the client needs from a
// content-generation backend: a stream of typed events per turn, a
// tool runner for executing requested tool calls, and the multi-part
// content shapes exchanged with the model. Concrete adapters live in
// the subpackages.
package backend

import (
	"context"

	"github.com/tandem-dev/tandem/pkg/tandem/messages"
)

// Event is one typed occurrence on a generation stream.
type Event interface {
	event()
}

// TextDelta carries an incremental fragment of response text.
type TextDelta struct {
	// Text is the fragment, whitespace significant.
	Text string
}

func (TextDelta) event() {}

// ThoughtDelta carries an incremental fragment of model reasoning.
// Subject may be empty for continuation fragments.
type ThoughtDelta struct {
	Subject     string
	Description string
}

func (ThoughtDelta) event() {}

// ToolCall asks the client to execute a tool.
type ToolCall struct {
	// CallID is the backend-assigned id correlating the result.
	CallID string

	// Name is the tool to invoke.
	Name string

	// Args are the tool arguments.
	Args map[string]any
}

func (ToolCall) event() {}

// Finished signals the end of a generation round, carrying the
// backend's cumulative token accounting when reported.
type Finished struct {
	Usage *messages.TokenMetadata
}

func (Finished) event() {}

// Stream yields events for one generation round. Recv returns io.EOF
// after the Finished event has been delivered and the round is over.
type Stream interface {
	Recv(ctx context.Context) (Event, error)
}

// Client starts generation rounds against a backend.
type Client interface {
	// StartTurn sends the accumulated conversation input and
	// returns the event stream for the model's reply.
	StartTurn(ctx context.Context, input []Part) (Stream, error)

	// Model returns the model identifier in use.
	Model() string
}

// TokenRefresher refreshes backend credentials after an
// authentication-class failure. The orchestrator retries a turn once
// after a successful refresh; refresh mechanics are outside this
// package.
type TokenRefresher interface {
	Refresh(ctx context.Context) error
}
