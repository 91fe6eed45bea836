// Package gemini adapts the Google GenAI SDK to the backend
// interfaces.
package gemini

import (
	"context"
	"fmt"
	"io"

	"google.golang.org/genai"

	"github.com/tandem-dev/tandem/pkg/tandem/backend"
	"github.com/tandem-dev/tandem/pkg/tandem/messages"
	"github.com/tandem-dev/tandem/pkg/tandemerrs"
)

// Client drives Gemini generation rounds. The SDK client is created
// lazily because genai.NewClient needs a context.
type Client struct {
	client *genai.Client
	apiKey string
	model  string
	system string
	tools  []*genai.Tool
}

var _ backend.Client = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithSystemInstruction sets the system prompt for every round.
func WithSystemInstruction(text string) Option {
	return func(c *Client) { c.system = text }
}

// WithFunctionDeclarations exposes tools to the model.
func WithFunctionDeclarations(decls []*genai.FunctionDeclaration) Option {
	return func(c *Client) {
		c.tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
}

// NewClient creates a Gemini-backed client for the given model.
func NewClient(apiKey, model string, opts ...Option) *Client {
	c := &Client{apiKey: apiKey, model: model}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Model implements backend.Client.
func (c *Client) Model() string { return c.model }

// StartTurn implements backend.Client. The round runs as a single
// GenerateContent call; the response is replayed as an event stream
// so the composer sees the same shape for every backend.
func (c *Client) StartTurn(ctx context.Context, input []backend.Part) (backend.Stream, error) {
	if c.client == nil {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  c.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, tandemerrs.New(
				tandemerrs.CategoryBackend,
				tandemerrs.ErrCodeAuthFailed,
				"failed to create Gemini client",
				err,
			)
		}
		c.client = client
	}

	contents := convertParts(input)

	config := &genai.GenerateContentConfig{}
	if c.system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: c.system}},
		}
	}
	if len(c.tools) > 0 {
		config.Tools = c.tools
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, tandemerrs.New(
			tandemerrs.CategoryBackend,
			tandemerrs.ErrCodeStreamFailed,
			fmt.Sprintf("Gemini API call failed: %v", err),
			err,
		)
	}
	if result == nil {
		return nil, tandemerrs.New(
			tandemerrs.CategoryBackend,
			tandemerrs.ErrCodeStreamFailed,
			"empty response from Gemini API",
			nil,
		)
	}

	return &replayStream{events: eventsFromResponse(result)}, nil
}

// convertParts maps backend parts into one user-role content. Gemini
// correlates function responses by name, not id.
func convertParts(input []backend.Part) []*genai.Content {
	var parts []*genai.Part
	for _, p := range input {
		switch v := p.(type) {
		case backend.TextPart:
			parts = append(parts, &genai.Part{Text: v.Text})
		case backend.FunctionResponsePart:
			parts = append(parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					Name:     v.Name,
					Response: v.Response,
				},
			})
		}
	}

	return []*genai.Content{{Role: "user", Parts: parts}}
}

// eventsFromResponse flattens one response into the event sequence
// the composer consumes: thought fragments, text, tool calls, then
// the finish marker with token accounting.
func eventsFromResponse(result *genai.GenerateContentResponse) []backend.Event {
	var events []backend.Event

	if len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
		for _, part := range result.Candidates[0].Content.Parts {
			if part == nil || part.Text == "" {
				continue
			}
			if part.Thought {
				events = append(events, backend.ThoughtDelta{Description: part.Text})
			} else {
				events = append(events, backend.TextDelta{Text: part.Text})
			}
		}
	}

	for _, call := range result.FunctionCalls() {
		id := call.ID
		if id == "" {
			id = call.Name
		}
		events = append(events, backend.ToolCall{
			CallID: id,
			Name:   call.Name,
			Args:   call.Args,
		})
	}

	finished := backend.Finished{}
	if md := result.UsageMetadata; md != nil {
		finished.Usage = &messages.TokenMetadata{
			PromptTokenCount:        int(md.PromptTokenCount),
			CandidatesTokenCount:    int(md.CandidatesTokenCount),
			CachedContentTokenCount: int(md.CachedContentTokenCount),
			TotalTokenCount:         int(md.TotalTokenCount),
		}
	}
	events = append(events, finished)

	return events
}

// replayStream yields a fixed event sequence then io.EOF.
type replayStream struct {
	events []backend.Event
	next   int
}

func (s *replayStream) Recv(ctx context.Context) (backend.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.events) {
		return nil, io.EOF
	}

	ev := s.events[s.next]
	s.next++

	return ev, nil
}
