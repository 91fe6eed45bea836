// Package anthropic adapts the Anthropic SDK to the backend
// interfaces.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tandem-dev/tandem/pkg/tandem/backend"
	"github.com/tandem-dev/tandem/pkg/tandem/messages"
	"github.com/tandem-dev/tandem/pkg/tandemerrs"
)

const defaultMaxTokens = 8192

// Client drives Claude generation rounds.
type Client struct {
	client    sdk.Client
	model     sdk.Model
	system    string
	maxTokens int64
	tools     []sdk.ToolUnionParam
}

var _ backend.Client = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithSystemPrompt sets the system prompt for every round.
func WithSystemPrompt(text string) Option {
	return func(c *Client) { c.system = text }
}

// WithMaxTokens caps the response length per round.
func WithMaxTokens(n int64) Option {
	return func(c *Client) { c.maxTokens = n }
}

// WithTools exposes tools to the model.
func WithTools(tools []sdk.ToolUnionParam) Option {
	return func(c *Client) { c.tools = tools }
}

// NewClient creates a Claude-backed client for the given model.
func NewClient(apiKey, model string, opts ...Option) *Client {
	c := &Client{
		client:    sdk.NewClient(option.WithAPIKey(apiKey)),
		model:     sdk.Model(model),
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Model implements backend.Client.
func (c *Client) Model() string { return string(c.model) }

// StartTurn implements backend.Client. One Messages.New call per
// round; the response blocks replay as an event stream.
func (c *Client) StartTurn(ctx context.Context, input []backend.Part) (backend.Stream, error) {
	params := sdk.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []sdk.MessageParam{{
			Role:    sdk.MessageParamRoleUser,
			Content: convertParts(input),
		}},
	}
	if c.system != "" {
		params.System = []sdk.TextBlockParam{{Text: c.system, Type: "text"}}
	}
	if len(c.tools) > 0 {
		params.Tools = c.tools
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, tandemerrs.New(
			tandemerrs.CategoryBackend,
			tandemerrs.ErrCodeStreamFailed,
			fmt.Sprintf("Claude API call failed: %v", err),
			err,
		)
	}
	if resp == nil || len(resp.Content) == 0 {
		return nil, tandemerrs.New(
			tandemerrs.CategoryBackend,
			tandemerrs.ErrCodeStreamFailed,
			"empty response from Claude API",
			nil,
		)
	}

	events, err := eventsFromResponse(resp)
	if err != nil {
		return nil, err
	}

	return &replayStream{events: events}, nil
}

func convertParts(input []backend.Part) []sdk.ContentBlockParamUnion {
	var blocks []sdk.ContentBlockParamUnion
	for _, p := range input {
		switch v := p.(type) {
		case backend.TextPart:
			blocks = append(blocks, sdk.NewTextBlock(v.Text))
		case backend.FunctionResponsePart:
			blocks = append(blocks, sdk.ContentBlockParamUnion{
				OfToolResult: &sdk.ToolResultBlockParam{
					ToolUseID: v.CallID,
					Content: []sdk.ToolResultBlockParamContentUnion{{
						OfText: &sdk.TextBlockParam{Text: backend.PartText(v)},
					}},
				},
			})
		}
	}

	return blocks
}

func eventsFromResponse(resp *sdk.Message) ([]backend.Event, error) {
	var events []backend.Event

	for i := range resp.Content {
		block := &resp.Content[i]
		switch block.Type {
		case "text":
			text := block.AsText()
			if text.Text != "" {
				events = append(events, backend.TextDelta{Text: text.Text})
			}
		case "thinking":
			thinking := block.AsThinking()
			if thinking.Thinking != "" {
				events = append(events, backend.ThoughtDelta{Description: thinking.Thinking})
			}
		case "tool_use":
			toolUse := block.AsToolUse()
			var args map[string]any
			if err := json.Unmarshal(toolUse.Input, &args); err != nil {
				return nil, tandemerrs.New(
					tandemerrs.CategoryBackend,
					tandemerrs.ErrCodeStreamFailed,
					fmt.Sprintf("failed to parse tool input for %s", toolUse.Name),
					err,
				)
			}
			events = append(events, backend.ToolCall{
				CallID: toolUse.ID,
				Name:   toolUse.Name,
				Args:   args,
			})
		}
	}

	events = append(events, backend.Finished{
		Usage: &messages.TokenMetadata{
			PromptTokenCount:        int(resp.Usage.InputTokens),
			CandidatesTokenCount:    int(resp.Usage.OutputTokens),
			CachedContentTokenCount: int(resp.Usage.CacheReadInputTokens),
			TotalTokenCount:         int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	})

	return events, nil
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
