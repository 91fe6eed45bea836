package acp

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Client is the typed ACP surface over one agent subprocess. It owns
// the transport and the correlator and runs a single routing loop over
// the child's stdout: correlated responses resolve their waiters, and
// session/update notifications fan out on Updates.
type Client struct {
	transport  *Transport
	correlator *Correlator
	updates    chan SessionUpdate
	logger     *slog.Logger
	done       chan struct{}
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the client's logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithCorrelator replaces the default correlator (testing seam for
// short timeouts).
func WithCorrelator(corr *Correlator) ClientOption {
	return func(c *Client) { c.correlator = corr }
}

// NewClient wraps a spawned transport and starts the routing loop.
// The caller owns ctx; cancelling it stops the loop and the child.
func NewClient(ctx context.Context, transport *Transport, opts ...ClientOption) *Client {
	c := &Client{
		transport: transport,
		updates:   make(chan SessionUpdate, 64),
		logger:    slog.Default(),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.correlator == nil {
		c.correlator = NewCorrelator(transport)
	}

	go c.route(ctx)

	return c
}

// Updates yields session/update notifications in arrival order. The
// channel closes when the child's stdout ends.
func (c *Client) Updates() <-chan SessionUpdate {
	return c.updates
}

// Done closes when the routing loop has drained the child's stdout.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) route(ctx context.Context) {
	defer close(c.done)
	defer close(c.updates)

	msgCh, errCh := c.transport.ReadMessages(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if ok && err != nil {
				c.logger.Error("agent stream error", "error", err)
			}
		case raw, ok := <-msgCh:
			if !ok {
				return
			}
			c.dispatch(ctx, raw)
		}
	}
}

func (c *Client) dispatch(ctx context.Context, raw map[string]any) {
	if c.correlator.HandleMessage(raw) {
		return
	}

	method, _ := raw["method"].(string)
	if method != MethodSessionUpdate {
		c.logger.Debug("unhandled agent message", "method", method)

		return
	}

	params, err := json.Marshal(raw["params"])
	if err != nil {
		c.logger.Error("marshal session update", "error", err)

		return
	}
	var update SessionUpdate
	if err := json.Unmarshal(params, &update); err != nil {
		c.logger.Error("decode session update", "error", err)

		return
	}

	select {
	case c.updates <- update:
	case <-ctx.Done():
	}
}

// Initialize performs the protocol handshake.
func (c *Client) Initialize(ctx context.Context, params InitializeParams) (*InitializeResult, error) {
	var result InitializeResult
	if err := c.call(ctx, MethodInitialize, params, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// Authenticate runs one of the agent's advertised auth methods.
func (c *Client) Authenticate(ctx context.Context, params AuthenticateParams) error {
	return c.call(ctx, MethodAuthenticate, params, nil)
}

// NewSession creates a fresh session.
func (c *Client) NewSession(ctx context.Context, params NewSessionParams) (*NewSessionResult, error) {
	var result NewSessionResult
	if err := c.call(ctx, MethodSessionNew, params, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// LoadSession resumes a saved session.
func (c *Client) LoadSession(ctx context.Context, params LoadSessionParams) (*NewSessionResult, error) {
	var result NewSessionResult
	if err := c.call(ctx, MethodSessionLoad, params, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// ListSessions enumerates resumable sessions.
func (c *Client) ListSessions(ctx context.Context) (*ListSessionsResult, error) {
	var result ListSessionsResult
	if err := c.call(ctx, MethodSessionList, struct{}{}, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// Prompt sends one prompt and blocks until the turn completes.
func (c *Client) Prompt(ctx context.Context, params PromptParams) (*PromptResult, error) {
	var result PromptResult
	if err := c.call(ctx, MethodPrompt, params, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// Cancel interrupts the session's running turn. Fire-and-forget: the
// agent acknowledges by ending the prompt with a cancelled stop
// reason.
func (c *Client) Cancel(ctx context.Context, sessionID string) error {
	return c.correlator.Notify(ctx, MethodCancel, CancelParams{SessionID: sessionID})
}

// SetMode switches the agent's mode.
func (c *Client) SetMode(ctx context.Context, params SetModeParams) error {
	return c.call(ctx, MethodSetMode, params, nil)
}

// SaveSession persists the session agent-side.
func (c *Client) SaveSession(ctx context.Context, sessionID string) error {
	return c.call(ctx, MethodSessionSave, SaveSessionParams{SessionID: sessionID}, nil)
}

// Close terminates the child process.
func (c *Client) Close() error {
	return c.transport.Close()
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	raw, err := c.correlator.SendRequest(ctx, method, params)
	if err != nil {
		return err
	}
	if result == nil || len(raw) == 0 {
		return nil
	}

	return json.Unmarshal(raw, result)
}
