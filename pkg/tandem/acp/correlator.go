package acp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tandem-dev/tandem/pkg/tandemerrs"
)

// Request timeouts. Session setup and prompting are allowed longer
// than housekeeping calls.
const (
	defaultRequestTimeout = 60 * time.Second
	longRequestTimeout    = 120 * time.Second
)

// longRunningMethods get the extended timeout.
var longRunningMethods = map[string]bool{
	MethodInitialize: true,
	MethodPrompt:     true,
}

// Sender writes one JSON payload as a line to the agent subprocess.
// *Transport implements it.
type Sender interface {
	Write(ctx context.Context, payload any) error
}

type rpcOutcome struct {
	result json.RawMessage
	err    error
}

type pendingRequest struct {
	method string
	ch     chan rpcOutcome
	timer  *time.Timer
}

// Correlator matches JSON-RPC responses to in-flight requests by
// integer id. Responses may arrive in any order; each request carries
// its own timeout, and cancelling or timing one out never affects the
// others.
type Correlator struct {
	mu       sync.Mutex
	sender   Sender
	pending  map[int64]*pendingRequest
	nextID   int64
	timeouts map[string]time.Duration
}

// CorrelatorOption configures a Correlator.
type CorrelatorOption func(*Correlator)

// WithMethodTimeout overrides the timeout for one method. Used by
// callers that know their agent is slow, and by tests.
func WithMethodTimeout(method string, d time.Duration) CorrelatorOption {
	return func(c *Correlator) { c.timeouts[method] = d }
}

// NewCorrelator creates a correlator writing through sender.
func NewCorrelator(sender Sender, opts ...CorrelatorOption) *Correlator {
	c := &Correlator{
		sender:   sender,
		pending:  make(map[int64]*pendingRequest),
		timeouts: make(map[string]time.Duration),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Correlator) timeoutFor(method string) time.Duration {
	if d, ok := c.timeouts[method]; ok {
		return d
	}
	if longRunningMethods[method] {
		return longRequestTimeout
	}

	return defaultRequestTimeout
}

// SendRequest sends one JSON-RPC request and blocks until the
// correlated response arrives, the method's timeout fires, or ctx is
// cancelled. A response carrying an error field is surfaced as a
// remote error; a timeout is a distinct rejection so callers can tell
// "failed" from "never answered".
func (c *Correlator) SendRequest(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	entry := &pendingRequest{
		method: method,
		ch:     make(chan rpcOutcome, 1),
	}
	c.pending[id] = entry
	entry.timer = time.AfterFunc(c.timeoutFor(method), func() { c.expire(id) })
	c.mu.Unlock()

	req := rpcRequest{
		JSONRPC: jsonRPCVersion,
		ID:      &id,
		Method:  method,
		Params:  params,
	}

	if err := c.sender.Write(ctx, req); err != nil {
		c.remove(id)

		return nil, err
	}

	select {
	case <-ctx.Done():
		c.remove(id)

		return nil, ctx.Err()
	case outcome := <-entry.ch:
		return outcome.result, outcome.err
	}
}

// Notify sends a JSON-RPC notification: no id, no response expected.
func (c *Correlator) Notify(ctx context.Context, method string, params any) error {
	return c.sender.Write(ctx, rpcRequest{
		JSONRPC: jsonRPCVersion,
		Method:  method,
		Params:  params,
	})
}

// HandleMessage consumes a raw line from the transport when it is a
// correlated response. It returns false for everything else
// (notifications, requests from the agent) so the caller can route
// them.
func (c *Correlator) HandleMessage(raw map[string]any) bool {
	idVal, hasID := raw["id"]
	_, hasResult := raw["result"]
	_, hasError := raw["error"]
	if !hasID || (!hasResult && !hasError) {
		return false
	}

	id, ok := numericID(idVal)
	if !ok {
		return false
	}

	c.mu.Lock()
	entry, found := c.pending[id]
	if found {
		entry.timer.Stop()
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !found {
		// Late response after timeout; the losing side is
		// suppressed.
		return true
	}

	entry.ch <- outcomeFromResponse(entry.method, raw)

	return true
}

// PendingCount returns the number of in-flight requests (testing
// seam).
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.pending)
}

// expire fires when a request's timer lapses: the entry is removed
// and its waiter rejected with a timeout error naming the method.
func (c *Correlator) expire(id int64) {
	c.mu.Lock()
	entry, found := c.pending[id]
	if found {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !found {
		return
	}

	entry.ch <- rpcOutcome{err: tandemerrs.NewControlError(
		tandemerrs.ErrCodeRequestTimeout,
		fmt.Sprintf("Request %s timed out", entry.method),
		nil,
	).WithMethod(entry.method)}
}

func (c *Correlator) remove(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, found := c.pending[id]; found {
		entry.timer.Stop()
		delete(c.pending, id)
	}
}

func outcomeFromResponse(method string, raw map[string]any) rpcOutcome {
	if errVal, ok := raw["error"].(map[string]any); ok {
		msg, _ := errVal["message"].(string)
		code := 0
		if f, ok := errVal["code"].(float64); ok {
			code = int(f)
		}

		ce := tandemerrs.NewControlError(
			tandemerrs.ErrCodeRemoteError,
			fmt.Sprintf("agent error %d: %s", code, msg),
			nil,
		).WithMethod(method)
		ce.WithMetadata("code", code)

		return rpcOutcome{err: ce}
	}

	data, err := json.Marshal(raw["result"])
	if err != nil {
		return rpcOutcome{err: err}
	}

	return rpcOutcome{result: data}
}

func numericID(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()

		return i, err == nil
	default:
		return 0, false
	}
}
