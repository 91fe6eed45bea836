package runner_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandem-dev/tandem/pkg/tandem/backend"
	"github.com/tandem-dev/tandem/pkg/tandem/compose"
	"github.com/tandem-dev/tandem/pkg/tandem/emit"
	"github.com/tandem-dev/tandem/pkg/tandem/messages"
	"github.com/tandem-dev/tandem/pkg/tandem/runner"
	"github.com/tandem-dev/tandem/pkg/tandemerrs"
)

type fakeStream struct {
	events []backend.Event
	next   int
}

func (s *fakeStream) Recv(_ context.Context) (backend.Event, error) {
	if s.next >= len(s.events) {
		return nil, io.EOF
	}
	ev := s.events[s.next]
	s.next++

	return ev, nil
}

// fakeBackend replays one scripted round per StartTurn call. A nil
// round entry produces an error instead of a stream.
type fakeBackend struct {
	rounds [][]backend.Event
	errs   []error
	calls  int
	inputs [][]backend.Part
}

func (b *fakeBackend) StartTurn(_ context.Context, input []backend.Part) (backend.Stream, error) {
	idx := b.calls
	b.calls++
	b.inputs = append(b.inputs, input)

	if idx < len(b.errs) && b.errs[idx] != nil {
		return nil, b.errs[idx]
	}
	if idx >= len(b.rounds) {
		return &fakeStream{events: []backend.Event{backend.Finished{}}}, nil
	}

	return &fakeStream{events: b.rounds[idx]}, nil
}

func (b *fakeBackend) Model() string { return "fake-model" }

type fakeTools struct {
	calls   []backend.ToolCall
	results map[string]backend.ToolResult
}

func (t *fakeTools) Run(_ context.Context, call backend.ToolCall) backend.ToolResult {
	t.calls = append(t.calls, call)
	if res, ok := t.results[call.Name]; ok {
		return res
	}

	return backend.ToolResult{ResultDisplay: "ok"}
}

type fakeRefresher struct {
	refreshes int
	err       error
}

func (r *fakeRefresher) Refresh(_ context.Context) error {
	r.refreshes++

	return r.err
}

func newHarness(b *fakeBackend, tools backend.ToolRunner, refresher backend.TokenRefresher, maxTurns int) (*runner.Runner, *emit.ArrayWriter) {
	w := emit.NewArrayWriter(&bytes.Buffer{})
	adapter := emit.NewAdapter("s1", w)
	composer := compose.NewComposer("s1", b.Model(), adapter)

	r := runner.New(runner.Config{
		Backend:   b,
		Tools:     tools,
		Refresher: refresher,
		Composer:  composer,
		Adapter:   adapter,
		MaxTurns:  maxTurns,
	})

	return r, w
}

func envelopeTypes(w *emit.ArrayWriter) []string {
	var types []string
	for _, msg := range w.Buffered() {
		switch env := msg.(type) {
		case *messages.SystemEnvelope:
			types = append(types, "system")
		case *messages.UserEnvelope:
			types = append(types, "user")
		case *messages.AssistantEnvelope:
			types = append(types, "assistant")
		case *messages.ResultEnvelope:
			types = append(types, "result")
			_ = env
		}
	}

	return types
}

func lastResult(t *testing.T, w *emit.ArrayWriter) *messages.ResultEnvelope {
	t.Helper()

	buffered := w.Buffered()
	require.NotEmpty(t, buffered)
	env, ok := buffered[len(buffered)-1].(*messages.ResultEnvelope)
	require.True(t, ok, "last envelope must be the result")

	return env
}

func TestRunTextOnlyTurn(t *testing.T) {
	b := &fakeBackend{rounds: [][]backend.Event{{
		backend.TextDelta{Text: "Hello"},
		backend.TextDelta{Text: " there"},
		backend.Finished{Usage: &messages.TokenMetadata{PromptTokenCount: 5, CandidatesTokenCount: 2}},
	}}}

	r, w := newHarness(b, &fakeTools{}, nil, 0)
	code := r.RunNonInteractive(context.Background(), "hi")

	assert.Equal(t, runner.ExitOK, code)
	assert.Equal(t, []string{"system", "user", "assistant", "result"}, envelopeTypes(w))

	res := lastResult(t, w)
	assert.Equal(t, messages.ResultSubtypeSuccess, res.Subtype)
	assert.Equal(t, "Hello there", res.Result)
	assert.Equal(t, 1, res.NumTurns)
	assert.Equal(t, 5, res.Usage.InputTokens)
	assert.Equal(t, 2, res.Usage.OutputTokens)
}

func TestRunInitDataInBanner(t *testing.T) {
	b := &fakeBackend{rounds: [][]backend.Event{{
		backend.TextDelta{Text: "ok"},
		backend.Finished{},
	}}}

	w := emit.NewArrayWriter(&bytes.Buffer{})
	adapter := emit.NewAdapter("s1", w)
	r := runner.New(runner.Config{
		Backend:  b,
		Tools:    &fakeTools{},
		Composer: compose.NewComposer("s1", b.Model(), adapter),
		Adapter:  adapter,
		InitData: map[string]any{"approval_mode": "auto_edit"},
	})

	require.Equal(t, runner.ExitOK, r.RunNonInteractive(context.Background(), "hi"))

	sys, ok := w.Buffered()[0].(*messages.SystemEnvelope)
	require.True(t, ok)
	assert.Equal(t, "init", sys.Subtype)
	assert.Equal(t, "fake-model", sys.Data["model"])
	assert.Equal(t, "auto_edit", sys.Data["approval_mode"])
}

func TestRunToolLoop(t *testing.T) {
	b := &fakeBackend{rounds: [][]backend.Event{
		{
			backend.ToolCall{CallID: "t1", Name: "search", Args: map[string]any{"q": "go"}},
			backend.Finished{},
		},
		{
			backend.TextDelta{Text: "Found it"},
			backend.Finished{},
		},
	}}
	tools := &fakeTools{results: map[string]backend.ToolResult{
		"search": {ResultDisplay: "3 hits"},
	}}

	r, w := newHarness(b, tools, nil, 0)
	code := r.RunNonInteractive(context.Background(), "find go")

	assert.Equal(t, runner.ExitOK, code)
	require.Len(t, tools.calls, 1)
	assert.Equal(t, "t1", tools.calls[0].CallID)

	// system, user, assistant(tool_use), user(tool_result),
	// assistant(text), result
	assert.Equal(t, []string{"system", "user", "assistant", "user", "assistant", "result"}, envelopeTypes(w))

	// The second round's input carries the function response.
	require.Len(t, b.inputs, 2)
	require.Len(t, b.inputs[1], 1)
	fr, ok := b.inputs[1][0].(backend.FunctionResponsePart)
	require.True(t, ok)
	assert.Equal(t, "t1", fr.CallID)
	assert.Equal(t, "3 hits", fr.Response["output"])

	res := lastResult(t, w)
	assert.Equal(t, 2, res.NumTurns)
	assert.Equal(t, "Found it", res.Result)
}

func TestRunMaxTurnsExit(t *testing.T) {
	// The backend asks for a tool on every round, so the limit trips.
	round := []backend.Event{
		backend.ToolCall{CallID: "t", Name: "loop", Args: nil},
		backend.Finished{},
	}
	b := &fakeBackend{rounds: [][]backend.Event{round, round, round, round}}

	r, w := newHarness(b, &fakeTools{}, nil, 2)
	code := r.RunNonInteractive(context.Background(), "never ends")

	assert.Equal(t, runner.ExitMaxTurns, code)
	assert.Equal(t, 53, code, "max-turn exit code is a fixed external contract")

	res := lastResult(t, w)
	assert.True(t, res.IsError)
	assert.Equal(t, messages.ResultSubtypeErrorMaxTurns, res.Subtype)
	assert.Equal(t, 2, res.NumTurns)
}

func TestRunAuthRetryOnce(t *testing.T) {
	authErr := tandemerrs.New(
		tandemerrs.CategoryBackend,
		tandemerrs.ErrCodeAuthFailed,
		"token expired",
		nil,
	)
	b := &fakeBackend{
		errs: []error{authErr},
		rounds: [][]backend.Event{
			nil, // consumed by the failing first attempt
			{backend.TextDelta{Text: "after refresh"}, backend.Finished{}},
		},
	}
	refresher := &fakeRefresher{}

	r, w := newHarness(b, &fakeTools{}, refresher, 0)
	code := r.RunNonInteractive(context.Background(), "hi")

	assert.Equal(t, runner.ExitOK, code)
	assert.Equal(t, 1, refresher.refreshes, "exactly one refresh attempt")
	assert.Equal(t, 2, b.calls, "retry happens once after refresh")
	assert.Equal(t, "after refresh", lastResult(t, w).Result)
}

func TestRunNonAuthErrorPropagates(t *testing.T) {
	transportErr := tandemerrs.NewTransportError(
		tandemerrs.ErrCodeProcessTerminated, "backend gone", nil)
	b := &fakeBackend{errs: []error{transportErr}}
	refresher := &fakeRefresher{}

	r, w := newHarness(b, &fakeTools{}, refresher, 0)
	code := r.RunNonInteractive(context.Background(), "hi")

	assert.Equal(t, runner.ExitError, code)
	assert.Zero(t, refresher.refreshes, "non-auth errors never trigger a refresh")

	res := lastResult(t, w)
	assert.True(t, res.IsError)
	require.NotNil(t, res.Error)
	assert.Equal(t, "transport", res.Error.Type)
	assert.Equal(t, string(tandemerrs.ErrCodeProcessTerminated), res.Error.Code)
	assert.Contains(t, res.Error.Message, "backend gone")
}

func TestRunFailedToolResultFeedsBack(t *testing.T) {
	b := &fakeBackend{rounds: [][]backend.Event{
		{
			backend.ToolCall{CallID: "t1", Name: "broken", Args: nil},
			backend.Finished{},
		},
		{
			backend.TextDelta{Text: "recovered"},
			backend.Finished{},
		},
	}}
	tools := &fakeTools{results: map[string]backend.ToolResult{
		"broken": {Err: assert.AnError},
	}}

	r, w := newHarness(b, tools, nil, 0)
	code := r.RunNonInteractive(context.Background(), "go")

	assert.Equal(t, runner.ExitOK, code)

	// The tool_result envelope carries the error flag.
	var toolResult *messages.ToolResultBlock
	for _, msg := range w.Buffered() {
		if env, ok := msg.(*messages.UserEnvelope); ok {
			if block, ok := env.Message.Content[0].(*messages.ToolResultBlock); ok {
				toolResult = block
			}
		}
	}
	require.NotNil(t, toolResult)
	assert.True(t, toolResult.IsError)

	// The failure is reported to the model, not swallowed.
	fr := b.inputs[1][0].(backend.FunctionResponsePart)
	assert.Equal(t, true, fr.Response["is_error"])
}
