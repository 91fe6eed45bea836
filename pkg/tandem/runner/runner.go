// Package runner drives non-interactive turns: it sends user input to
// the backend, feeds the event stream through the message composer and
// the output adapter, executes requested tool calls, and loops until
// the backend finishes or the session turn limit is hit.
package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/tandem-dev/tandem/pkg/tandem/backend"
	"github.com/tandem-dev/tandem/pkg/tandem/compose"
	"github.com/tandem-dev/tandem/pkg/tandem/emit"
	"github.com/tandem-dev/tandem/pkg/tandem/messages"
	"github.com/tandem-dev/tandem/pkg/tandemerrs"
)

// Process exit codes.
const (
	ExitOK = 0
	// ExitError is the generic failure exit.
	ExitError = 1
	// ExitMaxTurns signals session turn exhaustion. The value is an
	// external convention existing scripts depend on.
	ExitMaxTurns = 53
)

// Runner orchestrates one session's turns.
type Runner struct {
	backend   backend.Client
	tools     backend.ToolRunner
	refresher backend.TokenRefresher
	composer  *compose.Composer
	adapter   *emit.Adapter
	logger    *slog.Logger
	maxTurns  int
	initData  map[string]any

	usage    messages.Usage
	numTurns int
	apiTime  time.Duration
}

// Config assembles a Runner.
type Config struct {
	Backend   backend.Client
	Tools     backend.ToolRunner
	Refresher backend.TokenRefresher
	Composer  *compose.Composer
	Adapter   *emit.Adapter
	Logger    *slog.Logger
	// MaxTurns bounds backend rounds per session; zero is unlimited.
	MaxTurns int

	// InitData adds fields to the init system envelope's data payload
	// (approval mode, auth type, tool lists).
	InitData map[string]any
}

// New creates a Runner.
func New(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		backend:   cfg.Backend,
		tools:     cfg.Tools,
		refresher: cfg.Refresher,
		composer:  cfg.Composer,
		adapter:   cfg.Adapter,
		logger:    logger,
		maxTurns:  cfg.MaxTurns,
		initData:  cfg.InitData,
	}
}

// RunNonInteractive executes one prompt to completion and returns the
// process exit code. The turn loop runs until the backend stops
// requesting tools, the turn limit trips, or an error ends the
// session. Every path emits a terminal result envelope before
// returning.
func (r *Runner) RunNonInteractive(ctx context.Context, prompt string) int {
	start := time.Now()

	initData := map[string]any{"model": r.backend.Model()}
	for k, v := range r.initData {
		initData[k] = v
	}
	if err := r.adapter.EmitSystemMessage("init", initData); err != nil {
		r.logger.Error("emit init", "error", err)

		return ExitError
	}

	owner := messages.MainAgent()
	input := []backend.Part{backend.TextPart{Text: prompt}}

	if err := r.adapter.EmitUserMessage(input, owner); err != nil {
		return r.fail(start, err)
	}

	for {
		if r.maxTurns > 0 && r.numTurns >= r.maxTurns {
			r.logger.Warn("session turn limit reached", "turns", r.numTurns)
			r.emitResult(emit.ResultOptions{
				IsError:    true,
				Subtype:    messages.ResultSubtypeErrorMaxTurns,
				ErrType:    "max_turns",
				ErrMessage: "maximum session turns exceeded",
			}, start, nil)

			return ExitMaxTurns
		}

		last, calls, err := r.runRound(ctx, owner, input)
		if err != nil {
			return r.fail(start, err)
		}
		r.numTurns++

		if len(calls) == 0 {
			r.emitResult(emit.ResultOptions{}, start, last)
			r.composer.Reset()

			return ExitOK
		}

		input, err = r.executeTools(ctx, owner, calls)
		if err != nil {
			return r.fail(start, err)
		}
	}
}

// runRound runs one backend generation round: start the turn, drain
// its event stream into the composer, finalize the main message, and
// return it with any requested tool calls.
func (r *Runner) runRound(
	ctx context.Context,
	owner messages.Owner,
	input []backend.Part,
) (*messages.AssistantEnvelope, []backend.ToolCall, error) {
	apiStart := time.Now()
	stream, err := r.startTurn(ctx, input)
	if err != nil {
		return nil, nil, err
	}

	var calls []backend.ToolCall

	for {
		ev, err := stream.Recv(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}

		switch e := ev.(type) {
		case backend.TextDelta:
			if _, err := r.composer.AppendText(owner, e.Text); err != nil {
				return nil, nil, err
			}
		case backend.ThoughtDelta:
			if _, err := r.composer.AppendThinking(owner, e.Subject, e.Description); err != nil {
				return nil, nil, err
			}
		case backend.ToolCall:
			if _, err := r.composer.AppendToolUse(owner, e.CallID, e.Name, e.Args); err != nil {
				return nil, nil, err
			}
			calls = append(calls, e)
		case backend.Finished:
			r.composer.MergeUsage(owner, e.Usage)
			r.usage.Merge(messages.NewUsage(e.Usage))
		}
	}
	r.apiTime += time.Since(apiStart)

	if !r.composer.State(owner).Started() {
		// Round produced no content at all (tool-only rounds still
		// open a message via appendToolUse).
		return nil, nil, nil
	}

	last, err := r.composer.Finalize(owner)
	if err != nil {
		return nil, nil, err
	}
	r.composer.StartMessage(owner)

	return last, calls, nil
}

// startTurn starts a backend round, retrying once after a token
// refresh when the failure is authentication-class. Non-auth errors
// propagate unmodified.
func (r *Runner) startTurn(ctx context.Context, input []backend.Part) (backend.Stream, error) {
	stream, err := r.backend.StartTurn(ctx, input)
	if err == nil {
		return stream, nil
	}
	if r.refresher == nil || !backend.IsAuthError(err) {
		return nil, err
	}

	r.logger.Info("auth failure, refreshing credentials", "error", err)
	if refreshErr := r.refresher.Refresh(ctx); refreshErr != nil {
		return nil, err
	}

	return r.backend.StartTurn(ctx, input)
}

// executeTools runs each requested call and emits its tool_result
// envelope, returning the function responses for the next round.
func (r *Runner) executeTools(
	ctx context.Context,
	owner messages.Owner,
	calls []backend.ToolCall,
) ([]backend.Part, error) {
	var next []backend.Part
	for _, call := range calls {
		r.logger.Debug("executing tool", "tool", call.Name, "call_id", call.CallID)
		res := r.tools.Run(ctx, call)
		if err := r.adapter.EmitToolResult(call, res, owner); err != nil {
			return nil, err
		}

		if len(res.Parts) > 0 {
			next = append(next, res.Parts...)

			continue
		}

		output := res.ResultDisplay
		if res.Err != nil && output == "" {
			output = res.Err.Error()
		}
		next = append(next, backend.FunctionResponsePart{
			CallID:   call.CallID,
			Name:     call.Name,
			Response: map[string]any{"output": output, "is_error": res.Err != nil},
		})
	}

	return next, nil
}

func (r *Runner) fail(start time.Time, err error) int {
	r.logger.Error("session failed", "error", err)

	opts := emit.ResultOptions{
		IsError:    true,
		ErrMessage: err.Error(),
	}
	var te tandemerrs.Error
	if errors.As(err, &te) {
		opts.ErrType = string(te.Category())
		opts.ErrCode = string(te.Code())
	}
	r.emitResult(opts, start, nil)

	return ExitError
}

func (r *Runner) emitResult(opts emit.ResultOptions, start time.Time, last *messages.AssistantEnvelope) {
	opts.DurationMs = time.Since(start).Milliseconds()
	opts.DurationAPIMs = r.apiTime.Milliseconds()
	opts.NumTurns = r.numTurns
	opts.Usage = r.usage

	env := r.adapter.BuildResultMessage(opts, last)
	if err := r.adapter.EmitResult(env); err != nil {
		r.logger.Error("emit result", "error", err)
	}
}
