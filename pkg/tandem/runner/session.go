package runner

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/tandem-dev/tandem/pkg/tandem/emit"
	"github.com/tandem-dev/tandem/pkg/tandem/messages"
)

// Session adapts a Runner to the stream-json stdin protocol: each
// incoming user envelope runs one non-interactive turn, and an
// interrupt control request cancels the turn in flight. It implements
// both InputHandler and ControlResponder for an InputRouter.
//
// Turns run on their own goroutine so the router keeps reading stdin
// (interrupts must be deliverable mid-turn); consecutive user messages
// still run strictly in order.
type Session struct {
	runner *Runner
	writer emit.Writer
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	exit   int
}

var _ InputHandler = (*Session)(nil)
var _ ControlResponder = (*Session)(nil)

// NewSession creates a session over the given runner. Control
// responses go out through w alongside the turn envelopes.
func NewSession(r *Runner, w emit.Writer, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		runner: r,
		writer: w,
		logger: logger,
		exit:   ExitOK,
	}
}

// HandleUserMessage implements InputHandler: the envelope's text
// becomes the next turn's prompt. Waits for the previous turn first so
// turns never interleave on the shared composer.
func (s *Session) HandleUserMessage(ctx context.Context, env *messages.UserEnvelope) error {
	s.wg.Wait()

	prompt := userText(env)
	turnCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		code := s.runner.RunNonInteractive(turnCtx, prompt)

		s.mu.Lock()
		s.cancel = nil
		if code != ExitOK {
			s.exit = code
		}
		s.mu.Unlock()
	}()

	return nil
}

// HandleInterrupt implements InputHandler: the in-flight turn's
// context is cancelled. Fails when no turn is running.
func (s *Session) HandleInterrupt(_ context.Context) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil, errors.New("no turn in flight to interrupt")
	}
	s.cancel()

	return map[string]any{"interrupted": true}, nil
}

// HandleControlCancel implements InputHandler. Interrupt requests are
// answered synchronously, so a late cancellation has nothing left to
// withdraw.
func (s *Session) HandleControlCancel(_ context.Context, requestID string) {
	s.logger.Debug("control request already settled", "request_id", requestID)
}

// SendControlResponse implements ControlResponder.
func (s *Session) SendControlResponse(env *messages.ControlResponseEnvelope) error {
	return s.writer.WriteEnvelope(env)
}

// Wait blocks until the in-flight turn (if any) finishes and returns
// the session's exit code: the last failing turn's code, ExitOK when
// every turn succeeded.
func (s *Session) Wait() int {
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.exit
}

// userText folds the envelope's text blocks into one prompt string.
func userText(env *messages.UserEnvelope) string {
	var sb strings.Builder
	for _, block := range env.Message.Content {
		if tb, ok := block.(*messages.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}

	return sb.String()
}
