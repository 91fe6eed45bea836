package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/tandem-dev/tandem/pkg/tandem/messages"
	"github.com/tandem-dev/tandem/pkg/tandem/streamjson"
	"github.com/tandem-dev/tandem/pkg/tandemerrs"
)

// InputHandler receives routed stdin envelopes. Methods run on the
// router's goroutine; long work belongs elsewhere.
type InputHandler interface {
	// HandleUserMessage receives a user envelope from stdin.
	HandleUserMessage(ctx context.Context, env *messages.UserEnvelope) error

	// HandleInterrupt is called for a control_request with subtype
	// "interrupt". The returned map becomes the success response
	// payload.
	HandleInterrupt(ctx context.Context) (map[string]any, error)

	// HandleControlCancel withdraws a pending control request.
	HandleControlCancel(ctx context.Context, requestID string)
}

// ControlResponder sends control_response envelopes back to the peer.
type ControlResponder interface {
	SendControlResponse(env *messages.ControlResponseEnvelope) error
}

// InputRouter reads the stream-json stdin protocol and dispatches
// each envelope. A codec violation stops routing; the error names the
// offending line and no later lines are consumed past it.
type InputRouter struct {
	decoder   *streamjson.Decoder
	handler   InputHandler
	responder ControlResponder
	logger    *slog.Logger
}

// NewInputRouter creates a router over the given decoder.
func NewInputRouter(
	decoder *streamjson.Decoder,
	handler InputHandler,
	responder ControlResponder,
	logger *slog.Logger,
) *InputRouter {
	if logger == nil {
		logger = slog.Default()
	}

	return &InputRouter{
		decoder:   decoder,
		handler:   handler,
		responder: responder,
		logger:    logger,
	}
}

// Run consumes stdin until it ends, ctx is cancelled, or the codec
// fails. The codec's fail-fast contract carries through: the first
// bad line terminates routing with its parse error.
func (r *InputRouter) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, err := r.decoder.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			return err
		}

		msg, err := messages.Decode(raw)
		if err != nil {
			return err
		}

		if err := r.dispatch(ctx, msg); err != nil {
			return err
		}
	}
}

func (r *InputRouter) dispatch(ctx context.Context, msg messages.Message) error {
	switch env := msg.(type) {
	case *messages.UserEnvelope:
		return r.handler.HandleUserMessage(ctx, env)
	case *messages.ControlRequestEnvelope:
		return r.handleControlRequest(ctx, env)
	case *messages.ControlCancelEnvelope:
		r.handler.HandleControlCancel(ctx, env.RequestID)

		return nil
	default:
		return tandemerrs.NewProtocolError(
			tandemerrs.ErrCodeUnknownType,
			"unexpected envelope on input stream",
			nil,
		)
	}
}

func (r *InputRouter) handleControlRequest(ctx context.Context, env *messages.ControlRequestEnvelope) error {
	resp := messages.ControlResponseBody{
		RequestID: env.RequestID,
	}

	switch env.Request.Subtype {
	case "interrupt":
		payload, err := r.handler.HandleInterrupt(ctx)
		if err != nil {
			resp.Subtype = "error"
			resp.Error = err.Error()
		} else {
			resp.Subtype = "success"
			resp.Response = payload
		}
	default:
		r.logger.Warn("unsupported control request", "subtype", env.Request.Subtype)
		resp.Subtype = "error"
		resp.Error = "unsupported control request: " + env.Request.Subtype
	}

	return r.responder.SendControlResponse(&messages.ControlResponseEnvelope{
		Type:     messages.TypeControlResponse,
		Response: resp,
	})
}
