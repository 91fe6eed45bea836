// Package streamjson implements the line-delimited JSON codec used on
// every wire in the client: the CLI's own stdin protocol and the ACP
// subprocess pipe. Each non-blank line must parse to a JSON object
// with a string "type" field; anything else fails the stream.
package streamjson

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/tandem-dev/tandem/pkg/tandemerrs"
)

const defaultMaxLineSize = 1024 * 1024 // 1MB

// ParseError reports a line that violated the codec contract. It
// carries the offending raw line so callers can surface it.
type ParseError struct {
	// Line is the raw offending line, trimmed.
	Line string

	// Reason describes the violation.
	Reason string

	// Cause is the underlying JSON error, if any.
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Cause != nil {
		return "streamjson: " + e.Reason + ": " + e.Cause.Error()
	}

	return "streamjson: " + e.Reason
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error { return e.Cause }

// Decoder reads validated envelopes from a character stream. It is
// single-pass: after any parse failure the stream is dead and every
// subsequent Read returns the same error. This fail-fast contract
// keeps corrupted input from silently desynchronizing a session.
type Decoder struct {
	scanner *bufio.Scanner
	err     error
	done    bool
}

// Option configures a Decoder.
type Option func(*decoderConfig)

type decoderConfig struct {
	maxLineSize int
}

// WithMaxLineSize raises the per-line buffer limit.
func WithMaxLineSize(n int) Option {
	return func(c *decoderConfig) { c.maxLineSize = n }
}

// NewDecoder creates a Decoder over r. A nil reader means the
// process's standard input.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	if r == nil {
		r = os.Stdin
	}

	cfg := decoderConfig{maxLineSize: defaultMaxLineSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), cfg.maxLineSize)

	return &Decoder{scanner: scanner}
}

// Read returns the next validated envelope. Blank and
// whitespace-only lines are skipped. A clean end of stream returns
// io.EOF. Any violation returns a *ParseError wrapped in the
// protocol error taxonomy, and the same error on every later call.
func (d *Decoder) Read() (map[string]any, error) {
	if d.err != nil {
		return nil, d.err
	}
	if d.done {
		return nil, io.EOF
	}

	for d.scanner.Scan() {
		line := strings.TrimSpace(d.scanner.Text())
		if line == "" {
			continue
		}

		msg, err := decodeLine(line)
		if err != nil {
			d.err = err

			return nil, err
		}

		return msg, nil
	}

	if err := d.scanner.Err(); err != nil {
		d.err = err

		return nil, err
	}

	d.done = true

	return nil, io.EOF
}

// Stream drains the decoder into a channel pair until EOF, a parse
// failure, or context cancellation. The channels close when the
// stream ends.
func (d *Decoder) Stream(ctx context.Context) (<-chan map[string]any, <-chan error) {
	msgCh := make(chan map[string]any, 10)
	errCh := make(chan error, 1)

	go func() {
		defer close(msgCh)
		defer close(errCh)

		for {
			msg, err := d.Read()
			if err != nil {
				if err != io.EOF {
					errCh <- err
				}

				return
			}

			select {
			case msgCh <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	return msgCh, errCh
}

func decodeLine(line string) (map[string]any, error) {
	var value any
	if err := json.Unmarshal([]byte(line), &value); err != nil {
		return nil, tandemerrs.NewProtocolError(
			tandemerrs.ErrCodeMalformedJSON,
			"failed to parse line as JSON",
			&ParseError{Line: line, Reason: "invalid JSON", Cause: err},
		).WithLine(line)
	}

	obj, ok := value.(map[string]any)
	if !ok || obj == nil {
		// Arrays fail the type-field check below rather than the
		// object-shape check, so they report a missing type field.
		if _, isArray := value.([]any); !isArray {
			return nil, tandemerrs.NewProtocolError(
				tandemerrs.ErrCodeNotAnObject,
				"parsed value is not an object",
				&ParseError{Line: line, Reason: "parsed value is not an object"},
			).WithLine(line)
		}
	}

	if _, ok := obj["type"].(string); !ok {
		return nil, tandemerrs.NewProtocolError(
			tandemerrs.ErrCodeMissingType,
			"missing required type field",
			&ParseError{Line: line, Reason: "missing required type field"},
		).WithLine(line)
	}

	return obj, nil
}
