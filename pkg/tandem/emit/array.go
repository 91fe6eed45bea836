package emit

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/tandem-dev/tandem/pkg/tandem/messages"
)

// ArrayWriter buffers every envelope and writes the whole turn as one
// JSON array followed by a single newline when flushed.
type ArrayWriter struct {
	mu  sync.Mutex
	out io.Writer
	buf []messages.Message
}

// NewArrayWriter creates a batch-mode writer.
func NewArrayWriter(out io.Writer) *ArrayWriter {
	return &ArrayWriter{out: out}
}

// WriteEnvelope implements Writer.
func (w *ArrayWriter) WriteEnvelope(msg messages.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, msg)

	return nil
}

// Flush implements Writer: the buffered envelopes are serialized once
// as a JSON array. The buffer resets afterwards so a process can run
// multiple turns.
func (w *ArrayWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	envelopes := w.buf
	if envelopes == nil {
		envelopes = []messages.Message{}
	}

	data, err := json.Marshal(envelopes)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if _, err := w.out.Write(data); err != nil {
		return err
	}
	w.buf = nil

	return nil
}

// Buffered returns the envelopes collected so far (testing seam).
func (w *ArrayWriter) Buffered() []messages.Message {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]messages.Message, len(w.buf))
	copy(out, w.buf)

	return out
}
