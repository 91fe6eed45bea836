package emit

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/tandem-dev/tandem/pkg/tandem/messages"
)

// StreamWriter serializes each envelope as its own line the moment it
// becomes available.
type StreamWriter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewStreamWriter creates a line-mode writer.
func NewStreamWriter(out io.Writer) *StreamWriter {
	return &StreamWriter{out: out}
}

// WriteEnvelope implements Writer.
func (w *StreamWriter) WriteEnvelope(msg messages.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	_, err = w.out.Write(data)

	return err
}

// Flush implements Writer. Lines are written eagerly, so there is
// nothing to do.
func (*StreamWriter) Flush() error { return nil }
