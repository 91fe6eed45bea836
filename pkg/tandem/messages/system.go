package messages

// SystemEnvelope carries auxiliary signaling outside the
// conversation: init banners, mode changes, diagnostics.
type SystemEnvelope struct {
	// Type is always "system".
	Type string `json:"type"`

	// Subtype identifies the signal ("init", etc.).
	Subtype string `json:"subtype"`

	// SessionID identifies the conversation session.
	SessionID string `json:"session_id,omitempty"`

	// Data is an opaque payload interpreted per subtype.
	Data map[string]any `json:"data,omitempty"`
}

func (*SystemEnvelope) message() {}
