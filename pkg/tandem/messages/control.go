package messages

// ControlRequestBody is the request payload inside a control_request
// envelope, discriminated by Subtype.
type ControlRequestBody struct {
	// Subtype identifies the request ("interrupt", etc.).
	Subtype string `json:"subtype"`

	// Extra carries subtype-specific fields.
	Extra map[string]any `json:"-"`
}

// ControlRequestEnvelope asks the receiving process to perform a
// control action outside the conversation stream.
type ControlRequestEnvelope struct {
	// Type is always "control_request".
	Type string `json:"type"`

	// RequestID correlates the eventual control_response.
	RequestID string `json:"request_id"`

	// Request is the discriminated request body.
	Request ControlRequestBody `json:"request"`
}

func (*ControlRequestEnvelope) message() {}

// ControlResponseBody is the response payload inside a
// control_response envelope.
type ControlResponseBody struct {
	// Subtype is "success" or "error".
	Subtype string `json:"subtype"`

	// RequestID echoes the correlated request.
	RequestID string `json:"request_id"`

	// Response carries the success payload.
	Response map[string]any `json:"response,omitempty"`

	// Error carries the failure message.
	Error string `json:"error,omitempty"`
}

// ControlResponseEnvelope answers a control_request.
type ControlResponseEnvelope struct {
	// Type is always "control_response".
	Type string `json:"type"`

	// Response is the response body.
	Response ControlResponseBody `json:"response"`
}

func (*ControlResponseEnvelope) message() {}

// ControlCancelEnvelope withdraws an in-flight control_request.
type ControlCancelEnvelope struct {
	// Type is always "control_cancel_request".
	Type string `json:"type"`

	// RequestID names the request being cancelled.
	RequestID string `json:"request_id"`
}

func (*ControlCancelEnvelope) message() {}
