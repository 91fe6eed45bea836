package tandemerrs

// ProtocolError indicates malformed or invalid wire input.
type ProtocolError struct {
	*BaseError
	// Line is the raw offending line, when available.
	Line string
}

// NewProtocolError creates a protocol-category error.
func NewProtocolError(code ErrorCode, message string, cause error) *ProtocolError {
	return &ProtocolError{BaseError: New(CategoryProtocol, code, message, cause)}
}

// WithLine attaches the offending raw line.
func (e *ProtocolError) WithLine(line string) *ProtocolError {
	e.Line = line
	e.BaseError.WithMetadata("line", line)

	return e
}

// StateError indicates the message state machine was driven outside
// its contract. These are programmer errors, not runtime conditions.
type StateError struct {
	*BaseError
}

// NewStateError creates a state-category error.
func NewStateError(code ErrorCode, message string) *StateError {
	return &StateError{BaseError: New(CategoryState, code, message, nil)}
}

// TransportError indicates a transport-level write or lifecycle
// failure.
type TransportError struct {
	*BaseError
}

// NewTransportError creates a transport-category error.
func NewTransportError(code ErrorCode, message string, cause error) *TransportError {
	return &TransportError{BaseError: New(CategoryTransport, code, message, cause)}
}

// AbortError marks a failure caused by user cancellation. It is a
// distinct type so callers can tell "aborted" apart from a crash.
type AbortError struct {
	*BaseError
}

// NewAbortError creates an abort error with the given message.
func NewAbortError(message string) *AbortError {
	return &AbortError{BaseError: New(CategoryTransport, ErrCodeAborted, message, nil)}
}

// IsAbort reports whether err is (or wraps) an AbortError.
func IsAbort(err error) bool {
	return HasCode(err, ErrCodeAborted)
}

// ProcessError indicates the child process failed to spawn or exited
// abnormally.
type ProcessError struct {
	*BaseError
	// ExitCode is the process exit code, when the process exited.
	ExitCode int
	// Signal names the terminating signal, when signalled.
	Signal string
}

// NewProcessError creates a process-category error.
func NewProcessError(code ErrorCode, message string, cause error) *ProcessError {
	return &ProcessError{BaseError: New(CategoryProcess, code, message, cause)}
}

// ControlError indicates a control-request failure: either the remote
// side answered with an error, or no answer arrived in time.
type ControlError struct {
	*BaseError
	// Method is the control method that failed.
	Method string
}

// NewControlError creates a control-category error.
func NewControlError(code ErrorCode, message string, cause error) *ControlError {
	return &ControlError{BaseError: New(CategoryControl, code, message, cause)}
}

// WithMethod attaches the failing method name.
func (e *ControlError) WithMethod(method string) *ControlError {
	e.Method = method
	e.BaseError.WithMetadata("method", method)

	return e
}

// IsTimeout reports whether err is a control-request timeout.
func IsTimeout(err error) bool {
	return HasCode(err, ErrCodeRequestTimeout)
}

// ConfigError indicates invalid or unreadable settings.
type ConfigError struct {
	*BaseError
}

// NewConfigError creates a config-category error.
func NewConfigError(code ErrorCode, message string, cause error) *ConfigError {
	return &ConfigError{BaseError: New(CategoryConfig, code, message, cause)}
}
