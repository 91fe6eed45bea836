// Package tandemerrs defines the error taxonomy shared across the
// tandem client: protocol parse failures, state-machine contract
// violations, transport lifecycle errors, and control-request
// failures. Every error carries a category, a stable code, and
// optional metadata so callers can branch on errors.As without
// string matching.
package tandemerrs

// ErrorCategory groups errors by the subsystem that raised them.
type ErrorCategory string

const (
	// CategoryProtocol covers line-JSON and envelope decoding errors.
	CategoryProtocol ErrorCategory = "protocol"
	// CategoryState covers message state machine contract violations.
	CategoryState ErrorCategory = "state"
	// CategoryTransport covers subprocess transport lifecycle errors.
	CategoryTransport ErrorCategory = "transport"
	// CategoryProcess covers child-process spawn/exit errors.
	CategoryProcess ErrorCategory = "process"
	// CategoryControl covers control-request correlation errors.
	CategoryControl ErrorCategory = "control"
	// CategoryBackend covers content-generation backend errors.
	CategoryBackend ErrorCategory = "backend"
	// CategoryConfig covers settings and option validation errors.
	CategoryConfig ErrorCategory = "config"
)

// ErrorCode identifies a specific failure within a category.
type ErrorCode string

// Protocol error codes.
const (
	ErrCodeMalformedJSON ErrorCode = "malformed_json"
	ErrCodeNotAnObject   ErrorCode = "not_an_object"
	ErrCodeMissingType   ErrorCode = "missing_type_field"
	ErrCodeUnknownType   ErrorCode = "unknown_message_type"
)

// State error codes.
const (
	ErrCodeMessageNotStarted ErrorCode = "message_not_started"
	ErrCodeMixedBlockTypes   ErrorCode = "mixed_block_types"
)

// Transport error codes.
const (
	ErrCodeNotReady          ErrorCode = "transport_not_ready"
	ErrCodeAborted           ErrorCode = "aborted"
	ErrCodeStreamEnded       ErrorCode = "stream_ended"
	ErrCodeProcessTerminated ErrorCode = "process_terminated"
)

// Process error codes.
const (
	ErrCodeSpawnFailed  ErrorCode = "spawn_failed"
	ErrCodeNonZeroExit  ErrorCode = "non_zero_exit"
	ErrCodeKilledSignal ErrorCode = "killed_by_signal"
)

// Control error codes.
const (
	ErrCodeRequestTimeout ErrorCode = "request_timeout"
	ErrCodeRemoteError    ErrorCode = "remote_error"
)

// Backend error codes.
const (
	ErrCodeAuthFailed   ErrorCode = "auth_failed"
	ErrCodeStreamFailed ErrorCode = "stream_failed"
)

// Config error codes.
const (
	ErrCodeInvalidSettings ErrorCode = "invalid_settings"
)
