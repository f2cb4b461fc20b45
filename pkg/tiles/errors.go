package tiles

import "errors"

// Core engine errors
var (
	// Configuration errors

	ErrInvalidConfiguration = errors.New("invalid map configuration")
	ErrMapExists            = errors.New("map label already registered")

	// Addressing errors

	ErrUnknownMap        = errors.New("unknown map label")
	ErrDimensionMismatch = errors.New("coordinate outside map dimensions")

	// Mutation errors

	ErrOccupiedDestination = errors.New("destination tile is occupied")

	// Lifecycle errors

	ErrClosed = errors.New("world is closed")
)

// ErrorCode represents a numeric error code for efficient error handling
type ErrorCode int

const (
	// Success

	ErrorCodeSuccess ErrorCode = 0

	// Configuration error codes (1000-1999)

	ErrorCodeInvalidConfiguration ErrorCode = 1001
	ErrorCodeMapExists            ErrorCode = 1002

	// Addressing error codes (2000-2999)

	ErrorCodeUnknownMap        ErrorCode = 2001
	ErrorCodeDimensionMismatch ErrorCode = 2002

	// Mutation error codes (3000-3999)

	ErrorCodeOccupiedDestination ErrorCode = 3001

	// Lifecycle error codes (4000-4999)

	ErrorCodeClosed ErrorCode = 4001

	// Generic error codes (9000-9999)

	ErrorCodeUnknownError ErrorCode = 9999
)

// Error represents an engine error with additional context
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new engine error
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsRetryable checks if the operation may succeed when retried after the
// caller changes its input, e.g. by picking a free destination or requesting
// an overwrite.
func (e *Error) IsRetryable() bool {
	return e.Code == ErrorCodeOccupiedDestination
}

// IsFatal checks if the error concerns map creation and cannot be recovered
// from without different configuration.
func (e *Error) IsFatal() bool {
	switch e.Code {
	case ErrorCodeInvalidConfiguration, ErrorCodeMapExists:
		return true
	default:
		return false
	}
}

// Error mapping from sentinel errors to error codes
var errorCodeMap = map[error]ErrorCode{
	ErrInvalidConfiguration: ErrorCodeInvalidConfiguration,
	ErrMapExists:            ErrorCodeMapExists,
	ErrUnknownMap:           ErrorCodeUnknownMap,
	ErrDimensionMismatch:    ErrorCodeDimensionMismatch,
	ErrOccupiedDestination:  ErrorCodeOccupiedDestination,
	ErrClosed:               ErrorCodeClosed,
}

// CodeOf resolves the ErrorCode for any error produced by this package.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrorCodeSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ErrorCodeUnknownError
}

// wrapSentinel builds a detailed error whose chain still matches the given
// sentinel via errors.Is.
func wrapSentinel(sentinel error, message string) *Error {
	return NewError(errorCodeMap[sentinel], message, sentinel)
}
