package types

import "fmt"

// ErrorCode represents a unified error code across the platform.
type ErrorCode string

// Resource error codes
const (
	ErrGroupNotFound              ErrorCode = "GROUP_NOT_FOUND"
	ErrMemberNotFound             ErrorCode = "MEMBER_NOT_FOUND"
	ErrStrategyNotFound           ErrorCode = "STRATEGY_NOT_FOUND"
	ErrConfigurationNotFound      ErrorCode = "CONFIGURATION_NOT_FOUND"
	ErrQualityRequirementNotFound ErrorCode = "QUALITY_REQUIREMENT_NOT_FOUND"
	ErrProposalNotFound           ErrorCode = "PROPOSAL_NOT_FOUND"
	ErrMLModelNotFound            ErrorCode = "ML_MODEL_NOT_FOUND"
	ErrDatasetNotFound            ErrorCode = "DATASET_NOT_FOUND"
	ErrSessionNotFound            ErrorCode = "SESSION_NOT_FOUND"
)

// Governance error codes
const (
	ErrMemberNotInGroup           ErrorCode = "MEMBER_NOT_IN_GROUP"
	ErrVotePriorityExists         ErrorCode = "VOTE_PRIORITY_EXISTS"
	ErrNotProposable              ErrorCode = "NOT_PROPOSABLE"
	ErrAlreadyTallied             ErrorCode = "ALREADY_TALLIED"
	ErrNoPendingProposals         ErrorCode = "NO_PENDING_PROPOSALS"
	ErrExistingQualityRequirement ErrorCode = "EXISTING_QUALITY_REQUIREMENT"
	ErrUnsupportedProposalVariant ErrorCode = "UNSUPPORTED_PROPOSAL_VARIANT"
	ErrSessionAlreadyExists       ErrorCode = "SESSION_ALREADY_EXISTS"
	ErrDatasetValidationFailed    ErrorCode = "DATASET_VALIDATION_FAILED"
	ErrDatasetNotRegistered       ErrorCode = "DATASET_NOT_REGISTERED"
)

// Transport and infrastructure error codes
const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrAuthentication     ErrorCode = "AUTHENTICATION"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrForbidden          ErrorCode = "FORBIDDEN"
	ErrRateLimited        ErrorCode = "RATE_LIMITED"
	ErrTimeout            ErrorCode = "TIMEOUT"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// NotFoundError builds a 404 error for a missing resource.
func NotFoundError(code ErrorCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...)).WithHTTPStatus(404)
}

// ConflictError builds a 409 error for a state conflict.
func ConflictError(code ErrorCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...)).WithHTTPStatus(409)
}

// ValidationError builds a 400 error for a malformed or unacceptable request.
func ValidationError(code ErrorCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...)).WithHTTPStatus(400)
}

// ForbiddenError builds a 403 error for an actor lacking rights on a resource.
func ForbiddenError(code ErrorCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...)).WithHTTPStatus(403)
}
