package models

import "fmt"

// Validation reason codes surfaced to the client.
const (
	CodeInvalidFormat    = "INVALID_FORMAT"
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	CodeResolutionTooLow = "RESOLUTION_TOO_LOW"
	CodeCorruptImage     = "CORRUPT_IMAGE"
	CodeOutOfRange       = "OUT_OF_RANGE"
	CodeNullIsland       = "NULL_ISLAND"
)

// ValidationError is a client fault: bad input that is never retried.
type ValidationError struct {
	Code   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Code, e.Reason)
}

// NewValidationError builds a validation error with a formatted reason.
func NewValidationError(code, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// ConflictError is a client fault distinct from validation: the request
// collides with recent state, currently only duplicate submissions.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// UpstreamError is a server fault: the detector, feature extractor or the
// cache store was unreachable. The engine never retries internally.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
