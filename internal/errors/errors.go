package errors

import "fmt"

// ErrorCode represents a Trove error code.
type ErrorCode string

const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"     // 400
	ErrNotFound           ErrorCode = "NOT_FOUND"           // 404
	ErrCorruptPayload     ErrorCode = "CORRUPT_PAYLOAD"     // 422
	ErrIOFailure          ErrorCode = "IO_FAILURE"          // 500
	ErrIndexInconsistency ErrorCode = "INDEX_INCONSISTENCY" // 500
	ErrInternal           ErrorCode = "INTERNAL"            // 500
)

// TroveError represents a structured error with code, status, and details.
type TroveError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *TroveError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *TroveError {
	return &TroveError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when an entry or its payload is missing.
func NewNotFound(id string) *TroveError {
	return &TroveError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("entry not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewCorruptPayload creates a 422 error for a payload that exists but fails
// to decompress or parse. Read paths treat this as "skip and continue".
func NewCorruptPayload(location string, cause error) *TroveError {
	msg := fmt.Sprintf("corrupt payload at %s", location)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &TroveError{
		Code:    ErrCorruptPayload,
		Status:  422,
		Message: msg,
		Details: map[string]any{"location": location},
	}
}

// NewIOFailure creates a 500 error for a write or delete that could not
// complete. Always surfaced to the caller, never silently dropped.
func NewIOFailure(op string, cause error) *TroveError {
	msg := fmt.Sprintf("%s failed", op)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &TroveError{
		Code:    ErrIOFailure,
		Status:  500,
		Message: msg,
		Details: map[string]any{"op": op},
	}
}

// NewIndexInconsistency creates a 500 error for an index row whose payload
// cannot be resolved during a scan.
func NewIndexInconsistency(id, location string) *TroveError {
	return &TroveError{
		Code:    ErrIndexInconsistency,
		Status:  500,
		Message: fmt.Sprintf("index row %s points to unresolvable payload %s", id, location),
		Details: map[string]any{"id": id, "location": location},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *TroveError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &TroveError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a TroveError with the given code.
func Is(err error, code ErrorCode) bool {
	if tErr, ok := err.(*TroveError); ok {
		return tErr.Code == code
	}
	return false
}
