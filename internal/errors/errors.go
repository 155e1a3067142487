package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a qsyntax error code.
type ErrorCode string

const (
	ErrInvalidRequest       ErrorCode = "INVALID_REQUEST"       // 400
	ErrInvalidCredential    ErrorCode = "INVALID_CREDENTIAL"    // 401
	ErrNotFound             ErrorCode = "NOT_FOUND"             // 404
	ErrQuotaExceeded        ErrorCode = "QUOTA_EXCEEDED"        // 429
	ErrInternal             ErrorCode = "INTERNAL"              // 500
	ErrStorageCorrupt       ErrorCode = "STORAGE_CORRUPT"       // 500, recovered by resetting history
	ErrClipboardUnsupported ErrorCode = "CLIPBOARD_UNSUPPORTED" // 501
	ErrRemote               ErrorCode = "REMOTE"                // 502
	ErrOverloaded           ErrorCode = "OVERLOADED"            // 503
	ErrTransport            ErrorCode = "TRANSPORT"             // 504
)

// QSError represents a structured error with code, status, and details.
type QSError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *QSError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *QSError {
	return &QSError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a session cannot be found.
func NewNotFound(id string) *QSError {
	return &QSError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("session not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewInvalidCredential creates a 401 error for a rejected API key.
func NewInvalidCredential(msg string) *QSError {
	return &QSError{
		Code:    ErrInvalidCredential,
		Status:  401,
		Message: msg,
	}
}

// NewQuotaExceeded creates a 429 error when the remote quota is exhausted.
func NewQuotaExceeded(msg string) *QSError {
	return &QSError{
		Code:    ErrQuotaExceeded,
		Status:  429,
		Message: msg,
	}
}

// NewOverloaded creates a 503 error when the remote model is overloaded.
func NewOverloaded(msg string) *QSError {
	return &QSError{
		Code:    ErrOverloaded,
		Status:  503,
		Message: msg,
	}
}

// NewRemote creates a 502 error for a non-retryable remote failure.
func NewRemote(status int, msg string) *QSError {
	return &QSError{
		Code:    ErrRemote,
		Status:  502,
		Message: msg,
		Details: map[string]any{"remote_status": status},
	}
}

// NewTransport creates a 504 error for a network-level failure.
func NewTransport(err error) *QSError {
	msg := "network error"
	if err != nil {
		msg = err.Error()
	}
	return &QSError{
		Code:    ErrTransport,
		Status:  504,
		Message: msg,
	}
}

// NewStorageCorrupt creates an error for persisted history that cannot be parsed.
func NewStorageCorrupt(key string, err error) *QSError {
	msg := "stored history is corrupt"
	if err != nil {
		msg = fmt.Sprintf("stored history is corrupt: %v", err)
	}
	return &QSError{
		Code:    ErrStorageCorrupt,
		Status:  500,
		Message: msg,
		Details: map[string]any{"key": key},
	}
}

// NewClipboardUnsupported creates a 501 error when no clipboard is available.
func NewClipboardUnsupported() *QSError {
	return &QSError{
		Code:    ErrClipboardUnsupported,
		Status:  501,
		Message: "clipboard unsupported",
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The cause is kept in Details for logging; the message stays generic.
func NewInternal(err error) *QSError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &QSError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is checks if an error (or anything it wraps) is a QSError with the given code.
func Is(err error, code ErrorCode) bool {
	var qErr *QSError
	if stderrors.As(err, &qErr) {
		return qErr.Code == code
	}
	return false
}

// As returns the QSError wrapped in err, if any.
func As(err error) (*QSError, bool) {
	var qErr *QSError
	ok := stderrors.As(err, &qErr)
	return qErr, ok
}
