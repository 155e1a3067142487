package llm

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/hpungsan/qsyntax/internal/errors"
)

// TransportError is a network-level failure: no usable response arrived.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is an error response from the remote API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Overloaded reports whether the remote said it is overloaded.
func (e *APIError) Overloaded() bool {
	return strings.Contains(e.Message, "overloaded")
}

// QuotaExhausted reports whether the remote said the quota is used up.
func (e *APIError) QuotaExhausted() bool {
	return strings.Contains(e.Message, "quota")
}

// IsRetryable reports whether another attempt could succeed: transport
// failures, and API errors that mention overload or quota.
func IsRetryable(err error) bool {
	var te *TransportError
	if stderrors.As(err, &te) {
		return true
	}
	var ae *APIError
	if stderrors.As(err, &ae) {
		return ae.Overloaded() || ae.QuotaExhausted()
	}
	return false
}

// Classify maps a provider failure to a QSError category. Message checks
// run in a fixed order: overloaded, API key, quota, network.
func Classify(err error) *errors.QSError {
	if err == nil {
		return nil
	}
	if qErr, ok := errors.As(err); ok {
		return qErr
	}

	var te *TransportError
	if stderrors.As(err, &te) {
		return errors.NewTransport(te.Err)
	}

	var ae *APIError
	if !stderrors.As(err, &ae) {
		if strings.Contains(err.Error(), "network") {
			return errors.NewTransport(err)
		}
		return errors.NewInternal(err)
	}

	switch {
	case ae.Overloaded():
		return errors.NewOverloaded(ae.Message)
	case strings.Contains(ae.Message, "API key"):
		return errors.NewInvalidCredential(ae.Message)
	case ae.QuotaExhausted():
		return errors.NewQuotaExceeded(ae.Message)
	case strings.Contains(ae.Message, "network"):
		return errors.NewTransport(ae)
	default:
		return errors.NewRemote(ae.StatusCode, ae.Message)
	}
}
