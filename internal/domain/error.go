package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrValidation      = errors.New("validation failed")
	ErrAuth            = errors.New("credential rejected")
	ErrNetwork         = errors.New("network failure")
	ErrTransientServer = errors.New("remote service busy, retry later")
	ErrUnknownJobID    = errors.New("unknown job id")
	ErrPersistence     = errors.New("persistence failure")
	ErrBatchInProgress = errors.New("a batch is already being generated")

	ErrCredentialMissing = fmt.Errorf("%w: credential not configured", ErrAuth)
)

// APIError is a structured error reported by the remote job API.
// Kind is one of the sentinels above so callers can match with errors.Is.
type APIError struct {
	Kind    error
	Status  int    // HTTP status; 0 when the error was carried in a 2xx body
	Code    string // remote errorCode / code
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}
	switch {
	case e.Code != "" && e.Status != 0:
		return fmt.Sprintf("api error (http %d, code %s): %s", e.Status, e.Code, msg)
	case e.Code != "":
		return fmt.Sprintf("api error (code %s): %s", e.Code, msg)
	case e.Status != 0:
		return fmt.Sprintf("api error (http %d): %s", e.Status, msg)
	}
	return "api error: " + msg
}

func (e *APIError) Unwrap() error { return e.Kind }

// Validationf wraps ErrValidation with a formatted detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// IsRetryable reports whether a failed remote call may succeed if repeated.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrTransientServer)
}
