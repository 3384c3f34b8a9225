package archive

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrSnapshotNotFound is the provider signalling "no snapshot yet". It
	// advances the state machine to the request phase and is not a failure.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrCorruptStore means the durable store could not be parsed. Callers
	// must not discard the existing data.
	ErrCorruptStore = errors.New("corrupt archive store")
	// ErrRecordNotFound is returned for unknown record identifiers.
	ErrRecordNotFound = errors.New("archive record not found")
	// ErrInvalidURL is returned for URLs that cannot be archived.
	ErrInvalidURL = errors.New("invalid url")
	// ErrUnknownProvider is returned for provider names with no driver.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Codes used when the transport fails before a status line is received.
const (
	CodeTimeout     = http.StatusRequestTimeout
	CodeUnreachable = http.StatusBadGateway
)

// HTTPStatusError is a completed HTTP exchange with a failing status code.
type HTTPStatusError struct {
	Code int
	URL  string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.Code)
}

// ProviderError is a provider call that failed with an opaque code.
type ProviderError struct {
	Provider string
	Code     int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: failure code %d", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s: failure code %d: %v", e.Provider, e.Code, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// FailureCode extracts the code to record for err: the HTTP status when one
// was received, CodeTimeout for deadlines, CodeUnreachable otherwise.
func FailureCode(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Code != 0 {
		return pe.Code
	}
	var se *HTTPStatusError
	if errors.As(err, &se) {
		return se.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return CodeTimeout
	}
	return CodeUnreachable
}

// NewProviderError wraps err for provider with the code FailureCode assigns.
func NewProviderError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Code: FailureCode(err), Err: err}
}
