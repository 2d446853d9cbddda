package completion

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential means no API key is configured; no request was sent.
	ErrMissingCredential = errors.New("completion API key is missing")

	// ErrUpstreamStatus matches any *UpstreamStatusError.
	ErrUpstreamStatus = errors.New("completion upstream returned a non-success status")

	// ErrTransportFailure covers dial, TLS, read and decode failures.
	ErrTransportFailure = errors.New("completion request failed")
)

// UpstreamStatusError carries the HTTP status of a rejected completion call.
type UpstreamStatusError struct {
	Code int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("completion upstream returned status %d", e.Code)
}

// Is lets errors.Is(err, ErrUpstreamStatus) match.
func (e *UpstreamStatusError) Is(target error) bool {
	return target == ErrUpstreamStatus
}
