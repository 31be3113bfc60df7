package interactions

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput is returned when fewer than two distinct names remain after normalization
	ErrInvalidInput = errors.New("invalid input")

	// ErrIdentifierResolution is returned when fewer than two names resolved to identifiers
	ErrIdentifierResolution = errors.New("identifier resolution failure")

	// ErrExternalService wraps transport, timeout and non-success failures of the external collaborators
	ErrExternalService = errors.New("external service error")

	// ErrCacheWrite wraps durable store failures after a successful computation
	ErrCacheWrite = errors.New("cache write error")
)

// WarningPartialResolution is the kind of the warning attached when some names were dropped
const WarningPartialResolution = "PartialResolutionWarning"

// Warning is metadata attached to a successful check
type Warning struct {
	Kind    string   `json:"kind"`
	Names   []string `json:"names"`
	Message string   `json:"message"`
}

func partialResolutionWarning(unresolved []string) Warning {
	return Warning{
		Kind:    WarningPartialResolution,
		Names:   unresolved,
		Message: fmt.Sprintf("no identifier found for: %s", strings.Join(unresolved, ", ")),
	}
}

// IsClientError reports whether err should be answered as a client-facing error
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrIdentifierResolution)
}

// IsRetryable reports whether the caller may retry the same request later
func IsRetryable(err error) bool {
	return errors.Is(err, ErrExternalService)
}

// Reason returns the human-readable part of a wrapped taxonomy error,
// the text after the sentinel prefix.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, sentinel := range []error{ErrInvalidInput, ErrIdentifierResolution, ErrExternalService, ErrCacheWrite} {
		prefix := sentinel.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}
