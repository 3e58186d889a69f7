package schedlib

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the fetch failure taxonomy. Transport-level
// failures are absorbed inside the fetcher's fallback chain; only the
// terminal outcome surfaces to callers.
var (
	// ErrNoConnectivity means the connectivity probe reported offline
	// before any transport attempt was made.
	ErrNoConnectivity = errors.New("no network connectivity")

	// ErrTransportTimeout means a transport attempt exceeded its deadline.
	ErrTransportTimeout = errors.New("transport timed out")

	// ErrTransportError means a transport returned a non-2xx status.
	ErrTransportError = errors.New("transport returned an error status")

	// ErrUnexpectedFormat means the payload is structurally HTML where
	// structured data was expected (typically a captive portal or an
	// origin error page).
	ErrUnexpectedFormat = errors.New("unexpected payload format")

	// ErrMalformedPayload means the payload failed structural parsing.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrResourceUnavailable means every transport failed and no cached
	// value exists at all, not even an expired one.
	ErrResourceUnavailable = errors.New("resource unavailable")
)

// FetchError is a structured error produced by the resilient fetcher.
// Use errors.Is with the sentinel kinds above, or errors.As to extract
// the resource key and underlying cause.
type FetchError struct {
	// Kind is one of the sentinel errors above.
	Kind error
	// Key is the logical resource key being fetched.
	Key string
	// Stage identifies where the failure occurred (e.g., "probe",
	// "primary", "relay", "decode").
	Stage string
	// Cause is the underlying error, if any.
	Cause error
	// HasStale reports whether an expired cache entry exists for the
	// resource, so the consumer can offer a "view cached data"
	// affordance alongside the retry one.
	HasStale bool
}

// Error implements the error interface.
// Format: "fetch key (stage): kind: cause"
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s (%s): %v", e.Key, e.Stage, e.Kind)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error's kind, so that
// errors.Is(err, ErrResourceUnavailable) works on wrapped FetchErrors.
func (e *FetchError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

func newFetchError(kind error, key, stage string, cause error) *FetchError {
	return &FetchError{Kind: kind, Key: key, Stage: stage, Cause: cause}
}

// AttemptError records one absorbed failure inside the fallback chain.
// The fetcher collects these on the FetchResult so diagnostics can see
// every absorbed error without the chain ever throwing past its boundary.
type AttemptError struct {
	Stage string
	Err   error
}
