package errors

import "errors"

// This package defines a centralized set of sentinel errors for the
// application. Services return these (wrapped with fmt.Errorf and %w) so the
// API layer can map them to HTTP responses with errors.Is, without coupling
// business logic to status codes.

var (
	// ErrNotFound signifies that a requested resource could not be located.
	// Mapped to 404 Not Found.
	ErrNotFound = errors.New("resource not found")

	// ErrValidation signifies that input data provided by a client failed
	// validation. Rejected before a generation task is ever spawned.
	// Mapped to 400 Bad Request.
	ErrValidation = errors.New("validation failed")

	// ErrProviderTimeout signifies the AI provider did not respond within the
	// configured deadline, including the inter-chunk read timeout during
	// streaming. Retryable.
	ErrProviderTimeout = errors.New("provider timeout")

	// ErrProviderHTTP signifies a non-2xx status or an unreadable body from
	// the AI provider. Retryable for server-side (5xx) statuses only.
	ErrProviderHTTP = errors.New("provider request failed")

	// ErrResponseExtraction signifies a 2xx provider response whose body did
	// not match any known shape. Not retryable: the provider is reachable but
	// speaking an unrecognized dialect.
	ErrResponseExtraction = errors.New("could not extract content from provider response")

	// ErrCancelled signifies a user-initiated stop. It is a normal terminal
	// outcome, never surfaced to the client as an error.
	ErrCancelled = errors.New("generation cancelled")

	// ErrStoreUnavailable signifies the stop-request store could not be
	// reached. Reads fail open (treated as "not stopped") so generations
	// never stall on the store; the condition is logged.
	ErrStoreUnavailable = errors.New("stop-request store unavailable")

	// ErrInternal signifies an unexpected server-side error. Mapped to 500
	// without leaking implementation details.
	ErrInternal = errors.New("internal server error")
)
