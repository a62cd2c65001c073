// Package apperr defines the error taxonomy used across the collaboration
// core: a small set of sentinel categories that call sites wrap with context
// via fmt.Errorf("%w", ...), so callers can recover the category with
// errors.Is while still getting a normal Go error message.
package apperr

import "errors"

// Each category is a distinct sentinel so errors.Is can classify a wrapped
// error without string matching.
var (
	// Auth covers missing/invalid/expired/revoked tokens and role mismatch.
	Auth = errors.New("auth")
	// NotFound covers an unknown session id.
	NotFound = errors.New("not found")
	// Quota covers rate limiting.
	Quota = errors.New("quota")
	// Protocol covers malformed frames, messages before Join, and updates
	// from a viewer-role connection.
	Protocol = errors.New("protocol")
	// Broadcast covers a subscriber falling behind the broadcast channel.
	Broadcast = errors.New("broadcast")
	// Persistence covers I/O failure reading or writing the session store.
	Persistence = errors.New("persistence")
	// Apply covers an operation the applier cannot carry out (an unknown op,
	// or a FullSync with missing or invalid data); the connection handler
	// drops it as a no-op rather than aborting the connection. An id that
	// resolves to no live element is not an error at all.
	Apply = errors.New("apply")
	// Transport covers a sink write failure, which aborts the connection.
	Transport = errors.New("transport")
)
