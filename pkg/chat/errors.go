package chat

import "errors"

// Error taxonomy shared by the service, the HTTP handlers and the client.
var (
	// ErrValidation covers empty/oversized content and malformed ids.
	// Surfaced inline, never retried automatically.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates the conversation or counterparty does not
	// exist. Rendered as an empty state, not a crash.
	ErrNotFound = errors.New("not found")

	// ErrBusy rejects a send while a prior send on the same conversation
	// is still in flight. Client-side only.
	ErrBusy = errors.New("send in flight")
)
