package enrich

import "errors"

// Sentinel errors shared across the fetch and resolve paths.
var (
	// ErrSessionClosed is returned by session operations after Close.
	ErrSessionClosed = errors.New("enrich: session closed")
	// ErrBlocked marks a fetch rejected by an anti-bot challenge.
	ErrBlocked = errors.New("enrich: blocked by anti-bot protection")
	// ErrMirrorsExhausted means every configured mirror failed or is cooling down.
	ErrMirrorsExhausted = errors.New("enrich: all mirrors exhausted")
	// ErrNoHandle means an identity string could not be reduced to a handle.
	ErrNoHandle = errors.New("enrich: no usable handle")
)
