package app

import "errors"

// Service-level sentinels surfaced to the HTTP layer.
var (
	// ErrNoQuotaAvailable means no active subscription has capacity for the
	// requested field. The caller must not publish.
	ErrNoQuotaAvailable = errors.New("no quota available")

	// ErrProviderUnavailable means the provider push failed after the single
	// transparent retry. The payment is already FAILED; the subscriber should
	// try again.
	ErrProviderUnavailable = errors.New("payment provider unavailable")
)
