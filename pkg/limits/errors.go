package limits

import "errors"

// Domain errors for limits operations
var (
	ErrRefreshFailed     = errors.New("limits.errors.refresh_failed")
	ErrSessionIDRequired = errors.New("limits.errors.session_id_required")
	ErrProviderNotInCtx  = errors.New("limits.errors.provider_not_in_context")

	// Invalidation errors
	ErrInvalidatorClosed = errors.New("limits.errors.invalidator_closed")
	ErrInvalidEvent      = errors.New("limits.errors.invalid_event")
	ErrFailedToSubscribe = errors.New("limits.errors.failed_to_subscribe")
	ErrFailedToPublish   = errors.New("limits.errors.failed_to_publish")
)
