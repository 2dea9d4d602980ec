package model

import "errors"

// Error classes surfaced by the router and the orchestrator. Callers compare
// with errors.Is; implementations wrap them with context.
var (
	ErrInvalidToken     = errors.New("invalid or expired token")
	ErrPermissionDenied = errors.New("permission denied")
	ErrFetchFailure     = errors.New("fetch failed")
	ErrNoOutputProduced = errors.New("no output produced")
	ErrSplitFailure     = errors.New("split failed")
	ErrDeliveryFailure  = errors.New("delivery failed")
	ErrCleanupFailure   = errors.New("cleanup failed")
)
