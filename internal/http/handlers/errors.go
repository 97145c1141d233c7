// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// These symbolic constants are mapped to HTTP responses via the fail() helper
// and give clients a stable, machine-readable error taxonomy alongside the
// human-readable messages. Generic codes mirror common HTTP status semantics;
// domain-specific codes cover purchase outcomes that a status alone cannot
// convey.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodePaymentsNotAllowed = "payments_not_allowed"
	ErrCodeRestoreInProgress  = "restore_in_progress"
	ErrCodePurchaseFailed     = "purchase_failed"
)
