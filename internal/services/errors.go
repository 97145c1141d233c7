// Package services implements the purchase-tracking core: the receipts
// ledger, the catalog cache, and the purchase coordinator. This file
// centralizes service-level error values so that they can be consistently
// returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; mapping
// to user-facing messages or HTTP status codes happens at the handler layer.
//
// Note that several transaction outcomes are deliberately NOT errors:
// a purchased transaction whose hooks are unconfigured, a hook returning
// false, and a malformed restore entry are all parked for queue redelivery
// instead of failing loudly. Leaving the transaction pending is the
// coordinator's universal fallback for uncertain cases.
package services

import "errors"

var (
	// ErrPersistenceUnavailable indicates the local receipts store could not
	// be read or written. The in-memory ledger remains authoritative for the
	// session; callers may log and continue.
	ErrPersistenceUnavailable = errors.New("receipts persistence unavailable")

	// ErrCatalogLookupFailed wraps a failed platform catalog lookup. The
	// cached product list is left untouched.
	ErrCatalogLookupFailed = errors.New("catalog lookup failed")

	// ErrProductNotFound indicates the requested product id is not present
	// in the cached catalog.
	ErrProductNotFound = errors.New("product not found")

	// ErrEmptyProductID is returned when a purchase is requested without a
	// product identifier.
	ErrEmptyProductID = errors.New("product id is empty")

	// ErrPaymentsNotAllowed is returned when the platform reports that this
	// device or account may not submit payments.
	ErrPaymentsNotAllowed = errors.New("payments are not allowed")

	// ErrRestoreInProgress is returned when RestorePurchases is called while
	// a previous restoration has not yet completed. Concurrent restores are
	// rejected rather than silently dropping the earlier completion callback.
	ErrRestoreInProgress = errors.New("a restore operation is already in progress")
)
