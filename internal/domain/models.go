// Package domain defines the core types of the purchase-tracking layer:
// catalog products, payment-queue transactions, and the persistence models
// mapped with GORM (the key-value receipts row and idempotency records).
package domain

import "time"

// PurchaseState is the lifecycle state of a transaction as reported by the
// platform payment queue.
type PurchaseState string

// Transaction states delivered by the payment queue.
//
// Purchasing and Deferred are informational: the queue re-delivers the
// transaction later in a settled state. Purchased, Restored and Failed are
// settled and eventually acknowledged ("finished") by the coordinator.
const (
	StatePurchasing PurchaseState = "purchasing"
	StatePurchased  PurchaseState = "purchased"
	StateFailed     PurchaseState = "failed"
	StateRestored   PurchaseState = "restored"
	StateDeferred   PurchaseState = "deferred"
)

// Valid reports whether s is one of the known queue states.
func (s PurchaseState) Valid() bool {
	switch s {
	case StatePurchasing, StatePurchased, StateFailed, StateRestored, StateDeferred:
		return true
	}
	return false
}

// TransactionError carries the platform error attached to a failed
// transaction. Code is the platform's numeric error code; the user-cancelled
// code is treated as a non-error outcome by the coordinator.
type TransactionError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *TransactionError) Error() string { return e.Message }

// Transaction is one unit of purchase activity delivered by the payment
// queue. The same transaction may be delivered repeatedly until it is
// finished; the coordinator evaluates every delivery independently.
//
// Fields:
//   - ID: the platform transaction identifier. Empty until the platform has
//     durably recorded the transaction; always present on purchased
//     transactions.
//   - ProductID: the product this payment is for.
//   - OriginalProductID: for restored transactions, the product id of the
//     original transaction being restored. Empty otherwise (and empty on a
//     malformed restore, which the coordinator leaves unacknowledged).
//   - State: queue lifecycle state.
//   - Err: platform error, set only for failed transactions.
type Transaction struct {
	ID                string            `json:"transaction_id,omitempty"`
	ProductID         string            `json:"product_id"`
	OriginalProductID string            `json:"original_product_id,omitempty"`
	State             PurchaseState     `json:"state"`
	Err               *TransactionError `json:"error,omitempty"`
}

// Product is a validated catalog descriptor returned by the platform catalog
// lookup. DisplayPrice is a locale-formatted rendering of Price/CurrencyCode
// computed when the catalog cache is refreshed.
type Product struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Price        float64 `json:"price"`
	CurrencyCode string  `json:"currency_code"`
	DisplayPrice string  `json:"display_price,omitempty"`
}

// KVEntry is a single named entry in the key-value store. The receipts ledger
// persists the purchased-product set as one entry whose value is a JSON array
// of product id strings.
type KVEntry struct {
	Key       string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Value     string    `gorm:"type:TEXT NOT NULL"`
	UpdatedAt time.Time `gorm:"type:DATETIME NOT NULL"`
}

// TableName implements the GORM tabler interface.
func (KVEntry) TableName() string { return "kv_entries" }
