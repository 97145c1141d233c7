// Package platform models the boundary to the platform payment queue. The
// real storefront is an external actor; this package provides the in-process
// delivery side of it: transaction batches are pushed in (by the platform
// webhook or by tests) and handed to the registered handler synchronously,
// item order preserved. Unfinished transactions stay pending and can be
// re-delivered, which is the coordinator's retry contract.
package platform

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/uptech/buykit/internal/domain"
)

// TransactionHandler consumes delivered batches and restore signals.
// services.PurchaseCoordinator implements it.
type TransactionHandler interface {
	HandleTransactionsUpdated(ctx context.Context, batch []domain.Transaction)
	HandleRestoreCompleted(err error)
}

// MemoryQueue is the bundled payment-queue adapter. It tracks the pending
// transaction set, dispatches deliveries to the handler, and removes
// transactions when the coordinator finishes them.
//
// Outbound storefront calls (Submit, Restore) are recorded and logged; a
// production integration would forward them to the real platform while
// keeping this delivery contract.
type MemoryQueue struct {
	mu               sync.Mutex
	handler          TransactionHandler
	pending          map[string]domain.Transaction
	submitted        []string
	restoreRequested bool
	allowPayments    bool
}

// NewMemoryQueue constructs a queue. allowPayments is the answer the
// platform gives to capability checks.
func NewMemoryQueue(allowPayments bool) *MemoryQueue {
	return &MemoryQueue{
		pending:       make(map[string]domain.Transaction),
		allowPayments: allowPayments,
	}
}

// SetHandler registers the consumer of delivered batches. Must be called
// before Deliver.
func (q *MemoryQueue) SetHandler(h TransactionHandler) {
	q.mu.Lock()
	q.handler = h
	q.mu.Unlock()
}

// Submit records an outbound payment request for productID.
func (q *MemoryQueue) Submit(productID string) {
	q.mu.Lock()
	q.submitted = append(q.submitted, productID)
	q.mu.Unlock()
	log.Debug().Str("product_id", productID).Msg("payment submitted to queue")
}

// Restore records an outbound restoration request.
func (q *MemoryQueue) Restore() {
	q.mu.Lock()
	q.restoreRequested = true
	q.mu.Unlock()
	log.Debug().Msg("restore requested")
}

// Finish acknowledges tx, removing it from the pending set permanently.
func (q *MemoryQueue) Finish(tx domain.Transaction) {
	q.mu.Lock()
	delete(q.pending, txKey(tx))
	q.mu.Unlock()
}

// CanSubmitPayments reports the platform capability answer.
func (q *MemoryQueue) CanSubmitPayments() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.allowPayments
}

// Deliver merges batch into the pending set and hands it to the handler
// synchronously, preserving item order. The handler may call Finish from
// within the callback.
func (q *MemoryQueue) Deliver(ctx context.Context, batch []domain.Transaction) {
	q.mu.Lock()
	for _, tx := range batch {
		if tx.ID != "" {
			// The settled delivery supersedes the product-keyed in-flight
			// entry of the same payment.
			delete(q.pending, "product:"+tx.ProductID)
		}
		q.pending[txKey(tx)] = tx
	}
	h := q.handler
	q.mu.Unlock()

	if h == nil {
		log.Warn().Int("batch", len(batch)).Msg("transaction batch dropped: no handler registered")
		return
	}
	h.HandleTransactionsUpdated(ctx, batch)
}

// RedeliverPending re-delivers every transaction still unacknowledged, e.g.
// after the host configures a previously missing unlock hook.
func (q *MemoryQueue) RedeliverPending(ctx context.Context) {
	q.mu.Lock()
	batch := make([]domain.Transaction, 0, len(q.pending))
	for _, tx := range q.pending {
		batch = append(batch, tx)
	}
	h := q.handler
	q.mu.Unlock()

	if h == nil || len(batch) == 0 {
		return
	}
	h.HandleTransactionsUpdated(ctx, batch)
}

// NotifyRestoreCompleted signals the end of a restoration batch.
func (q *MemoryQueue) NotifyRestoreCompleted(err error) {
	q.mu.Lock()
	q.restoreRequested = false
	h := q.handler
	q.mu.Unlock()

	if h == nil {
		return
	}
	h.HandleRestoreCompleted(err)
}

// Pending returns a snapshot of the unacknowledged transactions.
func (q *MemoryQueue) Pending() []domain.Transaction {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Transaction, 0, len(q.pending))
	for _, tx := range q.pending {
		out = append(out, tx)
	}
	return out
}

// Submitted returns a snapshot of product ids submitted for payment.
func (q *MemoryQueue) Submitted() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.submitted...)
}

// txKey identifies a transaction within the pending set. Settled
// transactions carry a platform identifier; earlier states are keyed by
// product so a later delivery of the same payment replaces them.
func txKey(tx domain.Transaction) string {
	if tx.ID != "" {
		return "id:" + tx.ID
	}
	return "product:" + tx.ProductID
}
