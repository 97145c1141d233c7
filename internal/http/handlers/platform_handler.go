// Platform webhook handlers.
//
// The platform storefront is an external actor: it notifies this service of
// transaction-state changes and of restoration completion. These endpoints
// are the inbound half of that boundary; decoded batches are pushed onto the
// payment queue, which hands them to the coordinator synchronously and in
// order.
//
//   - POST /platform/transactions      (batch of transaction events)
//   - POST /platform/restore-completed (restoration batch finished)
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uptech/buykit/internal/domain"
)

// TransactionSink is the delivery side of the payment-queue boundary
// consumed by the webhook handlers. platform.MemoryQueue implements it.
type TransactionSink interface {
	// Deliver hands a transaction batch to the coordinator, in order.
	Deliver(ctx context.Context, batch []domain.Transaction)
	// NotifyRestoreCompleted signals the end of a restoration batch.
	NotifyRestoreCompleted(err error)
}

// transactionsRequest is the JSON body accepted by POST /platform/transactions.
type transactionsRequest struct {
	Transactions []domain.Transaction `json:"transactions" binding:"required"`
}

// restoreCompletedRequest is the JSON body accepted by
// POST /platform/restore-completed. An empty Error means success.
type restoreCompletedRequest struct {
	Error string `json:"error"`
}

// DeliverTransactions handles POST /platform/transactions.
//
// @Summary     Deliver a transaction batch
// @Description Accepts a batch of transaction-state events from the platform
// @Description and processes them item by item, in order.
// @Tags        platform
// @Accept      json
// @Produce     json
// @Param       request body transactionsRequest true "Transaction batch"
// @Success     200 {object} map[string]any
// @Failure     400 {object} ErrorResponse
// @Router      /platform/transactions [post]
func (h *Handlers) DeliverTransactions(c *gin.Context) {
	var req transactionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "transactions is required")
		return
	}
	for _, tx := range req.Transactions {
		if !tx.State.Valid() {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown transaction state: "+string(tx.State))
			return
		}
		// Purchased and restored transactions are completable and must carry
		// the platform identifier; without one they could never be finished.
		if tx.ID == "" && (tx.State == domain.StatePurchased || tx.State == domain.StateRestored) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "settled transaction without id for product "+tx.ProductID)
			return
		}
	}

	h.sink.Deliver(c.Request.Context(), req.Transactions)
	ok(c, http.StatusOK, gin.H{"processed": len(req.Transactions)})
}

// RestoreCompleted handles POST /platform/restore-completed.
//
// @Summary     Signal restore completion
// @Tags        platform
// @Accept      json
// @Produce     json
// @Param       request body restoreCompletedRequest true "Completion signal"
// @Success     200 {object} map[string]any
// @Router      /platform/restore-completed [post]
func (h *Handlers) RestoreCompleted(c *gin.Context) {
	var req restoreCompletedRequest
	// The body is optional; absence means a successful completion.
	_ = c.ShouldBindJSON(&req)

	var err error
	if req.Error != "" {
		err = errors.New(req.Error)
	}
	h.sink.NotifyRestoreCompleted(err)
	ok(c, http.StatusOK, gin.H{"acknowledged": true})
}
