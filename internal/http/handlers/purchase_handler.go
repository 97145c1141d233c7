// Purchase HTTP handlers.
//
// This file exposes the endpoints that drive the purchase lifecycle:
//   - POST /products/{id}/purchase  (submit a payment; Idempotency-Key aware)
//   - POST /purchases/restore       (start restoring previous purchases)
//   - GET  /payments/capability     (cached canMakePayments answer)
//
// Purchases are asynchronous: submission returns 202 and the outcome arrives
// later through the platform's transaction deliveries. The Idempotency-Key
// header makes retried submissions safe; a replayed key returns the recorded
// response without submitting a second payment.
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/uptech/buykit/internal/http/middleware"
	"github.com/uptech/buykit/internal/repo"
	"github.com/uptech/buykit/internal/services"
)

// PurchaseService defines the coordinator operations consumed by HTTP
// handlers. Implementations must be safe for concurrent use.
type PurchaseService interface {
	// Purchase submits a payment for productID to the platform queue.
	Purchase(productID string) error
	// RestorePurchases starts restoring completed transactions; done is
	// invoked when the platform signals completion.
	RestorePurchases(done func(error)) error
	// CanMakePayments reports the (cached) platform capability answer.
	CanMakePayments() bool
}

// LedgerReader defines the read-only ledger views consumed by HTTP handlers.
type LedgerReader interface {
	AlreadyPurchased(id string) bool
	PurchasedProducts() []string
}

// Handlers groups the HTTP endpoints of the purchase tracker. It depends on
// abstract service interfaces to keep transport concerns separate from the
// purchase logic.
type Handlers struct {
	catalog   CatalogService
	purchases PurchaseService
	ledger    LedgerReader
	sink      TransactionSink

	// db and idemTTL back the Idempotency-Key replay records.
	db      *gorm.DB
	idemTTL time.Duration
}

// New constructs a Handlers instance bound to the given services.
func New(catalog CatalogService, purchases PurchaseService, ledger LedgerReader, sink TransactionSink, db *gorm.DB, idemTTL time.Duration) *Handlers {
	return &Handlers{
		catalog:   catalog,
		purchases: purchases,
		ledger:    ledger,
		sink:      sink,
		db:        db,
		idemTTL:   idemTTL,
	}
}

// userID extracts the caller identity from the Gin context (set by upstream
// middleware). It falls back to the "X-User-ID" header (tests use it), and
// finally to "demo-user".
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if s := c.GetHeader("X-User-ID"); s != "" {
		return s
	}
	return "demo-user"
}

// purchaseResponse is the body returned by POST /products/{id}/purchase.
type purchaseResponse struct {
	ProductID string `json:"product_id"`
	Submitted bool   `json:"submitted"`
	Replayed  bool   `json:"replayed,omitempty"`
}

// CreatePurchase handles POST /products/:id/purchase.
//
// @Summary     Submit a purchase
// @Description Submits a payment for the product to the platform queue. The
// @Description purchase completes asynchronously via transaction deliveries.
// @Tags        purchases
// @Produce     json
// @Param       id path string true "Product identifier"
// @Param       Idempotency-Key header string false "Safe-retry key"
// @Success     202 {object} purchaseResponse
// @Failure     400 {object} ErrorResponse
// @Failure     403 {object} ErrorResponse
// @Router      /products/{id}/purchase [post]
func (h *Handlers) CreatePurchase(c *gin.Context) {
	productID := strings.TrimSpace(c.Param("id"))
	if productID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "product id is required")
		return
	}

	uid := userID(c)
	key, hasKey := middleware.GetIdempotencyKey(c)

	// Serve a recorded response for replayed keys without resubmitting.
	if hasKey && middleware.IsReplay(c) {
		rec, err := repo.GetIdempotency(c.Request.Context(), h.db, uid, productID, key, time.Now().UTC())
		if err == nil && rec != nil {
			ok(c, rec.Status, purchaseResponse{ProductID: productID, Submitted: true, Replayed: true})
			return
		}
		// The record vanished between lookup and fetch; fall through.
	}

	if err := h.purchases.Purchase(productID); err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyProductID):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case errors.Is(err, services.ErrPaymentsNotAllowed):
			fail(c, http.StatusForbidden, ErrCodePaymentsNotAllowed, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodePurchaseFailed, "could not submit purchase")
		}
		return
	}

	if hasKey {
		if _, err := repo.CreateIdempotency(c.Request.Context(), h.db, uid, productID, key, http.StatusAccepted, h.idemTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			lg := middleware.LoggerFrom(c)
			lg.Warn().Err(err).Msg("could not record idempotency key")
		}
	}

	ok(c, http.StatusAccepted, purchaseResponse{ProductID: productID, Submitted: true})
}

// RestorePurchases handles POST /purchases/restore.
//
// @Summary     Restore previous purchases
// @Description Asks the platform to re-deliver completed transactions.
// @Description Only one restore may be in flight at a time.
// @Tags        purchases
// @Produce     json
// @Success     202 {object} map[string]any
// @Failure     409 {object} ErrorResponse
// @Router      /purchases/restore [post]
func (h *Handlers) RestorePurchases(c *gin.Context) {
	lg := middleware.LoggerFrom(c)
	err := h.purchases.RestorePurchases(func(err error) {
		if err != nil {
			lg.Warn().Err(err).Msg("restore finished with error")
			return
		}
		lg.Info().Msg("restore finished")
	})
	if err != nil {
		if errors.Is(err, services.ErrRestoreInProgress) {
			fail(c, http.StatusConflict, ErrCodeRestoreInProgress, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not start restore")
		return
	}
	ok(c, http.StatusAccepted, gin.H{"restoring": true})
}

// GetPaymentCapability handles GET /payments/capability.
//
// @Summary     Check payment capability
// @Description Returns whether this device/account may submit payments.
// @Description The answer is cached per the configured recheck policy.
// @Tags        purchases
// @Produce     json
// @Success     200 {object} map[string]bool
// @Router      /payments/capability [get]
func (h *Handlers) GetPaymentCapability(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"can_make_payments": h.purchases.CanMakePayments()})
}
