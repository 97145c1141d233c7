// Entitlement HTTP handlers.
//
// Read-only views over the receipts ledger:
//   - GET /entitlements        (all purchased product ids)
//   - GET /entitlements/{id}   (membership probe for one product)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ListEntitlements handles GET /entitlements.
//
// @Summary     List purchased products
// @Tags        entitlements
// @Produce     json
// @Success     200 {object} map[string]any
// @Router      /entitlements [get]
func (h *Handlers) ListEntitlements(c *gin.Context) {
	ids := h.ledger.PurchasedProducts()
	ok(c, http.StatusOK, gin.H{"product_ids": ids, "count": len(ids)})
}

// GetEntitlement handles GET /entitlements/:id.
//
// @Summary     Check a single entitlement
// @Tags        entitlements
// @Produce     json
// @Param       id path string true "Product identifier"
// @Success     200 {object} map[string]any
// @Failure     400 {object} ErrorResponse
// @Router      /entitlements/{id} [get]
func (h *Handlers) GetEntitlement(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "product id is required")
		return
	}
	ok(c, http.StatusOK, gin.H{
		"product_id": id,
		"purchased":  h.ledger.AlreadyPurchased(id),
	})
}
