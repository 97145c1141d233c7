// Catalog HTTP handlers.
//
// This file exposes REST endpoints for the cached product catalog:
//   - GET  /products            (cached list)
//   - GET  /products/{id}       (single cached entry)
//   - POST /products/refresh    (trigger a platform catalog lookup)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses. A refresh is
// asynchronous; its outcome reaches clients on the next GET (or through
// the service's observer notifications inside the process).
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/uptech/buykit/internal/domain"
)

// CatalogService defines the catalog-cache operations consumed by HTTP
// handlers. Implementations must be safe for concurrent use.
type CatalogService interface {
	// Load cancels any outstanding lookup and requests exactly ids.
	Load(ctx context.Context, ids []string)
	// All returns the cached product list.
	All() []domain.Product
	// Fetch returns the cached entry matching id exactly.
	Fetch(id string) (domain.Product, bool)
}

// refreshRequest is the JSON body accepted by POST /products/refresh.
type refreshRequest struct {
	ProductIDs []string `json:"product_ids" binding:"required"`
}

// ListProducts handles GET /products.
//
// @Summary     List cached catalog products
// @Description Returns the most recent successful catalog lookup result.
// @Tags        products
// @Produce     json
// @Success     200 {array} domain.Product
// @Router      /products [get]
func (h *Handlers) ListProducts(c *gin.Context) {
	ok(c, http.StatusOK, h.catalog.All())
}

// GetProduct handles GET /products/:id.
//
// @Summary     Fetch a cached catalog product
// @Tags        products
// @Produce     json
// @Param       id path string true "Product identifier"
// @Success     200 {object} domain.Product
// @Failure     404 {object} ErrorResponse
// @Router      /products/{id} [get]
func (h *Handlers) GetProduct(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	p, found := h.catalog.Fetch(id)
	if !found {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "product not found")
		return
	}
	ok(c, http.StatusOK, p)
}

// RefreshProducts handles POST /products/refresh.
//
// @Summary     Refresh the catalog cache
// @Description Starts a platform catalog lookup for the given product ids,
// @Description superseding any lookup still in flight.
// @Tags        products
// @Accept      json
// @Produce     json
// @Param       request body refreshRequest true "Product ids to validate"
// @Success     202 {object} map[string]any
// @Failure     400 {object} ErrorResponse
// @Router      /products/refresh [post]
func (h *Handlers) RefreshProducts(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "product_ids is required")
		return
	}

	ids := make([]string, 0, len(req.ProductIDs))
	for _, id := range req.ProductIDs {
		if t := strings.TrimSpace(id); t != "" {
			ids = append(ids, t)
		}
	}
	if len(ids) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "product_ids must contain at least one id")
		return
	}

	// Detach from the request context: the lookup outlives this response.
	h.catalog.Load(context.WithoutCancel(c.Request.Context()), ids)
	ok(c, http.StatusAccepted, gin.H{"requested": ids})
}
