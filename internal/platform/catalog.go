package platform

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/uptech/buykit/internal/domain"
)

// StaticCatalog is the bundled catalog client: an in-memory product table
// seeded at startup. RequestProducts returns only the requested ids that
// exist in the table, in request order, mirroring how the platform drops
// unknown identifiers rather than failing the lookup.
type StaticCatalog struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

// NewStaticCatalog constructs a catalog seeded with the given products.
func NewStaticCatalog(products []domain.Product) *StaticCatalog {
	m := make(map[string]domain.Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return &StaticCatalog{products: m}
}

// Put inserts or replaces a product descriptor.
func (c *StaticCatalog) Put(p domain.Product) {
	c.mu.Lock()
	c.products[p.ID] = p
	c.mu.Unlock()
}

// RequestProducts returns the known descriptors among ids, preserving the
// request order. Unknown ids are silently dropped. The lookup is aborted
// when ctx is done.
func (c *StaticCatalog) RequestProducts(ctx context.Context, ids []string) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// LogReporter surfaces purchase failures as structured warnings. It is the
// bundled ErrorReporter; a host application would typically swap in a
// user-facing presenter.
type LogReporter struct{}

// ReportPurchaseError logs a failed purchase for productID.
func (LogReporter) ReportPurchaseError(productID, message string) {
	log.Warn().
		Str("product_id", productID).
		Str("reason", message).
		Msg("purchase failed")
}
