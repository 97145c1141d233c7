package platform

import (
	"context"
	"testing"

	"github.com/uptech/buykit/internal/domain"
)

func TestStaticCatalog_RequestProducts_KnownSubsetInOrder(t *testing.T) {
	c := NewStaticCatalog([]domain.Product{
		{ID: "com.store.pro", Title: "Pro", Price: 9.99, CurrencyCode: "USD"},
		{ID: "com.store.coins", Title: "Coins", Price: 1.99, CurrencyCode: "USD"},
	})

	got, err := c.RequestProducts(context.Background(), []string{"com.store.coins", "com.store.unknown", "com.store.pro"})
	if err != nil {
		t.Fatalf("RequestProducts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 products, got %d", len(got))
	}
	if got[0].ID != "com.store.coins" || got[1].ID != "com.store.pro" {
		t.Fatalf("request order not preserved: %v", got)
	}
}

func TestStaticCatalog_Put_ReplacesDescriptor(t *testing.T) {
	c := NewStaticCatalog(nil)
	c.Put(domain.Product{ID: "com.store.pro", Title: "Pro"})
	c.Put(domain.Product{ID: "com.store.pro", Title: "Pro v2"})

	got, err := c.RequestProducts(context.Background(), []string{"com.store.pro"})
	if err != nil {
		t.Fatalf("RequestProducts: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Pro v2" {
		t.Fatalf("expected replaced descriptor, got %v", got)
	}
}

func TestStaticCatalog_RequestProducts_CanceledContext(t *testing.T) {
	c := NewStaticCatalog([]domain.Product{{ID: "com.store.pro"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.RequestProducts(ctx, []string{"com.store.pro"}); err == nil {
		t.Fatalf("expected error for canceled context")
	}
}
