// Package services – CatalogService
//
// This file implements the in-memory catalog cache. Load issues an
// asynchronous, cancellable lookup against the platform catalog client;
// a new Load cancels the outstanding one and a superseded response is
// discarded even if it arrives after cancellation (guarded by a request
// generation counter). A successful load replaces the cached list wholesale
// and fills in locale-formatted display prices.
package services

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/uptech/buykit/internal/domain"
	"github.com/uptech/buykit/internal/notify"
)

// CatalogClient defines the platform catalog lookup consumed by
// CatalogService. Implementations must honor context cancellation.
type CatalogClient interface {
	// RequestProducts validates ids against the platform's canonical product
	// list and returns the matching descriptors.
	RequestProducts(ctx context.Context, ids []string) ([]domain.Product, error)
}

// CatalogService caches the most recent successful catalog lookup. It is
// safe for concurrent use.
type CatalogService struct {
	// Client performs platform catalog lookups.
	Client CatalogClient
	// PriceLocale selects the locale used to format display prices.
	PriceLocale language.Tag

	mu       sync.Mutex
	products []domain.Product
	gen      uint64 // identity of the outstanding request; bumping it orphans the old one
	cancel   context.CancelFunc

	updated *notify.Stream[[]domain.Product]
	failed  *notify.Stream[error]
}

// NewCatalogService constructs a CatalogService with an empty cache.
func NewCatalogService(client CatalogClient, priceLocale language.Tag) *CatalogService {
	if priceLocale == (language.Tag{}) {
		priceLocale = language.English
	}
	return &CatalogService{
		Client:      client,
		PriceLocale: priceLocale,
		updated:     notify.NewStream[[]domain.Product](),
		failed:      notify.NewStream[error](),
	}
}

// Load cancels any outstanding lookup and issues a new one for exactly ids.
// The call returns immediately; the result is delivered to observers.
// Only the most recent call's result is retained: a response belonging to a
// superseded request never overwrites data arriving after it.
func (s *CatalogService) Load(ctx context.Context, ids []string) {
	cctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	myGen := s.gen
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(cctx, myGen, ids)
}

// run performs one lookup and applies the result unless superseded.
func (s *CatalogService) run(ctx context.Context, gen uint64, ids []string) {
	products, err := s.Client.RequestProducts(ctx, ids)

	s.mu.Lock()
	if s.gen != gen {
		// A newer Load superseded this request; drop the response.
		s.mu.Unlock()
		catalogLoads.WithLabelValues("superseded").Inc()
		return
	}
	// Release this request's context registration before forgetting it.
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = nil
	if err != nil {
		s.mu.Unlock()
		catalogLoads.WithLabelValues("error").Inc()
		s.failed.Publish(fmt.Errorf("%w: %v", ErrCatalogLookupFailed, err))
		return
	}
	for i := range products {
		products[i].DisplayPrice = s.displayPrice(products[i])
	}
	s.products = products
	snapshot := append([]domain.Product(nil), products...)
	s.mu.Unlock()

	catalogLoads.WithLabelValues("ok").Inc()
	s.updated.Publish(snapshot)
}

// All returns a copy of the cached product list.
func (s *CatalogService) All() []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Product(nil), s.products...)
}

// Fetch returns the first cached entry whose identifier matches id exactly.
func (s *CatalogService) Fetch(id string) (domain.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

// OnUpdated subscribes fn to successful catalog replacements.
func (s *CatalogService) OnUpdated(fn func([]domain.Product)) *notify.Subscription {
	return s.updated.Subscribe(fn)
}

// OnLoadFailed subscribes fn to lookup failures.
func (s *CatalogService) OnLoadFailed(fn func(error)) *notify.Subscription {
	return s.failed.Subscribe(fn)
}

// displayPrice renders the product price in the configured locale using its
// ISO currency code. Falls back to a plain decimal when the code is unknown.
func (s *CatalogService) displayPrice(p domain.Product) string {
	unit, err := currency.ParseISO(p.CurrencyCode)
	if err != nil {
		return fmt.Sprintf("%.2f", p.Price)
	}
	pr := message.NewPrinter(s.PriceLocale)
	return pr.Sprintf("%v", currency.Symbol(unit.Amount(p.Price)))
}
