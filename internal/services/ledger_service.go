// Package services – LedgerService
//
// This file implements the receipts ledger: the durable set of product
// identifiers known to have been purchased or restored. The ledger owns an
// in-memory set that is loaded once from the key-value store and persisted
// synchronously on every record. Membership transitions are one-way
// (absent → present); no removal operation is exposed.
//
// Observers can subscribe to two notifications: the full set after a Load,
// and the single product id after each RecordPurchase.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/uptech/buykit/internal/notify"
	"github.com/uptech/buykit/internal/repo"
)

// ReceiptsKey is the key-value store entry holding the purchased product id
// list. Absence of the key is a valid state meaning "no purchases yet".
const ReceiptsKey = "purchasedSkProductIds"

// ReceiptStore defines the persistence contract required by LedgerService.
type ReceiptStore interface {
	// GetStringList reads the named JSON string-array entry; repo.ErrNotFound
	// when the key was never written.
	GetStringList(ctx context.Context, db *gorm.DB, key string) ([]string, error)

	// PutStringList durably replaces the named entry with values.
	PutStringList(ctx context.Context, db *gorm.DB, key string, values []string) error
}

// LedgerService tracks which products have been purchased. It is safe for
// concurrent use; the in-memory set is mutated only through its own methods.
type LedgerService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Store is the key-value receipts store.
	Store ReceiptStore

	mu        sync.RWMutex
	purchased map[string]struct{}

	loaded   *notify.Stream[[]string]
	recorded *notify.Stream[string]
}

// NewLedgerService constructs a LedgerService with an empty in-memory set.
// Call Load to populate it from the store.
func NewLedgerService(db *gorm.DB, store ReceiptStore) *LedgerService {
	return &LedgerService{
		DB:        db,
		Store:     store,
		purchased: make(map[string]struct{}),
		loaded:    notify.NewStream[[]string](),
		recorded:  notify.NewStream[string](),
	}
}

// Load reads the persisted identifier list and replaces the in-memory set.
// An absent key initializes the set to empty and is not an error. Observers
// are notified with the full resulting set in both cases.
//
// On a storage read failure the set is reset to empty, observers are still
// notified, and an ErrPersistenceUnavailable-wrapped error is returned; the
// in-memory set remains authoritative for the rest of the session.
func (s *LedgerService) Load(ctx context.Context) error {
	ids, err := s.Store.GetStringList(ctx, s.DB, ReceiptsKey)
	var loadErr error
	switch {
	case errors.Is(err, repo.ErrNotFound):
		ids = nil
	case err != nil:
		loadErr = fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
		ids = nil
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	s.mu.Lock()
	s.purchased = set
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if loadErr != nil {
		log.Warn().Err(loadErr).Msg("ledger load failed; starting with empty set")
	}
	s.loaded.Publish(snapshot)
	return loadErr
}

// AlreadyPurchased reports whether id is in the in-memory set. It never
// touches persistent storage.
func (s *LedgerService) AlreadyPurchased(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.purchased[id]
	return ok
}

// RecordPurchase inserts id into the set and persists the full list. The
// operation is idempotent: recording the same id again rewrites the same
// set. Observers are notified with the single id after the insert.
//
// A storage write failure returns an ErrPersistenceUnavailable-wrapped error;
// the in-memory insert is kept and observers are still notified, so the
// session state stays authoritative.
func (s *LedgerService) RecordPurchase(ctx context.Context, id string) error {
	s.mu.Lock()
	s.purchased[id] = struct{}{}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	var recErr error
	if err := s.Store.PutStringList(ctx, s.DB, ReceiptsKey, snapshot); err != nil {
		recErr = fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
		log.Warn().Err(recErr).Str("product_id", id).Msg("ledger persist failed; in-memory state kept")
	}

	purchasesRecorded.Inc()
	s.recorded.Publish(id)
	return recErr
}

// PurchasedProducts returns a sorted snapshot of the purchased set.
func (s *LedgerService) PurchasedProducts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// OnLoaded subscribes fn to full-set notifications emitted by Load.
func (s *LedgerService) OnLoaded(fn func([]string)) *notify.Subscription {
	return s.loaded.Subscribe(fn)
}

// OnPurchaseRecorded subscribes fn to per-id notifications emitted by
// RecordPurchase.
func (s *LedgerService) OnPurchaseRecorded(fn func(string)) *notify.Subscription {
	return s.recorded.Subscribe(fn)
}

// snapshotLocked returns the set as a sorted slice. Callers must hold mu.
// Sorting keeps the persisted list stable so it round-trips deterministically.
func (s *LedgerService) snapshotLocked() []string {
	out := make([]string, 0, len(s.purchased))
	for id := range s.purchased {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
