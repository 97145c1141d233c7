package handlers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/uptech/buykit/internal/domain"
)

// --- shared fakes for handler tests ---

type fakeCatalog struct {
	products  []domain.Product
	loadedIDs []string
}

func (f *fakeCatalog) Load(_ context.Context, ids []string) { f.loadedIDs = ids }
func (f *fakeCatalog) All() []domain.Product {
	return append([]domain.Product(nil), f.products...)
}
func (f *fakeCatalog) Fetch(id string) (domain.Product, bool) {
	for _, p := range f.products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

type fakePurchases struct {
	purchaseErr  error
	restoreErr   error
	canPay       bool
	purchased    []string
	restoreDone  func(error)
	restoreCalls int
}

func (f *fakePurchases) Purchase(productID string) error {
	if f.purchaseErr != nil {
		return f.purchaseErr
	}
	f.purchased = append(f.purchased, productID)
	return nil
}

func (f *fakePurchases) RestorePurchases(done func(error)) error {
	f.restoreCalls++
	if f.restoreErr != nil {
		return f.restoreErr
	}
	f.restoreDone = done
	return nil
}

func (f *fakePurchases) CanMakePayments() bool { return f.canPay }

type fakeLedger struct {
	ids []string
}

func (f *fakeLedger) AlreadyPurchased(id string) bool {
	for _, v := range f.ids {
		if v == id {
			return true
		}
	}
	return false
}

func (f *fakeLedger) PurchasedProducts() []string {
	return append([]string(nil), f.ids...)
}

type fakeSink struct {
	batches      [][]domain.Transaction
	restoreErrs  []error
	restoreCalls int
}

func (f *fakeSink) Deliver(_ context.Context, batch []domain.Transaction) {
	f.batches = append(f.batches, batch)
}

func (f *fakeSink) NotifyRestoreCompleted(err error) {
	f.restoreCalls++
	f.restoreErrs = append(f.restoreErrs, err)
}

// newTestDB opens a fresh in-memory sqlite with the idempotency schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// newTestHandlers builds a Handlers instance around the given fakes with a
// usable DB and a short idempotency TTL.
func newTestHandlers(t *testing.T, cat *fakeCatalog, pur *fakePurchases, led *fakeLedger, sink *fakeSink) *Handlers {
	t.Helper()
	if cat == nil {
		cat = &fakeCatalog{}
	}
	if pur == nil {
		pur = &fakePurchases{canPay: true}
	}
	if led == nil {
		led = &fakeLedger{}
	}
	if sink == nil {
		sink = &fakeSink{}
	}
	return New(cat, pur, led, sink, newTestDB(t), time.Hour)
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}
