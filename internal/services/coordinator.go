// Package services – PurchaseCoordinator
//
// This file implements the purchase transaction state machine. The
// coordinator submits payments to the platform queue, classifies each
// delivered transaction, gates purchased/restored transactions behind the
// host-configured validation and unlock hooks, records completed purchases
// in the receipts ledger, and acknowledges ("finishes") transactions exactly
// once, only after they have been fully processed.
//
// A settled transaction that cannot be completed yet (hook unconfigured,
// hook refused, malformed restore link) is left unacknowledged: the platform
// queue re-delivers unfinished transactions, which is the system's only
// retry mechanism. Failed transactions are always finished immediately.
//
// Observability: batch handling is OpenTelemetry-instrumented and the
// counters in metrics.go track deliveries, finishes, and parked outcomes.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/uptech/buykit/internal/domain"
	"github.com/uptech/buykit/internal/notify"
)

// DefaultCancelledErrorCode is the platform's "user cancelled" error code.
// A failed transaction carrying it is an expected outcome, not an error.
const DefaultCancelledErrorCode = 2

// PaymentQueue defines the platform purchase queue consumed by the
// coordinator. The queue delivers transaction batches and the
// restore-completed signal back through PurchaseCoordinator's Handle methods.
type PaymentQueue interface {
	// Submit adds a payment for productID to the platform queue.
	Submit(productID string)

	// Restore asks the platform to re-deliver previously completed
	// transactions in the restored state, followed by a restore-completed
	// signal.
	Restore()

	// Finish acknowledges tx, removing it from the queue permanently.
	Finish(tx domain.Transaction)

	// CanSubmitPayments reports whether this device/account may pay.
	CanSubmitPayments() bool
}

// ErrorReporter receives user-visible purchase failures. Cancelled purchases
// are suppressed and never reach it.
type ErrorReporter interface {
	ReportPurchaseError(productID, message string)
}

// ValidationHook decides whether a purchased or restored transaction is
// legitimate (e.g., via server-side receipt validation).
type ValidationHook func(domain.Transaction) bool

// UnlockHook performs the application-specific entitlement grant for a
// validated transaction and reports whether it succeeded.
type UnlockHook func(domain.Transaction) bool

// FinishedPurchase is the notification emitted after a purchased or restored
// transaction has been recorded in the ledger and acknowledged.
type FinishedPurchase struct {
	TransactionID string
	ProductID     string
}

// PurchaseCoordinator owns the purchase lifecycle. Batch processing is
// serialized by an internal mutex, so the host may deliver batches from any
// goroutine; items within a batch are processed synchronously in order.
type PurchaseCoordinator struct {
	// Queue is the platform payment queue.
	Queue PaymentQueue
	// Ledger records completed purchases.
	Ledger *LedgerService
	// Reporter receives non-cancelled purchase failures. Optional.
	Reporter ErrorReporter

	// CancelledErrorCode is the platform error code suppressed on failed
	// transactions. Defaults to DefaultCancelledErrorCode.
	CancelledErrorCode int
	// CapabilityRecheck re-queries CanSubmitPayments when the cached answer
	// is older than this interval. Zero caches for the process lifetime.
	CapabilityRecheck time.Duration

	mu       sync.Mutex // serializes batch processing and guards the hooks
	validate ValidationHook
	unlock   UnlockHook

	restoreMu   sync.Mutex
	restoreDone func(error)

	capMu    sync.Mutex
	capKnown bool
	capValue bool
	capAt    time.Time

	finished *notify.Stream[FinishedPurchase]
}

// NewPurchaseCoordinator constructs a coordinator wired to the given queue,
// ledger and optional error reporter. The validation hook defaults to
// always-true; the unlock hook starts absent, so purchases are never
// auto-completed until the host configures one.
func NewPurchaseCoordinator(queue PaymentQueue, ledger *LedgerService, reporter ErrorReporter) *PurchaseCoordinator {
	return &PurchaseCoordinator{
		Queue:              queue,
		Ledger:             ledger,
		Reporter:           reporter,
		CancelledErrorCode: DefaultCancelledErrorCode,
		validate:           func(domain.Transaction) bool { return true },
		finished:           notify.NewStream[FinishedPurchase](),
	}
}

// SetValidationHook installs the receipt validation hook. Passing nil makes
// purchased/restored transactions unprocessable until a hook is set again.
func (c *PurchaseCoordinator) SetValidationHook(h ValidationHook) {
	c.mu.Lock()
	c.validate = h
	c.mu.Unlock()
}

// SetUnlockHook installs the entitlement-grant hook. Transactions parked
// while the hook was absent are completed on their next queue delivery.
func (c *PurchaseCoordinator) SetUnlockHook(h UnlockHook) {
	c.mu.Lock()
	c.unlock = h
	c.mu.Unlock()
}

// Purchase submits a payment for productID to the platform queue. The
// outcome arrives later as delivered transactions.
func (c *PurchaseCoordinator) Purchase(productID string) error {
	if productID == "" {
		return ErrEmptyProductID
	}
	if !c.CanMakePayments() {
		return ErrPaymentsNotAllowed
	}
	log.Info().Str("product_id", productID).Msg("submitting payment")
	c.Queue.Submit(productID)
	return nil
}

// RestorePurchases asks the platform to restore previous purchases. The done
// callback is invoked once, with the platform error if restoration failed,
// when the queue signals completion. Only one restore may be in flight;
// concurrent calls are rejected with ErrRestoreInProgress rather than
// silently dropping the earlier callback.
func (c *PurchaseCoordinator) RestorePurchases(done func(error)) error {
	c.restoreMu.Lock()
	if c.restoreDone != nil {
		c.restoreMu.Unlock()
		return ErrRestoreInProgress
	}
	if done == nil {
		done = func(error) {}
	}
	c.restoreDone = done
	c.restoreMu.Unlock()

	log.Info().Msg("restoring purchases")
	c.Queue.Restore()
	return nil
}

// CanMakePayments reports whether payments may be submitted. The platform
// capability check is expensive and stable, so the answer is cached; with
// CapabilityRecheck zero it is never invalidated for the process lifetime.
func (c *PurchaseCoordinator) CanMakePayments() bool {
	c.capMu.Lock()
	defer c.capMu.Unlock()

	now := time.Now()
	if c.capKnown && (c.CapabilityRecheck <= 0 || now.Sub(c.capAt) < c.CapabilityRecheck) {
		return c.capValue
	}
	c.capValue = c.Queue.CanSubmitPayments()
	c.capKnown = true
	c.capAt = now
	return c.capValue
}

// OnFinishedPurchase subscribes fn to completed-purchase notifications.
func (c *PurchaseCoordinator) OnFinishedPurchase(fn func(FinishedPurchase)) *notify.Subscription {
	return c.finished.Subscribe(fn)
}

// HandleTransactionsUpdated processes one delivered batch, item by item, in
// order. The queue calls it whenever queue state changes; batches may mix
// states, interleave products arbitrarily, and repeat transactions that have
// not been finished yet.
func (c *PurchaseCoordinator) HandleTransactionsUpdated(ctx context.Context, batch []domain.Transaction) {
	tr := otel.Tracer("services/PurchaseCoordinator")
	_, span := tr.Start(ctx, "HandleTransactionsUpdated",
		trace.WithAttributes(attribute.Int("batch.size", len(batch))),
	)
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tx := range batch {
		c.process(ctx, tx)
	}
}

// HandleRestoreCompleted resolves the in-flight restore callback, if any,
// with the platform-supplied error (nil on success).
func (c *PurchaseCoordinator) HandleRestoreCompleted(err error) {
	c.restoreMu.Lock()
	done := c.restoreDone
	c.restoreDone = nil
	c.restoreMu.Unlock()

	if done == nil {
		log.Debug().Msg("restore completed with no restore in flight")
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("restore completed with error")
	} else {
		log.Info().Msg("restore completed")
	}
	done(err)
}

// process classifies a single transaction. Callers must hold c.mu.
func (c *PurchaseCoordinator) process(ctx context.Context, tx domain.Transaction) {
	txProcessed.WithLabelValues(string(tx.State)).Inc()

	switch tx.State {
	case domain.StatePurchasing, domain.StateDeferred:
		// Informational; the queue re-delivers in a settled state.
		log.Debug().Str("product_id", tx.ProductID).Str("state", string(tx.State)).Msg("transaction pending")

	case domain.StatePurchased:
		c.complete(ctx, tx, "purchased")

	case domain.StateRestored:
		if tx.OriginalProductID == "" {
			// Malformed restore entry; leave unacknowledged, not an error.
			txParked.WithLabelValues("unprocessable_restore").Inc()
			log.Debug().Str("product_id", tx.ProductID).Msg("restored transaction without original link; leaving pending")
			return
		}
		// The current transaction's product id is recorded, not the original's.
		c.complete(ctx, tx, "restored")

	case domain.StateFailed:
		c.finishFailed(tx)

	default:
		// Unknown state from the platform: degrade to leaving it pending.
		txParked.WithLabelValues("unknown_state").Inc()
		log.Warn().Str("state", string(tx.State)).Str("product_id", tx.ProductID).Msg("unknown transaction state; leaving pending")
	}
}

// complete runs the validation and unlock gate for a purchased or restored
// transaction. On success it records the product in the ledger, notifies
// observers, and finishes the transaction; otherwise the transaction stays
// pending for redelivery. Callers must hold c.mu.
func (c *PurchaseCoordinator) complete(ctx context.Context, tx domain.Transaction, outcome string) {
	// Settled transactions are durably recorded by the platform and always
	// carry an identifier; its absence is a contract violation upstream.
	// Checked before the hooks run so an ill-formed transaction has no side
	// effects.
	if tx.ID == "" {
		panic("buykit: finishing a transaction without a transaction identifier")
	}

	if c.validate == nil || c.unlock == nil {
		txParked.WithLabelValues("hook_unavailable").Inc()
		log.Debug().Str("product_id", tx.ProductID).Msg("hooks not configured; leaving transaction pending")
		return
	}
	if !c.validate(tx) {
		txParked.WithLabelValues("validation_refused").Inc()
		log.Warn().Str("product_id", tx.ProductID).Msg("transaction failed validation; leaving pending")
		return
	}
	if !c.unlock(tx) {
		txParked.WithLabelValues("unlock_refused").Inc()
		log.Warn().Str("product_id", tx.ProductID).Msg("unlock hook refused; leaving transaction pending")
		return
	}

	if err := c.Ledger.RecordPurchase(ctx, tx.ProductID); err != nil {
		// Persistence failures are logged inside the ledger; the in-memory
		// set is authoritative, so the transaction still completes.
		log.Warn().Err(err).Str("product_id", tx.ProductID).Msg("purchase recorded in memory only")
	}

	c.finished.Publish(FinishedPurchase{TransactionID: tx.ID, ProductID: tx.ProductID})
	c.Queue.Finish(tx)
	txFinished.WithLabelValues(outcome).Inc()
	log.Info().Str("product_id", tx.ProductID).Str("transaction_id", tx.ID).Str("outcome", outcome).Msg("purchase finished")
}

// finishFailed acknowledges a failed transaction immediately. Failures are
// never retried; a user-cancelled failure is suppressed, anything else is
// surfaced to the error reporter.
func (c *PurchaseCoordinator) finishFailed(tx domain.Transaction) {
	switch {
	case tx.Err == nil:
		log.Warn().Str("product_id", tx.ProductID).Msg("transaction failed without platform error")
	case tx.Err.Code == c.CancelledErrorCode:
		log.Debug().Str("product_id", tx.ProductID).Msg("purchase cancelled by user")
	default:
		log.Warn().Str("product_id", tx.ProductID).Int("code", tx.Err.Code).Str("message", tx.Err.Message).Msg("purchase failed")
		if c.Reporter != nil {
			c.Reporter.ReportPurchaseError(tx.ProductID, tx.Err.Message)
		}
	}

	c.Queue.Finish(tx)
	txFinished.WithLabelValues("failed").Inc()
}
