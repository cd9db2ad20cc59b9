package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nvkumar/shopkart/internal/inventory"
	"github.com/nvkumar/shopkart/internal/models"
	"github.com/nvkumar/shopkart/internal/notify"
	"github.com/nvkumar/shopkart/pkg/logging"
)

var (
	ErrAlreadyInState   = errors.New("order already in this state")
	ErrCancelledFrozen  = errors.New("cancelled order status is frozen")
	ErrBackward         = errors.New("status cannot move backward")
	ErrSkipsStage       = errors.New("status cannot skip a stage")
	ErrUnknownStatus    = errors.New("unknown status")
	ErrAlreadyCancelled = errors.New("order already cancelled")
	ErrAlreadyDelivered = errors.New("delivered order cannot be cancelled")
	ErrAlreadyDeleted   = errors.New("order already deleted")
)

// forward sequence; cancelled sits outside it.
var stageIndex = map[models.OrderStatus]int{
	models.OrderStatusCreated:    0,
	models.OrderStatusProcessing: 1,
	models.OrderStatusShipped:    2,
	models.OrderStatusDelivered:  3,
}

type Lifecycle struct {
	Ledger *inventory.Ledger
	Events *notify.Events
}

// Advance moves an order exactly one stage forward. Admin authorization is
// the caller's job.
func (l *Lifecycle) Advance(order *models.Order, target models.OrderStatus, actor uuid.UUID, now time.Time) error {
	if target == order.Status {
		return fmt.Errorf("%w: %s", ErrAlreadyInState, target)
	}
	if order.Status == models.OrderStatusCancelled {
		return ErrCancelledFrozen
	}
	targetIdx, ok := stageIndex[target]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStatus, target)
	}
	currentIdx := stageIndex[order.Status]
	if targetIdx < currentIdx {
		return fmt.Errorf("%w: %s -> %s", ErrBackward, order.Status, target)
	}
	if targetIdx > currentIdx+1 {
		return fmt.Errorf("%w: %s -> %s", ErrSkipsStage, order.Status, target)
	}

	order.Status = target
	order.StatusUpdatedAt = &now
	order.StatusUpdatedBy = &actor
	return nil
}

// Cancel is one-way and reachable from any non-delivered, non-cancelled
// state. It mutates the order in memory only and reports whether the order
// still holds reserved stock; the caller persists the transition and then
// runs AfterCancel, so a failed save leaves inventory and events untouched.
// Card payments get a refund obligation recorded for the refund worker.
func (l *Lifecycle) Cancel(order *models.Order, actor uuid.UUID, now time.Time) (stockHeld bool, err error) {
	if order.Status == models.OrderStatusCancelled {
		return false, ErrAlreadyCancelled
	}
	if order.Status == models.OrderStatusDelivered {
		return false, ErrAlreadyDelivered
	}

	// A paid order flagged for review never got its reservation, so there is
	// nothing to give back.
	stockHeld = order.IsPaid && !order.NeedsReview

	order.Status = models.OrderStatusCancelled
	order.StatusUpdatedAt = &now
	order.StatusUpdatedBy = &actor

	if order.IsPaid && order.PaymentMethod.IsCard() {
		order.RefundDue = true
	}

	return stockHeld, nil
}

// AfterCancel runs the side effects of a persisted cancellation: the
// best-effort stock release and, for card payments, the refund event.
func (l *Lifecycle) AfterCancel(ctx context.Context, order *models.Order, stockHeld bool) {
	if stockHeld {
		l.ReleaseHeldStock(ctx, order)
	}

	if order.RefundDue {
		if err := l.Events.Publish(ctx, notify.EventRefundRequested, order.ID, map[string]any{
			"amount":         order.TotalAmount,
			"payment_method": string(order.PaymentMethod),
		}); err != nil {
			logging.FromContext(ctx).Error("refund_event_failed", "order_id", order.ID, "error", err)
		}
	}
}

// SoftDelete marks the order deleted regardless of status. Hard deletes do
// not exist. Like Cancel it only mutates in memory; stock still held at
// deletion time (paid and reserved, not previously cancelled or delivered)
// is released by the caller through ReleaseHeldStock after the save.
func (l *Lifecycle) SoftDelete(order *models.Order, actor uuid.UUID, now time.Time) (stockHeld bool, err error) {
	if order.IsDeleted {
		return false, ErrAlreadyDeleted
	}

	stockHeld = order.IsPaid && !order.NeedsReview &&
		order.Status != models.OrderStatusCancelled &&
		order.Status != models.OrderStatusDelivered

	order.IsDeleted = true
	order.DeletedAt = &now
	order.DeletedBy = &actor

	return stockHeld, nil
}

// ReleaseHeldStock gives reserved stock back once the owning transition has
// been persisted.
func (l *Lifecycle) ReleaseHeldStock(ctx context.Context, order *models.Order) {
	if err := l.Ledger.Release(ctx, order.Items); err != nil {
		// Already logged by the ledger; retried out-of-band by reconciliation.
		logging.FromContext(ctx).Warn("stock_release_deferred", "order_id", order.ID)
	}
}
