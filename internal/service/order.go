package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nvkumar/shopkart/internal/coupon"
	"github.com/nvkumar/shopkart/internal/inventory"
	"github.com/nvkumar/shopkart/internal/lifecycle"
	"github.com/nvkumar/shopkart/internal/models"
	"github.com/nvkumar/shopkart/internal/notify"
	"github.com/nvkumar/shopkart/internal/payment"
	"github.com/nvkumar/shopkart/internal/pricing"
	"github.com/nvkumar/shopkart/internal/repo"
	"github.com/nvkumar/shopkart/internal/transport"
	"github.com/nvkumar/shopkart/pkg/logging"
)

var (
	ErrValidation       = errors.New("validation")       // 400
	ErrNotFound         = errors.New("not found")        // 404
	ErrConflict         = errors.New("conflict")         // 409
	ErrForbidden        = errors.New("forbidden")        // 403
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrStockReservation = errors.New("stock reservation failed") // order stays paid, flagged for review
	ErrNotifyFailed     = errors.New("notification dispatch failed")
)

const Currency = "INR"

// CartClearer empties a user's cart after a confirmed payment.
type CartClearer interface {
	Clear(ctx context.Context, userID uuid.UUID) error
}

type OrderService struct {
	Repo          *repo.GormRepo
	Coupons       *coupon.Service
	Ledger        *inventory.Ledger
	Life          *lifecycle.Lifecycle
	Gateway       payment.Gateway
	GatewaySecret []byte
	Cart          CartClearer
	Sender        notify.Sender
	Events        *notify.Events
}

// CreateOrder prices the cart, opens a payment intent and persists the order
// unpaid. Stock is only checked, never reserved, at this point: reservation
// waits for the confirmed payment so abandoned checkouts hold nothing.
func (svc *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, req transport.CreateOrderRequest) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.create_order", "user_id", userID)

	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: items required", ErrValidation)
	}
	method := models.PaymentMethod(req.PaymentMethod)
	if !method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrValidation, req.PaymentMethod)
	}
	if req.ShippingCharge < pricing.MinShippingCharge {
		return nil, fmt.Errorf("%w: shipping charge must be at least %0.2f", ErrValidation, float64(pricing.MinShippingCharge))
	}
	if req.ShippingAddressID == uuid.Nil {
		return nil, fmt.Errorf("%w: shipping address required", ErrValidation)
	}

	// Unit prices come from the catalog row, not the request body, so a
	// tampered client cannot reprice its own order.
	items := make([]models.OrderItem, 0, len(req.Items))
	lines := make([]pricing.Line, 0, len(req.Items))
	for _, reqItem := range req.Items {
		if reqItem.ProductID == uuid.Nil {
			return nil, fmt.Errorf("%w: product_id required", ErrValidation)
		}
		if reqItem.Quantity < pricing.MinQuantity || reqItem.Quantity > pricing.MaxQuantity {
			return nil, fmt.Errorf("%w: quantity must be between %d and %d", ErrValidation, pricing.MinQuantity, pricing.MaxQuantity)
		}

		product, err := svc.Repo.GetProduct(ctx, reqItem.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: product %s", ErrNotFound, reqItem.ProductID)
			}
			return nil, err
		}
		if product.Price < pricing.MinPrice || product.Price > pricing.MaxPrice {
			return nil, fmt.Errorf("%w: product %s price %0.2f outside the listing range", ErrValidation, product.ID, product.Price)
		}

		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Quantity:  reqItem.Quantity,
			UnitPrice: product.Price,
		})
		lines = append(lines, pricing.Line{UnitPrice: product.Price, Quantity: reqItem.Quantity})
	}

	if err := svc.Ledger.CheckAvailable(ctx, items); err != nil {
		switch {
		case errors.Is(err, inventory.ErrProductNotFound):
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		case errors.Is(err, inventory.ErrOutOfStock), errors.Is(err, inventory.ErrInsufficientStock):
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, err
	}

	var discount float64
	if req.CouponCode != "" {
		c, err := svc.Coupons.Validate(ctx, req.CouponCode, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		var subtotal float64
		for _, line := range lines {
			subtotal += line.UnitPrice * float64(line.Quantity)
		}
		discount, err = pricing.ComputeDiscount(c, pricing.Round2(subtotal))
		if err != nil {
			return nil, err
		}
	}

	totals, err := pricing.ComputeTotals(lines, discount, req.ShippingCharge, pricing.GSTRate)
	if err != nil {
		return nil, err
	}

	intentID, err := svc.Gateway.CreateIntent(ctx, toMinorUnits(totals.TotalAmount), Currency)
	if err != nil {
		l.Error("create_intent_failed", "error", err)
		return nil, err
	}

	order := &models.Order{
		ID:                uuid.New(),
		UserID:            userID,
		Items:             items,
		Subtotal:          totals.Subtotal,
		Discount:          discount,
		ShippingCharge:    req.ShippingCharge,
		TaxAmount:         totals.TaxAmount,
		TotalAmount:       totals.TotalAmount,
		CouponCode:        req.CouponCode,
		ShippingAddressID: req.ShippingAddressID,
		PaymentMethod:     method,
		IntentID:          intentID,
		Status:            models.OrderStatusCreated,
	}

	if _, err := svc.Repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	if err := svc.Events.Publish(ctx, notify.EventOrderCreated, order.ID, map[string]any{
		"user_id": userID.String(),
		"total":   order.TotalAmount,
	}); err != nil {
		l.Error("order_event_failed", "error", err)
	}

	l.Info("create_order_success", "order_id", order.ID, "total", order.TotalAmount)
	return order, nil
}

// ConfirmPayment handles the gateway callback. The is_paid flip is a
// conditional update, so a retried or concurrent callback loses the race and
// gets AlreadyConfirmed instead of reserving stock twice.
func (svc *OrderService) ConfirmPayment(ctx context.Context, req transport.ConfirmPaymentRequest) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.confirm_payment", "intent_id", req.OrderID)

	order, err := svc.Repo.GetOrderByIntent(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no order for intent %s", ErrNotFound, req.OrderID)
		}
		return nil, err
	}
	if order.IsPaid {
		return nil, fmt.Errorf("%w: payment already confirmed", ErrConflict)
	}

	if !payment.VerifySignature(req.OrderID, req.PaymentID, req.Signature, svc.GatewaySecret) {
		l.Warn("confirm_payment_rejected", "reason", "signature mismatch")
		return nil, ErrInvalidSignature
	}

	flipped, err := svc.Repo.MarkPaid(ctx, order.ID, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if !flipped {
		return nil, fmt.Errorf("%w: payment already confirmed", ErrConflict)
	}
	order.IsPaid = true
	order.PaymentID = &req.PaymentID

	if err := svc.Cart.Clear(ctx, order.UserID); err != nil {
		l.Error("cart_clear_failed", "user_id", order.UserID, "error", err)
	}

	if err := svc.Ledger.Reserve(ctx, order.Items); err != nil {
		// Stock vanished between checkout and confirmation. The payment
		// stands; the order goes to manual fulfillment review instead of a
		// synchronous auto-refund.
		l.Error("stock_reservation_failed", "order_id", order.ID, "error", err)
		if flagErr := svc.Repo.FlagForReview(ctx, order.ID); flagErr != nil {
			l.Error("flag_for_review_failed", "order_id", order.ID, "error", flagErr)
		}
		order.NeedsReview = true
		return order, fmt.Errorf("%w: %v", ErrStockReservation, err)
	}

	if err := svc.Events.Publish(ctx, notify.EventOrderPaid, order.ID, map[string]any{
		"payment_id": req.PaymentID,
		"total":      order.TotalAmount,
	}); err != nil {
		l.Error("order_event_failed", "error", err)
	}

	l.Info("confirm_payment_success", "order_id", order.ID)

	if _, err := svc.Sender.Send(ctx, notify.Message{
		Recipient: order.UserID.String(),
		Subject:   "Order confirmation",
		Text:      fmt.Sprintf("Order with ID %s has been placed successfully", order.ID),
	}); err != nil {
		// Payment state is the source of truth; the failed notification is
		// surfaced without rolling anything back.
		l.Error("confirmation_email_failed", "order_id", order.ID, "error", err)
		return order, fmt.Errorf("%w: %v", ErrNotifyFailed, err)
	}

	return order, nil
}

// CancelOrder lets the owning user cancel. The cancellation itself always
// succeeds once the guards pass; stock reconciliation and notifications may
// lag behind it.
func (svc *OrderService) CancelOrder(ctx context.Context, orderID, actorID uuid.UUID) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.cancel_order", "order_id", orderID)

	order, err := svc.Repo.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		return nil, err
	}
	if order.UserID != actorID {
		return nil, fmt.Errorf("%w: only the order owner may cancel", ErrForbidden)
	}

	stockHeld, err := svc.Life.Cancel(order, actorID, time.Now().UTC())
	if err != nil {
		return nil, translateLifecycleErr(err)
	}
	// The cancelled status goes to the database before any stock moves, so a
	// failed save cannot leave a released reservation behind a live order.
	if err := svc.Repo.SaveOrder(ctx, order); err != nil {
		return nil, err
	}
	svc.Life.AfterCancel(ctx, order, stockHeld)

	if err := svc.Events.Publish(ctx, notify.EventOrderCancelled, order.ID, map[string]any{
		"actor_id": actorID.String(),
	}); err != nil {
		l.Error("order_event_failed", "error", err)
	}

	if _, err := svc.Sender.Send(ctx, notify.Message{
		Recipient: order.UserID.String(),
		Subject:   "Order cancelled",
		Text:      fmt.Sprintf("Order with ID %s has been cancelled", order.ID),
	}); err != nil {
		l.Error("cancellation_email_failed", "order_id", order.ID, "error", err)
		return order, fmt.Errorf("%w: %v", ErrNotifyFailed, err)
	}

	l.Info("cancel_order_success")
	return order, nil
}

// AdminUpdateStatus advances the order one stage forward. Admin role is
// checked at the HTTP layer.
func (svc *OrderService) AdminUpdateStatus(ctx context.Context, orderID uuid.UUID, target models.OrderStatus, actorID uuid.UUID) (*models.Order, error) {
	order, err := svc.Repo.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		return nil, err
	}

	if err := svc.Life.Advance(order, target, actorID, time.Now().UTC()); err != nil {
		return nil, translateLifecycleErr(err)
	}
	if err := svc.Repo.SaveOrder(ctx, order); err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("update_status_success", "order_id", order.ID, "status", order.Status)
	return order, nil
}

func (svc *OrderService) AdminSoftDelete(ctx context.Context, orderID, actorID uuid.UUID) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.soft_delete", "order_id", orderID)

	order, err := svc.Repo.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		return nil, err
	}

	stockHeld, err := svc.Life.SoftDelete(order, actorID, time.Now().UTC())
	if err != nil {
		return nil, translateLifecycleErr(err)
	}
	if err := svc.Repo.SaveOrder(ctx, order); err != nil {
		return nil, err
	}
	if stockHeld {
		svc.Life.ReleaseHeldStock(ctx, order)
	}

	if err := svc.Events.Publish(ctx, notify.EventOrderDeleted, order.ID, map[string]any{
		"actor_id": actorID.String(),
	}); err != nil {
		l.Error("order_event_failed", "error", err)
	}

	if _, err := svc.Sender.Send(ctx, notify.Message{
		Recipient: order.UserID.String(),
		Subject:   "Order removed",
		Text:      fmt.Sprintf("Order with ID %s has been removed by the store", order.ID),
	}); err != nil {
		l.Error("deletion_email_failed", "order_id", order.ID, "error", err)
		return order, fmt.Errorf("%w: %v", ErrNotifyFailed, err)
	}

	l.Info("soft_delete_success")
	return order, nil
}

func (svc *OrderService) GetOrder(ctx context.Context, orderID, actorID uuid.UUID, isAdmin bool) (*models.Order, error) {
	order, err := svc.Repo.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		return nil, err
	}
	if !isAdmin && order.UserID != actorID {
		return nil, fmt.Errorf("%w: not your order", ErrForbidden)
	}
	return order, nil
}

func (svc *OrderService) ListOrders(ctx context.Context, userID uuid.UUID, isAdmin bool, limit, offset int) (int64, []models.Order, error) {
	if isAdmin {
		return svc.Repo.ListOrders(ctx, limit, offset)
	}
	return svc.Repo.ListOrdersByUser(ctx, userID, limit, offset)
}

func translateLifecycleErr(err error) error {
	switch {
	case errors.Is(err, lifecycle.ErrAlreadyInState),
		errors.Is(err, lifecycle.ErrAlreadyCancelled),
		errors.Is(err, lifecycle.ErrAlreadyDelivered),
		errors.Is(err, lifecycle.ErrAlreadyDeleted),
		errors.Is(err, lifecycle.ErrCancelledFrozen):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, lifecycle.ErrBackward),
		errors.Is(err, lifecycle.ErrSkipsStage):
		return fmt.Errorf("%w: %v", ErrForbidden, err)
	case errors.Is(err, lifecycle.ErrUnknownStatus):
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return err
}

func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
