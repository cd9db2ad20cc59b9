package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nvkumar/shopkart/internal/coupon"
	"github.com/nvkumar/shopkart/internal/inventory"
	"github.com/nvkumar/shopkart/internal/lifecycle"
	"github.com/nvkumar/shopkart/internal/models"
	"github.com/nvkumar/shopkart/internal/notify"
	"github.com/nvkumar/shopkart/internal/payment"
	"github.com/nvkumar/shopkart/internal/repo"
	"github.com/nvkumar/shopkart/internal/transport"
)

type fakeGateway struct {
	n    int
	fail bool
}

func (g *fakeGateway) CreateIntent(_ context.Context, _ int64, _ string) (string, error) {
	if g.fail {
		return "", fmt.Errorf("%w: unreachable", payment.ErrGateway)
	}
	g.n++
	return fmt.Sprintf("order_intent_%d", g.n), nil
}

type fakeCart struct {
	cleared []uuid.UUID
}

func (c *fakeCart) Clear(_ context.Context, userID uuid.UUID) error {
	c.cleared = append(c.cleared, userID)
	return nil
}

type testEnv struct {
	svc     *OrderService
	db      *gorm.DB
	gateway *fakeGateway
	sender  *recordingSender
	cart    *fakeCart
	secret  []byte
}

type recordingSender struct {
	subjects []string
	fail     bool
}

func (s *recordingSender) Send(_ context.Context, msg notify.Message) (string, error) {
	if s.fail {
		return "", errors.New("smtp down")
	}
	s.subjects = append(s.subjects, msg.Subject)
	return uuid.NewString(), nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.Order{}, &models.OrderItem{}, &models.Coupon{}))

	r := &repo.GormRepo{DB: db}
	ledger := &inventory.Ledger{DB: db}
	gateway := &fakeGateway{}
	sender := &recordingSender{}
	cartStore := &fakeCart{}
	secret := []byte("test-gateway-secret")

	svc := &OrderService{
		Repo:          r,
		Coupons:       &coupon.Service{Repo: r},
		Ledger:        ledger,
		Life:          &lifecycle.Lifecycle{Ledger: ledger},
		Gateway:       gateway,
		GatewaySecret: secret,
		Cart:          cartStore,
		Sender:        sender,
	}

	return &testEnv{svc: svc, db: db, gateway: gateway, sender: sender, cart: cartStore, secret: secret}
}

func seedProduct(t *testing.T, db *gorm.DB, price float64, stock int) models.Product {
	t.Helper()

	p := models.Product{ID: uuid.New(), Name: "test_product", Price: price, Stock: stock}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func createRequest(p models.Product, qty int) transport.CreateOrderRequest {
	return transport.CreateOrderRequest{
		Items:             []transport.CreateOrderItem{{ProductID: p.ID, Quantity: qty}},
		ShippingCharge:    50,
		ShippingAddressID: uuid.New(),
		PaymentMethod:     string(models.PaymentMethodCreditCard),
	}
}

func (e *testEnv) confirmRequest(order *models.Order, paymentID string) transport.ConfirmPaymentRequest {
	return transport.ConfirmPaymentRequest{
		OrderID:   order.IntentID,
		PaymentID: paymentID,
		Signature: payment.Signature(order.IntentID, paymentID, e.secret),
	}
}

func TestCreateOrder_TotalsAndNoReservation(t *testing.T) {
	env := newTestEnv(t)
	p := seedProduct(t, env.db, 500, 10)
	userID := uuid.New()

	order, err := env.svc.CreateOrder(context.Background(), userID, createRequest(p, 2))
	require.NoError(t, err)

	assert.Equal(t, 1000.0, order.Subtotal)
	assert.Equal(t, 189.0, order.TaxAmount)
	assert.Equal(t, 1239.0, order.TotalAmount)
	assert.Equal(t, models.OrderStatusCreated, order.Status)
	assert.False(t, order.IsPaid)
	assert.Equal(t, "order_intent_1", order.IntentID)

	var got models.Product
	require.NoError(t, env.db.First(&got, "id = ?", p.ID).Error)
	assert.Equal(t, 10, got.Stock, "intent creation must not reserve stock")
}

func TestCreateOrder_RepricesFromCatalog(t *testing.T) {
	env := newTestEnv(t)
	p := seedProduct(t, env.db, 750, 5)

	order, err := env.svc.CreateOrder(context.Background(), uuid.New(), createRequest(p, 1))
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 750.0, order.Items[0].UnitPrice, "unit price must come from the catalog")
}

func TestCreateOrder_WithFlatCoupon(t *testing.T) {
	env := newTestEnv(t)
	p := seedProduct(t, env.db, 500, 10)

	c := models.Coupon{
		ID:           uuid.New(),
		Code:         "SAVE100",
		DiscountType: models.DiscountTypeFlat,
		FlatDiscount: 100,
		ExpiryDate:   time.Now().UTC().Add(24 * time.Hour),
		Status:       models.CouponStatusActive,
	}
	require.NoError(t, env.db.Create(&c).Error)

	req := createRequest(p, 2)
	req.CouponCode = "SAVE100"

	order, err := env.svc.CreateOrder(context.Background(), uuid.New(), req)
	require.NoError(t, err)
	assert.Equal(t, 100.0, order.Discount)
	assert.Equal(t, 1139.0, order.TotalAmount)
}

func TestCreateOrder_FlatCouponExceedingSubtotal(t *testing.T) {
	env := newTestEnv(t)
	p := seedProduct(t, env.db, 500, 10)

	c := models.Coupon{
		ID:           uuid.New(),
		Code:         "SAVE1500",
		DiscountType: models.DiscountTypeFlat,
		FlatDiscount: 1500,
		ExpiryDate:   time.Now().UTC().Add(24 * time.Hour),
		Status:       models.CouponStatusActive,
	}
	require.NoError(t, env.db.Create(&c).Error)

	req := createRequest(p, 2)
	req.CouponCode = "SAVE1500"

	_, err := env.svc.CreateOrder(context.Background(), uuid.New(), req)
	require.Error(t, err)
}

func TestCreateOrder_Validation(t *testing.T) {
	env := newTestEnv(t)
	p := seedProduct(t, env.db, 500, 10)

	req := createRequest(p, 2)
	req.Items = nil
	_, err := env.svc.CreateOrder(context.Background(), uuid.New(), req)
	require.ErrorIs(t, err, ErrValidation)

	req = createRequest(p, 11)
	_, err = env.svc.CreateOrder(context.Background(), uuid.New(), req)
	require.ErrorIs(t, err, ErrValidation)

	req = createRequest(p, 2)
	req.PaymentMethod = "bitcoin"
	_, err = env.svc.CreateOrder(context.Background(), uuid.New(), req)
	require.ErrorIs(t, err, ErrValidation)

	req = createRequest(p, 2)
	req.ShippingCharge = 10
	_, err = env.svc.CreateOrder(context.Background(), uuid.New(), req)
	require.ErrorIs(t, err, ErrValidation)

	req = createRequest(models.Product{ID: uuid.New()}, 2)
	_, err = env.svc.CreateOrder(context.Background(), uuid.New(), req)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateOrder_OutOfStockAtCheckout(t *testing.T) {
	env := newTestEnv(t)
	p := seedProduct(t, env.db, 500, 1)

	_, err := env.svc.CreateOrder(context.Background(), uuid.New(), createRequest(p, 2))
	require.ErrorIs(t, err, ErrConflict)
}

func TestConfirmPayment_HappyPath(t *testing.T) {
	env := newTestEnv(t)
	p := seedProduct(t, env.db, 500, 10)
	userID := uuid.New()

	order, err := env.svc.CreateOrder(context.Background(), userID, createRequest(p, 2))
	require.NoError(t, err)

	confirmed, err := env.svc.ConfirmPayment(context.Background(), env.confirmRequest(order, "pay_1"))
	require.NoError(t, err)

	assert.True(t, confirmed.IsPaid)
	require.NotNil(t, confirmed.PaymentID)
	assert.Equal(t, "pay_1", *confirmed.PaymentID)

	var got models.Product
	require.NoError(t, env.db.First(&got, "id = ?", p.ID).Error)
	assert.Equal(t, 8, got.Stock)
	assert.Equal(t, 2, got.SoldUnits)

	require.Len(t, env.cart.cleared, 1)
	assert.Equal(t, userID, env.cart.cleared[0])
	assert.Equal(t, []string{"Order confirmation"}, env.sender.subjects)
}

func TestConfirmPayment_InvalidSignature(t *testing.T) {
	env := newTestEnv(t)
	p := seedProduct(t, env.db, 500, 10)

	order, err := env.svc.CreateOrder(context.Background(), uuid.New(), createRequest(p, 2))
	require.NoError(t, err)

	req := env.confirmRequest(order, "pay_1")
	req.Signature = req.Signature[:len(req.Signature)-1] + "0"
	if req.Signature == payment.Signature(order.IntentID, "pay_1", env.secret) {
		req.Signature = req.Signature[:len(req.Signature)-1] + "1"
	}

	_, err = env.svc.ConfirmPayment(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidSignature)

	var got models.Order
	require.NoError(t, env.db.First(&got, "id = ?", order.ID).Error)
	assert.False(t, got.IsPaid)
}

func TestConfirmPayment_SecondCallConflicts(t *testing.T) {
	env := newTestEnv(t)
	p := seedProduct(t, env.db, 500, 10)

	order, err := env.svc.CreateOrder(context.Background(), uuid.New(), createRequest(p, 2))
	require.NoError(t, err)

	req := env.confirmRequest(order, "pay_1")
	_, err = env.svc.ConfirmPayment(context.Background(), req)
	require.NoError(t, err)

	_, err = env.svc.ConfirmPayment(context.Background(), req)
	require.ErrorIs(t, err, ErrConflict)

	var got models.Product
	require.NoError(t, env.db.First(&got, "id = ?", p.ID).Error)
	assert.Equal(t, 8, got.Stock, "inventory decremented exactly once")
	assert.Equal(t, 2, got.SoldUnits)
}

func TestConfirmPayment_StockVanished(t *testing.T) {
	env := newTestEnv(t)
	p := seedProduct(t, env.db, 500, 2)

	order, err := env.svc.CreateOrder(context.Background(), uuid.New(), createRequest(p, 2))
	require.NoError(t, err)

	// stock is bought out between checkout and the callback
	require.NoError(t, env.db.Model(&models.Product{}).Where("id = ?", p.ID).Update("stock", 0).Error)

	confirmed, err := env.svc.ConfirmPayment(context.Background(), env.confirmRequest(order, "pay_1"))
	require.ErrorIs(t, err, ErrStockReservation)

	require.NotNil(t, confirmed)
	assert.True(t, confirmed.NeedsReview)

	var got models.Order
	require.NoError(t, env.db.First(&got, "id = ?", order.ID).Error)
	assert.True(t, got.IsPaid, "payment stands even when reservation fails")
	assert.True(t, got.NeedsReview)
}

func TestConfirmPayment_NotificationFailureKeepsPayment(t *testing.T) {
	env := newTestEnv(t)
	p := seedProduct(t, env.db, 500, 10)

	order, err := env.svc.CreateOrder(context.Background(), uuid.New(), createRequest(p, 2))
	require.NoError(t, err)

	env.sender.fail = true
	confirmed, err := env.svc.ConfirmPayment(context.Background(), env.confirmRequest(order, "pay_1"))
	require.ErrorIs(t, err, ErrNotifyFailed)
	require.NotNil(t, confirmed)
	assert.True(t, confirmed.IsPaid)

	var got models.Product
	require.NoError(t, env.db.First(&got, "id = ?", p.ID).Error)
	assert.Equal(t, 8, got.Stock, "reservation is not rolled back on a failed email")
}

func TestCancelOrder_RestoresInventoryAndFlagsRefund(t *testing.T) {
	env := newTestEnv(t)
	p := seedProduct(t, env.db, 500, 10)
	userID := uuid.New()

	order, err := env.svc.CreateOrder(context.Background(), userID, createRequest(p, 2))
	require.NoError(t, err)
	_, err = env.svc.ConfirmPayment(context.Background(), env.confirmRequest(order, "pay_1"))
	require.NoError(t, err)

	_, err = env.svc.AdminUpdateStatus(context.Background(), order.ID, models.OrderStatusProcessing, uuid.New())
	require.NoError(t, err)
	_, err = env.svc.AdminUpdateStatus(context.Background(), order.ID, models.OrderStatusShipped, uuid.New())
	require.NoError(t, err)

	cancelled, err := env.svc.CancelOrder(context.Background(), order.ID, userID)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.True(t, cancelled.RefundDue, "card payment owes a refund")

	var got models.Product
	require.NoError(t, env.db.First(&got, "id = ?", p.ID).Error)
	assert.Equal(t, 10, got.Stock, "stock returns to its pre-order value")
	assert.Equal(t, 0, got.SoldUnits)
}

func TestCancelOrder_ReviewFlaggedOrderKeepsInventory(t *testing.T) {
	env := newTestEnv(t)
	p := seedProduct(t, env.db, 500, 2)
	userID := uuid.New()

	order, err := env.svc.CreateOrder(context.Background(), userID, createRequest(p, 2))
	require.NoError(t, err)

	// stock is bought out between checkout and the callback, so the paid
	// order ends up flagged for review with no reservation behind it
	require.NoError(t, env.db.Model(&models.Product{}).Where("id = ?", p.ID).Update("stock", 0).Error)
	_, err = env.svc.ConfirmPayment(context.Background(), env.confirmRequest(order, "pay_1"))
	require.ErrorIs(t, err, ErrStockReservation)

	cancelled, err := env.svc.CancelOrder(context.Background(), order.ID, userID)
	require.NoError(t, err)
	assert.True(t, cancelled.RefundDue, "the captured payment still owes a refund")

	var got models.Product
	require.NoError(t, env.db.First(&got, "id = ?", p.ID).Error)
	assert.Equal(t, 0, got.Stock, "cancel must not release stock that was never reserved")
}

func TestCancelOrder_OnlyOwnerMayCancel(t *testing.T) {
	env := newTestEnv(t)
	p := seedProduct(t, env.db, 500, 10)

	order, err := env.svc.CreateOrder(context.Background(), uuid.New(), createRequest(p, 1))
	require.NoError(t, err)

	_, err = env.svc.CancelOrder(context.Background(), order.ID, uuid.New())
	require.ErrorIs(t, err, ErrForbidden)
}

func TestAdminUpdateStatus_SkipsStage(t *testing.T) {
	env := newTestEnv(t)
	p := seedProduct(t, env.db, 500, 10)

	order, err := env.svc.CreateOrder(context.Background(), uuid.New(), createRequest(p, 1))
	require.NoError(t, err)

	_, err = env.svc.AdminUpdateStatus(context.Background(), order.ID, models.OrderStatusDelivered, uuid.New())
	require.ErrorIs(t, err, ErrForbidden)

	_, err = env.svc.AdminUpdateStatus(context.Background(), order.ID, models.OrderStatusCreated, uuid.New())
	require.ErrorIs(t, err, ErrConflict)
}

func TestAdminSoftDelete(t *testing.T) {
	env := newTestEnv(t)
	p := seedProduct(t, env.db, 500, 10)
	userID := uuid.New()

	order, err := env.svc.CreateOrder(context.Background(), userID, createRequest(p, 2))
	require.NoError(t, err)
	_, err = env.svc.ConfirmPayment(context.Background(), env.confirmRequest(order, "pay_1"))
	require.NoError(t, err)

	admin := uuid.New()
	deleted, err := env.svc.AdminSoftDelete(context.Background(), order.ID, admin)
	require.NoError(t, err)

	assert.True(t, deleted.IsDeleted)
	require.NotNil(t, deleted.DeletedBy)
	assert.Equal(t, admin, *deleted.DeletedBy)

	var got models.Product
	require.NoError(t, env.db.First(&got, "id = ?", p.ID).Error)
	assert.Equal(t, 10, got.Stock, "held stock is released on deletion")

	// soft-deleted orders disappear from lookups but not from the table
	_, err = env.svc.GetOrder(context.Background(), order.ID, userID, false)
	require.ErrorIs(t, err, ErrNotFound)

	var row models.Order
	require.NoError(t, env.db.First(&row, "id = ?", order.ID).Error)
	assert.True(t, row.IsDeleted)
}

func TestReapStaleOrders(t *testing.T) {
	env := newTestEnv(t)
	p := seedProduct(t, env.db, 500, 10)

	stale, err := env.svc.CreateOrder(context.Background(), uuid.New(), createRequest(p, 1))
	require.NoError(t, err)
	require.NoError(t, env.db.Model(&models.Order{}).Where("id = ?", stale.ID).
		Update("created_at", time.Now().UTC().Add(-48*time.Hour)).Error)

	fresh, err := env.svc.CreateOrder(context.Background(), uuid.New(), createRequest(p, 1))
	require.NoError(t, err)

	n, err := env.svc.ReapStaleOrders(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var got models.Order
	require.NoError(t, env.db.First(&got, "id = ?", stale.ID).Error)
	assert.Equal(t, models.OrderStatusCancelled, got.Status)

	got = models.Order{}
	require.NoError(t, env.db.First(&got, "id = ?", fresh.ID).Error)
	assert.Equal(t, models.OrderStatusCreated, got.Status)

	var gotP models.Product
	require.NoError(t, env.db.First(&gotP, "id = ?", p.ID).Error)
	assert.Equal(t, 10, gotP.Stock, "unpaid orders never held stock")
}

func TestListOrders(t *testing.T) {
	env := newTestEnv(t)
	p := seedProduct(t, env.db, 500, 10)

	alice := uuid.New()
	bob := uuid.New()

	_, err := env.svc.CreateOrder(context.Background(), alice, createRequest(p, 1))
	require.NoError(t, err)
	_, err = env.svc.CreateOrder(context.Background(), bob, createRequest(p, 1))
	require.NoError(t, err)

	total, orders, err := env.svc.ListOrders(context.Background(), alice, false, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, orders, 1)
	assert.Equal(t, alice, orders[0].UserID)

	total, _, err = env.svc.ListOrders(context.Background(), alice, true, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}
