package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreateOrderItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type CreateOrderRequest struct {
	Items             []CreateOrderItem `json:"items"`
	ShippingCharge    float64           `json:"shipping_charge"`
	CouponCode        string            `json:"coupon_code,omitempty"`
	ShippingAddressID uuid.UUID         `json:"shipping_address_id"`
	PaymentMethod     string            `json:"payment_method"`
}

// ConfirmPaymentRequest is the gateway callback body. OrderID is the
// gateway-side intent id the order was created against.
type ConfirmPaymentRequest struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type CreateCouponRequest struct {
	Code               string    `json:"code"`
	DiscountType       string    `json:"discount_type"`
	FlatDiscount       float64   `json:"flat_discount,omitempty"`
	PercentageDiscount float64   `json:"percentage_discount,omitempty"`
	ExpiryDate         time.Time `json:"expiry_date"`
}

type ChangeCouponStateRequest struct {
	State string `json:"state"` // "activate" or "deactivate"
}
