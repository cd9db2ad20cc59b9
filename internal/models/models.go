package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusCreated    OrderStatus = "created"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentMethodCOD        PaymentMethod = "cash_on_delivery"
	PaymentMethodDebitCard  PaymentMethod = "debit_card"
	PaymentMethodCreditCard PaymentMethod = "credit_card"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodDebitCard, PaymentMethodCreditCard:
		return true
	}
	return false
}

// IsCard reports whether a cancellation of a paid order owes the user a refund.
func (m PaymentMethod) IsCard() bool {
	return m == PaymentMethodDebitCard || m == PaymentMethodCreditCard
}

type DiscountType string

const (
	DiscountTypeFlat       DiscountType = "flat"
	DiscountTypePercentage DiscountType = "percentage"
)

type CouponStatus string

const (
	CouponStatusActive   CouponStatus = "active"
	CouponStatusInactive CouponStatus = "inactive"
	CouponStatusExpired  CouponStatus = "expired"
)

type Product struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"        json:"id"`
	Name        string    `gorm:"not null"                    json:"name"`
	Description string    `json:"description"`
	Price       float64   `gorm:"not null"                    json:"price"`
	Stock       int       `gorm:"not null;check:stock >= 0"   json:"stock"`
	SoldUnits   int       `gorm:"not null;default:0"          json:"sold_units"`
	IsDeleted   bool      `gorm:"not null;default:false"      json:"is_deleted"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OrderItem captures the unit price at purchase time. It is never updated
// after the order is created, so later catalog price changes do not touch it.
type OrderItem struct {
	ID        uint      `gorm:"primaryKey"                    json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;index;not null"      json:"order_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null"            json:"product_id"`
	Quantity  int       `gorm:"not null;check:quantity > 0"   json:"quantity"`
	UnitPrice float64   `gorm:"not null"                      json:"unit_price"`
}

type Order struct {
	ID                uuid.UUID     `gorm:"type:uuid;primaryKey"      json:"id"`
	UserID            uuid.UUID     `gorm:"type:uuid;index;not null"  json:"user_id"`
	Items             []OrderItem   `gorm:"foreignKey:OrderID"        json:"items"`
	Subtotal          float64       `gorm:"not null"                  json:"subtotal"`
	Discount          float64       `gorm:"not null;default:0"        json:"discount"`
	ShippingCharge    float64       `gorm:"not null"                  json:"shipping_charge"`
	TaxAmount         float64       `gorm:"not null"                  json:"tax_amount"`
	TotalAmount       float64       `gorm:"not null"                  json:"total_amount"`
	CouponCode        string        `json:"coupon_code,omitempty"`
	ShippingAddressID uuid.UUID     `gorm:"type:uuid;not null"        json:"shipping_address_id"`
	PaymentMethod     PaymentMethod `gorm:"not null"                  json:"payment_method"`
	IsPaid            bool          `gorm:"not null;default:false"    json:"is_paid"`
	IntentID          string        `gorm:"uniqueIndex;not null"      json:"intent_id"`
	PaymentID         *string       `gorm:"uniqueIndex"               json:"payment_id,omitempty"`
	NeedsReview       bool          `gorm:"not null;default:false"    json:"needs_review"`
	RefundDue         bool          `gorm:"not null;default:false"    json:"refund_due"`
	Status            OrderStatus   `gorm:"index;not null"            json:"status"`
	StatusUpdatedAt   *time.Time    `json:"status_updated_at,omitempty"`
	StatusUpdatedBy   *uuid.UUID    `gorm:"type:uuid"                 json:"status_updated_by,omitempty"`
	IsDeleted         bool          `gorm:"not null;default:false"    json:"is_deleted"`
	DeletedAt         *time.Time    `json:"deleted_at,omitempty"`
	DeletedBy         *uuid.UUID    `gorm:"type:uuid"                 json:"deleted_by,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Coupon keeps exactly one of FlatDiscount / PercentageDiscount set, matching
// its DiscountType. Coupons are never deleted, only state-transitioned.
type Coupon struct {
	ID                 uuid.UUID    `gorm:"type:uuid;primaryKey"   json:"id"`
	Code               string       `gorm:"uniqueIndex;not null"   json:"code"`
	DiscountType       DiscountType `gorm:"not null"               json:"discount_type"`
	FlatDiscount       float64      `json:"flat_discount,omitempty"`
	PercentageDiscount float64      `json:"percentage_discount,omitempty"`
	ExpiryDate         time.Time    `gorm:"index;not null"         json:"expiry_date"`
	Status             CouponStatus `gorm:"index;not null"         json:"status"`
	CreatedBy          uuid.UUID    `gorm:"type:uuid"              json:"created_by"`
	LastUpdatedBy      *uuid.UUID   `gorm:"type:uuid"              json:"last_updated_by,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}
