package pricing

import (
	"errors"
	"fmt"
	"math"

	"github.com/nvkumar/shopkart/internal/models"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrCouponNotApplicable = errors.New("coupon not applicable")
)

const (
	GSTRate = 0.18

	MinPrice          = 10.0
	MaxPrice          = 100000.0
	MinQuantity       = 1
	MaxQuantity       = 10
	MinShippingCharge = 30.0
)

type Line struct {
	UnitPrice float64
	Quantity  int
}

type Totals struct {
	Subtotal    float64 `json:"subtotal"`
	TaxAmount   float64 `json:"tax_amount"`
	TotalAmount float64 `json:"total_amount"`
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ComputeTotals does the arithmetic only. Price and quantity bounds are the
// caller's responsibility, checked before the lines ever reach here.
func ComputeTotals(lines []Line, discount, shippingCharge, taxRate float64) (Totals, error) {
	var subtotal float64
	for _, l := range lines {
		subtotal += l.UnitPrice * float64(l.Quantity)
	}
	subtotal = Round2(subtotal)

	taxAmount := Round2((subtotal + shippingCharge) * taxRate)
	totalAmount := Round2(subtotal - discount + shippingCharge + taxAmount)

	if totalAmount < 0 {
		return Totals{}, fmt.Errorf("%w: total %0.2f is negative", ErrInvalidAmount, totalAmount)
	}

	return Totals{
		Subtotal:    subtotal,
		TaxAmount:   taxAmount,
		TotalAmount: totalAmount,
	}, nil
}

func ComputeDiscount(coupon *models.Coupon, subtotal float64) (float64, error) {
	switch coupon.DiscountType {
	case models.DiscountTypeFlat:
		if subtotal < coupon.FlatDiscount {
			return 0, fmt.Errorf("%w: order amount must be at least %0.2f to apply this coupon",
				ErrCouponNotApplicable, coupon.FlatDiscount)
		}
		return coupon.FlatDiscount, nil
	case models.DiscountTypePercentage:
		return Round2(subtotal * coupon.PercentageDiscount / 100), nil
	default:
		return 0, fmt.Errorf("%w: unknown discount type %q", ErrCouponNotApplicable, coupon.DiscountType)
	}
}
