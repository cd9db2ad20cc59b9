package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nvkumar/shopkart/internal/models"
	"github.com/nvkumar/shopkart/pkg/logging"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrOutOfStock        = errors.New("out of stock")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Ledger struct {
	DB *gorm.DB
}

// needed sums the requested quantity per product so the same product appearing
// in two lines is validated against the combined amount.
func needed(items []models.OrderItem) map[uuid.UUID]int {
	m := make(map[uuid.UUID]int, len(items))
	for _, it := range items {
		m[it.ProductID] += it.Quantity
	}
	return m
}

// CheckAvailable is the read-only checkout-time stock check. It takes no
// locks, so a passing check can still be stale by the time the payment is
// confirmed; Reserve re-validates under row locks.
func (l *Ledger) CheckAvailable(ctx context.Context, items []models.OrderItem) error {
	for id, qty := range needed(items) {
		var p models.Product
		err := l.DB.WithContext(ctx).
			Where("id = ? AND is_deleted = ?", id, false).
			First(&p).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrProductNotFound, id)
			}
			return err
		}
		if err := checkStock(&p, qty); err != nil {
			return err
		}
	}
	return nil
}

// Reserve decrements stock and increments sold units for every item, or for
// none of them. Validation of every product happens before any mutation, all
// inside one transaction with the rows locked.
func (l *Ledger) Reserve(ctx context.Context, items []models.OrderItem) error {
	want := needed(items)
	return l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, qty := range want {
			var p models.Product
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ? AND is_deleted = ?", id, false).
				First(&p).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: %s", ErrProductNotFound, id)
				}
				return err
			}
			if err := checkStock(&p, qty); err != nil {
				return err
			}
		}

		for id, qty := range want {
			err := tx.Model(&models.Product{}).
				Where("id = ?", id).
				Updates(map[string]any{
					"stock":      gorm.Expr("stock - ?", qty),
					"sold_units": gorm.Expr("sold_units + ?", qty),
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Release is the inverse of Reserve, used on cancellation and deletion. Sold
// units are floored at zero. Failures are logged here and must not block the
// status transition that triggered the release.
func (l *Ledger) Release(ctx context.Context, items []models.OrderItem) error {
	want := needed(items)
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, qty := range want {
			err := tx.Model(&models.Product{}).
				Where("id = ?", id).
				Updates(map[string]any{
					"stock":      gorm.Expr("stock + ?", qty),
					"sold_units": gorm.Expr("CASE WHEN sold_units > ? THEN sold_units - ? ELSE 0 END", qty, qty),
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logging.FromContext(ctx).Error("inventory_release_failed", "error", err)
	}
	return err
}

func checkStock(p *models.Product, qty int) error {
	if p.Stock == 0 {
		return fmt.Errorf("%w: product %s", ErrOutOfStock, p.ID)
	}
	if p.Stock < qty {
		return fmt.Errorf("%w: product %s, available %d, requested %d",
			ErrInsufficientStock, p.ID, p.Stock, qty)
	}
	return nil
}
