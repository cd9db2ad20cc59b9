package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nvkumar/shopkart/internal/models"
)

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.DB.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *GormRepo) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items").
		Where("id = ? AND is_deleted = ?", id, false).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) GetOrderByIntent(ctx context.Context, intentID string) (*models.Order, error) {
	var order models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items").
		Where("intent_id = ? AND is_deleted = ?", intentID, false).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkPaid flips is_paid exactly once. The conditional update is what keeps
// two concurrent confirmations of the same order from both reserving
// inventory: only the caller that wins the flip proceeds.
func (r *GormRepo) MarkPaid(ctx context.Context, orderID uuid.UUID, paymentID string) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND is_paid = ?", orderID, false).
		Updates(map[string]any{"is_paid": true, "payment_id": paymentID})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormRepo) FlagForReview(ctx context.Context, orderID uuid.UUID) error {
	return r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("needs_review", true).Error
}

func (r *GormRepo) SaveOrder(ctx context.Context, order *models.Order) error {
	return r.DB.WithContext(ctx).Omit("Items").Save(order).Error
}

func (r *GormRepo) ListOrdersByUser(ctx context.Context, userID uuid.UUID, limit, offset int) (int64, []models.Order, error) {
	q := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("user_id = ? AND is_deleted = ?", userID, false)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var orders []models.Order
	err := q.Preload("Items").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&orders).Error
	if err != nil {
		return 0, nil, err
	}
	return total, orders, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, limit, offset int) (int64, []models.Order, error) {
	q := r.DB.WithContext(ctx).Model(&models.Order{}).Where("is_deleted = ?", false)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var orders []models.Order
	err := q.Preload("Items").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&orders).Error
	if err != nil {
		return 0, nil, err
	}
	return total, orders, nil
}

// StaleUnpaidOrders returns created-and-never-paid orders older than the
// cutoff, for the reaper.
func (r *GormRepo) StaleUnpaidOrders(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items").
		Where("status = ? AND is_paid = ? AND is_deleted = ? AND created_at < ?",
			models.OrderStatusCreated, false, false, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
