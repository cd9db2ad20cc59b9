package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nvkumar/shopkart/internal/models"
)

func (r *GormRepo) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.DB.WithContext(ctx).Where("code = ?", code).First(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *GormRepo) GetCoupon(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

// CouponCodeTaken checks uniqueness, optionally excluding the coupon being
// updated.
func (r *GormRepo) CouponCodeTaken(ctx context.Context, code string, exclude uuid.UUID) (bool, error) {
	var count int64
	q := r.DB.WithContext(ctx).Model(&models.Coupon{}).Where("code = ?", code)
	if exclude != uuid.Nil {
		q = q.Where("id <> ?", exclude)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormRepo) CreateCoupon(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	if err := r.DB.WithContext(ctx).Create(coupon).Error; err != nil {
		return nil, err
	}
	return coupon, nil
}

func (r *GormRepo) SaveCoupon(ctx context.Context, coupon *models.Coupon) error {
	return r.DB.WithContext(ctx).Save(coupon).Error
}

func (r *GormRepo) ListValidCoupons(ctx context.Context, now time.Time) ([]models.Coupon, error) {
	var coupons []models.Coupon
	err := r.DB.WithContext(ctx).
		Where("expiry_date > ? AND status = ?", now, models.CouponStatusActive).
		Order("expiry_date ASC").
		Find(&coupons).Error
	if err != nil {
		return nil, err
	}
	return coupons, nil
}

// ExpireCoupons is the sweep's predicate update: a pure, idempotent bulk
// transition to expired.
func (r *GormRepo) ExpireCoupons(ctx context.Context, now time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&models.Coupon{}).
		Where("expiry_date < ? AND status <> ?", now, models.CouponStatusExpired).
		Update("status", models.CouponStatusExpired)
	return res.RowsAffected, res.Error
}
