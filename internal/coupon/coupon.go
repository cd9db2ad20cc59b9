package coupon

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nvkumar/shopkart/internal/models"
	"github.com/nvkumar/shopkart/internal/repo"
	"github.com/nvkumar/shopkart/pkg/logging"
)

var (
	ErrValidation = errors.New("validation")
	ErrNotFound   = errors.New("coupon not found")
	ErrExpired    = errors.New("coupon expired")
	ErrInactive   = errors.New("coupon inactive")
	ErrCodeTaken  = errors.New("coupon code already exists")
)

// starts with a letter, 5-15 uppercase alphanumerics total
var codeRegex = regexp.MustCompile(`^[A-Z][A-Z0-9]{4,14}$`)

type Service struct {
	Repo *repo.GormRepo
}

// Validate checks existence, expiry and activation for checkout. Expiry is
// always re-checked against the clock: the stored status can lag behind the
// sweep interval, so it is never trusted on its own.
func (s *Service) Validate(ctx context.Context, code string, now time.Time) (*models.Coupon, error) {
	coupon, err := s.Repo.GetCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
		}
		return nil, err
	}

	if coupon.ExpiryDate.Before(now) {
		return nil, fmt.Errorf("%w: %s", ErrExpired, code)
	}
	if coupon.Status == models.CouponStatusInactive {
		return nil, fmt.Errorf("%w: %s", ErrInactive, code)
	}

	return coupon, nil
}

type CreateParams struct {
	Code               string
	DiscountType       models.DiscountType
	FlatDiscount       float64
	PercentageDiscount float64
	ExpiryDate         time.Time
}

func validateParams(p CreateParams) error {
	if !codeRegex.MatchString(p.Code) {
		return fmt.Errorf("%w: coupon code must start with a letter and be 5-15 uppercase alphanumeric characters", ErrValidation)
	}
	switch p.DiscountType {
	case models.DiscountTypeFlat:
		if p.FlatDiscount <= 0 || p.PercentageDiscount != 0 {
			return fmt.Errorf("%w: flat coupon requires flat_discount only", ErrValidation)
		}
	case models.DiscountTypePercentage:
		if p.PercentageDiscount <= 0 || p.PercentageDiscount > 100 || p.FlatDiscount != 0 {
			return fmt.Errorf("%w: percentage coupon requires percentage_discount in (0,100] only", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown discount type %q", ErrValidation, p.DiscountType)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, p CreateParams, actor uuid.UUID) (*models.Coupon, error) {
	if err := validateParams(p); err != nil {
		return nil, err
	}

	taken, err := s.Repo.CouponCodeTaken(ctx, p.Code, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: %s", ErrCodeTaken, p.Code)
	}

	status := models.CouponStatusActive
	if p.ExpiryDate.Before(time.Now().UTC()) {
		status = models.CouponStatusExpired
	}

	coupon := &models.Coupon{
		ID:                 uuid.New(),
		Code:               p.Code,
		DiscountType:       p.DiscountType,
		FlatDiscount:       p.FlatDiscount,
		PercentageDiscount: p.PercentageDiscount,
		ExpiryDate:         p.ExpiryDate,
		Status:             status,
		CreatedBy:          actor,
	}
	return s.Repo.CreateCoupon(ctx, coupon)
}

// Update rewrites the coupon's fields. Switching discount type clears the
// other discount field so the flat/percentage exclusivity holds.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p CreateParams, actor uuid.UUID) (*models.Coupon, error) {
	if err := validateParams(p); err != nil {
		return nil, err
	}

	coupon, err := s.Repo.GetCoupon(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}

	taken, err := s.Repo.CouponCodeTaken(ctx, p.Code, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: %s", ErrCodeTaken, p.Code)
	}

	coupon.Code = p.Code
	coupon.DiscountType = p.DiscountType
	coupon.FlatDiscount = p.FlatDiscount
	coupon.PercentageDiscount = p.PercentageDiscount
	coupon.ExpiryDate = p.ExpiryDate
	coupon.LastUpdatedBy = &actor
	if coupon.Status == models.CouponStatusExpired && p.ExpiryDate.After(time.Now().UTC()) {
		coupon.Status = models.CouponStatusActive
	}

	if err := s.Repo.SaveCoupon(ctx, coupon); err != nil {
		return nil, err
	}
	return coupon, nil
}

// SetActive flips between active and inactive. Reactivating an expired
// coupon is rejected until its expiry is extended.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool, actor uuid.UUID) (*models.Coupon, error) {
	coupon, err := s.Repo.GetCoupon(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}

	if active && coupon.ExpiryDate.Before(time.Now().UTC()) {
		return nil, fmt.Errorf("%w: extend the expiry date to reactivate it", ErrExpired)
	}

	if active {
		coupon.Status = models.CouponStatusActive
	} else {
		coupon.Status = models.CouponStatusInactive
	}
	coupon.LastUpdatedBy = &actor

	if err := s.Repo.SaveCoupon(ctx, coupon); err != nil {
		return nil, err
	}
	return coupon, nil
}

func (s *Service) ListValid(ctx context.Context, now time.Time) ([]models.Coupon, error) {
	return s.Repo.ListValidCoupons(ctx, now)
}

// ExpireCoupons is the periodic sweep body. Idempotent; safe to run at any
// interval.
func (s *Service) ExpireCoupons(ctx context.Context, now time.Time) (int64, error) {
	return s.Repo.ExpireCoupons(ctx, now)
}

// RunExpirySweep transitions overdue coupons to expired on a ticker until the
// context is cancelled.
func (s *Service) RunExpirySweep(ctx context.Context, interval time.Duration) {
	l := logging.FromContext(ctx).With("job", "coupon_expiry_sweep")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.ExpireCoupons(ctx, time.Now().UTC())
			if err != nil {
				l.Error("sweep_failed", "error", err)
				continue
			}
			if n > 0 {
				l.Info("coupons_expired", "count", n)
			}
		}
	}
}
