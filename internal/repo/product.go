package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/nvkumar/shopkart/internal/models"
)

func (r *GormRepo) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.DB.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", id, false).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}
