package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keyward/licensing-backend/internal/repo"
	"github.com/keyward/licensing-backend/pkg/db/models"
)

// Repository exposes product persistence operations.
type Repository struct {
	repo.Base
}

// NewRepository constructs a product repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// FindBySlug returns the product with the given slug scoped to a brand.
func (r *Repository) FindBySlug(ctx context.Context, brandID uuid.UUID, slug string) (*models.Product, error) {
	return findBySlug(r.DB(ctx), brandID, slug)
}

// FindBySlugTx is FindBySlug bound to an open transaction.
func (r *Repository) FindBySlugTx(tx *gorm.DB, brandID uuid.UUID, slug string) (*models.Product, error) {
	return findBySlug(tx, brandID, slug)
}

func findBySlug(conn *gorm.DB, brandID uuid.UUID, slug string) (*models.Product, error) {
	var row models.Product
	if err := conn.
		Where("brand_id = ? AND slug = ?", brandID, slug).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
