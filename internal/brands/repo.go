package brands

import (
	"context"

	"gorm.io/gorm"

	"github.com/keyward/licensing-backend/internal/repo"
	"github.com/keyward/licensing-backend/pkg/db/models"
)

// Repository exposes brand and brand API key persistence operations.
type Repository struct {
	repo.Base
}

// NewRepository constructs a brand repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// FindAPIKeyByCiphertext looks up an API key row by its stored ciphertext and
// eager-loads the owning brand.
func (r *Repository) FindAPIKeyByCiphertext(ctx context.Context, ciphertext string) (*models.BrandAPIKey, error) {
	var row models.BrandAPIKey
	if err := r.DB(ctx).
		Preload("Brand").
		Where("api_key = ?", ciphertext).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByID returns the brand with the given id.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.Brand, error) {
	var row models.Brand
	if err := r.DB(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
