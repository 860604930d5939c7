package licenses

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/keyward/licensing-backend/pkg/db/models"
)

// Repository exposes license persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a license repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindForBrand returns the license only when it belongs to the brand through
// its license key; any other license is indistinguishable from absent.
func (r *Repository) FindForBrand(ctx context.Context, brandID, licenseID uuid.UUID) (*models.License, error) {
	var row models.License
	if err := r.db.WithContext(ctx).
		Joins("JOIN license_keys ON license_keys.id = licenses.license_key_id").
		Where("licenses.id = ? AND license_keys.brand_id = ?", licenseID, brandID).
		Preload("LicenseKey").
		Preload("Product").
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Save persists status/expiry mutations on an existing license row.
func (r *Repository) Save(ctx context.Context, license *models.License) error {
	return r.db.WithContext(ctx).
		Model(&models.License{}).
		Where("id = ?", license.ID).
		Updates(map[string]any{
			"status":     license.Status,
			"expires_at": license.ExpiresAt,
		}).Error
}

// UpsertTx inserts the license or, when the (license_key_id, product_id) pair
// already exists, refreshes its status, seat cap, and expiry.
func (r *Repository) UpsertTx(tx *gorm.DB, license *models.License) error {
	if license.ID == uuid.Nil {
		license.ID = uuid.New()
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "license_key_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":     license.Status,
			"max_seats":  license.MaxSeats,
			"expires_at": license.ExpiresAt,
		}),
	}).Create(license).Error
}

// List returns brand-scoped licenses using cursor pagination, optionally
// filtered by customer email.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.License, error) {
	query := r.db.WithContext(ctx).Model(&models.License{}).
		Joins("JOIN license_keys ON license_keys.id = licenses.license_key_id").
		Where("license_keys.brand_id = ?", opts.brandID)

	if opts.customerEmail != "" {
		query = query.Where("license_keys.customer_email = ?", opts.customerEmail)
	}
	if opts.cursor != nil {
		query = query.Where("(licenses.created_at < ?) OR (licenses.created_at = ? AND licenses.id < ?)",
			opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	query = query.
		Order("licenses.created_at DESC").
		Order("licenses.id DESC").
		Limit(opts.limit).
		Preload("Product").
		Preload("LicenseKey")

	var rows []models.License
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
