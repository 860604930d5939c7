package activations

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keyward/licensing-backend/pkg/db/models"
)

// Repository exposes activation ledger persistence operations. All writes run
// inside the caller's transaction; the ledger never mutates rows outside the
// license row lock.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an activation repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// LiveByLicenseTx returns the non-tombstoned activations for a license.
func (r *Repository) LiveByLicenseTx(tx *gorm.DB, licenseID uuid.UUID) ([]models.Activation, error) {
	var rows []models.Activation
	if err := tx.
		Where("license_id = ? AND deactivated_at IS NULL", licenseID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateTx inserts a new activation row.
func (r *Repository) CreateTx(tx *gorm.DB, activation *models.Activation) error {
	return tx.Create(activation).Error
}

// TombstoneTx marks the activation deactivated. The row survives as history
// and frees its seat; a later activation of the same fingerprint inserts a
// fresh row.
func (r *Repository) TombstoneTx(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return tx.Model(&models.Activation{}).
		Where("id = ? AND deactivated_at IS NULL", id).
		Update("deactivated_at", at).Error
}
