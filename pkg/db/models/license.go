package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/keyward/licensing-backend/pkg/enums"
)

// License grants seat-limited access to one product under a license key.
// At most one license exists per (license_key_id, product_id) pair.
type License struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	LicenseKeyID uuid.UUID           `gorm:"column:license_key_id;type:uuid;not null;uniqueIndex:ux_licenses_key_product" json:"license_key_id"`
	ProductID    uuid.UUID           `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_licenses_key_product" json:"product_id"`
	Status       enums.LicenseStatus `gorm:"column:status;not null;default:'active'" json:"status"`
	MaxSeats     int                 `gorm:"column:max_seats;not null;default:1" json:"max_seats"`
	ExpiresAt    *time.Time          `gorm:"column:expires_at" json:"expires_at,omitempty"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Product     *Product     `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	LicenseKey  *LicenseKey  `gorm:"foreignKey:LicenseKeyID" json:"license_key,omitempty"`
	Activations []Activation `gorm:"foreignKey:LicenseID" json:"activations,omitempty"`

	// ActivationsCount counts live (non-tombstoned) activations. It is not a
	// table column; status queries fill it in with a separate grouped count.
	ActivationsCount int64 `gorm:"-" json:"-"`
}

// IsValid reports whether the license admits activations at the given time.
// Natural expiry is derived here; status stays "active" past expires_at.
func (l *License) IsValid(now time.Time) bool {
	if l.Status != enums.LicenseStatusActive {
		return false
	}
	if l.ExpiresAt != nil && !l.ExpiresAt.After(now) {
		return false
	}
	return true
}
