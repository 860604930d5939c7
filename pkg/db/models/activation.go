package models

import (
	"time"

	"github.com/google/uuid"
)

// Activation is one seat consumed on a license by a specific installation.
// Deactivation tombstones the row via DeactivatedAt instead of deleting it;
// the tombstone participates in the uniqueness key so a deactivated
// fingerprint can activate again with a fresh row.
type Activation struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	LicenseID     uuid.UUID  `gorm:"column:license_id;type:uuid;not null;uniqueIndex:ux_activations_license_fingerprint" json:"license_id"`
	Fingerprint   string     `gorm:"column:fingerprint;not null;uniqueIndex:ux_activations_license_fingerprint" json:"fingerprint"`
	PlatformInfo  *string    `gorm:"column:platform_info" json:"platform_info,omitempty"`
	DeactivatedAt *time.Time `gorm:"column:deactivated_at;uniqueIndex:ux_activations_license_fingerprint" json:"deactivated_at,omitempty"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// Live reports whether the activation still occupies a seat.
func (a *Activation) Live() bool {
	return a.DeactivatedAt == nil
}
