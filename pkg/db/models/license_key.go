package models

import (
	"time"

	"github.com/google/uuid"
)

// LicenseKey is the per-(brand, customer) key record. Key stores ciphertext
// produced by the deterministic license key codec; the plaintext exists only
// in the provisioning response and the customer notification.
type LicenseKey struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BrandID       uuid.UUID `gorm:"column:brand_id;type:uuid;not null;uniqueIndex:ux_license_keys_brand_customer" json:"brand_id"`
	CustomerEmail string    `gorm:"column:customer_email;not null;uniqueIndex:ux_license_keys_brand_customer" json:"customer_email"`
	Key           string    `gorm:"column:key;not null;unique" json:"-"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Licenses []License `gorm:"foreignKey:LicenseKeyID" json:"licenses,omitempty"`
}
