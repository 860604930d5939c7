package models

import (
	"time"

	"github.com/google/uuid"
)

// BrandAPIKey authenticates brand API calls. APIKey holds ciphertext only;
// the row is matched by encrypting the presented header value and comparing.
type BrandAPIKey struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BrandID   uuid.UUID  `gorm:"column:brand_id;type:uuid;not null" json:"brand_id"`
	APIKey    string     `gorm:"column:api_key;not null;unique" json:"-"`
	ExpiresAt *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Brand *Brand `gorm:"foreignKey:BrandID" json:"brand,omitempty"`
}
