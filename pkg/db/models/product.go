package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a licensable offering owned by a brand. Slug is unique within
// the brand and is the public handle used by activation calls.
type Product struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BrandID   uuid.UUID `gorm:"column:brand_id;type:uuid;not null;uniqueIndex:ux_products_brand_slug" json:"brand_id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Slug      string    `gorm:"column:slug;not null;uniqueIndex:ux_products_brand_slug" json:"slug"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
