package licenses

import (
	"time"

	"github.com/google/uuid"

	"github.com/keyward/licensing-backend/pkg/db/models"
	"github.com/keyward/licensing-backend/pkg/enums"
	pkgpagination "github.com/keyward/licensing-backend/pkg/pagination"
)

type ListParams struct {
	BrandID       uuid.UUID
	CustomerEmail string
	pkgpagination.Params
}

type ListResult struct {
	Items  []ListItem `json:"items"`
	Cursor string     `json:"cursor"`
}

type ListItem struct {
	ID            uuid.UUID           `json:"id"`
	CustomerEmail string              `json:"customer_email"`
	ProductName   string              `json:"product_name"`
	ProductSlug   string              `json:"product_slug"`
	Status        enums.LicenseStatus `json:"status"`
	MaxSeats      int                 `json:"max_seats"`
	ExpiresAt     *time.Time          `json:"expires_at"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

type listQuery struct {
	brandID       uuid.UUID
	customerEmail string
	limit         int
	cursor        *pkgpagination.Cursor
}

func toListItem(m models.License) ListItem {
	item := ListItem{
		ID:        m.ID,
		Status:    m.Status,
		MaxSeats:  m.MaxSeats,
		ExpiresAt: m.ExpiresAt,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.LicenseKey != nil {
		item.CustomerEmail = m.LicenseKey.CustomerEmail
	}
	if m.Product != nil {
		item.ProductName = m.Product.Name
		item.ProductSlug = m.Product.Slug
	}
	return item
}
