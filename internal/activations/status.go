package activations

import (
	"time"

	"github.com/keyward/licensing-backend/pkg/db/models"
	"github.com/keyward/licensing-backend/pkg/enums"
)

// StatusProjection is the cached answer to "what does this key entitle right
// now". It is derived entirely from the key's licenses and live seat counts.
type StatusProjection struct {
	Customer    string          `json:"customer"`
	Activations []ProductStatus `json:"activations"`
}

// ProductStatus reports one license's validity and seat occupancy.
type ProductStatus struct {
	Product   string              `json:"product"`
	Slug      string              `json:"slug"`
	IsValid   bool                `json:"is_valid"`
	Status    enums.LicenseStatus `json:"status"`
	ExpiresAt *time.Time          `json:"expires_at,omitempty"`
	MaxSeats  int                 `json:"max_seats"`
	SeatsUsed int                 `json:"seats_used"`
	SeatsLeft int                 `json:"seats_left"`
}

func buildProjection(key *models.LicenseKey, now time.Time) *StatusProjection {
	projection := &StatusProjection{
		Customer:    key.CustomerEmail,
		Activations: make([]ProductStatus, 0, len(key.Licenses)),
	}
	for _, license := range key.Licenses {
		entry := ProductStatus{
			IsValid:   license.IsValid(now),
			Status:    license.Status,
			ExpiresAt: license.ExpiresAt,
			MaxSeats:  license.MaxSeats,
			SeatsUsed: int(license.ActivationsCount),
		}
		if license.Product != nil {
			entry.Product = license.Product.Name
			entry.Slug = license.Product.Slug
		}
		if left := license.MaxSeats - entry.SeatsUsed; left > 0 {
			entry.SeatsLeft = left
		}
		projection.Activations = append(projection.Activations, entry)
	}
	return projection
}
