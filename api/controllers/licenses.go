package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/keyward/licensing-backend/api/middleware"
	"github.com/keyward/licensing-backend/api/responses"
	"github.com/keyward/licensing-backend/api/validators"
	"github.com/keyward/licensing-backend/internal/licenses"
	"github.com/keyward/licensing-backend/pkg/db/models"
	"github.com/keyward/licensing-backend/pkg/enums"
	pkgerrors "github.com/keyward/licensing-backend/pkg/errors"
	"github.com/keyward/licensing-backend/pkg/logger"
	pkgpagination "github.com/keyward/licensing-backend/pkg/pagination"
)

type provisionProductRequest struct {
	Slug      string     `json:"slug" validate:"required"`
	MaxSeats  int        `json:"max_seats" validate:"omitempty,min=1"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type provisionRequest struct {
	CustomerEmail string                    `json:"customer_email" validate:"required,email"`
	Products      []provisionProductRequest `json:"products" validate:"required,min=1,dive"`
}

func (r provisionRequest) toInput() licenses.ProvisionInput {
	grants := make([]licenses.ProductGrant, len(r.Products))
	for i, p := range r.Products {
		grants[i] = licenses.ProductGrant{
			Slug:      strings.TrimSpace(p.Slug),
			MaxSeats:  p.MaxSeats,
			ExpiresAt: p.ExpiresAt,
		}
	}
	return licenses.ProvisionInput{
		CustomerEmail: r.CustomerEmail,
		Grants:        grants,
	}
}

// BrandProvisionLicenses handles the brand provisioning call: one customer,
// up to ten product grants, one license key.
func BrandProvisionLicenses(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}

		brand := middleware.BrandFromContext(r.Context())
		if brand == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "brand context missing"))
			return
		}

		var req provisionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Provision(r.Context(), brand, req.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type licenseUpdateRequest struct {
	Action    string     `json:"action" validate:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// BrandUpdateLicense applies a lifecycle action to one of the brand's
// licenses.
func BrandUpdateLicense(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}

		brand := middleware.BrandFromContext(r.Context())
		if brand == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "brand context missing"))
			return
		}

		licenseID, err := uuid.Parse(chi.URLParam(r, "licenseId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid license id"))
			return
		}

		var req licenseUpdateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		action, err := enums.ParseLicenseAction(strings.TrimSpace(req.Action))
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeInvalidAction, "unknown lifecycle action").
					WithDetails(map[string]any{"action": req.Action}))
			return
		}

		license, err := svc.UpdateStatus(r.Context(), brand.ID, licenseID, action, req.ExpiresAt)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, licenseResponseFromModel(license))
	}
}

// BrandListLicenses returns a cursor page of the brand's licenses, optionally
// filtered by customer email.
func BrandListLicenses(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}

		brand := middleware.BrandFromContext(r.Context())
		if brand == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "brand context missing"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, pkgpagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Fetch(r.Context(), licenses.ListParams{
			BrandID:       brand.ID,
			CustomerEmail: validators.SanitizeString(r.URL.Query().Get("email"), 320),
			Params: pkgpagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

type licenseResponse struct {
	ID            string              `json:"id"`
	CustomerEmail string              `json:"customer_email,omitempty"`
	ProductName   string              `json:"product_name,omitempty"`
	ProductSlug   string              `json:"product_slug,omitempty"`
	Status        enums.LicenseStatus `json:"status"`
	MaxSeats      int                 `json:"max_seats"`
	ExpiresAt     *time.Time          `json:"expires_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func licenseResponseFromModel(m *models.License) licenseResponse {
	resp := licenseResponse{
		ID:        m.ID.String(),
		Status:    m.Status,
		MaxSeats:  m.MaxSeats,
		ExpiresAt: m.ExpiresAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.LicenseKey != nil {
		resp.CustomerEmail = m.LicenseKey.CustomerEmail
	}
	if m.Product != nil {
		resp.ProductName = m.Product.Name
		resp.ProductSlug = m.Product.Slug
	}
	return resp
}
