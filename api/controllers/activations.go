package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/keyward/licensing-backend/api/responses"
	"github.com/keyward/licensing-backend/api/validators"
	"github.com/keyward/licensing-backend/internal/activations"
	pkgerrors "github.com/keyward/licensing-backend/pkg/errors"
	"github.com/keyward/licensing-backend/pkg/logger"
)

type activateRequest struct {
	LicenseKey   string  `json:"license_key" validate:"required"`
	ProductSlug  string  `json:"product_slug" validate:"required"`
	Fingerprint  string  `json:"fingerprint" validate:"required,max=255"`
	PlatformInfo *string `json:"platform_info"`
}

type activateResponse struct {
	ActivationID string    `json:"activation_id"`
	LicenseID    string    `json:"license_id"`
	Fingerprint  string    `json:"fingerprint"`
	ActivatedAt  time.Time `json:"activated_at"`
}

// ProductActivate claims a seat for a device fingerprint.
func ProductActivate(svc activations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activation service unavailable"))
			return
		}

		var req activateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		activation, err := svc.Activate(r.Context(), activations.ActivateInput{
			LicenseKey:   req.LicenseKey,
			ProductSlug:  req.ProductSlug,
			Fingerprint:  req.Fingerprint,
			PlatformInfo: req.PlatformInfo,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, activateResponse{
			ActivationID: activation.ID.String(),
			LicenseID:    activation.LicenseID.String(),
			Fingerprint:  activation.Fingerprint,
			ActivatedAt:  activation.CreatedAt,
		})
	}
}

type deactivateRequest struct {
	LicenseKey  string `json:"license_key" validate:"required"`
	ProductSlug string `json:"product_slug" validate:"required"`
	Fingerprint string `json:"fingerprint" validate:"required,max=255"`
}

// ProductDeactivate releases a previously claimed seat.
func ProductDeactivate(svc activations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activation service unavailable"))
			return
		}

		var req deactivateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Deactivate(r.Context(), activations.DeactivateInput{
			LicenseKey:  req.LicenseKey,
			ProductSlug: req.ProductSlug,
			Fingerprint: req.Fingerprint,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deactivated"})
	}
}

// ProductCheckStatus answers "what does this key entitle right now" from the
// read-through cache.
func ProductCheckStatus(svc activations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "activation service unavailable"))
			return
		}

		rawKey := strings.TrimSpace(r.URL.Query().Get("license_key"))
		slug := strings.TrimSpace(r.URL.Query().Get("product_slug"))

		projection, err := svc.CheckStatus(r.Context(), rawKey, slug)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, projection)
	}
}
