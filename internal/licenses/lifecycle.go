package licenses

import (
	"fmt"
	"time"

	"github.com/keyward/licensing-backend/pkg/db/models"
	"github.com/keyward/licensing-backend/pkg/enums"
	pkgerrors "github.com/keyward/licensing-backend/pkg/errors"
)

// ApplyAction mutates the license in place for the given admin action.
// Every action is unconditional on the current status: suspend/cancel always
// land, and resume reactivates even a cancelled license (admin override,
// last-write-wins). Renew requires a new expiry and also reactivates.
func ApplyAction(license *models.License, action enums.LicenseAction, expiresAt *time.Time) error {
	switch action {
	case enums.LicenseActionSuspend:
		license.Status = enums.LicenseStatusSuspended
	case enums.LicenseActionResume:
		license.Status = enums.LicenseStatusActive
	case enums.LicenseActionCancel:
		license.Status = enums.LicenseStatusCancelled
	case enums.LicenseActionRenew:
		if expiresAt == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "renew requires expires_at")
		}
		license.Status = enums.LicenseStatusActive
		license.ExpiresAt = expiresAt
	default:
		return pkgerrors.New(pkgerrors.CodeInvalidAction, fmt.Sprintf("unsupported action %q", action)).
			WithDetails(map[string]any{"action": string(action)})
	}
	return nil
}
