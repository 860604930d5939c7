package enums

import "fmt"

// LicenseAction names the administrative actions a brand can apply to a
// license. Every action is unconditional on the current status; resume after
// cancel is a supported admin override.
type LicenseAction string

const (
	LicenseActionSuspend LicenseAction = "suspend"
	LicenseActionResume  LicenseAction = "resume"
	LicenseActionCancel  LicenseAction = "cancel"
	LicenseActionRenew   LicenseAction = "renew"
)

var validLicenseActions = []LicenseAction{
	LicenseActionSuspend,
	LicenseActionResume,
	LicenseActionCancel,
	LicenseActionRenew,
}

// String implements fmt.Stringer.
func (a LicenseAction) String() string {
	return string(a)
}

// IsValid reports whether the value matches the canonical action set.
func (a LicenseAction) IsValid() bool {
	for _, candidate := range validLicenseActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseLicenseAction converts raw input into LicenseAction.
func ParseLicenseAction(value string) (LicenseAction, error) {
	for _, candidate := range validLicenseActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid license action %q", value)
}
