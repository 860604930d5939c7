package enums

import "fmt"

// LicenseStatus maps to the licenses.status column. Expiry is derived from
// expires_at at read time and never stored as a status of its own.
type LicenseStatus string

const (
	LicenseStatusActive    LicenseStatus = "active"
	LicenseStatusSuspended LicenseStatus = "suspended"
	LicenseStatusExpired   LicenseStatus = "expired"
	LicenseStatusCancelled LicenseStatus = "cancelled"
)

var validLicenseStatuses = []LicenseStatus{
	LicenseStatusActive,
	LicenseStatusSuspended,
	LicenseStatusExpired,
	LicenseStatusCancelled,
}

// String implements fmt.Stringer.
func (l LicenseStatus) String() string {
	return string(l)
}

// IsValid reports whether the value matches the canonical status set.
func (l LicenseStatus) IsValid() bool {
	for _, candidate := range validLicenseStatuses {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseLicenseStatus converts raw input into LicenseStatus.
func ParseLicenseStatus(value string) (LicenseStatus, error) {
	for _, candidate := range validLicenseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid license status %q", value)
}
