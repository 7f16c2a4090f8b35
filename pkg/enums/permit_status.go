package enums

import "fmt"

// PermitStatus maps to the permit_status enum in Postgres. It is an
// administrative override: an unset status never blocks display logic.
type PermitStatus string

const (
	PermitStatusApproved PermitStatus = "approved"
	PermitStatusCanceled PermitStatus = "canceled"
	PermitStatusExpired  PermitStatus = "expired"
)

var validPermitStatuses = []PermitStatus{
	PermitStatusApproved,
	PermitStatusCanceled,
	PermitStatusExpired,
}

// String implements fmt.Stringer.
func (p PermitStatus) String() string {
	return string(p)
}

// IsValid reports whether the value matches the canonical permit_status enum.
func (p PermitStatus) IsValid() bool {
	for _, candidate := range validPermitStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePermitStatus converts raw input into PermitStatus.
func ParsePermitStatus(value string) (PermitStatus, error) {
	for _, candidate := range validPermitStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid permit status %q", value)
}
