package enums

import "fmt"

// StaffRole maps to the staff_role enum in Postgres.
type StaffRole string

const (
	StaffRoleAdmin StaffRole = "admin"
	StaffRoleClerk StaffRole = "clerk"
)

var validStaffRoles = []StaffRole{
	StaffRoleAdmin,
	StaffRoleClerk,
}

// String implements fmt.Stringer.
func (s StaffRole) String() string {
	return string(s)
}

// IsValid reports whether the role is known.
func (s StaffRole) IsValid() bool {
	for _, candidate := range validStaffRoles {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStaffRole converts raw input into a StaffRole.
func ParseStaffRole(value string) (StaffRole, error) {
	for _, candidate := range validStaffRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid staff role %q", value)
}
