package enums

import "fmt"

// LicenseClass is one of the closed set of vehicle classes printed on a permit.
type LicenseClass string

const (
	LicenseClassA LicenseClass = "A"
	LicenseClassB LicenseClass = "B"
	LicenseClassC LicenseClass = "C"
	LicenseClassD LicenseClass = "D"
	LicenseClassE LicenseClass = "E"
)

var validLicenseClasses = []LicenseClass{
	LicenseClassA,
	LicenseClassB,
	LicenseClassC,
	LicenseClassD,
	LicenseClassE,
}

// String implements fmt.Stringer.
func (l LicenseClass) String() string {
	return string(l)
}

// IsValid reports whether the class belongs to the closed set.
func (l LicenseClass) IsValid() bool {
	for _, candidate := range validLicenseClasses {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseLicenseClass converts raw input into a LicenseClass.
func ParseLicenseClass(value string) (LicenseClass, error) {
	for _, candidate := range validLicenseClasses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid license class %q", value)
}
