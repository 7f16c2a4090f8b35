package enums

import "fmt"

// AssetSlot identifies one of the three required photo assets on an
// application. Each slot is tracked independently through the upload flow.
type AssetSlot string

const (
	AssetSlotPersonalPhoto AssetSlot = "personal_photo"
	AssetSlotLicenseFront  AssetSlot = "license_front"
	AssetSlotLicenseBack   AssetSlot = "license_back"
)

var validAssetSlots = []AssetSlot{
	AssetSlotPersonalPhoto,
	AssetSlotLicenseFront,
	AssetSlotLicenseBack,
}

// RequiredSlots returns every slot a submission must resolve, in display order.
func RequiredSlots() []AssetSlot {
	slots := make([]AssetSlot, len(validAssetSlots))
	copy(slots, validAssetSlots)
	return slots
}

// String implements fmt.Stringer.
func (a AssetSlot) String() string {
	return string(a)
}

// IsValid reports whether the slot is known.
func (a AssetSlot) IsValid() bool {
	for _, candidate := range validAssetSlots {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAssetSlot converts raw input into an AssetSlot.
func ParseAssetSlot(value string) (AssetSlot, error) {
	for _, candidate := range validAssetSlots {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid asset slot %q", value)
}
