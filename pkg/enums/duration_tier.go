package enums

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DurationTier is the canonical validity tier for a permit. Historical data
// carries two vocabularies for the same concept: the public form stored
// "1 year"/"3 years" while the staff form stored "1 YEAR - $50" through
// "10 YEAR - $200". ParseDurationTier folds both into this single enum so no
// call site ever substring-matches duration strings.
type DurationTier string

const (
	DurationTierOneYear    DurationTier = "one_year"
	DurationTierThreeYears DurationTier = "three_years"
	DurationTierFiveYears  DurationTier = "five_years"
	DurationTierTenYears   DurationTier = "ten_years"
)

var validDurationTiers = []DurationTier{
	DurationTierOneYear,
	DurationTierThreeYears,
	DurationTierFiveYears,
	DurationTierTenYears,
}

var durationTierYears = map[DurationTier]int{
	DurationTierOneYear:    1,
	DurationTierThreeYears: 3,
	DurationTierFiveYears:  5,
	DurationTierTenYears:   10,
}

var durationTierFees = map[DurationTier]decimal.Decimal{
	DurationTierOneYear:    decimal.NewFromInt(50),
	DurationTierThreeYears: decimal.NewFromInt(90),
	DurationTierFiveYears:  decimal.NewFromInt(120),
	DurationTierTenYears:   decimal.NewFromInt(200),
}

var legacyDurationValues = map[string]DurationTier{
	"1 year":         DurationTierOneYear,
	"3 years":        DurationTierThreeYears,
	"1 YEAR - $50":   DurationTierOneYear,
	"3 YEAR - $90":   DurationTierThreeYears,
	"5 YEAR - $120":  DurationTierFiveYears,
	"10 YEAR - $200": DurationTierTenYears,
}

// String implements fmt.Stringer.
func (d DurationTier) String() string {
	return string(d)
}

// IsValid reports whether the value matches the canonical duration_tier enum.
func (d DurationTier) IsValid() bool {
	for _, candidate := range validDurationTiers {
		if candidate == d {
			return true
		}
	}
	return false
}

// Years returns the validity span for the tier. Unknown tiers fall back to a
// single year so a corrupt stored value shortens rather than extends a permit.
func (d DurationTier) Years() int {
	if years, ok := durationTierYears[d]; ok {
		return years
	}
	return 1
}

// Fee returns the USD charge associated with the tier.
func (d DurationTier) Fee() decimal.Decimal {
	if fee, ok := durationTierFees[d]; ok {
		return fee
	}
	return durationTierFees[DurationTierOneYear]
}

// Label renders the staff-facing tier label, e.g. "1 YEAR - $50".
func (d DurationTier) Label() string {
	years := d.Years()
	return fmt.Sprintf("%d YEAR - $%s", years, d.Fee().StringFixed(0))
}

// ParseDurationTier converts canonical or legacy input into a DurationTier.
func ParseDurationTier(value string) (DurationTier, error) {
	trimmed := strings.TrimSpace(value)
	for _, candidate := range validDurationTiers {
		if string(candidate) == trimmed {
			return candidate, nil
		}
	}
	if tier, ok := legacyDurationValues[trimmed]; ok {
		return tier, nil
	}
	return "", fmt.Errorf("invalid duration tier %q", value)
}
