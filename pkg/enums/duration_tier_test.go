package enums

import "testing"

func TestParseDurationTierLegacyVocabulary(t *testing.T) {
	cases := map[string]DurationTier{
		"one_year":       DurationTierOneYear,
		"ten_years":      DurationTierTenYears,
		"1 year":         DurationTierOneYear,
		"3 years":        DurationTierThreeYears,
		"1 YEAR - $50":   DurationTierOneYear,
		"3 YEAR - $90":   DurationTierThreeYears,
		"5 YEAR - $120":  DurationTierFiveYears,
		"10 YEAR - $200": DurationTierTenYears,
		"  1 year  ":     DurationTierOneYear,
	}
	for input, want := range cases {
		got, err := ParseDurationTier(input)
		if err != nil {
			t.Errorf("ParseDurationTier(%q): unexpected error %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("ParseDurationTier(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestParseDurationTierRejectsUnknown(t *testing.T) {
	for _, input := range []string{"", "2 years", "forever", "1year"} {
		if _, err := ParseDurationTier(input); err == nil {
			t.Errorf("ParseDurationTier(%q): expected error", input)
		}
	}
}

func TestDurationTierYears(t *testing.T) {
	cases := map[DurationTier]int{
		DurationTierOneYear:    1,
		DurationTierThreeYears: 3,
		DurationTierFiveYears:  5,
		DurationTierTenYears:   10,
	}
	for tier, want := range cases {
		if got := tier.Years(); got != want {
			t.Errorf("%s.Years() = %d, want %d", tier, got, want)
		}
	}
	// Corrupt stored values shorten, never extend.
	if got := DurationTier("bogus").Years(); got != 1 {
		t.Errorf("unknown tier should fall back to 1 year, got %d", got)
	}
}

func TestDurationTierLabel(t *testing.T) {
	if got := DurationTierOneYear.Label(); got != "1 YEAR - $50" {
		t.Errorf("unexpected label %q", got)
	}
	if got := DurationTierTenYears.Label(); got != "10 YEAR - $200" {
		t.Errorf("unexpected label %q", got)
	}
}
