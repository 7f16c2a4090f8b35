package dbtypes

import (
	"testing"

	"github.com/mateovaldes/idp-registry-backend/pkg/enums"
)

func TestNewLicenseClassSetNormalizes(t *testing.T) {
	set, err := NewLicenseClassSet([]string{"C", "A", "C", " B "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := set.Strings(); len(got) != 3 || got[0] != "A" || got[1] != "B" || got[2] != "C" {
		t.Fatalf("expected sorted deduped set, got %v", got)
	}
}

func TestNewLicenseClassSetRejectsUnknownClass(t *testing.T) {
	if _, err := NewLicenseClassSet([]string{"A", "F"}); err == nil {
		t.Fatal("expected error for class outside the closed set")
	}
}

func TestLicenseClassSetRoundTrip(t *testing.T) {
	set := LicenseClassSet{enums.LicenseClassA, enums.LicenseClassD}
	value, err := set.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var decoded LicenseClassSet
	if err := decoded.Scan(value); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !decoded.Contains(enums.LicenseClassA) || !decoded.Contains(enums.LicenseClassD) || decoded.Contains(enums.LicenseClassB) {
		t.Fatalf("unexpected decoded set %v", decoded)
	}
}

func TestLicenseClassSetScanQuotedLiteral(t *testing.T) {
	var decoded LicenseClassSet
	if err := decoded.Scan(`{"A","D"}`); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got := decoded.Strings(); len(got) != 2 || got[0] != "A" || got[1] != "D" {
		t.Fatalf("unexpected decoded set %v", got)
	}
}

func TestLicenseClassSetScanEmpty(t *testing.T) {
	var decoded LicenseClassSet
	if err := decoded.Scan("{}"); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("expected empty set, got %v", decoded)
	}
}
