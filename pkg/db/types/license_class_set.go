package dbtypes

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/mateovaldes/idp-registry-backend/pkg/enums"
)

// LicenseClassSet stores an ordered, deduplicated set of license classes as a
// Postgres text array. Single-class forms populate a one-element set.
type LicenseClassSet []enums.LicenseClass

// NewLicenseClassSet builds a normalized set from raw class values.
func NewLicenseClassSet(values []string) (LicenseClassSet, error) {
	seen := map[enums.LicenseClass]struct{}{}
	out := make(LicenseClassSet, 0, len(values))
	for _, v := range values {
		class, err := enums.ParseLicenseClass(strings.TrimSpace(v))
		if err != nil {
			return nil, err
		}
		if _, ok := seen[class]; ok {
			continue
		}
		seen[class] = struct{}{}
		out = append(out, class)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Contains reports membership in the set.
func (s LicenseClassSet) Contains(class enums.LicenseClass) bool {
	for _, c := range s {
		if c == class {
			return true
		}
	}
	return false
}

// Strings returns the classes as plain strings in stored order.
func (s LicenseClassSet) Strings() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = string(c)
	}
	return out
}

// Scan implements sql.Scanner for the Postgres text[] column.
func (s *LicenseClassSet) Scan(src any) error {
	if src == nil {
		*s = LicenseClassSet{}
		return nil
	}

	var raw pq.StringArray
	if err := raw.Scan(src); err != nil {
		return fmt.Errorf("LicenseClassSet: %w", err)
	}

	out := make(LicenseClassSet, 0, len(raw))
	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		class, err := enums.ParseLicenseClass(entry)
		if err != nil {
			return fmt.Errorf("LicenseClassSet: parse %q: %w", entry, err)
		}
		out = append(out, class)
	}
	*s = out
	return nil
}

// Value implements driver.Valuer so the set can be inserted as a text array.
func (s LicenseClassSet) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "{}", nil
	}
	return pq.Array(s.Strings()).Value()
}
