// Package lifecycle derives a permit's temporal state from its stored record.
// Everything here is pure: callers pass the clock in, nothing reads it.
package lifecycle

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/mateovaldes/idp-registry-backend/pkg/db/models"
	"github.com/mateovaldes/idp-registry-backend/pkg/enums"
)

// Tone classifies how a status should read on staff surfaces.
type Tone string

const (
	TonePositive Tone = "positive"
	ToneNegative Tone = "negative"
	ToneWarning  Tone = "warning"
)

// Display is a render-ready status: an upper-case label plus its tone.
type Display struct {
	Label string `json:"label"`
	Tone  Tone   `json:"tone"`
}

const dateLayout = "Jan 2, 2006"

// ExpirationDate computes when the permit lapses: the creation instant plus
// the tier's validity span. The bool is false when the record has no creation
// timestamp, in which case no expiration can be derived.
func ExpirationDate(p models.Permit) (time.Time, bool) {
	if p.CreatedAt.IsZero() {
		return time.Time{}, false
	}
	return p.CreatedAt.AddDate(p.Duration.Years(), 0, 0), true
}

// HasExpired reports whether the derived expiration lies strictly before now.
// A permit expiring at this exact instant is still valid. Records without a
// creation timestamp never expire.
func HasExpired(p models.Permit, now time.Time) bool {
	expiresAt, ok := ExpirationDate(p)
	if !ok {
		return false
	}
	return expiresAt.Before(now)
}

// EffectiveStatus resolves the administrative status. A stored override wins
// verbatim; an unset status reads as approved. Expiry is deliberately not
// derived here: a permit past its expiration date still reports approved
// unless staff recorded otherwise, and the two facts surface side by side.
func EffectiveStatus(p models.Permit) enums.PermitStatus {
	if p.Status != nil {
		return *p.Status
	}
	return enums.PermitStatusApproved
}

// StatusDisplay maps the effective status onto a label and tone. Statuses
// outside the known set render as approved rather than failing the page.
func StatusDisplay(p models.Permit) Display {
	switch EffectiveStatus(p) {
	case enums.PermitStatusCanceled:
		return Display{Label: "CANCELED", Tone: ToneNegative}
	case enums.PermitStatusExpired:
		return Display{Label: "EXPIRED", Tone: ToneWarning}
	default:
		return Display{Label: "APPROVED", Tone: TonePositive}
	}
}

// FormatIssueDate renders the issue date for display. Records without a
// creation timestamp fall back to the current date so the field is never
// blank on printed permits.
func FormatIssueDate(p models.Permit, now time.Time) string {
	if p.CreatedAt.IsZero() {
		return now.Format(dateLayout)
	}
	return p.CreatedAt.Format(dateLayout)
}

// FormatExpirationDate renders the derived expiration, or "Unknown" when none
// can be computed.
func FormatExpirationDate(p models.Permit) string {
	expiresAt, ok := ExpirationDate(p)
	if !ok {
		return "Unknown"
	}
	return expiresAt.Format(dateLayout)
}

// NewPermitNumber mints an external permit identifier of the form
// IDP-YYYYMMDD-XXXXXX. The date part is the issue day; the suffix is a random
// six-digit discriminator. Uniqueness is enforced by the database constraint,
// callers retry on collision.
func NewPermitNumber(now time.Time, randSource io.Reader) (string, error) {
	if randSource == nil {
		randSource = rand.Reader
	}
	suffix, err := rand.Int(randSource, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("read permit number entropy: %w", err)
	}
	return fmt.Sprintf("IDP-%s-%06d", now.Format("20060102"), suffix), nil
}
