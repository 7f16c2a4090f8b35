package permits

import (
	"time"

	"github.com/google/uuid"

	"github.com/mateovaldes/idp-registry-backend/internal/lifecycle"
	"github.com/mateovaldes/idp-registry-backend/pkg/db/models"
	"github.com/mateovaldes/idp-registry-backend/pkg/enums"
	pkgpagination "github.com/mateovaldes/idp-registry-backend/pkg/pagination"
)

type ListParams struct {
	Search string
	pkgpagination.Params
}

type ListResult struct {
	Items  []PermitView `json:"items"`
	Cursor string       `json:"cursor"`
}

// AssetLinks carries short-lived signed read URLs for the three photo assets.
type AssetLinks struct {
	PersonalPhoto string `json:"personal_photo,omitempty"`
	LicenseFront  string `json:"license_front,omitempty"`
	LicenseBack   string `json:"license_back,omitempty"`
}

// PermitView is a permit row enriched with everything the registry screens
// need: derived expiration, status display, formatted dates, asset links.
type PermitView struct {
	ID     uuid.UUID `json:"id"`
	Number string    `json:"number"`

	FirstName  string       `json:"first_name"`
	FamilyName string       `json:"family_name"`
	Phone      string       `json:"phone"`
	Gender     enums.Gender `json:"gender"`
	BirthDate  time.Time    `json:"birth_date"`
	BirthPlace string       `json:"birth_place"`

	AddressLine1     string  `json:"address_line1"`
	AddressLine2     *string `json:"address_line2,omitempty"`
	City             string  `json:"city"`
	State            string  `json:"state"`
	Zip              string  `json:"zip"`
	Country          string  `json:"country"`
	ResidenceCountry string  `json:"residence_country"`

	LicenseNumber  string   `json:"license_number"`
	LicenseClasses []string `json:"license_classes"`
	IssuerCountry  string   `json:"issuer_country"`

	Duration      enums.DurationTier `json:"duration"`
	DurationLabel string             `json:"duration_label"`
	RequestIDCard bool               `json:"request_id_card"`

	Status        enums.PermitStatus `json:"status"`
	StatusDisplay lifecycle.Display  `json:"status_display"`
	HasExpired    bool               `json:"has_expired"`
	ExpiresAt     *time.Time         `json:"expires_at,omitempty"`
	IssueDateText string             `json:"issue_date_text"`
	ExpiryText    string             `json:"expiry_text"`

	ApplicationID uuid.UUID  `json:"application_id"`
	Assets        AssetLinks `json:"assets"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type listQuery struct {
	search string
	limit  int
	cursor *pkgpagination.Cursor
}

func toPermitView(m models.Permit, now time.Time) PermitView {
	view := PermitView{
		ID:               m.ID,
		Number:           m.Number,
		FirstName:        m.FirstName,
		FamilyName:       m.FamilyName,
		Phone:            m.Phone,
		Gender:           m.Gender,
		BirthDate:        m.BirthDate,
		BirthPlace:       m.BirthPlace,
		AddressLine1:     m.AddressLine1,
		AddressLine2:     m.AddressLine2,
		City:             m.City,
		State:            m.State,
		Zip:              m.Zip,
		Country:          m.Country,
		ResidenceCountry: m.ResidenceCountry,
		LicenseNumber:    m.LicenseNumber,
		LicenseClasses:   m.LicenseClasses.Strings(),
		IssuerCountry:    m.IssuerCountry,
		Duration:         m.Duration,
		DurationLabel:    m.Duration.Label(),
		RequestIDCard:    m.RequestIDCard,
		Status:           lifecycle.EffectiveStatus(m),
		StatusDisplay:    lifecycle.StatusDisplay(m),
		HasExpired:       lifecycle.HasExpired(m, now),
		IssueDateText:    lifecycle.FormatIssueDate(m, now),
		ExpiryText:       lifecycle.FormatExpirationDate(m),
		ApplicationID:    m.ApplicationID,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if expiresAt, ok := lifecycle.ExpirationDate(m); ok {
		view.ExpiresAt = &expiresAt
	}
	return view
}
