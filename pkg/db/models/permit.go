package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/mateovaldes/idp-registry-backend/pkg/db/types"
	"github.com/mateovaldes/idp-registry-backend/pkg/enums"
)

// Permit is the persisted International Driving Permit record. Number is the
// externally visible identifier and never changes after creation. CreatedAt is
// the authoritative issue anchor and is assigned by the database, never taken
// from client input.
type Permit struct {
	ID     uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Number string    `gorm:"column:number;not null;unique"`

	FirstName  string       `gorm:"column:first_name;not null"`
	FamilyName string       `gorm:"column:family_name;not null"`
	Phone      string       `gorm:"column:phone;not null"`
	Gender     enums.Gender `gorm:"column:gender;type:gender;not null"`
	BirthDate  time.Time    `gorm:"column:birth_date;not null"`
	BirthPlace string       `gorm:"column:birth_place;not null"`

	AddressLine1     string  `gorm:"column:address_line1;not null"`
	AddressLine2     *string `gorm:"column:address_line2"`
	City             string  `gorm:"column:city;not null"`
	State            string  `gorm:"column:state;not null"`
	Zip              string  `gorm:"column:zip;not null"`
	Country          string  `gorm:"column:country;not null"`
	ResidenceCountry string  `gorm:"column:residence_country;not null"`

	LicenseNumber  string                  `gorm:"column:license_number;not null"`
	LicenseClasses dbtypes.LicenseClassSet `gorm:"column:license_classes;type:text;not null"`
	IssuerCountry  string                  `gorm:"column:issuer_country;not null"`

	Duration      enums.DurationTier `gorm:"column:duration;type:duration_tier;not null"`
	RequestIDCard bool               `gorm:"column:request_id_card;not null;default:false"`

	PersonalPhotoKey string `gorm:"column:personal_photo_key;not null"`
	LicenseFrontKey  string `gorm:"column:license_front_key;not null"`
	LicenseBackKey   string `gorm:"column:license_back_key;not null"`

	// Status is an administrative override; NULL means no override has been
	// recorded and display logic treats the permit as approved.
	Status *enums.PermitStatus `gorm:"column:status;type:permit_status"`

	ApplicationID uuid.UUID `gorm:"column:application_id;type:uuid;not null;unique"`

	// IssueDate and ExpiryDate duplicate what the lifecycle evaluator derives
	// from CreatedAt + Duration; they are stored for export surfaces only.
	IssueDate  *time.Time `gorm:"column:issue_date"`
	ExpiryDate *time.Time `gorm:"column:expiry_date"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
