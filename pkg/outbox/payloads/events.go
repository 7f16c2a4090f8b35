package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/mateovaldes/idp-registry-backend/pkg/enums"
)

// ApplicationSubmittedEvent signals a finished submission that produced a permit.
type ApplicationSubmittedEvent struct {
	ApplicationID uuid.UUID `json:"application_id"`
	PermitID      uuid.UUID `json:"permit_id"`
	PermitNumber  string    `json:"permit_number"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// PermitCreatedEvent is emitted when a staff user registers a permit directly.
type PermitCreatedEvent struct {
	PermitID   uuid.UUID          `json:"permit_id"`
	Number     string             `json:"number"`
	Duration   enums.DurationTier `json:"duration"`
	ExpiryDate time.Time          `json:"expiry_date"`
}

// PermitUpdatedEvent reports edits to an existing permit record.
type PermitUpdatedEvent struct {
	PermitID uuid.UUID `json:"permit_id"`
	Number   string    `json:"number"`
}

// PermitStatusChangedEvent is emitted when the administrative status override changes.
type PermitStatusChangedEvent struct {
	PermitID uuid.UUID           `json:"permit_id"`
	Number   string              `json:"number"`
	Status   *enums.PermitStatus `json:"status"`
}

// PermitExpiringSoonEvent tells downstream systems to notify the holder.
type PermitExpiringSoonEvent struct {
	PermitID      uuid.UUID `json:"permit_id"`
	Number        string    `json:"number"`
	ExpiresAt     time.Time `json:"expires_at"`
	DaysRemaining int       `json:"days_remaining"`
}

// UploadCompletedEvent reports a finished photo-asset upload.
type UploadCompletedEvent struct {
	UploadID      uuid.UUID       `json:"upload_id"`
	ApplicationID uuid.UUID       `json:"application_id"`
	Slot          enums.AssetSlot `json:"slot"`
	GCSKey        string          `json:"gcs_key"`
	SizeBytes     int64           `json:"size_bytes"`
}

// UploadOrphanDeletedEvent reports a swept upload whose draft went stale.
type UploadOrphanDeletedEvent struct {
	UploadID      uuid.UUID       `json:"upload_id"`
	ApplicationID uuid.UUID       `json:"application_id"`
	Slot          enums.AssetSlot `json:"slot"`
	GCSKey        string          `json:"gcs_key"`
	DeletedAt     time.Time       `json:"deleted_at"`
}
