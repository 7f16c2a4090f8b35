package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mateovaldes/idp-registry-backend/pkg/enums"
)

// Upload tracks one asset slot on an application. A slot keeps a single row;
// replacing the file bumps Attempt so a completion or progress report carrying
// an older attempt number is recognized as stale and discarded.
type Upload struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ApplicationID uuid.UUID          `gorm:"column:application_id;type:uuid;not null;uniqueIndex:idx_uploads_application_slot"`
	Slot          enums.AssetSlot    `gorm:"column:slot;type:asset_slot;not null;uniqueIndex:idx_uploads_application_slot"`
	Status        enums.UploadStatus `gorm:"column:status;type:upload_status;not null;default:'pending'"`
	Attempt       int                `gorm:"column:attempt;not null;default:1"`
	Progress      int                `gorm:"column:progress;not null;default:0"`
	GCSKey        string             `gorm:"column:gcs_key;not null"`
	FileName      string             `gorm:"column:file_name;not null"`
	MimeType      string             `gorm:"column:mime_type;not null"`
	SizeBytes     int64              `gorm:"column:size_bytes;not null"`
	ErrorReason   *string            `gorm:"column:error_reason"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
