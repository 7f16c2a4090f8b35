package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mateovaldes/idp-registry-backend/pkg/enums"
)

// Application is the submission scope opened before any upload starts. It
// stays in draft until the orchestrator flips it to submitted together with
// the permit insert, in one transaction.
type Application struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Status      enums.ApplicationStatus `gorm:"column:status;type:application_status;not null;default:'draft'"`
	PermitID    *uuid.UUID              `gorm:"column:permit_id;type:uuid"`
	SubmittedAt *time.Time              `gorm:"column:submitted_at"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
