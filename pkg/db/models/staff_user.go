package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mateovaldes/idp-registry-backend/pkg/enums"
)

// StaffUser is an authenticated operator of the registry.
type StaffUser struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string          `gorm:"column:email;not null;unique"`
	PasswordHash string          `gorm:"column:password_hash;not null"`
	FullName     string          `gorm:"column:full_name;not null"`
	Role         enums.StaffRole `gorm:"column:role;type:staff_role;not null;default:'clerk'"`
	Active       bool            `gorm:"column:active;not null;default:true"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
