package applications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mateovaldes/idp-registry-backend/pkg/db/models"
	"github.com/mateovaldes/idp-registry-backend/pkg/enums"
)

// Repository exposes application persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an applications repository bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a new draft application.
func (r *Repository) Create(ctx context.Context, app *models.Application) (*models.Application, error) {
	if err := r.db.WithContext(ctx).Create(app).Error; err != nil {
		return nil, err
	}
	return app, nil
}

// CreateTx persists an application inside an existing transaction. Staff
// permit registration uses it to mint the backing application row.
func (r *Repository) CreateTx(tx *gorm.DB, app *models.Application) error {
	return tx.Create(app).Error
}

// FindByID retrieves an application, or nil when it does not exist.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var app models.Application
	err := r.db.WithContext(ctx).First(&app, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// MarkSubmittedTx flips a draft to submitted and links the permit, inside an
// existing transaction. The status guard makes the flip idempotent against a
// concurrent submit that already won.
func (r *Repository) MarkSubmittedTx(tx *gorm.DB, applicationID, permitID uuid.UUID, submittedAt time.Time) error {
	result := tx.Model(&models.Application{}).
		Where("id = ? AND status = ?", applicationID, enums.ApplicationStatusDraft).
		Updates(map[string]any{
			"status":       enums.ApplicationStatusSubmitted,
			"permit_id":    permitID,
			"submitted_at": submittedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
