package uploads

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mateovaldes/idp-registry-backend/pkg/db/models"
	"github.com/mateovaldes/idp-registry-backend/pkg/enums"
)

// Repository exposes upload-slot persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an uploads repository bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindSlot retrieves the single row tracking a slot on an application, or nil
// when the slot has never been presigned.
func (r *Repository) FindSlot(ctx context.Context, applicationID uuid.UUID, slot enums.AssetSlot) (*models.Upload, error) {
	var row models.Upload
	err := r.db.WithContext(ctx).
		Where("application_id = ? AND slot = ?", applicationID, slot).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByID retrieves a slot row by its primary key, or nil when absent.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Upload, error) {
	var row models.Upload
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListByApplication returns every slot row recorded for an application.
func (r *Repository) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]models.Upload, error) {
	var rows []models.Upload
	err := r.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("slot ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Create persists a new slot row.
func (r *Repository) Create(ctx context.Context, row *models.Upload) (*models.Upload, error) {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// Save writes the full row back.
func (r *Repository) Save(ctx context.Context, row *models.Upload) error {
	return r.db.WithContext(ctx).Save(row).Error
}

// SaveTx writes the full row back inside an existing transaction.
func (r *Repository) SaveTx(tx *gorm.DB, row *models.Upload) error {
	return tx.Save(row).Error
}

// Delete removes a slot row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Upload{}).Error
}

// DeleteTx removes a slot row inside an existing transaction.
func (r *Repository) DeleteTx(tx *gorm.DB, id uuid.UUID) error {
	return tx.Where("id = ?", id).Delete(&models.Upload{}).Error
}

// ListOrphaned returns rows eligible for the orphan sweep: anything attached
// to a draft application created before the cutoff, plus removed or failed
// rows regardless of age.
func (r *Repository) ListOrphaned(ctx context.Context, cutoff time.Time, limit int) ([]models.Upload, error) {
	var rows []models.Upload
	query := r.db.WithContext(ctx).
		Joins("JOIN applications ON applications.id = uploads.application_id").
		Where(
			"(applications.status = ? AND applications.created_at < ?) OR uploads.status IN ?",
			enums.ApplicationStatusDraft, cutoff,
			[]enums.UploadStatus{enums.UploadStatusRemoved, enums.UploadStatusFailed},
		).
		Order("uploads.created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
