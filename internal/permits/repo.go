package permits

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mateovaldes/idp-registry-backend/pkg/db/models"
)

// Repository exposes permit persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a permit repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateTx inserts a new permit row inside an existing transaction.
func (r *Repository) CreateTx(tx *gorm.DB, permit *models.Permit) error {
	return tx.Create(permit).Error
}

// FindByID retrieves a permit, or nil when it does not exist.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Permit, error) {
	var permit models.Permit
	err := r.db.WithContext(ctx).First(&permit, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &permit, nil
}

// FindByNumber retrieves a permit by its external number, or nil.
func (r *Repository) FindByNumber(ctx context.Context, number string) (*models.Permit, error) {
	var permit models.Permit
	err := r.db.WithContext(ctx).First(&permit, "number = ?", number).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &permit, nil
}

// List returns permits using cursor pagination, newest first. An optional
// search term matches the permit number or holder name.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.Permit, error) {
	query := r.db.WithContext(ctx).Model(&models.Permit{})

	if opts.search != "" {
		pattern := "%" + opts.search + "%"
		query = query.Where(
			"number ILIKE ? OR first_name ILIKE ? OR family_name ILIKE ?",
			pattern, pattern, pattern,
		)
	}
	if opts.cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID,
		)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.Permit
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SaveTx writes the full permit row back inside an existing transaction.
func (r *Repository) SaveTx(tx *gorm.DB, permit *models.Permit) error {
	return tx.Save(permit).Error
}

// ListExpiringWithin returns permits whose stored expiry duplicate falls
// before the horizon. Rows predating the duplicate columns carry NULL and are
// picked up by the derived-window check in the cron job instead.
func (r *Repository) ListExpiringWithin(ctx context.Context, horizon time.Time, limit int) ([]models.Permit, error) {
	query := r.db.WithContext(ctx).Model(&models.Permit{}).
		Where("expiry_date IS NULL OR expiry_date <= ?", horizon).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.Permit
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
