package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/mateovaldes/idp-registry-backend/pkg/db/models"
	"github.com/mateovaldes/idp-registry-backend/pkg/enums"
	"github.com/mateovaldes/idp-registry-backend/pkg/logger"
	"github.com/mateovaldes/idp-registry-backend/pkg/metrics"
	"github.com/mateovaldes/idp-registry-backend/pkg/outbox"
	"github.com/mateovaldes/idp-registry-backend/pkg/outbox/payloads"
)

const orphanSweepBatch = 500

type uploadsRepository interface {
	ListOrphaned(ctx context.Context, cutoff time.Time, limit int) ([]models.Upload, error)
	DeleteTx(tx *gorm.DB, id uuid.UUID) error
}

type gcsClient interface {
	DeleteObject(ctx context.Context, bucket, object string) error
}

type orphanEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OrphanUploadJobParams configures the stale-upload reconciler.
type OrphanUploadJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	UploadRepo uploadsRepository
	Outbox     orphanEmitter
	GCS        gcsClient
	Bucket     string
	Retention  time.Duration
	Metrics    *metrics.CronJobMetrics
}

// NewOrphanUploadJob constructs the sweep that reclaims uploads left behind
// by abandoned drafts and removed or failed slot attempts.
func NewOrphanUploadJob(params OrphanUploadJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.UploadRepo == nil {
		return nil, fmt.Errorf("upload repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.GCS == nil {
		return nil, fmt.Errorf("gcs client required")
	}
	if params.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = 168 * time.Hour
	}
	return &orphanUploadJob{
		logg:       params.Logger,
		db:         params.DB,
		uploadRepo: params.UploadRepo,
		outbox:     params.Outbox,
		gcs:        params.GCS,
		bucket:     params.Bucket,
		retention:  retention,
		metrics:    params.Metrics,
		now:        time.Now,
	}, nil
}

type orphanUploadJob struct {
	logg       *logger.Logger
	db         txRunner
	uploadRepo uploadsRepository
	outbox     orphanEmitter
	gcs        gcsClient
	bucket     string
	retention  time.Duration
	metrics    *metrics.CronJobMetrics
	now        func() time.Time
}

func (j *orphanUploadJob) Name() string { return "orphan-upload-sweep" }

func (j *orphanUploadJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	rows, err := j.uploadRepo.ListOrphaned(ctx, cutoff, orphanSweepBatch)
	if err != nil {
		return fmt.Errorf("query orphaned uploads: %w", err)
	}

	count := 0
	var errs []error
	for _, row := range rows {
		if err := j.sweep(ctx, row); err != nil {
			logCtx := j.logg.WithFields(ctx, map[string]any{"upload_id": row.ID.String()})
			j.logg.Warn(logCtx, "orphan sweep skipped row: "+err.Error())
			errs = append(errs, fmt.Errorf("upload %s: %w", row.ID, err))
			continue
		}
		count++
	}

	if j.metrics != nil {
		j.metrics.AddItemsProcessed(j.Name(), count)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count, "failed": len(errs)})
	j.logg.Info(logCtx, "orphan upload sweep complete")
	return multierr.Combine(errs...)
}

func (j *orphanUploadJob) sweep(ctx context.Context, row models.Upload) error {
	// The object goes first: a retried sweep after a partial failure finds
	// the row again, while a dangling object without a row would never be
	// found again.
	if row.GCSKey != "" {
		if err := j.gcs.DeleteObject(ctx, j.bucket, row.GCSKey); err != nil {
			return fmt.Errorf("delete gcs object: %w", err)
		}
	}
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := j.uploadRepo.DeleteTx(tx, row.ID); err != nil {
			return err
		}
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventUploadOrphanDeleted,
			AggregateType: enums.AggregateUpload,
			AggregateID:   row.ID,
			Data: payloads.UploadOrphanDeletedEvent{
				UploadID:      row.ID,
				ApplicationID: row.ApplicationID,
				Slot:          row.Slot,
				GCSKey:        row.GCSKey,
				DeletedAt:     j.now().UTC(),
			},
			Version: 1,
		})
	})
}
