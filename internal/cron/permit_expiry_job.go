package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mateovaldes/idp-registry-backend/internal/lifecycle"
	"github.com/mateovaldes/idp-registry-backend/pkg/db/models"
	"github.com/mateovaldes/idp-registry-backend/pkg/enums"
	"github.com/mateovaldes/idp-registry-backend/pkg/logger"
	"github.com/mateovaldes/idp-registry-backend/pkg/metrics"
	"github.com/mateovaldes/idp-registry-backend/pkg/outbox"
	"github.com/mateovaldes/idp-registry-backend/pkg/outbox/payloads"
)

type permitsRepository interface {
	ListExpiringWithin(ctx context.Context, horizon time.Time, limit int) ([]models.Permit, error)
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PermitExpiryJobParams configures the expiry-notice scan.
type PermitExpiryJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	PermitRepo  permitsRepository
	Outbox      outboxEmitter
	Metrics     *metrics.CronJobMetrics
	WarningDays int
}

// NewPermitExpiryJob constructs the daily permit expiry notice job. It only
// emits events; the status column is an administrative override and is never
// written by the scheduler.
func NewPermitExpiryJob(params PermitExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.PermitRepo == nil {
		return nil, fmt.Errorf("permit repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	warningDays := params.WarningDays
	if warningDays <= 0 {
		warningDays = 30
	}
	return &permitExpiryJob{
		logg:        params.Logger,
		db:          params.DB,
		permitRepo:  params.PermitRepo,
		outbox:      params.Outbox,
		metrics:     params.Metrics,
		warningDays: warningDays,
		now:         time.Now,
	}, nil
}

type permitExpiryJob struct {
	logg        *logger.Logger
	db          txRunner
	permitRepo  permitsRepository
	outbox      outboxEmitter
	metrics     *metrics.CronJobMetrics
	warningDays int
	now         func() time.Time
}

func (j *permitExpiryJob) Name() string { return "permit-expiry-notice" }

func (j *permitExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	horizon := now.Add(time.Duration(j.warningDays) * 24 * time.Hour)

	permits, err := j.permitRepo.ListExpiringWithin(ctx, horizon, 0)
	if err != nil {
		return fmt.Errorf("query expiring permits: %w", err)
	}

	count := 0
	for _, permit := range permits {
		expiresAt, ok := lifecycle.ExpirationDate(permit)
		if !ok || expiresAt.After(horizon) {
			continue
		}
		daysRemaining := int(expiresAt.Sub(now).Hours() / 24)
		if daysRemaining < 0 {
			daysRemaining = 0
		}
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			return j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPermitExpiringSoon,
				AggregateType: enums.AggregatePermit,
				AggregateID:   permit.ID,
				Data: payloads.PermitExpiringSoonEvent{
					PermitID:      permit.ID,
					Number:        permit.Number,
					ExpiresAt:     expiresAt,
					DaysRemaining: daysRemaining,
				},
				Version:    1,
				OccurredAt: now,
			})
		})
		if err != nil {
			return fmt.Errorf("queue expiry notice: %w", err)
		}
		count++
	}

	if j.metrics != nil {
		j.metrics.AddItemsProcessed(j.Name(), count)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count})
	j.logg.Info(logCtx, "permit expiry scan complete")
	return nil
}
