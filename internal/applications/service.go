package applications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mateovaldes/idp-registry-backend/internal/lifecycle"
	"github.com/mateovaldes/idp-registry-backend/internal/uploads"
	dbpkg "github.com/mateovaldes/idp-registry-backend/pkg/db"
	"github.com/mateovaldes/idp-registry-backend/pkg/db/models"
	dbtypes "github.com/mateovaldes/idp-registry-backend/pkg/db/types"
	"github.com/mateovaldes/idp-registry-backend/pkg/enums"
	pkgerrors "github.com/mateovaldes/idp-registry-backend/pkg/errors"
	"github.com/mateovaldes/idp-registry-backend/pkg/logger"
	"github.com/mateovaldes/idp-registry-backend/pkg/outbox"
	"github.com/mateovaldes/idp-registry-backend/pkg/outbox/payloads"
)

// Blocking reasons reported per unsatisfied slot.
const (
	ReasonSlotMissing   = "missing"
	ReasonSlotUploading = "still uploading"
)

const (
	submitGuardTTL       = 30 * time.Second
	permitNumberAttempts = 3
)

type applicationsRepository interface {
	Create(ctx context.Context, app *models.Application) (*models.Application, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Application, error)
	MarkSubmittedTx(tx *gorm.DB, applicationID, permitID uuid.UUID, submittedAt time.Time) error
}

type permitsRepository interface {
	CreateTx(tx *gorm.DB, permit *models.Permit) error
}

type slotSnapshotter interface {
	Snapshot(ctx context.Context, applicationID uuid.UUID) ([]uploads.SlotView, error)
}

type submitGuard interface {
	AcquireSubmitGuard(ctx context.Context, applicationID string, ttl time.Duration) (bool, error)
	ReleaseSubmitGuard(ctx context.Context, applicationID string) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SubmitForm carries the applicant's form payload at submission time.
type SubmitForm struct {
	FirstName  string
	FamilyName string
	Phone      string
	Gender     string
	BirthDate  time.Time
	BirthPlace string

	AddressLine1     string
	AddressLine2     *string
	City             string
	State            string
	Zip              string
	Country          string
	ResidenceCountry string

	LicenseNumber  string
	LicenseClasses []string
	IssuerCountry  string

	Duration      string
	RequestIDCard bool
}

// SubmitOutput is what the applicant receives after a successful submission.
type SubmitOutput struct {
	PermitID     uuid.UUID `json:"permit_id"`
	PermitNumber string    `json:"permit_number"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// ApplicationView is the applicant-facing snapshot of a draft.
type ApplicationView struct {
	ID          uuid.UUID               `json:"id"`
	Status      enums.ApplicationStatus `json:"status"`
	Slots       []uploads.SlotView      `json:"slots"`
	CanSubmit   bool                    `json:"can_submit"`
	Blocking    map[string]string       `json:"blocking,omitempty"`
	SubmittedAt *time.Time              `json:"submitted_at,omitempty"`
}

// Service orchestrates the public submission flow: open a draft, watch the
// three upload slots, and turn a complete draft into a permit.
type Service interface {
	Open(ctx context.Context) (*models.Application, error)
	Snapshot(ctx context.Context, id uuid.UUID) (*ApplicationView, error)
	Submit(ctx context.Context, id uuid.UUID, form SubmitForm) (*SubmitOutput, error)
}

type service struct {
	repo    applicationsRepository
	permits permitsRepository
	slots   slotSnapshotter
	guard   submitGuard
	tx      txRunner
	events  eventEmitter
	logg    *logger.Logger
	now     func() time.Time
}

// NewService constructs the submission orchestrator.
func NewService(
	repo applicationsRepository,
	permits permitsRepository,
	slots slotSnapshotter,
	guard submitGuard,
	tx txRunner,
	events eventEmitter,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("applications repository required")
	}
	if permits == nil {
		return nil, fmt.Errorf("permits repository required")
	}
	if slots == nil {
		return nil, fmt.Errorf("slot snapshotter required")
	}
	if guard == nil {
		return nil, fmt.Errorf("submit guard required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	return &service{
		repo:    repo,
		permits: permits,
		slots:   slots,
		guard:   guard,
		tx:      tx,
		events:  events,
		logg:    logg,
		now:     time.Now,
	}, nil
}

func (s *service) Open(ctx context.Context) (*models.Application, error) {
	app := &models.Application{Status: enums.ApplicationStatusDraft}
	created, err := s.repo.Create(ctx, app)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open application draft")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithApplicationID(ctx, created.ID.String()), "application draft opened")
	}
	return created, nil
}

func (s *service) Snapshot(ctx context.Context, id uuid.UUID) (*ApplicationView, error) {
	app, err := s.loadApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.slots.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	blocking := blockingReasons(views)
	return &ApplicationView{
		ID:          app.ID,
		Status:      app.Status,
		Slots:       views,
		CanSubmit:   app.Status == enums.ApplicationStatusDraft && len(blocking) == 0,
		Blocking:    blocking,
		SubmittedAt: app.SubmittedAt,
	}, nil
}

func (s *service) Submit(ctx context.Context, id uuid.UUID, form SubmitForm) (*SubmitOutput, error) {
	app, err := s.loadApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status != enums.ApplicationStatusDraft {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "application already submitted")
	}

	views, err := s.slots.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	if blocking := blockingReasons(views); len(blocking) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "application is not ready to submit").
			WithDetails(blocking)
	}

	permit, err := s.buildPermit(ctx, id, form, views)
	if err != nil {
		return nil, err
	}

	acquired, err := s.guard.AcquireSubmitGuard(ctx, id.String(), submitGuardTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire submit guard")
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "submission already in progress")
	}

	out, err := s.persistSubmission(ctx, app, permit)
	if err != nil {
		if releaseErr := s.guard.ReleaseSubmitGuard(ctx, id.String()); releaseErr != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithApplicationID(ctx, id.String()), "submit guard release failed, fence expires on TTL")
		}
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithApplicationID(ctx, id.String())
		s.logg.Info(s.logg.WithPermitNumber(logCtx, out.PermitNumber), "application submitted")
	}
	return out, nil
}

// persistSubmission writes the permit and flips the application in one
// transaction, retrying on a permit number collision.
func (s *service) persistSubmission(ctx context.Context, app *models.Application, permit *models.Permit) (*SubmitOutput, error) {
	submittedAt := s.now()
	var lastErr error
	for attempt := 0; attempt < permitNumberAttempts; attempt++ {
		number, err := lifecycle.NewPermitNumber(submittedAt, nil)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint permit number")
		}
		permit.ID = uuid.New()
		permit.Number = number

		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.permits.CreateTx(tx, permit); err != nil {
				return err
			}
			if err := s.repo.MarkSubmittedTx(tx, app.ID, permit.ID, submittedAt); err != nil {
				return err
			}
			return s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventApplicationSubmitted,
				AggregateType: enums.AggregateApplication,
				AggregateID:   app.ID,
				Actor:         &outbox.ActorRef{Role: "public"},
				Data: payloads.ApplicationSubmittedEvent{
					ApplicationID: app.ID,
					PermitID:      permit.ID,
					PermitNumber:  number,
					SubmittedAt:   submittedAt,
				},
				Version: 1,
			})
		})
		if err == nil {
			return &SubmitOutput{PermitID: permit.ID, PermitNumber: number, SubmittedAt: submittedAt}, nil
		}
		if dbpkg.IsUniqueViolation(err, "idx_permits_number") {
			lastErr = err
			continue
		}
		if dbpkg.IsUniqueViolation(err, "idx_permits_application_id") {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "application already submitted")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist submission")
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, lastErr, "permit number collisions exhausted retries")
}

func (s *service) buildPermit(ctx context.Context, applicationID uuid.UUID, form SubmitForm, views []uploads.SlotView) (*models.Permit, error) {
	tier, err := enums.ParseDurationTier(form.Duration)
	if err != nil {
		// Legacy drafts occasionally carry duration strings neither vocabulary
		// recognizes; they fall back to the shortest tier instead of blocking
		// the applicant.
		tier = enums.DurationTierOneYear
		if s.logg != nil {
			logCtx := s.logg.WithField(ctx, "duration", form.Duration)
			s.logg.Warn(s.logg.WithApplicationID(logCtx, applicationID.String()), "unrecognized duration, defaulting to one year")
		}
	}
	gender, err := enums.ParseGender(form.Gender)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid gender")
	}
	classes, err := dbtypes.NewLicenseClassSet(form.LicenseClasses)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid license classes")
	}
	if len(classes) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one license class is required")
	}
	for _, field := range []struct{ name, value string }{
		{"first_name", form.FirstName},
		{"family_name", form.FamilyName},
		{"phone", form.Phone},
		{"birth_place", form.BirthPlace},
		{"address_line1", form.AddressLine1},
		{"city", form.City},
		{"state", form.State},
		{"zip", form.Zip},
		{"country", form.Country},
		{"residence_country", form.ResidenceCountry},
		{"license_number", form.LicenseNumber},
		{"issuer_country", form.IssuerCountry},
	} {
		if strings.TrimSpace(field.value) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, field.name+" is required")
		}
	}
	if form.BirthDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "birth_date is required")
	}

	keys := make(map[enums.AssetSlot]string, len(views))
	for _, view := range views {
		keys[view.Slot] = view.GCSKey
	}

	issuedAt := s.now()
	expiresAt := issuedAt.AddDate(tier.Years(), 0, 0)
	return &models.Permit{
		FirstName:        strings.TrimSpace(form.FirstName),
		FamilyName:       strings.TrimSpace(form.FamilyName),
		Phone:            strings.TrimSpace(form.Phone),
		Gender:           gender,
		BirthDate:        form.BirthDate,
		BirthPlace:       strings.TrimSpace(form.BirthPlace),
		AddressLine1:     strings.TrimSpace(form.AddressLine1),
		AddressLine2:     form.AddressLine2,
		City:             strings.TrimSpace(form.City),
		State:            strings.TrimSpace(form.State),
		Zip:              strings.TrimSpace(form.Zip),
		Country:          strings.TrimSpace(form.Country),
		ResidenceCountry: strings.TrimSpace(form.ResidenceCountry),
		LicenseNumber:    strings.TrimSpace(form.LicenseNumber),
		LicenseClasses:   classes,
		IssuerCountry:    strings.TrimSpace(form.IssuerCountry),
		Duration:         tier,
		RequestIDCard:    form.RequestIDCard,
		PersonalPhotoKey: keys[enums.AssetSlotPersonalPhoto],
		LicenseFrontKey:  keys[enums.AssetSlotLicenseFront],
		LicenseBackKey:   keys[enums.AssetSlotLicenseBack],
		ApplicationID:    applicationID,
		IssueDate:        &issuedAt,
		ExpiryDate:       &expiresAt,
	}, nil
}

func (s *service) loadApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "application identity missing")
	}
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load application")
	}
	if app == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "application not found")
	}
	return app, nil
}

func blockingReasons(views []uploads.SlotView) map[string]string {
	blocking := make(map[string]string)
	for _, view := range views {
		switch {
		case !view.Present || view.Status == enums.UploadStatusRemoved || view.Status == enums.UploadStatusFailed:
			blocking[view.Slot.String()] = ReasonSlotMissing
		case view.Status == enums.UploadStatusUploaded:
			// satisfied
		default:
			blocking[view.Slot.String()] = ReasonSlotUploading
		}
	}
	if len(blocking) == 0 {
		return nil
	}
	return blocking
}
