package permits

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mateovaldes/idp-registry-backend/internal/lifecycle"
	dbpkg "github.com/mateovaldes/idp-registry-backend/pkg/db"
	"github.com/mateovaldes/idp-registry-backend/pkg/db/models"
	dbtypes "github.com/mateovaldes/idp-registry-backend/pkg/db/types"
	"github.com/mateovaldes/idp-registry-backend/pkg/enums"
	pkgerrors "github.com/mateovaldes/idp-registry-backend/pkg/errors"
	"github.com/mateovaldes/idp-registry-backend/pkg/logger"
	"github.com/mateovaldes/idp-registry-backend/pkg/outbox"
	"github.com/mateovaldes/idp-registry-backend/pkg/outbox/payloads"
	pkgpagination "github.com/mateovaldes/idp-registry-backend/pkg/pagination"
)

const createNumberAttempts = 3

// Actor identifies the staff user performing a registry mutation.
type Actor struct {
	StaffID uuid.UUID
	Role    enums.StaffRole
}

func (a Actor) ref() *outbox.ActorRef {
	staffID := a.StaffID
	return &outbox.ActorRef{StaffID: &staffID, Role: a.Role.String()}
}

type permitsRepository interface {
	CreateTx(tx *gorm.DB, permit *models.Permit) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Permit, error)
	List(ctx context.Context, opts listQuery) ([]models.Permit, error)
	SaveTx(tx *gorm.DB, permit *models.Permit) error
}

type applicationsRepository interface {
	CreateTx(tx *gorm.DB, app *models.Application) error
}

type gcsSigner interface {
	SignedReadURL(bucket, object string, expires time.Duration) (string, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CreateInput is the staff-entered registration form. Asset keys are optional
// because staff digitize paper applications whose photos arrive later.
type CreateInput struct {
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

	PersonalPhotoKey string
	LicenseFrontKey  string
	LicenseBackKey   string
}

// UpdateInput edits an existing permit. Nil fields keep the stored value;
// asset keys only change when a replacement is supplied. The permit number is
// immutable and has no field here.
type UpdateInput struct {
	FirstName  *string
	FamilyName *string
	Phone      *string
	Gender     *string
	BirthDate  *time.Time
	BirthPlace *string

	AddressLine1     *string
	AddressLine2     *string
	City             *string
	State            *string
	Zip              *string
	Country          *string
	ResidenceCountry *string

	LicenseNumber  *string
	LicenseClasses []string
	IssuerCountry  *string

	Duration      *string
	RequestIDCard *bool

	PersonalPhotoKey *string
	LicenseFrontKey  *string
	LicenseBackKey   *string
}

// Service exposes the staff registry surface over stored permits.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Get(ctx context.Context, id uuid.UUID) (*PermitView, error)
	Create(ctx context.Context, actor Actor, input CreateInput) (*PermitView, error)
	Update(ctx context.Context, actor Actor, id uuid.UUID, input UpdateInput) (*PermitView, error)
	SetStatus(ctx context.Context, actor Actor, id uuid.UUID, status *enums.PermitStatus) (*PermitView, error)
}

type service struct {
	repo         permitsRepository
	applications applicationsRepository
	gcs          gcsSigner
	tx           txRunner
	events       eventEmitter
	logg         *logger.Logger
	bucket       string
	readTTL      time.Duration
	now          func() time.Time
}

// NewService constructs the staff permits service.
func NewService(
	repo permitsRepository,
	applications applicationsRepository,
	gcs gcsSigner,
	tx txRunner,
	events eventEmitter,
	logg *logger.Logger,
	bucket string,
	readTTL time.Duration,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("permits repository required")
	}
	if applications == nil {
		return nil, fmt.Errorf("applications repository required")
	}
	if gcs == nil {
		return nil, fmt.Errorf("gcs signer required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket required")
	}
	if readTTL <= 0 {
		return nil, fmt.Errorf("read url ttl must be positive")
	}
	return &service{
		repo:         repo,
		applications: applications,
		gcs:          gcs,
		tx:           tx,
		events:       events,
		logg:         logg,
		bucket:       bucket,
		readTTL:      readTTL,
		now:          time.Now,
	}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	limit := pkgpagination.NormalizeLimit(params.Limit)
	query := listQuery{
		search: strings.TrimSpace(params.Search),
		limit:  pkgpagination.LimitWithBuffer(params.Limit),
	}
	if params.Cursor != "" {
		cursor, err := pkgpagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list permits")
	}

	nextCursor := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[limit-1]
		nextCursor = pkgpagination.EncodeCursor(pkgpagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	now := s.now()
	items := make([]PermitView, len(rows))
	for i, row := range rows {
		view := toPermitView(row, now)
		view.Assets, err = s.assetLinks(row)
		if err != nil {
			return nil, err
		}
		items[i] = view
	}

	return &ListResult{Items: items, Cursor: nextCursor}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*PermitView, error) {
	permit, err := s.loadPermit(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.enrich(*permit)
}

func (s *service) Create(ctx context.Context, actor Actor, input CreateInput) (*PermitView, error) {
	if actor.StaffID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "staff identity missing")
	}
	permit, err := s.buildPermit(input)
	if err != nil {
		return nil, err
	}

	createdAt := s.now()
	var lastErr error
	for attempt := 0; attempt < createNumberAttempts; attempt++ {
		number, err := lifecycle.NewPermitNumber(createdAt, nil)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint permit number")
		}
		permit.ID = uuid.New()
		permit.Number = number

		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			// Staff-entered permits get a backing application row so every
			// permit links to exactly one application.
			app := &models.Application{
				Status:      enums.ApplicationStatusSubmitted,
				PermitID:    &permit.ID,
				SubmittedAt: &createdAt,
			}
			if err := s.applications.CreateTx(tx, app); err != nil {
				return err
			}
			permit.ApplicationID = app.ID
			if err := s.repo.CreateTx(tx, permit); err != nil {
				return err
			}
			expiresAt := createdAt.AddDate(permit.Duration.Years(), 0, 0)
			return s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPermitCreated,
				AggregateType: enums.AggregatePermit,
				AggregateID:   permit.ID,
				Actor:         actor.ref(),
				Data: payloads.PermitCreatedEvent{
					PermitID:   permit.ID,
					Number:     number,
					Duration:   permit.Duration,
					ExpiryDate: expiresAt,
				},
				Version: 1,
			})
		})
		if err == nil {
			if s.logg != nil {
				s.logg.Info(s.logg.WithPermitNumber(ctx, number), "permit registered")
			}
			return s.enrich(*permit)
		}
		if dbpkg.IsUniqueViolation(err, "idx_permits_number") {
			lastErr = err
			continue
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register permit")
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, lastErr, "permit number collisions exhausted retries")
}

func (s *service) Update(ctx context.Context, actor Actor, id uuid.UUID, input UpdateInput) (*PermitView, error) {
	if actor.StaffID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "staff identity missing")
	}
	permit, err := s.loadPermit(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := applyUpdate(permit, input); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.SaveTx(tx, permit); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPermitUpdated,
			AggregateType: enums.AggregatePermit,
			AggregateID:   permit.ID,
			Actor:         actor.ref(),
			Data:          payloads.PermitUpdatedEvent{PermitID: permit.ID, Number: permit.Number},
			Version:       1,
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update permit")
	}
	return s.enrich(*permit)
}

func (s *service) SetStatus(ctx context.Context, actor Actor, id uuid.UUID, status *enums.PermitStatus) (*PermitView, error) {
	if actor.StaffID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "staff identity missing")
	}
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid permit status")
	}
	permit, err := s.loadPermit(ctx, id)
	if err != nil {
		return nil, err
	}

	permit.Status = status
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.SaveTx(tx, permit); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPermitStatusChanged,
			AggregateType: enums.AggregatePermit,
			AggregateID:   permit.ID,
			Actor:         actor.ref(),
			Data: payloads.PermitStatusChangedEvent{
				PermitID: permit.ID,
				Number:   permit.Number,
				Status:   status,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set permit status")
	}
	return s.enrich(*permit)
}

func (s *service) loadPermit(ctx context.Context, id uuid.UUID) (*models.Permit, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "permit id is required")
	}
	permit, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup permit")
	}
	if permit == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "permit not found")
	}
	return permit, nil
}

func (s *service) enrich(permit models.Permit) (*PermitView, error) {
	view := toPermitView(permit, s.now())
	links, err := s.assetLinks(permit)
	if err != nil {
		return nil, err
	}
	view.Assets = links
	return &view, nil
}

func (s *service) assetLinks(permit models.Permit) (AssetLinks, error) {
	var links AssetLinks
	for _, asset := range []struct {
		key  string
		dest *string
	}{
		{permit.PersonalPhotoKey, &links.PersonalPhoto},
		{permit.LicenseFrontKey, &links.LicenseFront},
		{permit.LicenseBackKey, &links.LicenseBack},
	} {
		if asset.key == "" {
			continue
		}
		url, err := s.gcs.SignedReadURL(s.bucket, asset.key, s.readTTL)
		if err != nil {
			return AssetLinks{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign asset read url")
		}
		*asset.dest = url
	}
	return links, nil
}

func (s *service) buildPermit(input CreateInput) (*models.Permit, error) {
	tier, err := enums.ParseDurationTier(input.Duration)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid duration")
	}
	gender, err := enums.ParseGender(input.Gender)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid gender")
	}
	classes, err := dbtypes.NewLicenseClassSet(input.LicenseClasses)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid license classes")
	}
	if len(classes) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one license class is required")
	}
	for _, field := range []struct{ name, value string }{
		{"first_name", input.FirstName},
		{"family_name", input.FamilyName},
		{"phone", input.Phone},
		{"birth_place", input.BirthPlace},
		{"address_line1", input.AddressLine1},
		{"city", input.City},
		{"state", input.State},
		{"zip", input.Zip},
		{"country", input.Country},
		{"residence_country", input.ResidenceCountry},
		{"license_number", input.LicenseNumber},
		{"issuer_country", input.IssuerCountry},
	} {
		if strings.TrimSpace(field.value) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, field.name+" is required")
		}
	}
	if input.BirthDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "birth_date is required")
	}

	issuedAt := s.now()
	expiresAt := issuedAt.AddDate(tier.Years(), 0, 0)
	return &models.Permit{
		FirstName:        strings.TrimSpace(input.FirstName),
		FamilyName:       strings.TrimSpace(input.FamilyName),
		Phone:            strings.TrimSpace(input.Phone),
		Gender:           gender,
		BirthDate:        input.BirthDate,
		BirthPlace:       strings.TrimSpace(input.BirthPlace),
		AddressLine1:     strings.TrimSpace(input.AddressLine1),
		AddressLine2:     input.AddressLine2,
		City:             strings.TrimSpace(input.City),
		State:            strings.TrimSpace(input.State),
		Zip:              strings.TrimSpace(input.Zip),
		Country:          strings.TrimSpace(input.Country),
		ResidenceCountry: strings.TrimSpace(input.ResidenceCountry),
		LicenseNumber:    strings.TrimSpace(input.LicenseNumber),
		LicenseClasses:   classes,
		IssuerCountry:    strings.TrimSpace(input.IssuerCountry),
		Duration:         tier,
		RequestIDCard:    input.RequestIDCard,
		PersonalPhotoKey: input.PersonalPhotoKey,
		LicenseFrontKey:  input.LicenseFrontKey,
		LicenseBackKey:   input.LicenseBackKey,
		IssueDate:        &issuedAt,
		ExpiryDate:       &expiresAt,
	}, nil
}

func applyUpdate(permit *models.Permit, input UpdateInput) error {
	setString := func(dest *string, src *string, name string) error {
		if src == nil {
			return nil
		}
		trimmed := strings.TrimSpace(*src)
		if trimmed == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, name+" cannot be blank")
		}
		*dest = trimmed
		return nil
	}

	for _, field := range []struct {
		dest *string
		src  *string
		name string
	}{
		{&permit.FirstName, input.FirstName, "first_name"},
		{&permit.FamilyName, input.FamilyName, "family_name"},
		{&permit.Phone, input.Phone, "phone"},
		{&permit.BirthPlace, input.BirthPlace, "birth_place"},
		{&permit.AddressLine1, input.AddressLine1, "address_line1"},
		{&permit.City, input.City, "city"},
		{&permit.State, input.State, "state"},
		{&permit.Zip, input.Zip, "zip"},
		{&permit.Country, input.Country, "country"},
		{&permit.ResidenceCountry, input.ResidenceCountry, "residence_country"},
		{&permit.LicenseNumber, input.LicenseNumber, "license_number"},
		{&permit.IssuerCountry, input.IssuerCountry, "issuer_country"},
	} {
		if err := setString(field.dest, field.src, field.name); err != nil {
			return err
		}
	}

	if input.AddressLine2 != nil {
		trimmed := strings.TrimSpace(*input.AddressLine2)
		if trimmed == "" {
			permit.AddressLine2 = nil
		} else {
			permit.AddressLine2 = &trimmed
		}
	}
	if input.Gender != nil {
		gender, err := enums.ParseGender(*input.Gender)
		if err != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid gender")
		}
		permit.Gender = gender
	}
	if input.BirthDate != nil {
		if input.BirthDate.IsZero() {
			return pkgerrors.New(pkgerrors.CodeValidation, "birth_date cannot be blank")
		}
		permit.BirthDate = *input.BirthDate
	}
	if input.LicenseClasses != nil {
		classes, err := dbtypes.NewLicenseClassSet(input.LicenseClasses)
		if err != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid license classes")
		}
		if len(classes) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "at least one license class is required")
		}
		permit.LicenseClasses = classes
	}
	if input.Duration != nil {
		tier, err := enums.ParseDurationTier(*input.Duration)
		if err != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid duration")
		}
		permit.Duration = tier
	}
	if input.RequestIDCard != nil {
		permit.RequestIDCard = *input.RequestIDCard
	}

	// Asset locators only move forward: an absent field keeps the stored key,
	// and blank replacements are rejected rather than clearing a photo.
	for _, field := range []struct {
		dest *string
		src  *string
		name string
	}{
		{&permit.PersonalPhotoKey, input.PersonalPhotoKey, "personal_photo_key"},
		{&permit.LicenseFrontKey, input.LicenseFrontKey, "license_front_key"},
		{&permit.LicenseBackKey, input.LicenseBackKey, "license_back_key"},
	} {
		if err := setString(field.dest, field.src, field.name); err != nil {
			return err
		}
	}
	return nil
}
