package applications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mateovaldes/idp-registry-backend/internal/uploads"
	"github.com/mateovaldes/idp-registry-backend/pkg/db/models"
	"github.com/mateovaldes/idp-registry-backend/pkg/enums"
	pkgerrors "github.com/mateovaldes/idp-registry-backend/pkg/errors"
	"github.com/mateovaldes/idp-registry-backend/pkg/outbox"
)

type stubAppsRepo struct {
	apps      map[uuid.UUID]*models.Application
	submitted []uuid.UUID
}

func newStubAppsRepo() *stubAppsRepo {
	return &stubAppsRepo{apps: make(map[uuid.UUID]*models.Application)}
}

func (s *stubAppsRepo) Create(ctx context.Context, app *models.Application) (*models.Application, error) {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	copied := *app
	s.apps[app.ID] = &copied
	return app, nil
}

func (s *stubAppsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	app, ok := s.apps[id]
	if !ok {
		return nil, nil
	}
	copied := *app
	return &copied, nil
}

func (s *stubAppsRepo) MarkSubmittedTx(tx *gorm.DB, applicationID, permitID uuid.UUID, submittedAt time.Time) error {
	app, ok := s.apps[applicationID]
	if !ok || app.Status != enums.ApplicationStatusDraft {
		return gorm.ErrRecordNotFound
	}
	app.Status = enums.ApplicationStatusSubmitted
	app.PermitID = &permitID
	app.SubmittedAt = &submittedAt
	s.submitted = append(s.submitted, applicationID)
	return nil
}

type stubPermitsRepo struct {
	created   []*models.Permit
	createErr []error
}

func (s *stubPermitsRepo) CreateTx(tx *gorm.DB, permit *models.Permit) error {
	if len(s.createErr) > 0 {
		err := s.createErr[0]
		s.createErr = s.createErr[1:]
		if err != nil {
			return err
		}
	}
	copied := *permit
	s.created = append(s.created, &copied)
	return nil
}

type stubSnapshotter struct {
	views []uploads.SlotView
	err   error
}

func (s *stubSnapshotter) Snapshot(ctx context.Context, applicationID uuid.UUID) ([]uploads.SlotView, error) {
	return s.views, s.err
}

type stubGuard struct {
	acquired   bool
	acquireErr error
	releases   int
}

func (s *stubGuard) AcquireSubmitGuard(ctx context.Context, applicationID string, ttl time.Duration) (bool, error) {
	return s.acquired, s.acquireErr
}

func (s *stubGuard) ReleaseSubmitGuard(ctx context.Context, applicationID string) error {
	s.releases++
	return nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubEvents struct {
	events []outbox.DomainEvent
}

func (s *stubEvents) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func uploadedViews(appID uuid.UUID) []uploads.SlotView {
	views := make([]uploads.SlotView, 0, 3)
	for _, slot := range enums.RequiredSlots() {
		views = append(views, uploads.SlotView{
			Slot:    slot,
			Present: true,
			Status:  enums.UploadStatusUploaded,
			Attempt: 1,
			GCSKey:  "applications/" + appID.String() + "/" + slot.String() + "/1/photo.png",
		})
	}
	return views
}

func validForm() SubmitForm {
	return SubmitForm{
		FirstName:        "Amina",
		FamilyName:       "Diallo",
		Phone:            "+15550100",
		Gender:           "Female",
		BirthDate:        time.Date(1990, time.May, 2, 0, 0, 0, 0, time.UTC),
		BirthPlace:       "Dakar",
		AddressLine1:     "12 Rue de la Plage",
		City:             "Miami",
		State:            "FL",
		Zip:              "33101",
		Country:          "US",
		ResidenceCountry: "US",
		LicenseNumber:    "D123-456-789",
		LicenseClasses:   []string{"B", "A"},
		IssuerCountry:    "SN",
		Duration:         "3 years",
	}
}

type harness struct {
	svc     Service
	repo    *stubAppsRepo
	permits *stubPermitsRepo
	slots   *stubSnapshotter
	guard   *stubGuard
	events  *stubEvents
	appID   uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo := newStubAppsRepo()
	permits := &stubPermitsRepo{}
	appID := uuid.New()
	repo.apps[appID] = &models.Application{ID: appID, Status: enums.ApplicationStatusDraft}
	slots := &stubSnapshotter{views: uploadedViews(appID)}
	guard := &stubGuard{acquired: true}
	events := &stubEvents{}

	svc, err := NewService(repo, permits, slots, guard, stubTx{}, events, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &harness{svc: svc, repo: repo, permits: permits, slots: slots, guard: guard, events: events, appID: appID}
}

func TestOpenCreatesDraft(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	app, err := h.svc.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if app.Status != enums.ApplicationStatusDraft {
		t.Fatalf("expected draft, got %s", app.Status)
	}
}

func TestSnapshotReportsCanSubmit(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	view, err := h.svc.Snapshot(context.Background(), h.appID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !view.CanSubmit {
		t.Fatalf("three uploaded slots must allow submit, blocking=%v", view.Blocking)
	}
}

func TestSnapshotBlockingReasons(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.slots.views = []uploads.SlotView{
		{Slot: enums.AssetSlotPersonalPhoto, Present: true, Status: enums.UploadStatusUploaded},
		{Slot: enums.AssetSlotLicenseFront, Present: true, Status: enums.UploadStatusPending},
		{Slot: enums.AssetSlotLicenseBack},
	}

	view, err := h.svc.Snapshot(context.Background(), h.appID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if view.CanSubmit {
		t.Fatal("unsatisfied slots must block submit")
	}
	if got := view.Blocking["license_front"]; got != ReasonSlotUploading {
		t.Fatalf("expected %q for pending slot, got %q", ReasonSlotUploading, got)
	}
	if got := view.Blocking["license_back"]; got != ReasonSlotMissing {
		t.Fatalf("expected %q for absent slot, got %q", ReasonSlotMissing, got)
	}
}

func TestSubmitSuccess(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	out, err := h.svc.Submit(context.Background(), h.appID, validForm())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(out.PermitNumber) != len("IDP-20250101-000000") {
		t.Fatalf("unexpected permit number shape %q", out.PermitNumber)
	}
	if len(h.permits.created) != 1 {
		t.Fatalf("expected one permit insert, got %d", len(h.permits.created))
	}
	permit := h.permits.created[0]
	if permit.Duration != enums.DurationTierThreeYears {
		t.Fatalf("expected three-year tier from public vocabulary, got %s", permit.Duration)
	}
	if permit.PersonalPhotoKey == "" || permit.LicenseFrontKey == "" || permit.LicenseBackKey == "" {
		t.Fatalf("resolved locators must be merged onto the permit: %+v", permit)
	}
	if permit.IssueDate == nil || permit.ExpiryDate == nil || !permit.ExpiryDate.Equal(permit.IssueDate.AddDate(3, 0, 0)) {
		t.Fatal("stored expiry duplicate must be issue date plus tier span")
	}
	if app := h.repo.apps[h.appID]; app.Status != enums.ApplicationStatusSubmitted {
		t.Fatalf("application must flip to submitted, got %s", app.Status)
	}
	if len(h.events.events) != 1 || h.events.events[0].EventType != enums.EventApplicationSubmitted {
		t.Fatalf("expected application_submitted event, got %+v", h.events.events)
	}
}

func TestSubmitGateReturnsPerSlotReasons(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.slots.views = []uploads.SlotView{
		{Slot: enums.AssetSlotPersonalPhoto, Present: true, Status: enums.UploadStatusUploaded},
		{Slot: enums.AssetSlotLicenseFront, Present: true, Status: enums.UploadStatusPending},
		{Slot: enums.AssetSlotLicenseBack},
	}

	_, err := h.svc.Submit(context.Background(), h.appID, validForm())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected per-slot details, got %T", typed.Details())
	}
	if details["license_front"] != ReasonSlotUploading || details["license_back"] != ReasonSlotMissing {
		t.Fatalf("unexpected details %v", details)
	}
	if len(h.permits.created) != 0 {
		t.Fatal("gate violation must not insert a permit")
	}
}

func TestSubmitDoubleSubmitGuard(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.guard.acquired = false

	_, err := h.svc.Submit(context.Background(), h.appID, validForm())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict while another submit holds the guard, got %v", err)
	}
}

func TestSubmitAlreadySubmitted(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.repo.apps[h.appID].Status = enums.ApplicationStatusSubmitted

	_, err := h.svc.Submit(context.Background(), h.appID, validForm())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestSubmitRetriesPermitNumberCollision(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.permits.createErr = []error{errors.New(`duplicate key value violates unique constraint "idx_permits_number"`)}

	out, err := h.svc.Submit(context.Background(), h.appID, validForm())
	if err != nil {
		t.Fatalf("Submit must retry a number collision: %v", err)
	}
	if out.PermitNumber == "" {
		t.Fatal("expected a permit number after retry")
	}
	if len(h.permits.created) != 1 {
		t.Fatalf("expected exactly one surviving permit insert, got %d", len(h.permits.created))
	}
}

func TestSubmitReleasesGuardOnPersistFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.permits.createErr = []error{errors.New("connection reset"), errors.New("connection reset"), errors.New("connection reset")}

	_, err := h.svc.Submit(context.Background(), h.appID, validForm())
	if err == nil {
		t.Fatal("expected persist failure to surface")
	}
	if h.guard.releases != 1 {
		t.Fatalf("failed submit must release the guard, releases=%d", h.guard.releases)
	}
}

func TestSubmitUnknownDurationFallsBack(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	form := validForm()
	form.Duration = "forever"

	if _, err := h.svc.Submit(context.Background(), h.appID, form); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if h.permits.created[0].Duration != enums.DurationTierOneYear {
		t.Fatalf("unknown duration must fall back to one year, got %s", h.permits.created[0].Duration)
	}
}
