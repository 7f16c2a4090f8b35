package permits

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mateovaldes/idp-registry-backend/internal/lifecycle"
	"github.com/mateovaldes/idp-registry-backend/pkg/db/models"
	dbtypes "github.com/mateovaldes/idp-registry-backend/pkg/db/types"
	"github.com/mateovaldes/idp-registry-backend/pkg/enums"
	pkgerrors "github.com/mateovaldes/idp-registry-backend/pkg/errors"
	"github.com/mateovaldes/idp-registry-backend/pkg/outbox"
	pkgpagination "github.com/mateovaldes/idp-registry-backend/pkg/pagination"
)

type stubPermitsRepo struct {
	permits map[uuid.UUID]*models.Permit
}

func newStubPermitsRepo() *stubPermitsRepo {
	return &stubPermitsRepo{permits: make(map[uuid.UUID]*models.Permit)}
}

func (s *stubPermitsRepo) CreateTx(tx *gorm.DB, permit *models.Permit) error {
	if permit.CreatedAt.IsZero() {
		permit.CreatedAt = time.Now()
	}
	copied := *permit
	s.permits[permit.ID] = &copied
	return nil
}

func (s *stubPermitsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Permit, error) {
	permit, ok := s.permits[id]
	if !ok {
		return nil, nil
	}
	copied := *permit
	return &copied, nil
}

func (s *stubPermitsRepo) List(ctx context.Context, opts listQuery) ([]models.Permit, error) {
	var rows []models.Permit
	for _, permit := range s.permits {
		if opts.cursor != nil {
			if permit.CreatedAt.After(opts.cursor.CreatedAt) || permit.CreatedAt.Equal(opts.cursor.CreatedAt) {
				continue
			}
		}
		rows = append(rows, *permit)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ID.String() > rows[j].ID.String()
	})
	if opts.limit > 0 && len(rows) > opts.limit {
		rows = rows[:opts.limit]
	}
	return rows, nil
}

func (s *stubPermitsRepo) SaveTx(tx *gorm.DB, permit *models.Permit) error {
	copied := *permit
	s.permits[permit.ID] = &copied
	return nil
}

type stubAppsCreator struct {
	created []*models.Application
}

func (s *stubAppsCreator) CreateTx(tx *gorm.DB, app *models.Application) error {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	copied := *app
	s.created = append(s.created, &copied)
	return nil
}

type stubSigner struct {
	signed []string
}

func (s *stubSigner) SignedReadURL(bucket, object string, expires time.Duration) (string, error) {
	s.signed = append(s.signed, object)
	return "https://signed.example/" + object, nil
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

func statusPtr(status enums.PermitStatus) *enums.PermitStatus {
	return &status
}

func strPtr(v string) *string { return &v }

type harness struct {
	svc    Service
	repo   *stubPermitsRepo
	apps   *stubAppsCreator
	signer *stubSigner
	events *stubEvents
	actor  Actor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo := newStubPermitsRepo()
	apps := &stubAppsCreator{}
	signer := &stubSigner{}
	events := &stubEvents{}

	svc, err := NewService(repo, apps, signer, stubTx{}, events, nil, "idp-assets", time.Hour)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &harness{
		svc:    svc,
		repo:   repo,
		apps:   apps,
		signer: signer,
		events: events,
		actor:  Actor{StaffID: uuid.New(), Role: enums.StaffRoleClerk},
	}
}

func seedPermit(h *harness, createdAt time.Time, tier enums.DurationTier) *models.Permit {
	permit := &models.Permit{
		ID:               uuid.New(),
		Number:           "IDP-20240101-000001",
		FirstName:        "Amina",
		FamilyName:       "Diallo",
		Phone:            "+15550100",
		Gender:           enums.GenderFemale,
		BirthDate:        time.Date(1990, time.May, 2, 0, 0, 0, 0, time.UTC),
		BirthPlace:       "Dakar",
		AddressLine1:     "12 Rue de la Plage",
		City:             "Miami",
		State:            "FL",
		Zip:              "33101",
		Country:          "US",
		ResidenceCountry: "US",
		LicenseNumber:    "D123-456-789",
		LicenseClasses:   mustClasses(),
		IssuerCountry:    "SN",
		Duration:         tier,
		PersonalPhotoKey: "applications/a/personal_photo/1/p.png",
		LicenseFrontKey:  "applications/a/license_front/1/f.png",
		LicenseBackKey:   "applications/a/license_back/1/b.png",
		ApplicationID:    uuid.New(),
		CreatedAt:        createdAt,
	}
	h.repo.permits[permit.ID] = permit
	return permit
}

func mustClasses() dbtypes.LicenseClassSet {
	classes, err := dbtypes.NewLicenseClassSet([]string{"B"})
	if err != nil {
		panic(err)
	}
	return classes
}

func paramsWithLimit(limit int) pkgpagination.Params {
	return pkgpagination.Params{Limit: limit}
}

func paramsWithCursor(limit int, cursor string) pkgpagination.Params {
	return pkgpagination.Params{Limit: limit, Cursor: cursor}
}

func validCreateInput() CreateInput {
	return CreateInput{
		FirstName:        "Koffi",
		FamilyName:       "Mensah",
		Phone:            "+15550199",
		Gender:           "Male",
		BirthDate:        time.Date(1985, time.March, 9, 0, 0, 0, 0, time.UTC),
		BirthPlace:       "Accra",
		AddressLine1:     "400 Ocean Dr",
		City:             "Miami",
		State:            "FL",
		Zip:              "33139",
		Country:          "US",
		ResidenceCountry: "US",
		LicenseNumber:    "GH-5521",
		LicenseClasses:   []string{"B"},
		IssuerCountry:    "GH",
		Duration:         "10 YEAR - $200",
	}
}

func TestGetEnrichesWithEvaluatorOutput(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	permit := seedPermit(h, time.Now().AddDate(-2, 0, 0), enums.DurationTierOneYear)

	view, err := h.svc.Get(context.Background(), permit.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !view.HasExpired {
		t.Fatal("two-year-old one-year permit must read expired on the clock")
	}
	if view.Status != enums.PermitStatusApproved {
		t.Fatalf("unset override must read approved, got %s", view.Status)
	}
	if view.StatusDisplay.Label != "APPROVED" || view.StatusDisplay.Tone != lifecycle.TonePositive {
		t.Fatalf("unexpected status display %+v", view.StatusDisplay)
	}
	if view.Assets.PersonalPhoto == "" || view.Assets.LicenseFront == "" || view.Assets.LicenseBack == "" {
		t.Fatalf("expected signed links for all three assets, got %+v", view.Assets)
	}
}

func TestListPaginatesNewestFirst(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedPermit(h, base.AddDate(0, 0, i), enums.DurationTierThreeYears)
	}

	first, err := h.svc.List(context.Background(), ListParams{Params: paramsWithLimit(3)})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(first.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(first.Items))
	}
	if first.Cursor == "" {
		t.Fatal("expected a next-page cursor")
	}
	if !first.Items[0].CreatedAt.After(first.Items[2].CreatedAt) {
		t.Fatal("items must be ordered newest first")
	}

	second, err := h.svc.List(context.Background(), ListParams{Params: paramsWithCursor(3, first.Cursor)})
	if err != nil {
		t.Fatalf("List second page: %v", err)
	}
	if len(second.Items) != 2 {
		t.Fatalf("expected 2 remaining items, got %d", len(second.Items))
	}
	if second.Cursor != "" {
		t.Fatalf("no further page expected, got cursor %q", second.Cursor)
	}
}

func TestCreateMintsNumberAndBackingApplication(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	view, err := h.svc.Create(context.Background(), h.actor, validCreateInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(view.Number) != len("IDP-20250101-000000") {
		t.Fatalf("unexpected number shape %q", view.Number)
	}
	if view.Duration != enums.DurationTierTenYears {
		t.Fatalf("staff vocabulary must parse to ten-year tier, got %s", view.Duration)
	}
	if len(h.apps.created) != 1 || h.apps.created[0].Status != enums.ApplicationStatusSubmitted {
		t.Fatalf("expected one submitted backing application, got %+v", h.apps.created)
	}
	if len(h.events.events) != 1 || h.events.events[0].EventType != enums.EventPermitCreated {
		t.Fatalf("expected permit_created event, got %+v", h.events.events)
	}
	if h.events.events[0].Actor == nil || h.events.events[0].Actor.StaffID == nil {
		t.Fatal("staff actor must ride on the event")
	}
}

func TestUpdateKeepsLocatorsUnlessReplaced(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	permit := seedPermit(h, time.Now(), enums.DurationTierThreeYears)
	originalNumber := permit.Number
	originalBack := permit.LicenseBackKey

	view, err := h.svc.Update(context.Background(), h.actor, permit.ID, UpdateInput{
		FirstName:        strPtr("Aminata"),
		PersonalPhotoKey: strPtr("applications/a/personal_photo/2/new.png"),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if view.FirstName != "Aminata" {
		t.Fatalf("expected updated first name, got %q", view.FirstName)
	}
	if view.Number != originalNumber {
		t.Fatalf("permit number must be immutable, got %q", view.Number)
	}
	stored := h.repo.permits[permit.ID]
	if stored.PersonalPhotoKey != "applications/a/personal_photo/2/new.png" {
		t.Fatalf("supplied locator must replace, got %q", stored.PersonalPhotoKey)
	}
	if stored.LicenseBackKey != originalBack {
		t.Fatalf("absent locator field must keep the stored key, got %q", stored.LicenseBackKey)
	}
	if len(h.events.events) != 1 || h.events.events[0].EventType != enums.EventPermitUpdated {
		t.Fatalf("expected permit_updated event, got %+v", h.events.events)
	}
}

func TestSetStatusOverrideAndClear(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	permit := seedPermit(h, time.Now(), enums.DurationTierThreeYears)

	view, err := h.svc.SetStatus(context.Background(), h.actor, permit.ID, statusPtr(enums.PermitStatusCanceled))
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if view.Status != enums.PermitStatusCanceled || view.StatusDisplay.Tone != lifecycle.ToneNegative {
		t.Fatalf("expected canceled override, got %+v", view.StatusDisplay)
	}

	view, err = h.svc.SetStatus(context.Background(), h.actor, permit.ID, nil)
	if err != nil {
		t.Fatalf("SetStatus clear: %v", err)
	}
	if view.Status != enums.PermitStatusApproved {
		t.Fatalf("cleared override must read approved, got %s", view.Status)
	}
	if len(h.events.events) != 2 {
		t.Fatalf("each override change must emit an event, got %d", len(h.events.events))
	}
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := h.svc.Get(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
