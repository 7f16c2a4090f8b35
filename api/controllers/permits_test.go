package controllers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/mateovaldes/idp-registry-backend/api/middleware"
	"github.com/mateovaldes/idp-registry-backend/internal/permits"
	"github.com/mateovaldes/idp-registry-backend/pkg/enums"
)

type stubPermitsService struct {
	listParams permits.ListParams
	listResult *permits.ListResult
	getID      uuid.UUID
	view       *permits.PermitView
	createIn   permits.CreateInput
	updateID   uuid.UUID
	updateIn   permits.UpdateInput
	statusID   uuid.UUID
	statusIn   *enums.PermitStatus
	actor      permits.Actor
}

func (s *stubPermitsService) List(ctx context.Context, params permits.ListParams) (*permits.ListResult, error) {
	s.listParams = params
	return s.listResult, nil
}

func (s *stubPermitsService) Get(ctx context.Context, id uuid.UUID) (*permits.PermitView, error) {
	s.getID = id
	return s.view, nil
}

func (s *stubPermitsService) Create(ctx context.Context, actor permits.Actor, input permits.CreateInput) (*permits.PermitView, error) {
	s.actor = actor
	s.createIn = input
	return s.view, nil
}

func (s *stubPermitsService) Update(ctx context.Context, actor permits.Actor, id uuid.UUID, input permits.UpdateInput) (*permits.PermitView, error) {
	s.actor = actor
	s.updateID = id
	s.updateIn = input
	return s.view, nil
}

func (s *stubPermitsService) SetStatus(ctx context.Context, actor permits.Actor, id uuid.UUID, status *enums.PermitStatus) (*permits.PermitView, error) {
	s.actor = actor
	s.statusID = id
	s.statusIn = status
	return s.view, nil
}

func withStaffContext(req *http.Request, staffID uuid.UUID, role enums.StaffRole) *http.Request {
	ctx := middleware.WithStaffID(req.Context(), staffID.String())
	ctx = middleware.WithRole(ctx, string(role))
	return req.WithContext(ctx)
}

func TestPermitListParsesQuery(t *testing.T) {
	svc := &stubPermitsService{listResult: &permits.ListResult{Items: []permits.PermitView{}}}
	handler := PermitList(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/permits?limit=10&cursor=abc&search=karimi", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.listParams.Limit != 10 {
		t.Fatalf("expected limit 10 got %d", svc.listParams.Limit)
	}
	if svc.listParams.Cursor != "abc" {
		t.Fatalf("expected cursor abc got %q", svc.listParams.Cursor)
	}
	if svc.listParams.Search != "karimi" {
		t.Fatalf("expected search karimi got %q", svc.listParams.Search)
	}
}

func TestPermitListRejectsBadLimit(t *testing.T) {
	handler := PermitList(&stubPermitsService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/permits?limit=banana", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestPermitCreateRequiresStaffContext(t *testing.T) {
	handler := PermitCreate(&stubPermitsService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/permits", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestPermitCreateBuildsActorAndInput(t *testing.T) {
	staffID := uuid.New()
	svc := &stubPermitsService{view: &permits.PermitView{ID: uuid.New()}}
	handler := PermitCreate(svc, nil)

	body := `{"first_name":"Reza","family_name":"Karimi","phone":"+98 912 555 0101","gender":"male","birth_date":"1990-04-15","birth_place":"Tehran","address_line1":"12 Azadi St","city":"Tehran","state":"Tehran","zip":"11369","country":"Iran","residence_country":"Iran","license_number":"D-5520114","license_classes":["B","A"],"issuer_country":"Iran","duration":"three_years","personal_photo_key":"apps/x/personal_photo.jpg"}`
	req := httptest.NewRequest(http.MethodPost, "/permits", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withStaffContext(req, staffID, enums.StaffRoleClerk)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.actor.StaffID != staffID || svc.actor.Role != enums.StaffRoleClerk {
		t.Fatalf("unexpected actor %+v", svc.actor)
	}
	if svc.createIn.Duration != "three_years" {
		t.Fatalf("unexpected duration %q", svc.createIn.Duration)
	}
	if len(svc.createIn.LicenseClasses) != 2 {
		t.Fatalf("expected 2 license classes got %v", svc.createIn.LicenseClasses)
	}
	if svc.createIn.PersonalPhotoKey != "apps/x/personal_photo.jpg" {
		t.Fatalf("unexpected photo key %q", svc.createIn.PersonalPhotoKey)
	}
}

func TestPermitUpdateOnlyTouchesProvidedFields(t *testing.T) {
	staffID := uuid.New()
	permitID := uuid.New()
	svc := &stubPermitsService{view: &permits.PermitView{ID: permitID}}
	handler := PermitUpdate(svc, nil)

	req := httptest.NewRequest(http.MethodPatch, "/permits/"+permitID.String(), bytes.NewBufferString(`{"phone":"+98 912 555 0202"}`))
	req.Header.Set("Content-Type", "application/json")
	req = withStaffContext(req, staffID, enums.StaffRoleAdmin)
	req = withRouteParam(req, "id", permitID.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.updateID != permitID {
		t.Fatalf("expected update id %s got %s", permitID, svc.updateID)
	}
	if svc.updateIn.Phone == nil || *svc.updateIn.Phone != "+98 912 555 0202" {
		t.Fatalf("expected phone set, got %+v", svc.updateIn.Phone)
	}
	if svc.updateIn.FirstName != nil || svc.updateIn.BirthDate != nil {
		t.Fatal("expected untouched fields to stay nil")
	}
}

func TestPermitSetStatusParsesOverride(t *testing.T) {
	staffID := uuid.New()
	permitID := uuid.New()
	svc := &stubPermitsService{view: &permits.PermitView{ID: permitID}}
	handler := PermitSetStatus(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/permits/"+permitID.String()+"/status", bytes.NewBufferString(`{"status":"canceled"}`))
	req.Header.Set("Content-Type", "application/json")
	req = withStaffContext(req, staffID, enums.StaffRoleAdmin)
	req = withRouteParam(req, "id", permitID.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.statusIn == nil || *svc.statusIn != enums.PermitStatusCanceled {
		t.Fatalf("expected canceled override, got %+v", svc.statusIn)
	}
}

func TestPermitSetStatusClearsOverrideWithNull(t *testing.T) {
	staffID := uuid.New()
	permitID := uuid.New()
	svc := &stubPermitsService{view: &permits.PermitView{ID: permitID}}
	handler := PermitSetStatus(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/permits/"+permitID.String()+"/status", bytes.NewBufferString(`{"status":null}`))
	req.Header.Set("Content-Type", "application/json")
	req = withStaffContext(req, staffID, enums.StaffRoleAdmin)
	req = withRouteParam(req, "id", permitID.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.statusIn != nil {
		t.Fatalf("expected cleared override, got %v", *svc.statusIn)
	}
}
