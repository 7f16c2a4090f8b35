package verify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mateovaldes/idp-registry-backend/pkg/db/models"
	"github.com/mateovaldes/idp-registry-backend/pkg/enums"
	pkgerrors "github.com/mateovaldes/idp-registry-backend/pkg/errors"
)

type stubRepo struct {
	permits map[string]*models.Permit
	err     error
}

func (s *stubRepo) FindByNumber(ctx context.Context, number string) (*models.Permit, error) {
	if s.err != nil {
		return nil, s.err
	}
	permit, ok := s.permits[number]
	if !ok {
		return nil, nil
	}
	copied := *permit
	return &copied, nil
}

func TestLookupFound(t *testing.T) {
	t.Parallel()

	repo := &stubRepo{permits: map[string]*models.Permit{
		"IDP-20240101-000042": {
			Number:     "IDP-20240101-000042",
			FirstName:  "Amina",
			FamilyName: "Diallo",
			Duration:   enums.DurationTierThreeYears,
			CreatedAt:  time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
	}}
	svc, err := NewService(repo, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	result, err := svc.Lookup(context.Background(), "  idp-20240101-000042 ")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !result.Found || result.Summary == nil {
		t.Fatalf("expected a found result, got %+v", result)
	}
	if result.Summary.HolderName != "Amina Diallo" {
		t.Fatalf("unexpected holder name %q", result.Summary.HolderName)
	}
	if result.Summary.IssueDateText != "Jan 1, 2024" || result.Summary.ExpiryText != "Jan 1, 2027" {
		t.Fatalf("unexpected dates %q / %q", result.Summary.IssueDateText, result.Summary.ExpiryText)
	}
	if result.Summary.StatusDisplay.Label != "APPROVED" {
		t.Fatalf("unexpected status display %+v", result.Summary.StatusDisplay)
	}
}

func TestLookupUnknownNumberIsEmptyResult(t *testing.T) {
	t.Parallel()

	svc, err := NewService(&stubRepo{permits: map[string]*models.Permit{}}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	result, err := svc.Lookup(context.Background(), "IDP-20240101-999999")
	if err != nil {
		t.Fatalf("unknown number must not error: %v", err)
	}
	if result.Found || result.Summary != nil {
		t.Fatalf("expected an empty result, got %+v", result)
	}
}

func TestLookupBlankNumber(t *testing.T) {
	t.Parallel()

	svc, err := NewService(&stubRepo{}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.Lookup(context.Background(), "   ")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLookupRepositoryFailure(t *testing.T) {
	t.Parallel()

	svc, err := NewService(&stubRepo{err: errors.New("connection reset")}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	_, err = svc.Lookup(context.Background(), "IDP-20240101-000042")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
