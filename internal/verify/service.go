// Package verify serves the public permit-number lookup. The surface is
// deliberately narrow: it never discloses applicant contact or address data,
// and an unknown number is an empty result rather than an error so the
// endpoint cannot be used to probe for valid identifiers by status code.
package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mateovaldes/idp-registry-backend/internal/lifecycle"
	"github.com/mateovaldes/idp-registry-backend/pkg/db/models"
	pkgerrors "github.com/mateovaldes/idp-registry-backend/pkg/errors"
	"github.com/mateovaldes/idp-registry-backend/pkg/logger"
)

type permitsRepository interface {
	FindByNumber(ctx context.Context, number string) (*models.Permit, error)
}

// Summary is the public shape of a verified permit.
type Summary struct {
	Number        string            `json:"number"`
	HolderName    string            `json:"holder_name"`
	StatusDisplay lifecycle.Display `json:"status_display"`
	HasExpired    bool              `json:"has_expired"`
	IssueDateText string            `json:"issue_date_text"`
	ExpiryText    string            `json:"expiry_text"`
}

// Result wraps a lookup outcome; Found false means no such permit.
type Result struct {
	Found   bool     `json:"found"`
	Summary *Summary `json:"summary,omitempty"`
}

// Service resolves permit numbers for the public verification page.
type Service interface {
	Lookup(ctx context.Context, number string) (*Result, error)
}

type service struct {
	repo permitsRepository
	logg *logger.Logger
	now  func() time.Time
}

// NewService constructs the verification service.
func NewService(repo permitsRepository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("permits repository required")
	}
	return &service{repo: repo, logg: logg, now: time.Now}, nil
}

func (s *service) Lookup(ctx context.Context, number string) (*Result, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(number))
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "permit number is required")
	}

	permit, err := s.repo.FindByNumber(ctx, trimmed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup permit number")
	}
	if permit == nil {
		return &Result{Found: false}, nil
	}

	now := s.now()
	return &Result{
		Found: true,
		Summary: &Summary{
			Number:        permit.Number,
			HolderName:    permit.FirstName + " " + permit.FamilyName,
			StatusDisplay: lifecycle.StatusDisplay(*permit),
			HasExpired:    lifecycle.HasExpired(*permit, now),
			IssueDateText: lifecycle.FormatIssueDate(*permit, now),
			ExpiryText:    lifecycle.FormatExpirationDate(*permit),
		},
	}, nil
}
