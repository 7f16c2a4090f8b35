package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mateovaldes/idp-registry-backend/api/responses"
	"github.com/mateovaldes/idp-registry-backend/api/validators"
	"github.com/mateovaldes/idp-registry-backend/internal/applications"
	"github.com/mateovaldes/idp-registry-backend/pkg/enums"
	pkgerrors "github.com/mateovaldes/idp-registry-backend/pkg/errors"
	"github.com/mateovaldes/idp-registry-backend/pkg/logger"
)

const dateOnlyLayout = "2006-01-02"

type openApplicationResponse struct {
	ID        uuid.UUID               `json:"id"`
	Status    enums.ApplicationStatus `json:"status"`
	CreatedAt time.Time               `json:"created_at"`
}

type submitApplicationRequest struct {
	FirstName  string `json:"first_name" validate:"required"`
	FamilyName string `json:"family_name" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
	Gender     string `json:"gender" validate:"required"`
	BirthDate  string `json:"birth_date" validate:"required"`
	BirthPlace string `json:"birth_place" validate:"required"`

	AddressLine1     string  `json:"address_line1" validate:"required"`
	AddressLine2     *string `json:"address_line2"`
	City             string  `json:"city" validate:"required"`
	State            string  `json:"state" validate:"required"`
	Zip              string  `json:"zip" validate:"required"`
	Country          string  `json:"country" validate:"required"`
	ResidenceCountry string  `json:"residence_country" validate:"required"`

	LicenseNumber  string   `json:"license_number" validate:"required"`
	LicenseClasses []string `json:"license_classes" validate:"required,min=1"`
	IssuerCountry  string   `json:"issuer_country" validate:"required"`

	Duration      string `json:"duration" validate:"required"`
	RequestIDCard bool   `json:"request_id_card"`
}

func parseApplicationID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "application id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid application id")
	}
	return id, nil
}

func parseDateOnly(value, field string) (time.Time, error) {
	parsed, err := time.Parse(dateOnlyLayout, strings.TrimSpace(value))
	if err != nil {
		wrapped := pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid date")
		return time.Time{}, wrapped.WithDetails(map[string]string{field: "expected YYYY-MM-DD"})
	}
	return parsed, nil
}

// ApplicationOpen starts a fresh draft for an applicant.
func ApplicationOpen(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "applications service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Open(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, openApplicationResponse{
			ID:        row.ID,
			Status:    row.Status,
			CreatedAt: row.CreatedAt,
		})
	}
}

// ApplicationSnapshot returns the draft state plus the per-slot upload status
// the form polls while the applicant works through the three photos.
func ApplicationSnapshot(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "applications service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseApplicationID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Snapshot(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// ApplicationSubmit turns a complete draft into a permit.
func ApplicationSubmit(svc applications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "applications service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseApplicationID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body submitApplicationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		birthDate, err := parseDateOnly(body.BirthDate, "birth_date")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out, err := svc.Submit(r.Context(), id, applications.SubmitForm{
			FirstName:  body.FirstName,
			FamilyName: body.FamilyName,
			Phone:      body.Phone,
			Gender:     body.Gender,
			BirthDate:  birthDate,
			BirthPlace: body.BirthPlace,

			AddressLine1:     body.AddressLine1,
			AddressLine2:     body.AddressLine2,
			City:             body.City,
			State:            body.State,
			Zip:              body.Zip,
			Country:          body.Country,
			ResidenceCountry: body.ResidenceCountry,

			LicenseNumber:  body.LicenseNumber,
			LicenseClasses: body.LicenseClasses,
			IssuerCountry:  body.IssuerCountry,

			Duration:      body.Duration,
			RequestIDCard: body.RequestIDCard,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, out)
	}
}
