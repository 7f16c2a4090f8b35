package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mateovaldes/idp-registry-backend/api/middleware"
	"github.com/mateovaldes/idp-registry-backend/api/responses"
	"github.com/mateovaldes/idp-registry-backend/api/validators"
	"github.com/mateovaldes/idp-registry-backend/internal/permits"
	"github.com/mateovaldes/idp-registry-backend/pkg/enums"
	pkgerrors "github.com/mateovaldes/idp-registry-backend/pkg/errors"
	"github.com/mateovaldes/idp-registry-backend/pkg/logger"
	"github.com/mateovaldes/idp-registry-backend/pkg/pagination"
)

const maxSearchTermLength = 120

type createPermitRequest struct {
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

	PersonalPhotoKey string `json:"personal_photo_key"`
	LicenseFrontKey  string `json:"license_front_key"`
	LicenseBackKey   string `json:"license_back_key"`
}

type updatePermitRequest struct {
	FirstName  *string `json:"first_name"`
	FamilyName *string `json:"family_name"`
	Phone      *string `json:"phone"`
	Gender     *string `json:"gender"`
	BirthDate  *string `json:"birth_date"`
	BirthPlace *string `json:"birth_place"`

	AddressLine1     *string `json:"address_line1"`
	AddressLine2     *string `json:"address_line2"`
	City             *string `json:"city"`
	State            *string `json:"state"`
	Zip              *string `json:"zip"`
	Country          *string `json:"country"`
	ResidenceCountry *string `json:"residence_country"`

	LicenseNumber  *string  `json:"license_number"`
	LicenseClasses []string `json:"license_classes"`
	IssuerCountry  *string  `json:"issuer_country"`

	Duration      *string `json:"duration"`
	RequestIDCard *bool   `json:"request_id_card"`

	PersonalPhotoKey *string `json:"personal_photo_key"`
	LicenseFrontKey  *string `json:"license_front_key"`
	LicenseBackKey   *string `json:"license_back_key"`
}

type setPermitStatusRequest struct {
	Status *string `json:"status"`
}

func parsePermitID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "permit id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid permit id")
	}
	return id, nil
}

func staffActor(r *http.Request) (permits.Actor, error) {
	rawID := middleware.StaffIDFromContext(r.Context())
	if rawID == "" {
		return permits.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing staff identity")
	}
	staffID, err := uuid.Parse(rawID)
	if err != nil {
		return permits.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid staff identity")
	}
	role, err := enums.ParseStaffRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return permits.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid staff role")
	}
	return permits.Actor{StaffID: staffID, Role: role}, nil
}

// PermitList returns a cursor page of permits for the registry screens.
func PermitList(svc permits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "permits service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))
		search := validators.SanitizeString(r.URL.Query().Get("search"), maxSearchTermLength)

		result, err := svc.List(r.Context(), permits.ListParams{
			Search: search,
			Params: pagination.Params{Limit: limit, Cursor: cursor},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// PermitGet returns one permit with derived expiration and asset links.
func PermitGet(svc permits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "permits service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parsePermitID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// PermitCreate records a permit entered directly by staff, bypassing the
// public application flow.
func PermitCreate(svc permits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "permits service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := staffActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createPermitRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		birthDate, err := parseDateOnly(body.BirthDate, "birth_date")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Create(r.Context(), actor, permits.CreateInput{
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

			PersonalPhotoKey: body.PersonalPhotoKey,
			LicenseFrontKey:  body.LicenseFrontKey,
			LicenseBackKey:   body.LicenseBackKey,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// PermitUpdate applies a partial edit to a permit record. Nil fields are
// left untouched.
func PermitUpdate(svc permits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "permits service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := staffActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parsePermitID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updatePermitRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var birthDate *time.Time
		if body.BirthDate != nil {
			parsed, err := parseDateOnly(*body.BirthDate, "birth_date")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			birthDate = &parsed
		}

		view, err := svc.Update(r.Context(), actor, id, permits.UpdateInput{
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

			PersonalPhotoKey: body.PersonalPhotoKey,
			LicenseFrontKey:  body.LicenseFrontKey,
			LicenseBackKey:   body.LicenseBackKey,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// PermitSetStatus sets or clears the manual status override. A null status
// returns the permit to derived lifecycle status.
func PermitSetStatus(svc permits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "permits service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := staffActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parsePermitID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body setPermitStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.PermitStatus
		if body.Status != nil {
			parsed, err := enums.ParsePermitStatus(*body.Status)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid permit status"))
				return
			}
			status = &parsed
		}

		view, err := svc.SetStatus(r.Context(), actor, id, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
