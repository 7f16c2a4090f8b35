package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mateovaldes/idp-registry-backend/api/responses"
	"github.com/mateovaldes/idp-registry-backend/api/validators"
	"github.com/mateovaldes/idp-registry-backend/internal/uploads"
	"github.com/mateovaldes/idp-registry-backend/pkg/db/models"
	"github.com/mateovaldes/idp-registry-backend/pkg/enums"
	pkgerrors "github.com/mateovaldes/idp-registry-backend/pkg/errors"
	"github.com/mateovaldes/idp-registry-backend/pkg/logger"
)

type presignRequest struct {
	FileName  string `json:"file_name" validate:"required"`
	MimeType  string `json:"mime_type" validate:"required"`
	SizeBytes int64  `json:"size_bytes" validate:"required,min=1"`
}

type uploadProgressRequest struct {
	Attempt int `json:"attempt" validate:"required,min=1"`
	Percent int `json:"percent" validate:"min=0,max=100"`
}

type uploadAttemptRequest struct {
	Attempt int `json:"attempt" validate:"required,min=1"`
}

type uploadFailRequest struct {
	Attempt int    `json:"attempt" validate:"required,min=1"`
	Reason  string `json:"reason" validate:"required"`
}

type uploadCallbackResponse struct {
	UploadID uuid.UUID          `json:"upload_id"`
	Slot     enums.AssetSlot    `json:"slot"`
	Status   enums.UploadStatus `json:"status"`
	Attempt  int                `json:"attempt"`
	Progress int                `json:"progress"`
}

func newUploadCallbackResponse(row *models.Upload) uploadCallbackResponse {
	return uploadCallbackResponse{
		UploadID: row.ID,
		Slot:     row.Slot,
		Status:   row.Status,
		Attempt:  row.Attempt,
		Progress: row.Progress,
	}
}

func parseUploadID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "upload id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid upload id")
	}
	return id, nil
}

func parseSlotParam(r *http.Request) (enums.AssetSlot, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "slot"))
	if raw == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "upload slot is required")
	}
	slot, err := enums.ParseAssetSlot(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid upload slot")
	}
	return slot, nil
}

// UploadPresign issues a signed PUT URL for one of an application's three
// photo slots. Re-presigning the same slot bumps the attempt counter.
func UploadPresign(svc uploads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "uploads service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		applicationID, err := parseApplicationID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		slot, err := parseSlotParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body presignRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out, err := svc.Presign(r.Context(), applicationID, uploads.PresignInput{
			Slot:      slot,
			FileName:  body.FileName,
			MimeType:  body.MimeType,
			SizeBytes: body.SizeBytes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, out)
	}
}

// UploadProgress records a browser-reported progress tick. The callback is
// keyed by upload id, so the row is resolved first to recover the owning
// application and slot.
func UploadProgress(svc uploads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "uploads service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseUploadID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body uploadProgressRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Resolve(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.ReportProgress(r.Context(), row.ApplicationID, row.Slot, body.Attempt, body.Percent)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newUploadCallbackResponse(updated))
	}
}

// UploadComplete marks an upload as fully transferred and verified.
func UploadComplete(svc uploads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "uploads service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseUploadID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body uploadAttemptRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Resolve(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Complete(r.Context(), row.ApplicationID, row.Slot, body.Attempt)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newUploadCallbackResponse(updated))
	}
}

// UploadFail records a failed transfer so the form can offer a retry.
func UploadFail(svc uploads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "uploads service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseUploadID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body uploadFailRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Resolve(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Fail(r.Context(), row.ApplicationID, row.Slot, body.Attempt, body.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newUploadCallbackResponse(updated))
	}
}

// UploadRemove deletes an upload row and its stored object so the slot can
// be filled again.
func UploadRemove(svc uploads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			err := pkgerrors.New(pkgerrors.CodeInternal, "uploads service unavailable")
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseUploadID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Resolve(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Remove(r.Context(), row.ApplicationID, row.Slot); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "removed"})
	}
}
