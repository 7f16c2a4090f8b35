package uploads

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mateovaldes/idp-registry-backend/pkg/db/models"
	"github.com/mateovaldes/idp-registry-backend/pkg/enums"
	pkgerrors "github.com/mateovaldes/idp-registry-backend/pkg/errors"
	"github.com/mateovaldes/idp-registry-backend/pkg/logger"
	"github.com/mateovaldes/idp-registry-backend/pkg/outbox"
	"github.com/mateovaldes/idp-registry-backend/pkg/outbox/payloads"
)

// Validation messages surfaced verbatim to applicants.
const (
	msgFileTooLarge = "File is too large. Maximum size is 5MB."
	msgNotAnImage   = "Please upload an image file."
)

type uploadsRepository interface {
	FindSlot(ctx context.Context, applicationID uuid.UUID, slot enums.AssetSlot) (*models.Upload, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Upload, error)
	ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]models.Upload, error)
	Create(ctx context.Context, row *models.Upload) (*models.Upload, error)
	Save(ctx context.Context, row *models.Upload) error
	SaveTx(tx *gorm.DB, row *models.Upload) error
}

type applicationsRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Application, error)
}

type gcsClient interface {
	SignedURL(bucket, object, contentType string, expires time.Duration) (string, error)
	DeleteObject(ctx context.Context, bucket, object string) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SlotView is the read model for one asset slot.
type SlotView struct {
	Slot     enums.AssetSlot    `json:"slot"`
	Present  bool               `json:"present"`
	Status   enums.UploadStatus `json:"status,omitempty"`
	Attempt  int                `json:"attempt,omitempty"`
	Progress int                `json:"progress,omitempty"`
	FileName string             `json:"file_name,omitempty"`
	GCSKey   string             `json:"-"`
}

// PresignInput models the payload required to request an upload URL.
type PresignInput struct {
	Slot      enums.AssetSlot
	FileName  string
	MimeType  string
	SizeBytes int64
}

// PresignOutput contains the data returned to the client for a slot upload.
type PresignOutput struct {
	UploadID     uuid.UUID `json:"upload_id"`
	Attempt      int       `json:"attempt"`
	GCSKey       string    `json:"gcs_key"`
	SignedPUTURL string    `json:"signed_put_url"`
	ContentType  string    `json:"content_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Service exposes the per-slot upload flow: presign, progress callbacks,
// completion, and removal. Attempt numbers fence stale callbacks.
type Service interface {
	Presign(ctx context.Context, applicationID uuid.UUID, input PresignInput) (*PresignOutput, error)
	ReportProgress(ctx context.Context, applicationID uuid.UUID, slot enums.AssetSlot, attempt, percent int) (*models.Upload, error)
	Complete(ctx context.Context, applicationID uuid.UUID, slot enums.AssetSlot, attempt int) (*models.Upload, error)
	Fail(ctx context.Context, applicationID uuid.UUID, slot enums.AssetSlot, attempt int, reason string) (*models.Upload, error)
	Remove(ctx context.Context, applicationID uuid.UUID, slot enums.AssetSlot) error
	Snapshot(ctx context.Context, applicationID uuid.UUID) ([]SlotView, error)
	Resolve(ctx context.Context, uploadID uuid.UUID) (*models.Upload, error)
}

type service struct {
	repo         uploadsRepository
	applications applicationsRepository
	gcs          gcsClient
	tx           txRunner
	events       eventEmitter
	logg         *logger.Logger
	bucket       string
	uploadTTL    time.Duration
	maxBytes     int64
}

// NewService constructs an uploads service backed by the provided repositories and GCS signer.
func NewService(
	repo uploadsRepository,
	applications applicationsRepository,
	gcs gcsClient,
	tx txRunner,
	events eventEmitter,
	logg *logger.Logger,
	bucket string,
	uploadTTL time.Duration,
	maxBytes int64,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("uploads repository required")
	}
	if applications == nil {
		return nil, fmt.Errorf("applications repository required")
	}
	if gcs == nil {
		return nil, fmt.Errorf("gcs client required")
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
	if uploadTTL <= 0 {
		return nil, fmt.Errorf("upload ttl must be positive")
	}
	if maxBytes <= 0 {
		return nil, fmt.Errorf("max upload bytes must be positive")
	}
	return &service{
		repo:         repo,
		applications: applications,
		gcs:          gcs,
		tx:           tx,
		events:       events,
		logg:         logg,
		bucket:       bucket,
		uploadTTL:    uploadTTL,
		maxBytes:     maxBytes,
	}, nil
}

func (s *service) Presign(ctx context.Context, applicationID uuid.UUID, input PresignInput) (*PresignOutput, error) {
	if applicationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "application identity missing")
	}
	if !input.Slot.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid asset slot")
	}

	fileName := strings.TrimSpace(input.FileName)
	if fileName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file_name is required")
	}
	if input.SizeBytes <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "size_bytes must be positive")
	}
	if input.SizeBytes > s.maxBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgFileTooLarge)
	}
	mimeType := strings.TrimSpace(input.MimeType)
	if !isImageMime(mimeType) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgNotAnImage)
	}

	if err := s.requireDraft(ctx, applicationID); err != nil {
		return nil, err
	}

	row, err := s.repo.FindSlot(ctx, applicationID, input.Slot)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load slot row")
	}

	attempt := 1
	if row != nil {
		attempt = row.Attempt + 1
	}
	gcsKey := buildGCSKey(applicationID, input.Slot, attempt, fileName)

	if row == nil {
		row = &models.Upload{
			ApplicationID: applicationID,
			Slot:          input.Slot,
			Status:        enums.UploadStatusPending,
			Attempt:       attempt,
			GCSKey:        gcsKey,
			FileName:      fileName,
			MimeType:      mimeType,
			SizeBytes:     input.SizeBytes,
		}
		if _, err := s.repo.Create(ctx, row); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist slot row")
		}
	} else {
		row.Status = enums.UploadStatusPending
		row.Attempt = attempt
		row.Progress = 0
		row.GCSKey = gcsKey
		row.FileName = fileName
		row.MimeType = mimeType
		row.SizeBytes = input.SizeBytes
		row.ErrorReason = nil
		if err := s.repo.Save(ctx, row); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace slot row")
		}
	}

	signedURL, err := s.gcs.SignedURL(s.bucket, gcsKey, mimeType, s.uploadTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign upload url")
	}

	return &PresignOutput{
		UploadID:     row.ID,
		Attempt:      attempt,
		GCSKey:       gcsKey,
		SignedPUTURL: signedURL,
		ContentType:  mimeType,
		ExpiresAt:    time.Now().Add(s.uploadTTL),
	}, nil
}

func (s *service) ReportProgress(ctx context.Context, applicationID uuid.UUID, slot enums.AssetSlot, attempt, percent int) (*models.Upload, error) {
	row, err := s.loadSlot(ctx, applicationID, slot)
	if err != nil {
		return nil, err
	}
	if attempt != row.Attempt || row.Status.Terminal() {
		// Stale callback for a replaced or finished attempt: discard.
		return row, nil
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent <= row.Progress {
		return row, nil
	}
	row.Progress = percent
	if err := s.repo.Save(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record upload progress")
	}
	return row, nil
}

func (s *service) Complete(ctx context.Context, applicationID uuid.UUID, slot enums.AssetSlot, attempt int) (*models.Upload, error) {
	row, err := s.loadSlot(ctx, applicationID, slot)
	if err != nil {
		return nil, err
	}
	if attempt != row.Attempt {
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"slot":            slot,
				"stale_attempt":   attempt,
				"current_attempt": row.Attempt,
			})
			s.logg.Warn(s.logg.WithApplicationID(logCtx, applicationID.String()), "discarding stale upload completion")
		}
		return row, nil
	}
	if row.Status == enums.UploadStatusUploaded {
		return row, nil
	}

	row.Status = enums.UploadStatusUploaded
	row.Progress = 100
	row.ErrorReason = nil
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.SaveTx(tx, row); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventUploadCompleted,
			AggregateType: enums.AggregateUpload,
			AggregateID:   row.ID,
			Data: payloads.UploadCompletedEvent{
				UploadID:      row.ID,
				ApplicationID: applicationID,
				Slot:          slot,
				GCSKey:        row.GCSKey,
				SizeBytes:     row.SizeBytes,
			},
			Version: 1,
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize upload")
	}
	return row, nil
}

func (s *service) Fail(ctx context.Context, applicationID uuid.UUID, slot enums.AssetSlot, attempt int, reason string) (*models.Upload, error) {
	row, err := s.loadSlot(ctx, applicationID, slot)
	if err != nil {
		return nil, err
	}
	if attempt != row.Attempt || row.Status == enums.UploadStatusUploaded {
		return row, nil
	}
	row.Status = enums.UploadStatusFailed
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "upload failed"
	}
	row.ErrorReason = &reason
	if err := s.repo.Save(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record upload failure")
	}
	return row, nil
}

func (s *service) Remove(ctx context.Context, applicationID uuid.UUID, slot enums.AssetSlot) error {
	if err := s.requireDraft(ctx, applicationID); err != nil {
		return err
	}
	row, err := s.loadSlot(ctx, applicationID, slot)
	if err != nil {
		return err
	}

	objectKey := row.GCSKey
	row.Status = enums.UploadStatusRemoved
	// Bumping the attempt here fences any callback still in flight for the
	// removed file.
	row.Attempt++
	row.Progress = 0
	row.ErrorReason = nil
	if err := s.repo.Save(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark slot removed")
	}

	if objectKey != "" {
		if err := s.gcs.DeleteObject(ctx, s.bucket, objectKey); err != nil && s.logg != nil {
			logCtx := s.logg.WithField(ctx, "gcs_key", objectKey)
			s.logg.Warn(logCtx, "object deletion failed, orphan sweep will retry")
		}
	}
	return nil
}

func (s *service) Snapshot(ctx context.Context, applicationID uuid.UUID) ([]SlotView, error) {
	if applicationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "application identity missing")
	}
	rows, err := s.repo.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list slot rows")
	}
	bySlot := make(map[enums.AssetSlot]models.Upload, len(rows))
	for _, row := range rows {
		bySlot[row.Slot] = row
	}

	views := make([]SlotView, 0, len(enums.RequiredSlots()))
	for _, slot := range enums.RequiredSlots() {
		row, ok := bySlot[slot]
		if !ok {
			views = append(views, SlotView{Slot: slot})
			continue
		}
		views = append(views, SlotView{
			Slot:     slot,
			Present:  true,
			Status:   row.Status,
			Attempt:  row.Attempt,
			Progress: row.Progress,
			FileName: row.FileName,
			GCSKey:   row.GCSKey,
		})
	}
	return views, nil
}

// Resolve maps an upload identifier back to its row so callers holding only
// the ID can address the owning application and slot.
func (s *service) Resolve(ctx context.Context, uploadID uuid.UUID) (*models.Upload, error) {
	if uploadID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "upload identity missing")
	}
	row, err := s.repo.FindByID(ctx, uploadID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load upload row")
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "upload not found")
	}
	return row, nil
}

func (s *service) loadSlot(ctx context.Context, applicationID uuid.UUID, slot enums.AssetSlot) (*models.Upload, error) {
	if applicationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "application identity missing")
	}
	if !slot.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid asset slot")
	}
	row, err := s.repo.FindSlot(ctx, applicationID, slot)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load slot row")
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "slot has no upload")
	}
	return row, nil
}

func (s *service) requireDraft(ctx context.Context, applicationID uuid.UUID) error {
	app, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load application")
	}
	if app == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "application not found")
	}
	if app.Status != enums.ApplicationStatusDraft {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "application already submitted")
	}
	return nil
}

func isImageMime(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(mimeType), "image/")
}

func buildGCSKey(applicationID uuid.UUID, slot enums.AssetSlot, attempt int, fileName string) string {
	cleanName := sanitizeFileName(fileName)
	if cleanName == "" {
		cleanName = "upload"
	}
	return fmt.Sprintf("applications/%s/%s/%d/%s", applicationID, slot, attempt, cleanName)
}

func sanitizeFileName(name string) string {
	if name == "" {
		return ""
	}
	clean := path.Base(strings.TrimSpace(name))
	if clean == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		switch {
		case r == '/' || r == '\\' || unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-_.")
}
