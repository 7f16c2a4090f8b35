package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mateovaldes/idp-registry-backend/pkg/db/models"
	"github.com/mateovaldes/idp-registry-backend/pkg/enums"
	"github.com/mateovaldes/idp-registry-backend/pkg/logger"
	"github.com/mateovaldes/idp-registry-backend/pkg/outbox"
)

type stubUploadRepo struct {
	rows    []models.Upload
	deleted []uuid.UUID
}

func (s *stubUploadRepo) ListOrphaned(ctx context.Context, cutoff time.Time, limit int) ([]models.Upload, error) {
	return s.rows, nil
}

func (s *stubUploadRepo) DeleteTx(tx *gorm.DB, id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type stubObjectStore struct {
	deleted []string
	fail    map[string]error
}

func (s *stubObjectStore) DeleteObject(ctx context.Context, bucket, object string) error {
	if err, ok := s.fail[object]; ok {
		return err
	}
	s.deleted = append(s.deleted, object)
	return nil
}

type stubOrphanEmitter struct {
	events []outbox.DomainEvent
}

func (s *stubOrphanEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func newOrphanJob(t *testing.T, repo *stubUploadRepo, store *stubObjectStore, emitter *stubOrphanEmitter) Job {
	t.Helper()
	job, err := NewOrphanUploadJob(OrphanUploadJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		DB:         stubTxRunner{},
		UploadRepo: repo,
		Outbox:     emitter,
		GCS:        store,
		Bucket:     "idp-assets",
	})
	if err != nil {
		t.Fatalf("NewOrphanUploadJob: %v", err)
	}
	return job
}

func TestOrphanUploadJobDeletesObjectThenRow(t *testing.T) {
	row := models.Upload{
		ID:            uuid.New(),
		ApplicationID: uuid.New(),
		Slot:          enums.AssetSlotPersonalPhoto,
		Status:        enums.UploadStatusRemoved,
		GCSKey:        "applications/abc/personal_photo/2/photo.png",
	}
	repo := &stubUploadRepo{rows: []models.Upload{row}}
	store := &stubObjectStore{}
	emitter := &stubOrphanEmitter{}

	if err := newOrphanJob(t, repo, store, emitter).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(store.deleted) != 1 || store.deleted[0] != row.GCSKey {
		t.Fatalf("expected stored object deleted, got %v", store.deleted)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != row.ID {
		t.Fatalf("expected upload row deleted, got %v", repo.deleted)
	}
	if len(emitter.events) != 1 {
		t.Fatalf("expected one event, got %d", len(emitter.events))
	}
	event := emitter.events[0]
	if event.EventType != enums.EventUploadOrphanDeleted {
		t.Fatalf("unexpected event type %s", event.EventType)
	}
	if event.AggregateID != row.ID {
		t.Fatal("event aggregate must be the removed upload")
	}
}

func TestOrphanUploadJobKeepsRowWhenObjectDeleteFails(t *testing.T) {
	row := models.Upload{
		ID:            uuid.New(),
		ApplicationID: uuid.New(),
		Slot:          enums.AssetSlotLicenseFront,
		Status:        enums.UploadStatusFailed,
		GCSKey:        "applications/abc/license_front/1/front.jpg",
	}
	repo := &stubUploadRepo{rows: []models.Upload{row}}
	store := &stubObjectStore{fail: map[string]error{row.GCSKey: errors.New("storage unavailable")}}
	emitter := &stubOrphanEmitter{}

	if err := newOrphanJob(t, repo, store, emitter).Run(context.Background()); err == nil {
		t.Fatal("expected sweep to surface the storage failure")
	}
	if len(repo.deleted) != 0 {
		t.Fatal("row must survive so the next sweep retries the object")
	}
	if len(emitter.events) != 0 {
		t.Fatal("no event while the object still exists")
	}
}

func TestOrphanUploadJobSkipsObjectDeleteForEmptyKey(t *testing.T) {
	row := models.Upload{
		ID:            uuid.New(),
		ApplicationID: uuid.New(),
		Slot:          enums.AssetSlotLicenseBack,
		Status:        enums.UploadStatusFailed,
	}
	repo := &stubUploadRepo{rows: []models.Upload{row}}
	store := &stubObjectStore{}
	emitter := &stubOrphanEmitter{}

	if err := newOrphanJob(t, repo, store, emitter).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.deleted) != 0 {
		t.Fatalf("no object to delete, got %v", store.deleted)
	}
	if len(repo.deleted) != 1 {
		t.Fatal("row without an object still gets reclaimed")
	}
}
