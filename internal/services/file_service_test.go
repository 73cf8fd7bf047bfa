package services

import (
	"context"
	"errors"
	"testing"

	"github.com/markdave123-py/drivesync/internal/core"
	"github.com/markdave123-py/drivesync/internal/models"
	"github.com/markdave123-py/drivesync/internal/testutil"
)

func TestFileServiceRetry(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.Put(models.FileRecord{ID: "p", FileName: "a.pdf", SyncStatus: models.StatusErrorPDF, ChunkCount: 2})
	store.Put(models.FileRecord{ID: "w", FileName: "a.docx", SyncStatus: models.StatusErrorWord})
	store.Put(models.FileRecord{ID: "e", FileName: "e.pdf", SyncStatus: models.StatusEmbedded, ChunkCount: 1})
	svc := NewFileService(store)
	ctx := context.Background()

	for _, id := range []string{"p", "w"} {
		f, err := svc.Retry(ctx, id)
		if err != nil {
			t.Fatalf("Retry(%s): %v", id, err)
		}
		if f.SyncStatus != models.StatusPending {
			t.Errorf("%s status = %s", id, f.SyncStatus)
		}
	}
	if f := store.File("p"); f.ChunkCount != 2 {
		t.Errorf("chunk count reset to %d; old vectors would leak", f.ChunkCount)
	}

	if _, err := svc.Retry(ctx, "e"); !errors.Is(err, ErrNotRetryable) {
		t.Errorf("Retry(embedded) err = %v", err)
	}
	if _, err := svc.Retry(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Retry(missing) err = %v", err)
	}
}

func TestFileServiceList(t *testing.T) {
	store := testutil.NewMemoryStore()
	for _, id := range []string{"a", "b", "c"} {
		store.Put(models.FileRecord{ID: id, SyncStatus: models.StatusPending})
	}
	store.Put(models.FileRecord{ID: "d", SyncStatus: models.StatusEmbedded})
	svc := NewFileService(store)
	ctx := context.Background()

	files, err := svc.List(ctx, core.FileFilter{Statuses: []models.SyncStatus{models.StatusPending}, Limit: 2, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0].ID != "b" || files[1].ID != "c" {
		t.Errorf("files = %+v", files)
	}

	files, err = svc.List(ctx, core.FileFilter{Statuses: []models.SyncStatus{models.StatusErrorWord}})
	if err != nil || files == nil || len(files) != 0 {
		t.Errorf("empty list = %v, %v", files, err)
	}

	if _, err := svc.List(ctx, core.FileFilter{Statuses: []models.SyncStatus{"bogus"}}); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestFileServiceSetIgnore(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.Put(models.FileRecord{ID: "a", SyncStatus: models.StatusEmbedded, ChunkCount: 3})
	svc := NewFileService(store)

	f, err := svc.SetIgnore(context.Background(), "a", true)
	if err != nil {
		t.Fatal(err)
	}
	if !f.IgnoreFile || f.SyncStatus != models.StatusEmbedded {
		t.Errorf("file = %+v", f)
	}
	if _, err := svc.SetIgnore(context.Background(), "nope", true); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestFileServiceLatestRun(t *testing.T) {
	store := testutil.NewMemoryStore()
	svc := NewFileService(store)
	if _, err := svc.LatestRun(context.Background()); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
	_ = store.RecordRun(context.Background(), &models.RunSummary{ID: "r1"})
	if r, err := svc.LatestRun(context.Background()); err != nil || r.ID != "r1" {
		t.Errorf("run = %+v, %v", r, err)
	}
}
