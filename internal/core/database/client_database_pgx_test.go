package db

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/drivesync/internal/core"
	"github.com/markdave123-py/drivesync/internal/models"
)

func TestWithRootCert(t *testing.T) {
	cert := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(cert, []byte("cert"), 0o600); err != nil {
		t.Fatal(err)
	}

	dsn, err := withRootCert("postgres://u:p@db:5432/sync?application_name=drivesync", cert)
	if err != nil {
		t.Fatalf("withRootCert: %v", err)
	}
	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	if q.Get("sslmode") != "verify-ca" || q.Get("sslrootcert") != cert || q.Get("application_name") != "drivesync" {
		t.Errorf("query = %v", q)
	}

	if _, err := withRootCert("postgres://db/sync", filepath.Join(t.TempDir(), "missing.pem")); err == nil {
		t.Error("expected error for missing cert")
	}
}

// openTestStore connects to TEST_DATABASE_URL with a random agent id so runs do not collide.
func openTestStore(t *testing.T) *DatabaseClient {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	agent := int(uuid.New().ID() & 0x7fffffff)
	c, err := Open(context.Background(), dsn, agent)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		_, _ = c.db.Exec(`DELETE FROM file_sync WHERE agent_id = $1`, agent)
		_, _ = c.db.Exec(`DELETE FROM sync_runs WHERE agent_id = $1`, agent)
		_ = c.Close()
	})
	return c
}

func TestDatabaseClientLifecycle(t *testing.T) {
	c := openTestStore(t)
	ctx := context.Background()
	mod := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	f := &models.FileRecord{ID: "item-1", FileName: "a.pdf", FilePath: "/A/a.pdf", FileURL: "https://x", FileSize: 10, LastModifiedDateTime: &mod}
	inserted, err := c.UpsertObservedFile(ctx, f)
	if err != nil || !inserted {
		t.Fatalf("first upsert: inserted=%v err=%v", inserted, err)
	}

	got, err := c.GetFile(ctx, "item-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.SyncStatus != models.StatusPending || got.ChunkCount != 0 || !got.LastModifiedDateTime.Equal(mod) {
		t.Errorf("stored = %+v", got)
	}

	stamp := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	if err := c.UpdateSyncState(ctx, "item-1", core.SyncState{Status: models.StatusEmbedded, ChunkCount: 3, LastEmbeddedAt: &stamp}); err != nil {
		t.Fatalf("UpdateSyncState: %v", err)
	}

	f.FileName = "a-v2.pdf"
	inserted, err = c.UpsertObservedFile(ctx, f)
	if err != nil || inserted {
		t.Fatalf("second upsert: inserted=%v err=%v", inserted, err)
	}
	got, _ = c.GetFile(ctx, "item-1")
	if got.SyncStatus != models.StatusUpdated || got.ChunkCount != 3 || got.FileName != "a-v2.pdf" {
		t.Errorf("after change = %s/%d %q", got.SyncStatus, got.ChunkCount, got.FileName)
	}
	if got.LastEmbeddedDateTime == nil || !got.LastEmbeddedDateTime.Equal(stamp) {
		t.Errorf("lastEmbedded = %v", got.LastEmbeddedDateTime)
	}

	// A nil timestamp keeps the stored one.
	if err := c.UpdateSyncState(ctx, "item-1", core.SyncState{Status: models.StatusUpdated, ChunkCount: 0}); err != nil {
		t.Fatal(err)
	}
	got, _ = c.GetFile(ctx, "item-1")
	if got.LastEmbeddedDateTime == nil || !got.LastEmbeddedDateTime.Equal(stamp) {
		t.Errorf("timestamp lost: %v", got.LastEmbeddedDateTime)
	}

	files, err := c.ListProcessable(ctx, models.ReprocessStatuses)
	if err != nil || len(files) != 1 {
		t.Fatalf("ListProcessable = %v, %v", files, err)
	}

	if err := c.MarkDeleted(ctx, "item-1"); err != nil {
		t.Fatal(err)
	}
	if files, _ := c.ListProcessable(ctx, models.ReprocessStatuses); len(files) != 0 {
		t.Errorf("deleted file still processable")
	}
}

func TestDatabaseClientRejectsInvalidTransition(t *testing.T) {
	c := openTestStore(t)
	ctx := context.Background()
	if _, err := c.UpsertObservedFile(ctx, &models.FileRecord{ID: "x", FileName: "x.pdf"}); err != nil {
		t.Fatal(err)
	}
	if err := c.UpdateSyncState(ctx, "x", core.SyncState{Status: models.StatusEmbedded, ChunkCount: 1}); err != nil {
		t.Fatal(err)
	}

	err := c.UpdateSyncState(ctx, "x", core.SyncState{Status: models.StatusErrorPDF})
	if !core.IsCode(err, core.ErrCodeInvalidTransition) {
		t.Errorf("err = %v, want invalid transition", err)
	}
	if err := c.UpdateSyncState(ctx, "missing", core.SyncState{Status: models.StatusPending}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing file err = %v", err)
	}
}

func TestDatabaseClientRemovableAndIgnore(t *testing.T) {
	c := openTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if _, err := c.UpsertObservedFile(ctx, &models.FileRecord{ID: id, FileName: id + ".pdf"}); err != nil {
			t.Fatal(err)
		}
		if err := c.UpdateSyncState(ctx, id, core.SyncState{Status: models.StatusEmbedded, ChunkCount: 2}); err != nil {
			t.Fatal(err)
		}
	}
	_ = c.MarkDeleted(ctx, "a")
	if err := c.SetIgnore(ctx, "b", true); err != nil {
		t.Fatal(err)
	}
	if err := c.SetIgnore(ctx, "nope", true); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("SetIgnore missing = %v", err)
	}

	files, err := c.ListRemovable(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0].ID != "a" || files[1].ID != "b" {
		t.Errorf("removable = %+v", files)
	}

	all, err := c.ListFiles(ctx, core.FileFilter{Statuses: []models.SyncStatus{models.StatusEmbedded}, Limit: 2})
	if err != nil || len(all) != 2 {
		t.Errorf("ListFiles = %d, %v", len(all), err)
	}
}

func TestDatabaseClientRuns(t *testing.T) {
	c := openTestStore(t)
	ctx := context.Background()

	if _, err := c.LatestRun(ctx); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("LatestRun on empty = %v", err)
	}

	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for i, id := range []string{uuid.NewString(), uuid.NewString()} {
		run := &models.RunSummary{
			ID: id, StartedAt: start.Add(time.Duration(i) * time.Hour), FinishedAt: start.Add(time.Duration(i)*time.Hour + time.Minute),
			ItemsSeen: i + 1, Counts: map[models.SyncStatus]int{models.StatusEmbedded: i + 1},
		}
		if err := c.RecordRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	r, err := c.LatestRun(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if r.ItemsSeen != 2 || r.Counts[models.StatusEmbedded] != 2 {
		t.Errorf("latest = %+v", r)
	}
}
