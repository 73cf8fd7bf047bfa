package core

import (
	"context"
	"time"

	"github.com/markdave123-py/drivesync/internal/models"
)

// SyncState is the outcome of a processing step written back to the store.
// A nil LastEmbeddedAt leaves the stored timestamp unchanged.
type SyncState struct {
	Status         models.SyncStatus
	ChunkCount     int
	LastEmbeddedAt *time.Time
}

// FileFilter selects tracked files. Zero values mean "any".
type FileFilter struct {
	Statuses []models.SyncStatus
	Limit    int
	Offset   int
}

// SyncStore is the relational source of truth for per-file sync state.
// Every call is scoped to the agent the store was opened for.
type SyncStore interface {
	// UpsertObservedFile inserts f as pending, or overwrites metadata of an existing
	// row, clears isDeleted and sets status updated. Reports whether a row was inserted.
	UpsertObservedFile(ctx context.Context, f *models.FileRecord) (inserted bool, err error)
	MarkDeleted(ctx context.Context, fileID string) error

	GetFile(ctx context.Context, fileID string) (*models.FileRecord, error)
	ListFiles(ctx context.Context, filter FileFilter) ([]models.FileRecord, error)
	// ListProcessable returns non-deleted, non-ignored files in one of statuses.
	ListProcessable(ctx context.Context, statuses []models.SyncStatus) ([]models.FileRecord, error)
	// ListRemovable returns deleted or ignored files that still have vectors.
	ListRemovable(ctx context.Context) ([]models.FileRecord, error)

	UpdateSyncState(ctx context.Context, fileID string, st SyncState) error
	SetIgnore(ctx context.Context, fileID string, ignore bool) error

	RecordRun(ctx context.Context, run *models.RunSummary) error
	LatestRun(ctx context.Context) (*models.RunSummary, error)

	Close() error
}

// VectorIndex is the external vector store.
type VectorIndex interface {
	Upsert(ctx context.Context, records []models.VectorRecord) error
	// DeleteMany removes ids; missing ids are not an error.
	DeleteMany(ctx context.Context, ids []string) error
	Close() error
}

// ChangeFeed pages through drive changes since a cursor. An empty cursor starts a full enumeration.
type ChangeFeed interface {
	GetChanges(ctx context.Context, cursor string) (*models.DeltaPage, error)
}

// ByteFetcher downloads raw file content by drive item id.
type ByteFetcher interface {
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// CursorStore persists the change-feed cursor between runs. Load returns "" when none is stored.
// Reset forgets the stored cursor so the next run enumerates the whole drive.
type CursorStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, cursor string) error
	Reset(ctx context.Context) error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}
