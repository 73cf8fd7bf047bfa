package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/markdave123-py/drivesync/internal/core"
	"github.com/markdave123-py/drivesync/internal/models"
)

const maxPageSize = 500

// ErrNotRetryable is returned by Retry for files outside error_pdf / error_word.
var ErrNotRetryable = errors.New("file is not in a manually retryable state")

// FileService is the operator view over the sync store.
type FileService struct {
	store core.SyncStore
}

func NewFileService(store core.SyncStore) *FileService {
	return &FileService{store: store}
}

func (s *FileService) List(ctx context.Context, filter core.FileFilter) ([]models.FileRecord, error) {
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("unknown status %q", st)
		}
	}
	if filter.Limit <= 0 || filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	files, err := s.store.ListFiles(ctx, filter)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []models.FileRecord{}
	}
	return files, nil
}

func (s *FileService) Get(ctx context.Context, id string) (*models.FileRecord, error) {
	return s.store.GetFile(ctx, id)
}

// SetIgnore flags a file; the next run's cleanup removes its vectors.
func (s *FileService) SetIgnore(ctx context.Context, id string, ignore bool) (*models.FileRecord, error) {
	if err := s.store.SetIgnore(ctx, id, ignore); err != nil {
		return nil, err
	}
	return s.store.GetFile(ctx, id)
}

// Retry moves a file stuck in error_pdf or error_word back to pending. The recorded
// chunk count is kept so the pipeline clears any old vectors first.
func (s *FileService) Retry(ctx context.Context, id string) (*models.FileRecord, error) {
	f, err := s.store.GetFile(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.SyncStatus != models.StatusErrorPDF && f.SyncStatus != models.StatusErrorWord {
		return nil, fmt.Errorf("%w: %s", ErrNotRetryable, f.SyncStatus)
	}
	st := core.SyncState{Status: models.StatusPending, ChunkCount: f.ChunkCount}
	if err := s.store.UpdateSyncState(ctx, id, st); err != nil {
		return nil, err
	}
	return s.store.GetFile(ctx, id)
}

func (s *FileService) LatestRun(ctx context.Context) (*models.RunSummary, error) {
	return s.store.LatestRun(ctx)
}
