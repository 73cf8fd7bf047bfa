package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/markdave123-py/drivesync/internal/core"
	"github.com/markdave123-py/drivesync/internal/models"
)

// MemoryStore is an in-memory core.SyncStore mirroring the SQL store's semantics.
type MemoryStore struct {
	mu    sync.Mutex
	files map[string]*models.FileRecord
	runs  []models.RunSummary

	// FailWrites makes every mutating call return this error.
	FailWrites error
}

var _ core.SyncStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string]*models.FileRecord)}
}

// Put stores a copy of f as-is. Test setup only.
func (s *MemoryStore) Put(f models.FileRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[f.ID] = &f
}

// File returns a copy of the stored record, or nil.
func (s *MemoryStore) File(id string) *models.FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return nil
	}
	cp := *f
	return &cp
}

func (s *MemoryStore) Runs() []models.RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.RunSummary(nil), s.runs...)
}

func (s *MemoryStore) UpsertObservedFile(_ context.Context, f *models.FileRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return false, s.FailWrites
	}
	if cur, ok := s.files[f.ID]; ok {
		cur.FileName = f.FileName
		cur.FilePath = f.FilePath
		cur.FileURL = f.FileURL
		cur.FileSize = f.FileSize
		cur.CreatedDateTime = f.CreatedDateTime
		cur.CreatedBy = f.CreatedBy
		cur.LastModifiedDateTime = f.LastModifiedDateTime
		cur.LastModifiedBy = f.LastModifiedBy
		cur.IsDeleted = false
		cur.SyncStatus = models.StatusUpdated
		return false, nil
	}
	cp := *f
	cp.SyncStatus = models.StatusPending
	cp.ChunkCount = 0
	cp.IsDeleted = false
	s.files[f.ID] = &cp
	return true, nil
}

func (s *MemoryStore) MarkDeleted(_ context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	if f, ok := s.files[fileID]; ok {
		f.IsDeleted = true
	}
	return nil
}

func (s *MemoryStore) GetFile(_ context.Context, fileID string) (*models.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileID]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *MemoryStore) ListFiles(_ context.Context, filter core.FileFilter) ([]models.FileRecord, error) {
	out := s.list(func(f *models.FileRecord) bool {
		return len(filter.Statuses) == 0 || hasStatus(filter.Statuses, f.SyncStatus)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) ListProcessable(_ context.Context, statuses []models.SyncStatus) ([]models.FileRecord, error) {
	return s.list(func(f *models.FileRecord) bool {
		return !f.IsDeleted && !f.IgnoreFile && hasStatus(statuses, f.SyncStatus)
	}), nil
}

func (s *MemoryStore) ListRemovable(_ context.Context) ([]models.FileRecord, error) {
	return s.list(func(f *models.FileRecord) bool {
		return (f.IsDeleted || f.IgnoreFile) && f.ChunkCount > 0
	}), nil
}

func (s *MemoryStore) UpdateSyncState(_ context.Context, fileID string, st core.SyncState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	f, ok := s.files[fileID]
	if !ok {
		return core.ErrNotFound
	}
	if _, err := models.Transition(f.SyncStatus, st.Status); err != nil {
		return &core.SyncError{Code: core.ErrCodeInvalidTransition, Message: fileID, Err: err}
	}
	f.SyncStatus = st.Status
	f.ChunkCount = st.ChunkCount
	if st.LastEmbeddedAt != nil {
		ts := *st.LastEmbeddedAt
		f.LastEmbeddedDateTime = &ts
	}
	return nil
}

func (s *MemoryStore) SetIgnore(_ context.Context, fileID string, ignore bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	f, ok := s.files[fileID]
	if !ok {
		return core.ErrNotFound
	}
	f.IgnoreFile = ignore
	return nil
}

func (s *MemoryStore) RecordRun(_ context.Context, run *models.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	s.runs = append(s.runs, *run)
	return nil
}

func (s *MemoryStore) LatestRun(_ context.Context) (*models.RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.runs) == 0 {
		return nil, core.ErrNotFound
	}
	r := s.runs[len(s.runs)-1]
	return &r, nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) list(keep func(*models.FileRecord) bool) []models.FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.FileRecord
	for _, f := range s.files {
		if keep(f) {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func hasStatus(set []models.SyncStatus, st models.SyncStatus) bool {
	for _, v := range set {
		if v == st {
			return true
		}
	}
	return false
}

// ErrInjected is a generic failure for fakes.
var ErrInjected = errors.New("injected failure")
