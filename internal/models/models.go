package models

import (
	"time"
)

// FileRecord is one tracked drive document and its sync state.
type FileRecord struct {
	ID                   string     `db:"graph_id" json:"id"`
	AgentID              int        `db:"agent_id" json:"agent_id"`
	FileName             string     `db:"file_name" json:"file_name"`
	FilePath             string     `db:"file_path" json:"file_path"`
	FileURL              string     `db:"file_url" json:"file_url"`
	FileSize             int64      `db:"file_size" json:"file_size"`
	CreatedDateTime      *time.Time `db:"created_at" json:"created_at,omitempty"`
	CreatedBy            string     `db:"created_by" json:"created_by,omitempty"`
	LastModifiedDateTime *time.Time `db:"last_modified_at" json:"last_modified_at,omitempty"`
	LastModifiedBy       string     `db:"last_modified_by" json:"last_modified_by,omitempty"`
	ChunkCount           int        `db:"chunk_count" json:"chunk_count"`
	SyncStatus           SyncStatus `db:"sync_status" json:"sync_status"`
	IsDeleted            bool       `db:"is_deleted" json:"is_deleted"`
	IgnoreFile           bool       `db:"ignore_file" json:"ignore_file"`
	LastEmbeddedDateTime *time.Time `db:"last_embedded_at" json:"last_embedded_at,omitempty"`
}

// DriveItem is one entry of the drive change feed.
type DriveItem struct {
	ID                   string
	Name                 string
	ParentPath           string // parentReference.path, e.g. "/drives/{id}/root:/Folder"
	WebURL               string
	Size                 int64
	CreatedDateTime      *time.Time
	CreatedBy            string
	LastModifiedDateTime *time.Time
	LastModifiedBy       string
	IsFile               bool
	Deleted              bool
}

// DeltaPage is a single page of the change feed.
// NextCursor is empty once the feed is exhausted; DeltaCursor is then the value to persist.
type DeltaPage struct {
	Items       []DriveItem
	NextCursor  string
	DeltaCursor string
}

// VectorRecord is one entry in the vector index.
type VectorRecord struct {
	ID       string            `json:"id"`
	FileID   string            `json:"file_id"`
	Ordinal  int               `json:"ordinal"`
	Values   []float32         `json:"-"`
	Tokens   int               `json:"token_count"`
	Metadata map[string]string `json:"metadata"`
}

// RunSummary records the outcome of one sync batch.
type RunSummary struct {
	ID         string             `db:"id" json:"id"`
	AgentID    int                `db:"agent_id" json:"agent_id"`
	StartedAt  time.Time          `db:"started_at" json:"started_at"`
	FinishedAt time.Time          `db:"finished_at" json:"finished_at"`
	ItemsSeen  int                `db:"items_seen" json:"items_seen"`
	Counts     map[SyncStatus]int `db:"counts" json:"counts"`
	Removed    int                `db:"removed" json:"removed"`
	Skipped    int                `db:"skipped" json:"skipped"`
	Err        string             `db:"error" json:"error,omitempty"`
}

// Record bumps the outcome counter for status.
func (r *RunSummary) Record(status SyncStatus) {
	if r.Counts == nil {
		r.Counts = make(map[SyncStatus]int)
	}
	r.Counts[status]++
}
