package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/drivesync/internal/config"
	"github.com/markdave123-py/drivesync/internal/core"
	"github.com/markdave123-py/drivesync/internal/models"
)

// DatabaseClient is the Postgres sync state store. Every query is scoped to one agent.
type DatabaseClient struct {
	db      *sql.DB
	agentID int
}

var _ core.SyncStore = (*DatabaseClient)(nil)

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	dsn := cfg.DatabaseURL
	if cfg.SslCertPath != "" {
		var err error
		if dsn, err = withRootCert(dsn, cfg.SslCertPath); err != nil {
			return nil, err
		}
	}
	return Open(ctx, dsn, cfg.AgentID)
}

// Open connects, pings and bootstraps the schema.
func Open(ctx context.Context, dsn string, agentID int) (*DatabaseClient, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db, agentID: agentID}, nil
}

// withRootCert appends verify-ca SSL params to dsn.
func withRootCert(dsn, certPath string) (string, error) {
	if _, err := os.Stat(certPath); err != nil {
		return "", fmt.Errorf("ssl cert not accessible at %q: %w", certPath, err)
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	q := u.Query()
	q.Set("sslmode", "verify-ca")
	q.Set("sslrootcert", certPath)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

const fileColumns = `graph_id, agent_id, file_name, file_path, file_url, file_size,
	created_datetime, created_by, last_modified_datetime, last_modified_by,
	chunk_count, sync_status, is_deleted, ignore_file, last_embedded_datetime`

// UpsertObservedFile inserts a new file as pending, or refreshes the drive metadata of a
// known one, marks it updated and clears is_deleted. chunk_count and ignore_file are kept.
func (c *DatabaseClient) UpsertObservedFile(ctx context.Context, f *models.FileRecord) (bool, error) {
	if f == nil {
		return false, errors.New("nil file")
	}
	const q = `
		INSERT INTO file_sync
			(agent_id, graph_id, file_name, file_path, file_url, file_size,
			 created_datetime, created_by, last_modified_datetime, last_modified_by,
			 chunk_count, sync_status, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, 'pending', FALSE)
		ON CONFLICT (agent_id, graph_id) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			file_path = EXCLUDED.file_path,
			file_url = EXCLUDED.file_url,
			file_size = EXCLUDED.file_size,
			created_datetime = EXCLUDED.created_datetime,
			created_by = EXCLUDED.created_by,
			last_modified_datetime = EXCLUDED.last_modified_datetime,
			last_modified_by = EXCLUDED.last_modified_by,
			sync_status = 'updated',
			is_deleted = FALSE,
			updated_at = now()
		RETURNING (xmax = 0)
	`
	var inserted bool
	err := c.db.QueryRowContext(ctx, q,
		c.agentID, f.ID, f.FileName, f.FilePath, f.FileURL, f.FileSize,
		nullTime(f.CreatedDateTime), f.CreatedBy, nullTime(f.LastModifiedDateTime), f.LastModifiedBy,
	).Scan(&inserted)
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (c *DatabaseClient) MarkDeleted(ctx context.Context, fileID string) error {
	const q = `
		UPDATE file_sync SET is_deleted = TRUE, updated_at = now()
		WHERE agent_id = $1 AND graph_id = $2
	`
	_, err := c.db.ExecContext(ctx, q, c.agentID, fileID)
	return err
}

func (c *DatabaseClient) GetFile(ctx context.Context, fileID string) (*models.FileRecord, error) {
	q := `SELECT ` + fileColumns + ` FROM file_sync WHERE agent_id = $1 AND graph_id = $2`
	f, err := scanFile(c.db.QueryRowContext(ctx, q, c.agentID, fileID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (c *DatabaseClient) ListFiles(ctx context.Context, filter core.FileFilter) ([]models.FileRecord, error) {
	q := `SELECT ` + fileColumns + ` FROM file_sync
		WHERE agent_id = $1 AND (cardinality($2::text[]) = 0 OR sync_status = ANY($2))
		ORDER BY file_path, graph_id
		LIMIT $3 OFFSET $4`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := max(filter.Offset, 0)
	return c.queryFiles(ctx, q, c.agentID, statusStrings(filter.Statuses), limit, offset)
}

// ListProcessable returns live files (not deleted, not ignored) in one of statuses.
func (c *DatabaseClient) ListProcessable(ctx context.Context, statuses []models.SyncStatus) ([]models.FileRecord, error) {
	q := `SELECT ` + fileColumns + ` FROM file_sync
		WHERE agent_id = $1 AND NOT is_deleted AND NOT ignore_file AND sync_status = ANY($2)
		ORDER BY graph_id`
	return c.queryFiles(ctx, q, c.agentID, statusStrings(statuses))
}

// ListRemovable returns deleted or ignored files that still have vectors.
func (c *DatabaseClient) ListRemovable(ctx context.Context) ([]models.FileRecord, error) {
	q := `SELECT ` + fileColumns + ` FROM file_sync
		WHERE agent_id = $1 AND (is_deleted OR ignore_file) AND chunk_count > 0
		ORDER BY graph_id`
	return c.queryFiles(ctx, q, c.agentID)
}

// UpdateSyncState validates the transition against the stored status under a row lock
// and writes the new state. A nil LastEmbeddedAt keeps the stored timestamp.
func (c *DatabaseClient) UpdateSyncState(ctx context.Context, fileID string, st core.SyncState) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT sync_status FROM file_sync WHERE agent_id = $1 AND graph_id = $2 FOR UPDATE`,
		c.agentID, fileID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	if err != nil {
		return err
	}

	if _, err := models.Transition(models.SyncStatus(current), st.Status); err != nil {
		return &core.SyncError{Code: core.ErrCodeInvalidTransition, Message: fileID, Err: err}
	}

	const q = `
		UPDATE file_sync
		SET sync_status = $3,
			chunk_count = $4,
			last_embedded_datetime = COALESCE($5, last_embedded_datetime),
			updated_at = now()
		WHERE agent_id = $1 AND graph_id = $2
	`
	if _, err := tx.ExecContext(ctx, q, c.agentID, fileID, string(st.Status), st.ChunkCount, nullTime(st.LastEmbeddedAt)); err != nil {
		return err
	}
	return tx.Commit()
}

func (c *DatabaseClient) SetIgnore(ctx context.Context, fileID string, ignore bool) error {
	const q = `
		UPDATE file_sync SET ignore_file = $3, updated_at = now()
		WHERE agent_id = $1 AND graph_id = $2
	`
	res, err := c.db.ExecContext(ctx, q, c.agentID, fileID, ignore)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (c *DatabaseClient) RecordRun(ctx context.Context, run *models.RunSummary) error {
	if run == nil {
		return errors.New("nil run")
	}
	counts, err := json.Marshal(run.Counts)
	if err != nil {
		return fmt.Errorf("encode counts: %w", err)
	}
	const q = `
		INSERT INTO sync_runs
			(id, agent_id, started_at, finished_at, items_seen, counts, removed, skipped, error)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9)
	`
	_, err = c.db.ExecContext(ctx, q,
		run.ID, c.agentID, run.StartedAt, run.FinishedAt, run.ItemsSeen, string(counts), run.Removed, run.Skipped, run.Err)
	return err
}

func (c *DatabaseClient) LatestRun(ctx context.Context) (*models.RunSummary, error) {
	const q = `
		SELECT id, agent_id, started_at, finished_at, items_seen, counts, removed, skipped, error
		FROM sync_runs
		WHERE agent_id = $1
		ORDER BY started_at DESC
		LIMIT 1
	`
	var (
		r      models.RunSummary
		counts []byte
	)
	err := c.db.QueryRowContext(ctx, q, c.agentID).Scan(
		&r.ID, &r.AgentID, &r.StartedAt, &r.FinishedAt, &r.ItemsSeen, &counts, &r.Removed, &r.Skipped, &r.Err,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(counts, &r.Counts); err != nil {
		return nil, fmt.Errorf("decode counts: %w", err)
	}
	return &r, nil
}

func (c *DatabaseClient) queryFiles(ctx context.Context, q string, args ...any) ([]models.FileRecord, error) {
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FileRecord
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*models.FileRecord, error) {
	var (
		f                          models.FileRecord
		status                     string
		created, modified, embedAt sql.NullTime
	)
	if err := row.Scan(
		&f.ID, &f.AgentID, &f.FileName, &f.FilePath, &f.FileURL, &f.FileSize,
		&created, &f.CreatedBy, &modified, &f.LastModifiedBy,
		&f.ChunkCount, &status, &f.IsDeleted, &f.IgnoreFile, &embedAt,
	); err != nil {
		return nil, err
	}
	f.SyncStatus = models.SyncStatus(status)
	f.CreatedDateTime = timePtr(created)
	f.LastModifiedDateTime = timePtr(modified)
	f.LastEmbeddedDateTime = timePtr(embedAt)
	return &f, nil
}

func statusStrings(statuses []models.SyncStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
