package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/drivesync/internal/core"
	"github.com/markdave123-py/drivesync/internal/core/logging"
	"github.com/markdave123-py/drivesync/internal/models"
)

// PgVectorIndex stores chunk vectors in a pgvector table keyed by (agent_id, chunk id).
type PgVectorIndex struct {
	pool    *pgxpool.Pool
	agentID int
	dim     int
}

var _ core.VectorIndex = (*PgVectorIndex)(nil)

func NewPgVectorIndex(ctx context.Context, connStr string, agentID, dim int) (*PgVectorIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", dim)
	}
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	idx := &PgVectorIndex{pool: pool, agentID: agentID, dim: dim}
	if err := idx.createTables(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create vector tables: %w", err)
	}
	return idx, nil
}

func (p *PgVectorIndex) createTables(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS file_chunks (
		id        TEXT NOT NULL,
		agent_id  INT NOT NULL,
		file_id   TEXT NOT NULL,
		ordinal   INT NOT NULL,
		tokens    INT NOT NULL DEFAULT 0,
		metadata  JSONB NOT NULL DEFAULT '{}'::jsonb,
		embedding vector(%d) NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (agent_id, id)
	);

	-- Tables created before agent scoping were keyed by id alone.
	DO $$
	BEGIN
		IF EXISTS (
			SELECT 1 FROM pg_index i
			JOIN pg_class c ON c.oid = i.indrelid
			WHERE c.relname = 'file_chunks' AND i.indisprimary AND i.indnatts = 1
		) THEN
			ALTER TABLE file_chunks DROP CONSTRAINT file_chunks_pkey;
			ALTER TABLE file_chunks ADD PRIMARY KEY (agent_id, id);
		END IF;
	END $$;

	CREATE INDEX IF NOT EXISTS idx_file_chunks_file ON file_chunks (agent_id, file_id);
	CREATE INDEX IF NOT EXISTS idx_file_chunks_embedding ON file_chunks
		USING hnsw (embedding vector_cosine_ops);
	`, p.dim)
	_, err := p.pool.Exec(ctx, query)
	return err
}

// Upsert writes all records in one transaction; a failure leaves none of them visible.
func (p *PgVectorIndex) Upsert(ctx context.Context, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	const q = `
		INSERT INTO file_chunks (id, agent_id, file_id, ordinal, tokens, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (agent_id, id) DO UPDATE SET
			file_id = EXCLUDED.file_id,
			ordinal = EXCLUDED.ordinal,
			tokens = EXCLUDED.tokens,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding,
			updated_at = now()
	`

	batch := &pgx.Batch{}
	for _, r := range records {
		if len(r.Values) != p.dim {
			return fmt.Errorf("vector %s has %d dimensions, index expects %d", r.ID, len(r.Values), p.dim)
		}
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata of %s: %w", r.ID, err)
		}
		batch.Queue(q, r.ID, p.agentID, r.FileID, r.Ordinal, r.Tokens, meta, pgvector.NewVector(r.Values))
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// DeleteMany removes the given ids. Missing ids are ignored.
func (p *PgVectorIndex) DeleteMany(ctx context.Context, ids []string) error {
	switch len(ids) {
	case 0:
		return nil
	case 1:
		_, err := p.pool.Exec(ctx, `DELETE FROM file_chunks WHERE agent_id = $1 AND id = $2`, p.agentID, ids[0])
		return err
	}
	tag, err := p.pool.Exec(ctx, `DELETE FROM file_chunks WHERE agent_id = $1 AND id = ANY($2)`, p.agentID, ids)
	if err != nil {
		return err
	}
	logging.Logger().Debug("PgVectorIndex: deleted", "requested", len(ids), "deleted", tag.RowsAffected())
	return nil
}

// Close closes the connection pool.
func (p *PgVectorIndex) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
