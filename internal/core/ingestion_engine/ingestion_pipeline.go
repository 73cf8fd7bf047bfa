package ingestion_engine

import (
	"context"
	"errors"
	"time"

	"github.com/markdave123-py/drivesync/internal/core"
	"github.com/markdave123-py/drivesync/internal/core/logging"
	"github.com/markdave123-py/drivesync/internal/models"
)

// NewDocumentIngestor wires the per-file pipeline. A nil cfg uses DefaultIngestConfig.
func NewDocumentIngestor(
	store core.SyncStore,
	fetcher core.ByteFetcher,
	extractor core.DocumentExtractor,
	tok core.Tokenizer,
	emb core.EmbeddingProvider,
	index core.VectorIndex,
	cfg *IngestConfig,
	opts ...Option,
) *DocumentIngestor {
	if cfg == nil {
		cfg = DefaultIngestConfig()
	}
	i := &DocumentIngestor{
		store:     store,
		fetcher:   fetcher,
		extractor: extractor,
		chunker:   NewChunker(tok),
		embedder:  emb,
		vectors:   NewVectorGateway(index),
		cfg:       cfg,
		log:       logging.Logger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ProcessPending embeds first-time files and retries the retryable error states.
func (i *DocumentIngestor) ProcessPending(ctx context.Context, sum *models.RunSummary) error {
	files, err := i.store.ListProcessable(ctx, models.RetryStatuses)
	if err != nil {
		return core.NewPersistenceError("list pending files", err)
	}
	i.log.Info("DocumentIngestor: pending files selected", "count", len(files))
	return i.processAll(ctx, files, sum)
}

// ReprocessUpdated rebuilds the vectors of files changed on the drive.
func (i *DocumentIngestor) ReprocessUpdated(ctx context.Context, sum *models.RunSummary) error {
	files, err := i.store.ListProcessable(ctx, models.ReprocessStatuses)
	if err != nil {
		return core.NewPersistenceError("list updated files", err)
	}
	i.log.Info("DocumentIngestor: updated files selected", "count", len(files))
	return i.processAll(ctx, files, sum)
}

// RemoveDeleted drops the vectors of deleted or ignored files and resets them to pending.
// A file whose vectors cannot be deleted keeps its state and is retried next run.
func (i *DocumentIngestor) RemoveDeleted(ctx context.Context, sum *models.RunSummary) error {
	if sum == nil {
		sum = &models.RunSummary{}
	}
	files, err := i.store.ListRemovable(ctx)
	if err != nil {
		return core.NewPersistenceError("list removable files", err)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, i.cfg.CallTimeout)
		err := i.vectors.DeleteFile(callCtx, f.ID, f.ChunkCount)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			i.log.Warn("DocumentIngestor: vector delete failed", "file", f.ID, "err", err)
			sum.Skipped++
			continue
		}

		ts := i.now()
		st := core.SyncState{Status: models.StatusPending, ChunkCount: 0, LastEmbeddedAt: &ts}
		if err := i.store.UpdateSyncState(ctx, f.ID, st); err != nil {
			return core.NewPersistenceError("reset removed file "+f.ID, err)
		}
		i.log.Info("DocumentIngestor: removed vectors", "file", f.ID, "chunks", f.ChunkCount)
		sum.Removed++
	}
	return nil
}

func (i *DocumentIngestor) processAll(ctx context.Context, files []models.FileRecord, sum *models.RunSummary) error {
	if sum == nil {
		sum = &models.RunSummary{}
	}
	for k := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		status, err := i.ProcessFile(ctx, &files[k])
		if err != nil {
			return err
		}
		if status == "" {
			sum.Skipped++
			continue
		}
		sum.Record(status)
	}
	return nil
}

// ProcessFile runs one file through the pipeline and records the outcome.
// It returns the status written, or "" when the file was skipped untouched.
// Only persistence failures and cancellation are returned as errors; everything
// else becomes a status on the file.
func (i *DocumentIngestor) ProcessFile(ctx context.Context, f *models.FileRecord) (models.SyncStatus, error) {
	i.log.Info("DocumentIngestor: processing", "file", f.ID, "name", f.FileName, "status", f.SyncStatus)

	if f.ChunkCount > 0 {
		if err := i.clearVectors(ctx, f); err != nil {
			if isFatal(ctx, err) {
				return "", err
			}
			i.log.Warn("DocumentIngestor: could not clear previous vectors, skipping", "file", f.ID, "err", err)
			return "", nil
		}
	}

	st, err := i.embedFile(ctx, f)
	if err != nil {
		return "", err
	}
	if st.Status == "" {
		return "", nil
	}

	if err := i.store.UpdateSyncState(ctx, f.ID, st); err != nil {
		return "", core.NewPersistenceError("update sync state of "+f.ID, err)
	}
	f.SyncStatus, f.ChunkCount = st.Status, st.ChunkCount

	i.log.Info("DocumentIngestor: processed", "file", f.ID, "status", st.Status, "chunks", st.ChunkCount)
	return st.Status, nil
}

// clearVectors deletes the vectors left from a previous pass and zeroes the count.
func (i *DocumentIngestor) clearVectors(ctx context.Context, f *models.FileRecord) error {
	callCtx, cancel := context.WithTimeout(ctx, i.cfg.CallTimeout)
	defer cancel()

	if err := i.vectors.DeleteFile(callCtx, f.ID, f.ChunkCount); err != nil {
		return err
	}
	if err := i.store.UpdateSyncState(ctx, f.ID, core.SyncState{Status: f.SyncStatus, ChunkCount: 0}); err != nil {
		return core.NewPersistenceError("reset chunk count of "+f.ID, err)
	}
	f.ChunkCount = 0
	return nil
}

// embedFile decides the next state of f. A zero Status means skip.
func (i *DocumentIngestor) embedFile(ctx context.Context, f *models.FileRecord) (core.SyncState, error) {
	data, err := i.download(ctx, f.ID)
	if err != nil {
		if ctx.Err() != nil {
			return core.SyncState{}, ctx.Err()
		}
		i.log.Warn("DocumentIngestor: download failed", "file", f.ID, "err", err)
		return core.SyncState{Status: models.StatusErrorDownload, ChunkCount: f.ChunkCount}, nil
	}

	text, err := i.extractor.ExtractText(ctx, f.FileName, data)
	if err != nil {
		if ctx.Err() != nil {
			return core.SyncState{}, ctx.Err()
		}
		status := extractionStatus(f.FileName, err)
		if status == "" {
			i.log.Warn("DocumentIngestor: unsupported file type, skipping", "file", f.ID, "name", f.FileName)
			return core.SyncState{}, nil
		}
		i.log.Warn("DocumentIngestor: extraction failed", "file", f.ID, "status", status, "err", err)
		return core.SyncState{Status: status, ChunkCount: f.ChunkCount}, nil
	}

	stamp := i.now()

	chunks, err := i.chunker.Chunk(ctx, text, i.cfg.Chunk)
	if err != nil {
		if ctx.Err() != nil {
			return core.SyncState{}, ctx.Err()
		}
		i.log.Warn("DocumentIngestor: chunking failed", "file", f.ID, "err", err)
		return core.SyncState{Status: models.StatusErrorChunkLength, ChunkCount: 0, LastEmbeddedAt: &stamp}, nil
	}
	if len(chunks) == 0 {
		return core.SyncState{Status: extractionStatus(f.FileName, nil), ChunkCount: f.ChunkCount}, nil
	}

	if idx := firstOversized(chunks, i.cfg.Chunk.MaxTokens); idx >= 0 {
		err := core.NewChunkLengthError(idx, chunks[idx].Tokens, i.cfg.Chunk.MaxTokens)
		i.log.Warn("DocumentIngestor: chunk over token limit", "file", f.ID, "err", err)
		return core.SyncState{Status: models.StatusErrorChunkLength, ChunkCount: len(chunks), LastEmbeddedAt: &stamp}, nil
	}

	embedded, err := i.embedAll(ctx, chunks)
	if err != nil {
		if ctx.Err() != nil {
			return core.SyncState{}, ctx.Err()
		}
		i.log.Warn("DocumentIngestor: embedding failed", "file", f.ID, "err", err)
		return core.SyncState{Status: models.StatusErrorEmbedding, ChunkCount: 0, LastEmbeddedAt: &stamp}, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, i.cfg.CallTimeout)
	err = i.vectors.UpsertFile(callCtx, f, embedded)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return core.SyncState{}, ctx.Err()
		}
		i.log.Warn("DocumentIngestor: vector upsert failed", "file", f.ID, "err", err)
		return core.SyncState{Status: models.StatusErrorEmbedding, ChunkCount: 0, LastEmbeddedAt: &stamp}, nil
	}

	return core.SyncState{Status: models.StatusEmbedded, ChunkCount: len(chunks), LastEmbeddedAt: &stamp}, nil
}

func (i *DocumentIngestor) download(ctx context.Context, fileID string) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, i.cfg.CallTimeout)
	defer cancel()

	data, err := i.fetcher.Download(callCtx, fileID)
	if err != nil {
		return nil, core.NewDownloadError(fileID, err)
	}
	return data, nil
}

// extractionStatus maps an extraction failure to error_pdf / error_word.
// It returns "" for formats the pipeline does not handle.
func extractionStatus(fileName string, err error) models.SyncStatus {
	format := core.FormatOf(fileName)
	var se *core.SyncError
	if errors.As(err, &se) && se.Format != "" {
		format = se.Format
	}
	switch format {
	case core.FormatPDF:
		return models.StatusErrorPDF
	case core.FormatDOCX:
		return models.StatusErrorWord
	}
	return ""
}

func isFatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || core.IsCode(err, core.ErrCodePersistence)
}
