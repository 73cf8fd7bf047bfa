package ingestion_engine

import (
	"log/slog"
	"time"

	"github.com/markdave123-py/drivesync/internal/core"
	"github.com/markdave123-py/drivesync/internal/models"
)

// IngestConfig tunes the per-file pipeline.
//
// Chunk:            window, overlap and token ceiling for the chunker.
// EmbedConcurrency: embedding calls in flight per file (1 = sequential).
// CallTimeout:      deadline applied to each download, embed, upsert and delete.
type IngestConfig struct {
	Chunk            ChunkParams
	EmbedConcurrency int
	CallTimeout      time.Duration
}

// DefaultIngestConfig returns 400 words / 50 overlap / 8192 tokens, sequential embedding.
func DefaultIngestConfig() *IngestConfig {
	return &IngestConfig{
		Chunk:            ChunkParams{MaxWords: 400, Overlap: 50, MaxTokens: 8192},
		EmbedConcurrency: 1,
		CallTimeout:      60 * time.Second,
	}
}

// ProgressFunc is called once per processed item; n counts from 1.
type ProgressFunc func(n int, item models.DriveItem)

// DocumentIngestor drives files through download, extract, chunk, embed and index:
//
// store:     relational sync state.
// fetcher:   drive content download.
// extractor: PDF/DOCX text extraction.
// chunker:   adaptive splitter bound to the model tokenizer.
// embedder:  embedding provider (OpenAI/Gemini).
// vectors:   chunk-id aware wrapper over the vector index.
type DocumentIngestor struct {
	store     core.SyncStore
	fetcher   core.ByteFetcher
	extractor core.DocumentExtractor
	chunker   *Chunker
	embedder  core.EmbeddingProvider
	vectors   *VectorGateway
	cfg       *IngestConfig
	log       *slog.Logger
	now       func() time.Time
}

// Option customises a DocumentIngestor.
type Option func(*DocumentIngestor)

func WithLogger(l *slog.Logger) Option {
	return func(i *DocumentIngestor) { i.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(i *DocumentIngestor) { i.now = now }
}

// DocconvExtractor implements core.DocumentExtractor using sajari/docconv, with pdfcpu
// checking PDF structure first.
type DocconvExtractor struct {
	validatePDF bool
}
