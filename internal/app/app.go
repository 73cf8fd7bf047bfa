package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/markdave123-py/drivesync/internal/config"
	"github.com/markdave123-py/drivesync/internal/core"
	db "github.com/markdave123-py/drivesync/internal/core/database"
	"github.com/markdave123-py/drivesync/internal/core/drive"
	"github.com/markdave123-py/drivesync/internal/core/ingestion_engine"
	"github.com/markdave123-py/drivesync/internal/core/llm"
	"github.com/markdave123-py/drivesync/internal/core/logging"
	objectclient "github.com/markdave123-py/drivesync/internal/core/object-client"
	"github.com/markdave123-py/drivesync/internal/core/tokenizer"
	"github.com/markdave123-py/drivesync/internal/services"
)

// SyncApp holds everything one sync batch needs.
type SyncApp struct {
	DBClient *db.DatabaseClient
	Vectors  *db.PgVectorIndex
	Delta    *ingestion_engine.DeltaSyncer
	Runner   ingestion_engine.Ingestor

	closers []func() error
}

func NewSyncApp(ctx context.Context, cfg *config.Config) (_ *SyncApp, err error) {
	if err := cfg.ValidateSync(); err != nil {
		return nil, err
	}

	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	a := &SyncApp{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.DBClient, err = db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.DBClient.Close)
	logging.Logger().Info("Database initialized and ready.")

	a.Vectors, err = db.NewPgVectorIndex(appCtx, cfg.VectorDatabaseURL, cfg.AgentID, cfg.EmbedDim)
	if err != nil {
		return nil, fmt.Errorf("vector index: %w", err)
	}
	a.closers = append(a.closers, a.Vectors.Close)
	logging.Logger().Info("Vector index initialized and ready.", "dim", cfg.EmbedDim)

	graph, err := drive.NewGraphClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("graph client: %w", err)
	}

	cursors, err := newCursorStore(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("cursor store: %w", err)
	}

	embedder, err := a.newEmbedder(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}

	tok, err := tokenizer.New(cfg.TokenizerModel)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: %w", err)
	}

	ingCfg := &ingestion_engine.IngestConfig{
		Chunk: ingestion_engine.ChunkParams{
			MaxWords:  cfg.ChunkMaxWords,
			Overlap:   cfg.ChunkOverlap,
			MaxTokens: cfg.ChunkMaxTokens,
		},
		EmbedConcurrency: cfg.EmbedConcurrency,
		CallTimeout:      cfg.CallTimeout,
	}
	docIngestor := ingestion_engine.NewDocumentIngestor(a.DBClient, graph, ingestion_engine.NewDocconvExtractor(true),
		tok, embedder, a.Vectors, ingCfg)

	a.Delta = ingestion_engine.NewDeltaSyncer(graph, cursors, a.DBClient, cfg.CallTimeout)
	a.Runner = ingestion_engine.NewSyncRunner(a.Delta, docIngestor, a.DBClient, cfg.AgentID)
	return a, nil
}

func (a *SyncApp) newEmbedder(ctx context.Context, cfg *config.Config) (core.EmbeddingProvider, error) {
	switch cfg.EmbedProvider {
	case "gemini":
		g, err := llm.NewGeminiEmbedder(ctx, cfg.AIAPIKey, cfg.EmbedModel)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, g.Close)
		return g, nil
	default:
		return llm.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbedModel, cfg.EmbedDim, nil), nil
	}
}

func newCursorStore(ctx context.Context, cfg *config.Config) (core.CursorStore, error) {
	if cfg.CursorStore != "s3" {
		return drive.NewFileCursorStore(cfg.CursorPath), nil
	}
	s3, err := objectclient.NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return objectclient.NewS3CursorStore(s3, cfg.BucketName, cfg.CursorKey)
}

// Close releases clients in reverse order of creation.
func (a *SyncApp) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// APIApp serves the status API over the sync store.
type APIApp struct {
	DBClient *db.DatabaseClient
	Server   *Server
}

func NewAPIApp(ctx context.Context, cfg *config.Config) (*APIApp, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET not set")
	}

	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	logging.Logger().Info("Database initialized and ready.")

	server := NewServer(cfg, services.NewFileService(dbClient))
	return &APIApp{DBClient: dbClient, Server: server}, nil
}

func (a *APIApp) Close() {
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
