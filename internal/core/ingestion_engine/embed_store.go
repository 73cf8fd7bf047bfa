package ingestion_engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/drivesync/internal/core"
)

// embedAll embeds every chunk of one file. Vectors are placed by ordinal, so the
// result order matches chunks regardless of EmbedConcurrency. The first failure
// cancels the remaining calls and nothing is returned.
func (i *DocumentIngestor) embedAll(ctx context.Context, chunks []Chunk) ([]EmbeddedChunk, error) {
	out := make([]EmbeddedChunk, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(i.cfg.EmbedConcurrency, 1))

	for idx := range chunks {
		idx := idx
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, i.cfg.CallTimeout)
			defer cancel()

			vec, err := i.embedder.Embed(callCtx, chunks[idx].Text)
			if err != nil {
				return core.NewEmbeddingError(fmt.Sprintf("chunk %d", idx), err)
			}
			if len(vec) == 0 {
				return core.NewEmbeddingError(fmt.Sprintf("chunk %d: empty vector", idx), nil)
			}
			out[idx] = EmbeddedChunk{Chunk: chunks[idx], Ordinal: idx, Vector: vec}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
