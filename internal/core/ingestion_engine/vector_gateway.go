package ingestion_engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/markdave123-py/drivesync/internal/core"
	"github.com/markdave123-py/drivesync/internal/models"
)

// EmbeddedChunk is a chunk with its position in the file and its vector.
type EmbeddedChunk struct {
	Chunk
	Ordinal int
	Vector  []float32
}

// VectorGateway maps a file's chunk set onto vector index ids "{fileId}_chunk_{ordinal}".
type VectorGateway struct {
	index core.VectorIndex
}

func NewVectorGateway(index core.VectorIndex) *VectorGateway {
	return &VectorGateway{index: index}
}

// ChunkID is the index key of one chunk.
func ChunkID(fileID string, ordinal int) string {
	return fileID + "_chunk_" + strconv.Itoa(ordinal)
}

// ChunkIDs returns the keys for ordinals [0, n).
func ChunkIDs(fileID string, n int) []string {
	if n <= 0 {
		return nil
	}
	ids := make([]string, n)
	for i := range ids {
		ids[i] = ChunkID(fileID, i)
	}
	return ids
}

// UpsertFile writes all chunks of f in one index call.
func (g *VectorGateway) UpsertFile(ctx context.Context, f *models.FileRecord, chunks []EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	records := make([]models.VectorRecord, len(chunks))
	for k, ch := range chunks {
		records[k] = models.VectorRecord{
			ID:      ChunkID(f.ID, ch.Ordinal),
			FileID:  f.ID,
			Ordinal: ch.Ordinal,
			Values:  ch.Vector,
			Tokens:  ch.Tokens,
			Metadata: map[string]string{
				"filename": f.FileName,
				"filepath": f.FilePath,
				"fileurl":  f.FileURL,
				"chunk":    ch.Text,
			},
		}
	}
	if err := g.index.Upsert(ctx, records); err != nil {
		return fmt.Errorf("upsert %d vectors for %s: %w", len(records), f.ID, err)
	}
	return nil
}

// DeleteFile removes the chunkCount vectors of fileID. Zero is a no-op.
func (g *VectorGateway) DeleteFile(ctx context.Context, fileID string, chunkCount int) error {
	ids := ChunkIDs(fileID, chunkCount)
	if len(ids) == 0 {
		return nil
	}
	if err := g.index.DeleteMany(ctx, ids); err != nil {
		return fmt.Errorf("delete %d vectors for %s: %w", len(ids), fileID, err)
	}
	return nil
}
