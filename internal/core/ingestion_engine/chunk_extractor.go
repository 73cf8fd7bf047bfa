package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/markdave123-py/drivesync/internal/core"
)

// MinChunkWords is the window size below which oversized chunks are no longer split.
const MinChunkWords = 50

var ErrInvalidChunkParams = errors.New("invalid chunk params")

// ChunkParams controls the sliding word window.
//
// MaxWords:  words per window (e.g. 400).
// Overlap:   words shared by consecutive windows (e.g. 50). Must be in [0, MaxWords).
// MaxTokens: token ceiling of the embedding model (e.g. 8192).
type ChunkParams struct {
	MaxWords  int
	Overlap   int
	MaxTokens int
}

func (p ChunkParams) Validate() error {
	if p.MaxWords <= 0 {
		return fmt.Errorf("%w: maxWords %d must be positive", ErrInvalidChunkParams, p.MaxWords)
	}
	if p.Overlap < 0 || p.Overlap >= p.MaxWords {
		return fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidChunkParams, p.Overlap, p.MaxWords)
	}
	if p.MaxTokens <= 0 {
		return fmt.Errorf("%w: maxTokens %d must be positive", ErrInvalidChunkParams, p.MaxTokens)
	}
	return nil
}

// half returns the params used to re-split an oversized window.
func (p ChunkParams) half() ChunkParams {
	h := ChunkParams{MaxWords: p.MaxWords / 2, Overlap: p.Overlap / 2, MaxTokens: p.MaxTokens}
	if h.Overlap >= h.MaxWords {
		h.Overlap = h.MaxWords - 1
	}
	return h
}

// Chunk is one piece of document text with its token count.
type Chunk struct {
	Text   string
	Tokens int
}

// Chunker splits text into overlapping word windows that fit the token ceiling.
type Chunker struct {
	tok core.Tokenizer
}

func NewChunker(tok core.Tokenizer) *Chunker {
	return &Chunker{tok: tok}
}

// Chunk splits text on whitespace and walks it with a window of p.MaxWords advancing by
// p.MaxWords-p.Overlap. A window over p.MaxTokens is re-split with half the window and
// half the overlap while the window is larger than MinChunkWords; at the floor it is
// emitted as is and left for the caller to reject.
//
// Whitespace-only text yields no chunks. The result is deterministic for a given tokenizer.
func (c *Chunker) Chunk(ctx context.Context, text string, p ChunkParams) ([]Chunk, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}
	return c.chunkWords(ctx, words, p, splitDepth(p.MaxWords), nil)
}

func (c *Chunker) chunkWords(ctx context.Context, words []string, p ChunkParams, depthLeft int, out []Chunk) ([]Chunk, error) {
	stride := p.MaxWords - p.Overlap

	for start := 0; start < len(words); start += stride {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(start+p.MaxWords, len(words))
		window := words[start:end]
		text := strings.Join(window, " ")

		n, err := c.tok.CountTokens(text)
		if err != nil {
			return nil, fmt.Errorf("count tokens: %w", err)
		}

		if n > p.MaxTokens && p.MaxWords > MinChunkWords && depthLeft > 0 {
			out, err = c.chunkWords(ctx, window, p.half(), depthLeft-1, out)
			if err != nil {
				return nil, err
			}
		} else {
			out = append(out, Chunk{Text: text, Tokens: n})
		}

		// Stop at the window that reaches the last word; another window would only repeat overlap.
		if end == len(words) {
			break
		}
	}
	return out, nil
}

// splitDepth is the number of halvings that take maxWords to MinChunkWords or below.
func splitDepth(maxWords int) int {
	d := 0
	for w := maxWords; w > MinChunkWords; w /= 2 {
		d++
	}
	return d
}

// firstOversized returns the ordinal of the first chunk above maxTokens, or -1.
func firstOversized(chunks []Chunk, maxTokens int) int {
	for i, ch := range chunks {
		if ch.Tokens > maxTokens {
			return i
		}
	}
	return -1
}
