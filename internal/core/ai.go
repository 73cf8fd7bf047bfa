package core

import "context"

// EmbeddingProvider turns one chunk of text into a vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Tokenizer counts tokens for the embedding model it was built for.
type Tokenizer interface {
	CountTokens(text string) (int, error)
}
