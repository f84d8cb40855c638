package ai

import (
	"context"
)

// MaxEmbedChars caps the text sent to the embedding oracle
const MaxEmbedChars = 8000

// Embedder is the embedding oracle. Failures are reported as errors wrapping
// ErrEmbeddingFailed and never replaced by a placeholder vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedderFunc adapts a function to the Embedder interface
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

func truncateForEmbedding(text string) string {
	count := 0
	for i := range text {
		if count == MaxEmbedChars {
			return text[:i]
		}
		count++
	}
	return text
}
