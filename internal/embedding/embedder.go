// Package embedding provides text embedding providers, caching and rate limiting.
package embedding

import "context"

// Task distinguishes document embeddings from query embeddings.
type Task string

const (
	TaskDocument Task = "RETRIEVAL_DOCUMENT"
	TaskQuery    Task = "RETRIEVAL_QUERY"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string, task Task) ([]float32, error)
	Dimensions() int
	Close() error
}

// DocumentFunc adapts e to a function that embeds documents.
func DocumentFunc(e Embedder) func(ctx context.Context, text string) ([]float32, error) {
	return func(ctx context.Context, text string) ([]float32, error) {
		return e.Embed(ctx, text, TaskDocument)
	}
}
