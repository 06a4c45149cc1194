package embedding

import (
	"context"
	"hash/fnv"
	"math/rand"

	"github.com/hyperjump/kenkyu/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests and offline runs. The vector
// is derived from a hash of task and text, so the same input always embeds the same way.
// Documents and queries with identical text embed identically unless QueryShift is set.
type MockEmbedder struct {
	dimensions int
	// QueryShift, when true, mixes the task into the hash for query embeddings.
	QueryShift bool
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 768
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic unit vector seeded by the input hash.
func (e *MockEmbedder) Embed(_ context.Context, text string, task Task) ([]float32, error) {
	key := text
	if e.QueryShift && task == TaskQuery {
		key = string(task) + "\x00" + text
	}
	rng := rand.New(rand.NewSource(int64(hashString(key))))
	emb := make([]float32, e.dimensions)
	for i := range emb {
		emb[i] = float32(rng.NormFloat64())
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
