package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/kenkyu/internal/gemini"
)

// DefaultGeminiModel is the embedding model used by default.
const DefaultGeminiModel = "embedding-001"

// GeminiEmbedder calls the embedContent method.
type GeminiEmbedder struct {
	client     *gemini.Client
	model      string
	dimensions int
}

// NewGeminiEmbedder returns an embedder for model. dimensions is the expected vector
// length; responses of a different length are rejected when it is positive.
func NewGeminiEmbedder(client *gemini.Client, model string, dimensions int) *GeminiEmbedder {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiEmbedder{client: client, model: model, dimensions: dimensions}
}

type embedContentRequest struct {
	Model    string         `json:"model"`
	Content  gemini.Content `json:"content"`
	TaskType Task           `json:"taskType,omitempty"`
}

type embedContentResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// Embed returns the embedding of text for task.
func (g *GeminiEmbedder) Embed(ctx context.Context, text string, task Task) ([]float32, error) {
	req := embedContentRequest{
		Model:    gemini.ModelName(g.model),
		Content:  gemini.TextContent(text),
		TaskType: task,
	}
	var resp embedContentResponse
	if err := g.client.Call(ctx, g.model, "embedContent", req, &resp); err != nil {
		return nil, err
	}
	values := resp.Embedding.Values
	if len(values) == 0 {
		return nil, fmt.Errorf("gemini returned an empty embedding")
	}
	if g.dimensions > 0 && len(values) != g.dimensions {
		return nil, fmt.Errorf("gemini returned %d dimensions, expected %d", len(values), g.dimensions)
	}
	return values, nil
}

// Dimensions returns the configured vector length.
func (g *GeminiEmbedder) Dimensions() int {
	return g.dimensions
}

// Close is a no-op.
func (g *GeminiEmbedder) Close() error {
	return nil
}
