package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kenkyu/internal/gemini"
)

func TestGeminiEmbedder_Embed(t *testing.T) {
	var got embedContentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/embedding-001:embedContent", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"embedding": {"values": [0.1, 0.2, 0.3]}}`))
	}))
	defer srv.Close()

	e := NewGeminiEmbedder(gemini.NewClient(gemini.Config{BaseURL: srv.URL, APIKey: "k"}), "", 3)
	vec, err := e.Embed(context.Background(), "Title: T\nAbstract: A", TaskQuery)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "models/embedding-001", got.Model)
	assert.Equal(t, TaskQuery, got.TaskType)
	require.Len(t, got.Content.Parts, 1)
	assert.Equal(t, "Title: T\nAbstract: A", got.Content.Parts[0].Text)
}

func fixedServer(t *testing.T, body string) *gemini.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return gemini.NewClient(gemini.Config{BaseURL: srv.URL, APIKey: "k"})
}

func TestGeminiEmbedder_Errors(t *testing.T) {
	short := fixedServer(t, `{"embedding": {"values": [0.1, 0.2]}}`)
	_, err := NewGeminiEmbedder(short, "embedding-001", 3).Embed(context.Background(), "x", TaskDocument)
	assert.ErrorContains(t, err, "expected 3")

	empty := fixedServer(t, `{"embedding": {}}`)
	_, err = NewGeminiEmbedder(empty, "embedding-001", 0).Embed(context.Background(), "x", TaskDocument)
	assert.ErrorContains(t, err, "empty embedding")
}

func TestMockEmbedder(t *testing.T) {
	e := NewMockEmbedder(8)
	ctx := context.Background()
	a1, _ := e.Embed(ctx, "alpha", TaskDocument)
	a2, _ := e.Embed(ctx, "alpha", TaskQuery)
	b, _ := e.Embed(ctx, "beta", TaskDocument)
	assert.Len(t, a1, 8)
	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b)

	e.QueryShift = true
	q, _ := e.Embed(ctx, "alpha", TaskQuery)
	assert.NotEqual(t, a1, q)
	assert.Equal(t, 768, NewMockEmbedder(0).Dimensions())
}

func TestRateLimitedEmbedder(t *testing.T) {
	inner := &countingEmbedder{}
	r := NewRateLimitedEmbedder(inner, 1000, 5)
	for i := 0; i < 5; i++ {
		_, err := r.Embed(context.Background(), "x", TaskDocument)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, inner.calls)

	slow := NewRateLimitedEmbedder(inner, 0.001, 1)
	_, err := slow.Embed(context.Background(), "x", TaskDocument)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = slow.Embed(ctx, "x", TaskDocument)
	assert.Error(t, err)
}

func TestNewEmbedder(t *testing.T) {
	e, err := NewEmbedder(Options{Provider: ProviderMock, Dimensions: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, e.Dimensions())

	_, err = NewEmbedder(Options{Provider: ProviderGemini})
	assert.Error(t, err, "gemini without key")

	e, err = NewEmbedder(Options{Provider: ProviderGemini, APIKey: "k", Dimensions: 768, RequestsPerSecond: 2})
	require.NoError(t, err)
	_, limited := e.(*RateLimitedEmbedder)
	assert.True(t, limited)

	_, err = NewEmbedder(Options{Provider: "onnx"})
	assert.Error(t, err)
}
