package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kenkyu/internal/config"
	"github.com/hyperjump/kenkyu/internal/embedding"
	"github.com/hyperjump/kenkyu/internal/explain"
	"github.com/hyperjump/kenkyu/internal/models"
	"github.com/hyperjump/kenkyu/internal/search"
	"github.com/hyperjump/kenkyu/internal/store"
	"github.com/hyperjump/kenkyu/internal/vector"
)

type staticPersistence []models.ChunkRecord

func (s staticPersistence) Load() ([]models.ChunkRecord, error) { return s, nil }
func (s staticPersistence) Save([]models.ChunkRecord) error      { return nil }

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string, embedding.Task) ([]float32, error) {
	return nil, errors.New("provider down")
}
func (failingEmbedder) Dimensions() int { return 4 }
func (failingEmbedder) Close() error    { return nil }

type brokenIndex struct{ vector.Index }

func (brokenIndex) Search(context.Context, []float32, vector.SearchOptions) ([]models.QueryMatch, error) {
	return nil, models.ErrBackendUnavailable
}
func (brokenIndex) Count(context.Context) (int64, error) { return 0, models.ErrBackendUnavailable }
func (brokenIndex) Type() string                         { return "postgres" }

func searchConfig() *config.SearchConfig {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return &cfg.Search
}

// newTestServer stores the mock embedding of each text so a query equal to a stored
// text scores exactly 1.
func newTestServer(t *testing.T, emb embedding.Embedder, texts map[string][]string) (*Server, *store.RecordStore) {
	t.Helper()
	mock := embedding.NewMockEmbedder(4)
	var records []models.ChunkRecord
	for text, authors := range texts {
		vec, _ := mock.Embed(context.Background(), text, embedding.TaskDocument)
		records = append(records, models.ChunkRecord{Text: text, Vector: vec, AuthorIDs: authors})
	}
	s, err := store.Open(staticPersistence(records))
	if err != nil {
		t.Fatal(err)
	}
	idx, err := vector.NewScanIndex(s)
	if err != nil {
		t.Fatal(err)
	}
	svc := search.NewService(emb, idx, searchConfig(),
		search.WithExplainer(explain.Static("They study this."), 5),
		search.WithDatabaseType("flat_file"))
	return NewServer(svc, &config.ServerConfig{Port: 8080}, zap.NewNop(), WithStats(s)), s
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
}

func TestHandleSearch(t *testing.T) {
	srv, _ := newTestServer(t, embedding.NewMockEmbedder(4), map[string][]string{
		"quantum computing": {"p1", "p2"},
	})
	w := do(t, srv.Handler(), http.MethodPost, "/search", `{"query": "quantum computing"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp models.SearchResponse
	decode(t, w, &resp)
	if resp.Query != "quantum computing" || resp.TotalFound != 2 || len(resp.Results) != 2 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Results[0].Similarity < 0.999 {
		t.Errorf("identical text should score ~1, got %v", resp.Results[0].Similarity)
	}
}

func TestHandleSearch_Errors(t *testing.T) {
	srv, _ := newTestServer(t, embedding.NewMockEmbedder(4), nil)
	h := srv.Handler()

	cases := []struct {
		name, body string
		status     int
		msg        string
	}{
		{"empty query", `{"query": ""}`, http.StatusBadRequest, "Query is required"},
		{"missing query", `{}`, http.StatusBadRequest, "Query is required"},
		{"bad json", `{`, http.StatusBadRequest, "invalid request body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/search", tc.body)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d", w.Code, tc.status)
			}
			var body map[string]string
			decode(t, w, &body)
			if body["error"] != tc.msg {
				t.Errorf("error = %q, want %q", body["error"], tc.msg)
			}
		})
	}

	failing, _ := newTestServer(t, failingEmbedder{}, map[string][]string{"a": {"p1"}})
	w := do(t, failing.Handler(), http.MethodPost, "/search", `{"query": "x"}`)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("provider failure status = %d", w.Code)
	}

	svc := search.NewService(embedding.NewMockEmbedder(4), brokenIndex{}, searchConfig())
	w = do(t, NewServer(svc, &config.ServerConfig{}, nil).Handler(), http.MethodPost, "/search", `{"query": "x"}`)
	var body map[string]string
	decode(t, w, &body)
	if w.Code != http.StatusInternalServerError || body["error"] != "Database search failed" {
		t.Errorf("backend failure: %d %v", w.Code, body)
	}
}

func TestHandleExplain(t *testing.T) {
	srv, _ := newTestServer(t, embedding.NewMockEmbedder(4), map[string][]string{"paper": {"p1"}})
	h := srv.Handler()

	w := do(t, h, http.MethodPost, "/explain_match", `{"query": "q", "author_id": "p1"}`)
	var resp models.ExplainResponse
	decode(t, w, &resp)
	if w.Code != http.StatusOK || resp.Explanation != "They study this." {
		t.Errorf("explain: %d %+v", w.Code, resp)
	}

	w = do(t, h, http.MethodPost, "/explain_match", `{"query": "q", "author_id": "ghost"}`)
	decode(t, w, &resp)
	if w.Code != http.StatusOK || resp.Explanation != explain.NoTextsFallback {
		t.Errorf("fallback: %d %+v", w.Code, resp)
	}

	w = do(t, h, http.MethodPost, "/explain_match", `{"query": "q"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing author status = %d", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t, embedding.NewMockEmbedder(4), map[string][]string{"a": {"p1"}, "b": {"p2"}})
	w := do(t, srv.Handler(), http.MethodGet, "/health", "")
	var h models.HealthResponse
	decode(t, w, &h)
	if w.Code != http.StatusOK || h.Status != "healthy" || h.DatabaseEntries != 2 || h.DatabaseType != "flat_file" {
		t.Errorf("health: %d %+v", w.Code, h)
	}

	svc := search.NewService(embedding.NewMockEmbedder(4), brokenIndex{}, searchConfig())
	w = do(t, NewServer(svc, &config.ServerConfig{}, nil).Handler(), http.MethodGet, "/health", "")
	decode(t, w, &h)
	if w.Code != http.StatusInternalServerError || h.Status != "unhealthy" || h.DatabaseType != "postgres" {
		t.Errorf("unhealthy: %d %+v", w.Code, h)
	}
}

func TestHandleStats(t *testing.T) {
	dir := t.TempDir()
	snap := filepath.Join(dir, "vectorbig.json")
	if err := os.WriteFile(snap, []byte("[]"), 0644); err != nil {
		t.Fatal(err)
	}
	srv, s := newTestServer(t, embedding.NewMockEmbedder(4), map[string][]string{"a": {"p1", "p2"}})
	srv.diskPaths = []string{snap}
	w := do(t, srv.Handler(), http.MethodGet, "/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Entries int64             `json:"database_entries"`
		Store   models.StoreStats `json:"store"`
		Disk    int64             `json:"disk_usage_bytes"`
	}
	decode(t, w, &resp)
	if resp.Entries != 1 || resp.Store.UniqueAuthors != s.Stats().UniqueAuthors || resp.Disk != 2 {
		t.Errorf("stats: %+v", resp)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, embedding.NewMockEmbedder(4), nil)
	r := httptest.NewRequest(http.MethodOptions, "/search", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
