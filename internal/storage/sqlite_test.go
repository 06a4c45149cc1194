package storage

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/kenkyu/internal/models"
)

func newTestTable(t *testing.T) *SQLiteTable {
	t.Helper()
	table, err := NewSQLiteTable(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = table.Close() })
	return table
}

func TestSQLiteTable_InsertAndCount(t *testing.T) {
	table := newTestTable(t)
	ctx := context.Background()

	if err := table.Insert(ctx, models.ChunkRecord{Text: "A", Vector: []float32{1, 0}, AuthorIDs: []string{"p1"}}); err != nil {
		t.Fatal(err)
	}
	batch := []models.ChunkRecord{
		{Text: "B", Vector: []float32{0, 1}, AuthorIDs: []string{"p2"}},
		{Text: "C", Vector: []float32{1, 1}, AuthorIDs: []string{"p1", "p3"}},
	}
	if err := table.InsertBatch(ctx, batch); err != nil {
		t.Fatal(err)
	}
	n, err := table.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}

	all, err := table.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[2].Text != "C" || len(all[2].AuthorIDs) != 2 || all[2].Vector[1] != 1 {
		t.Errorf("All = %+v", all)
	}
}

func TestSQLiteTable_Match(t *testing.T) {
	table := newTestTable(t)
	ctx := context.Background()
	err := table.InsertBatch(ctx, []models.ChunkRecord{
		{Text: "A", Vector: []float32{1, 0}, AuthorIDs: []string{"p1"}},
		{Text: "B", Vector: []float32{0, 1}, AuthorIDs: []string{"p2"}},
		{Text: "C", Vector: []float32{1, 1}, AuthorIDs: []string{"p3"}},
		{Text: "Z", Vector: []float32{0, 0}, AuthorIDs: []string{"p4"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	matches, err := table.Match(ctx, []float32{1, 0}, 0.1, 200)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches above threshold, got %d: %+v", len(matches), matches)
	}
	if matches[0].Text != "A" || math.Abs(matches[0].Similarity-1) > 1e-6 {
		t.Errorf("first match = %+v", matches[0])
	}
	if matches[1].Text != "C" || math.Abs(matches[1].Similarity-math.Sqrt2/2) > 1e-6 {
		t.Errorf("second match = %+v", matches[1])
	}
	if matches[0].ID == 0 {
		t.Error("expected row id to be set")
	}

	limited, err := table.Match(ctx, []float32{1, 0}, -2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("limit 1 returned %d rows", len(limited))
	}

	unbounded, err := table.Match(ctx, []float32{1, 0}, -2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(unbounded) != 4 {
		t.Errorf("count 0 should return all rows, got %d", len(unbounded))
	}
}

func TestSQLiteTable_TextsByAuthorAndReplaceAll(t *testing.T) {
	table := newTestTable(t)
	ctx := context.Background()
	err := table.InsertBatch(ctx, []models.ChunkRecord{
		{Text: "A", Vector: []float32{1, 0}, AuthorIDs: []string{"p1"}},
		{Text: "B", Vector: []float32{0, 1}, AuthorIDs: []string{"p2", "p1"}},
		{Text: "C", Vector: []float32{1, 1}, AuthorIDs: []string{"p10"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	texts, err := table.TextsByAuthor(ctx, "p1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(texts) != 2 || texts[0] != "A" || texts[1] != "B" {
		t.Errorf("TextsByAuthor = %v", texts)
	}

	if err := table.ReplaceAll(ctx, []models.ChunkRecord{{Text: "only", Vector: []float32{1, 0}, AuthorIDs: []string{"x"}}}); err != nil {
		t.Fatal(err)
	}
	n, _ := table.Count(ctx)
	if n != 1 {
		t.Errorf("after ReplaceAll Count = %d, want 1", n)
	}
}

func TestSnapshot_PersistsThroughTable(t *testing.T) {
	table := newTestTable(t)
	snap := NewSnapshot(table, 0)
	recs := []models.ChunkRecord{{Text: "A", Vector: []float32{1, 0}, AuthorIDs: []string{"p1"}}}
	if err := snap.Save(recs); err != nil {
		t.Fatal(err)
	}
	loaded, err := snap.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 || loaded[0].Text != "A" || loaded[0].AuthorIDs[0] != "p1" {
		t.Errorf("Load = %+v", loaded)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	v := []float32{0.25, -1.5, 3}
	got, err := bytesToFloat32Slice(float32SliceToBytes(v))
	if err != nil {
		t.Fatal(err)
	}
	for i := range v {
		if got[i] != v[i] {
			t.Fatalf("decoded %v, want %v", got, v)
		}
	}
	if _, err := bytesToFloat32Slice([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
	if s, _ := cosineBlobs(float32SliceToBytes([]float32{1, 0}), float32SliceToBytes([]float32{0, 0})); s != 0 {
		t.Errorf("zero vector similarity = %v", s)
	}
}

func TestSQLiteTable_MatchDimensionMismatch(t *testing.T) {
	table := newTestTable(t)
	ctx := context.Background()

	if _, err := table.Match(ctx, []float32{1, 0, 0}, 0.1, 10); err != nil {
		t.Fatalf("empty table should accept any query: %v", err)
	}
	if err := table.Insert(ctx, models.ChunkRecord{Text: "A", Vector: []float32{1, 0}, AuthorIDs: []string{"p1"}}); err != nil {
		t.Fatal(err)
	}
	_, err := table.Match(ctx, []float32{1, 0, 0}, 0.1, 10)
	if !errors.Is(err, models.ErrDimensionMismatch) {
		t.Fatalf("Match error = %v, want ErrDimensionMismatch", err)
	}
	if _, err := cosineBlobs(float32SliceToBytes([]float32{1, 0}), float32SliceToBytes([]float32{1, 0, 0})); !errors.Is(err, models.ErrDimensionMismatch) {
		t.Errorf("cosineBlobs error = %v", err)
	}
}

func TestPostgresSchema(t *testing.T) {
	ddl := PostgresSchema(768)
	for _, want := range []string{"vector(768)", "match_embeddings", "ivfflat", "author_ids TEXT[]"} {
		if !strings.Contains(ddl, want) {
			t.Errorf("schema missing %q", want)
		}
	}
}
