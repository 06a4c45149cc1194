package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/hyperjump/kenkyu/internal/ingest"
	"github.com/hyperjump/kenkyu/internal/migrate"
	"github.com/hyperjump/kenkyu/internal/models"
)

func init() {
	color.NoColor = true
}

func sampleResponse() *models.SearchResponse {
	return &models.SearchResponse{
		Query: "graph neural networks",
		Results: []models.AggregatedResult{
			{AuthorID: "p1", Similarity: 0.91, Text: "Title: GNNs\nAbstract: ..."},
			{AuthorID: "p2", Similarity: 0.42, Text: "Title: Graphs"},
		},
		TotalFound: 2,
		QueryTime:  12,
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputJSON); err != nil {
		t.Fatalf("WriteSearchResults(json): %v", err)
	}
	var decoded models.SearchResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.TotalFound != 2 || decoded.Results[0].AuthorID != "p1" || decoded.QueryTime != 12 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteSearchResults_JSON_keys(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteSearchResults(&buf, sampleResponse(), OutputJSON)
	out := buf.String()
	for _, key := range []string{`"query"`, `"results"`, `"total_found"`, `"query_time_ms"`, `"author_id"`, `"similarity"`, `"text"`} {
		if !strings.Contains(out, key) {
			t.Errorf("JSON output missing %s", key)
		}
	}
}

func TestWriteSearchResults_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Found 2 authors") || !strings.Contains(out, "1. p1") || !strings.Contains(out, "0.9100") {
		t.Errorf("text output:\n%s", out)
	}
}

func TestWriteSearchResults_Compact(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputCompact); err != nil {
		t.Fatal(err)
	}
	want := "1\t0.9100\tp1\n2\t0.4200\tp2\n"
	if buf.String() != want {
		t.Errorf("compact = %q, want %q", buf.String(), want)
	}
}

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]SearchOutputFormat{"": OutputText, "JSON": OutputJSON, "compact": OutputCompact} {
		got, err := ParseOutputFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseOutputFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestWriteIngestReport(t *testing.T) {
	var buf bytes.Buffer
	WriteIngestReport(&buf, ingest.Report{Processed: 5, Created: 3, Linked: 1, Failed: 1})
	out := buf.String()
	if !strings.Contains(out, "created:   3") || !strings.Contains(out, "failed:    1") {
		t.Errorf("ingest report:\n%s", out)
	}
}

func TestWriteMigrationReport(t *testing.T) {
	var buf bytes.Buffer
	WriteMigrationReport(&buf, &migrate.Report{
		RunID:         "run-1",
		Source:        120,
		Inserted:      118,
		Batches:       3,
		FailedBatches: 1,
		Failed:        []migrate.FailedItem{{Index: 57, Text: "bad row", Err: "constraint"}},
		FinalCount:    118,
		Mismatch:      2,
		State:         migrate.StateDone,
	})
	out := buf.String()
	for _, want := range []string{"inserted:       118", "failed:         1", "#57 bad row: constraint", "mismatch:       2"} {
		if !strings.Contains(out, want) {
			t.Errorf("migration report missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	WriteMigrationReport(&buf, &migrate.Report{RunID: "run-2", Aborted: true, State: migrate.StateAborted})
	if !strings.Contains(buf.String(), "aborted") {
		t.Errorf("aborted report: %s", buf.String())
	}
}

func TestWriteStats(t *testing.T) {
	var buf bytes.Buffer
	WriteStats(&buf, "flat_file", 4, &models.StoreStats{Chunks: 4, UniqueAuthors: 3, AvgAuthors: 0.75, MultiAuthorChunks: []string{"shared abstract"}}, 2048)
	out := buf.String()
	if !strings.Contains(out, "unique authors:      3") || !strings.Contains(out, "2.0 KiB") ||
		!strings.Contains(out, "multi-author chunks: 1\n") {
		t.Errorf("stats:\n%s", out)
	}

	buf.Reset()
	WriteStats(&buf, "postgres_pgvector", 10, nil, -1)
	if strings.Contains(buf.String(), "disk usage") || strings.Contains(buf.String(), "unique authors") {
		t.Errorf("optional lines should be omitted:\n%s", buf.String())
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{0: "0 B", 1023: "1023 B", 1024: "1.0 KiB", 1536: "1.5 KiB", 1 << 20: "1.0 MiB"}
	for n, want := range tests {
		if got := FormatBytes(n); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello world", 5); got != "hello..." {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("hi", 5); got != "hi" {
		t.Errorf("Truncate short = %q", got)
	}
}
