// Package cli provides output helpers for the kenkyu command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/hyperjump/kenkyu/internal/ingest"
	"github.com/hyperjump/kenkyu/internal/migrate"
	"github.com/hyperjump/kenkyu/internal/models"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputCompact is one line per author.
	OutputCompact SearchOutputFormat = "compact"
	// OutputJSON is the same body the HTTP API returns.
	OutputJSON SearchOutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (SearchOutputFormat, error) {
	switch f := SearchOutputFormat(strings.ToLower(s)); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	case "":
		return OutputText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text, compact, or json)", s)
	}
}

var (
	heading = color.New(color.FgCyan, color.Bold)
	good    = color.New(color.FgGreen)
	warn    = color.New(color.FgYellow)
	bad     = color.New(color.FgRed, color.Bold)
	faint   = color.New(color.Faint)
)

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for i, r := range response.Results {
			fmt.Fprintf(w, "%d\t%.4f\t%s\n", i+1, r.Similarity, r.AuthorID)
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	heading.Fprintf(w, "\nFound %d authors for %q in %dms\n\n", response.TotalFound, response.Query, response.QueryTime)
	for i, r := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%d. %s  ", i+1, r.AuthorID)
		good.Fprintf(w, "%.4f\n", r.Similarity)
		faint.Fprintf(w, "%s\n\n", r.Text)
	}
}

// WriteIngestReport prints an ingestion summary.
func WriteIngestReport(w io.Writer, r ingest.Report) {
	heading.Fprintln(w, "Ingestion complete")
	fmt.Fprintf(w, "  processed: %d\n", r.Processed)
	good.Fprintf(w, "  created:   %d\n", r.Created)
	fmt.Fprintf(w, "  linked:    %d\n", r.Linked)
	fmt.Fprintf(w, "  unchanged: %d\n", r.Unchanged)
	if r.Failed > 0 {
		warn.Fprintf(w, "  failed:    %d\n", r.Failed)
	} else {
		fmt.Fprintf(w, "  failed:    %d\n", r.Failed)
	}
}

// WriteMigrationReport prints a migration summary, including per-item failures.
func WriteMigrationReport(w io.Writer, r *migrate.Report) {
	if r.Aborted {
		warn.Fprintf(w, "Migration %s aborted in state %s\n", r.RunID, r.State)
		return
	}
	heading.Fprintf(w, "Migration %s\n", r.RunID)
	fmt.Fprintf(w, "  source records: %d\n", r.Source)
	fmt.Fprintf(w, "  batches:        %d (%d fell back to single inserts)\n", r.Batches, r.FailedBatches)
	good.Fprintf(w, "  inserted:       %d\n", r.Inserted)
	if len(r.Failed) > 0 {
		bad.Fprintf(w, "  failed:         %d\n", len(r.Failed))
		for _, f := range r.Failed {
			fmt.Fprintf(w, "    #%d %s: %s\n", f.Index, Truncate(f.Text, 60), f.Err)
		}
	}
	if r.VerifyErr != "" {
		warn.Fprintf(w, "  verify:         could not count target: %v\n", r.VerifyErr)
		return
	}
	fmt.Fprintf(w, "  target count:   %d -> %d\n", r.InitialCount, r.FinalCount)
	if r.Mismatch != 0 {
		warn.Fprintf(w, "  mismatch:       %d\n", r.Mismatch)
	} else {
		good.Fprintln(w, "  counts verified")
	}
}

// WriteStats prints store statistics. diskBytes < 0 omits the size line.
func WriteStats(w io.Writer, databaseType string, entries int64, stats *models.StoreStats, diskBytes int64) {
	heading.Fprintln(w, "Store statistics")
	fmt.Fprintf(w, "  backend:             %s\n", databaseType)
	fmt.Fprintf(w, "  chunks:              %d\n", entries)
	if stats != nil {
		fmt.Fprintf(w, "  unique authors:      %d\n", stats.UniqueAuthors)
		fmt.Fprintf(w, "  avg authors/chunk:   %.2f\n", stats.AvgAuthors)
		fmt.Fprintf(w, "  multi-author chunks: %d\n", len(stats.MultiAuthorChunks))
	}
	if diskBytes >= 0 {
		fmt.Fprintf(w, "  disk usage:          %s\n", FormatBytes(diskBytes))
	}
}

// FormatBytes renders n using binary units.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Truncate shortens s to maxLen bytes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
