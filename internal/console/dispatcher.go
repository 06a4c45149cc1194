// Package console implements the interactive operator console.
package console

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperjump/kenkyu/internal/ingest"
	"github.com/hyperjump/kenkyu/internal/models"
	"github.com/hyperjump/kenkyu/internal/search"
	"github.com/hyperjump/kenkyu/internal/store"
	"github.com/hyperjump/kenkyu/pkg/utils"
)

const defaultListLimit = 10

// ErrExit is returned by Execute when the operator asks to leave.
var ErrExit = errors.New("exit")

// Dispatcher parses console lines and runs them against the store.
type Dispatcher struct {
	pipeline *ingest.Pipeline
	store    *store.RecordStore
	service  *search.Service
}

// NewDispatcher creates a dispatcher. service may be nil to disable search.
func NewDispatcher(p *ingest.Pipeline, s *store.RecordStore, svc *search.Service) *Dispatcher {
	return &Dispatcher{pipeline: p, store: s, service: svc}
}

// Help is the text printed by the help command.
const Help = `Commands:
  load <path>           ingest an author-abstracts JSON file
  add <author> <text>   add one text for an author
  search <query>        rank authors for a query
  list [n]              show the first n chunks (default 10)
  stats                 show store statistics
  help                  show this help
  exit                  leave the console`

// Execute runs one console line and returns its output.
func (d *Dispatcher) Execute(ctx context.Context, line string) (string, error) {
	cmd, rest := splitCommand(line)
	switch cmd {
	case "":
		return "", nil
	case "help", "?":
		return Help, nil
	case "exit", "quit":
		return "", ErrExit
	case "load":
		return d.load(ctx, rest)
	case "add":
		return d.add(ctx, rest)
	case "search":
		return d.search(ctx, rest)
	case "list":
		return d.list(rest)
	case "stats":
		return d.stats(), nil
	default:
		return "", fmt.Errorf("unknown command %q (try help)", cmd)
	}
}

func splitCommand(line string) (string, string) {
	line = strings.TrimSpace(line)
	cmd, rest, _ := strings.Cut(line, " ")
	return strings.ToLower(cmd), strings.TrimSpace(rest)
}

func (d *Dispatcher) load(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", errors.New("usage: load <path>")
	}
	r, err := d.pipeline.RunFile(ctx, path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("processed %d: %d created, %d linked, %d unchanged, %d failed",
		r.Processed, r.Created, r.Linked, r.Unchanged, r.Failed), nil
}

func (d *Dispatcher) add(ctx context.Context, args string) (string, error) {
	author, text, _ := strings.Cut(args, " ")
	text = strings.TrimSpace(text)
	if author == "" || text == "" {
		return "", errors.New("usage: add <author> <text>")
	}
	res, err := d.pipeline.AddText(ctx, text, author)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s chunk %d for %s", res.Outcome, res.Index, author), nil
}

func (d *Dispatcher) search(ctx context.Context, query string) (string, error) {
	if d.service == nil {
		return "", errors.New("search is not available")
	}
	resp, err := d.service.Search(ctx, query)
	if err != nil {
		return "", err
	}
	if len(resp.Results) == 0 {
		return "no matching authors", nil
	}
	var b strings.Builder
	for i, r := range resp.Results {
		fmt.Fprintf(&b, "%2d. %-12s %.4f  %s\n", i+1, r.AuthorID, r.Similarity, firstLine(r.Text))
	}
	fmt.Fprintf(&b, "%d authors in %dms", resp.TotalFound, resp.QueryTime)
	return b.String(), nil
}

func (d *Dispatcher) list(arg string) (string, error) {
	limit := defaultListLimit
	if arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return "", fmt.Errorf("invalid count %q", arg)
		}
		limit = n
	}
	var b strings.Builder
	i := 0
	d.store.Each(func(r *models.ChunkRecord) {
		if i >= limit {
			return
		}
		fmt.Fprintf(&b, "%3d. [%s] %s\n", i, strings.Join(r.AuthorIDs, ","), utils.Truncate(firstLine(r.Text), 80))
		i++
	})
	fmt.Fprintf(&b, "showing %d of %d chunks", i, d.store.Len())
	return b.String(), nil
}

func (d *Dispatcher) stats() string {
	s := d.store.Stats()
	var b strings.Builder
	fmt.Fprintf(&b, "chunks: %d\nunique authors: %d\navg authors per chunk: %.2f\nmulti-author chunks: %d",
		s.Chunks, s.UniqueAuthors, s.AvgAuthors, len(s.MultiAuthorChunks))
	for _, text := range s.MultiAuthorChunks {
		fmt.Fprintf(&b, "\n  - %s", utils.Truncate(firstLine(text), 80))
	}
	return b.String()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
