package console

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/kenkyu/internal/config"
	"github.com/hyperjump/kenkyu/internal/embedding"
	"github.com/hyperjump/kenkyu/internal/ingest"
	"github.com/hyperjump/kenkyu/internal/search"
	"github.com/hyperjump/kenkyu/internal/store"
	"github.com/hyperjump/kenkyu/internal/vector"
)

const sampleInput = `{
  "author_abstracts": {
    "p1": [{"title": "Quantum computing", "abstract": "Qubits.", "year": 2020, "authors": "A"}],
    "p2": [{"title": "Quantum computing", "abstract": "Qubits.", "year": 2020, "authors": "A"},
           {"title": "Protein folding", "abstract": "Structures.", "year": 2021, "authors": "B"}]
  }
}`

func newDispatcher(t *testing.T) (*Dispatcher, *store.RecordStore) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(store.NewFileSnapshot(filepath.Join(dir, "vectors.json")))
	require.NoError(t, err)
	emb := embedding.NewMockEmbedder(8)
	idx, err := vector.NewScanIndex(s)
	require.NoError(t, err)
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	svc := search.NewService(emb, idx, &cfg.Search)
	return NewDispatcher(ingest.NewPipeline(s, emb), s, svc), s
}

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "author_abstracts.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleInput), 0644))
	return path
}

func TestDispatcher_LoadListStats(t *testing.T) {
	d, s := newDispatcher(t)
	ctx := context.Background()

	out, err := d.Execute(ctx, "load "+writeInput(t))
	require.NoError(t, err)
	assert.Equal(t, "processed 3: 2 created, 1 linked, 0 unchanged, 0 failed", out)
	assert.Equal(t, 2, s.Len())

	out, err = d.Execute(ctx, "list 1")
	require.NoError(t, err)
	assert.Contains(t, out, "[p1,p2] Title: Quantum computing")
	assert.Contains(t, out, "showing 1 of 2 chunks")

	out, err = d.Execute(ctx, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "chunks: 2")
	assert.Contains(t, out, "unique authors: 2")
	assert.Contains(t, out, "multi-author chunks: 1\n  - Title: Quantum computing")
	assert.NotContains(t, out, "%!")
}

func TestDispatcher_AddAndSearch(t *testing.T) {
	d, _ := newDispatcher(t)
	ctx := context.Background()

	out, err := d.Execute(ctx, "add p7 graph neural networks")
	require.NoError(t, err)
	assert.Equal(t, "created chunk 0 for p7", out)

	out, err = d.Execute(ctx, "add p8 graph neural networks")
	require.NoError(t, err)
	assert.Equal(t, "linked chunk 0 for p8", out)

	out, err = d.Execute(ctx, "search graph neural networks")
	require.NoError(t, err)
	assert.Contains(t, out, "p7")
	assert.Contains(t, out, "p8")
	assert.Contains(t, out, "2 authors in")
}

func TestDispatcher_Errors(t *testing.T) {
	d, _ := newDispatcher(t)
	ctx := context.Background()

	for _, line := range []string{"load", "add p1", "list zero", "list -2", "frobnicate", "search   "} {
		_, err := d.Execute(ctx, line)
		assert.Error(t, err, line)
	}
	_, err := d.Execute(ctx, "exit")
	assert.ErrorIs(t, err, ErrExit)

	out, err := d.Execute(ctx, "  ")
	assert.NoError(t, err)
	assert.Empty(t, out)

	out, err = d.Execute(ctx, "HELP")
	require.NoError(t, err)
	assert.Equal(t, Help, out)
}

func TestRunLines(t *testing.T) {
	d, _ := newDispatcher(t)
	in := strings.NewReader("add p1 hello world\nbogus\nstats\nexit\nstats\n")
	var out bytes.Buffer
	require.NoError(t, RunLines(context.Background(), d, in, &out))

	got := out.String()
	assert.Contains(t, got, "created chunk 0 for p1")
	assert.Contains(t, got, `error: unknown command "bogus"`)
	assert.Equal(t, 1, strings.Count(got, "chunks: 1"), "commands after exit must not run")
}

func TestModel_EnterRunsCommand(t *testing.T) {
	d, _ := newDispatcher(t)
	m := NewModel(context.Background(), d)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(Model)
	m.input.SetValue("add p1 hello")
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)

	require.Len(t, m.history, 2)
	assert.Contains(t, m.history[1], "created chunk 0 for p1")
	assert.Empty(t, m.input.Value())
	assert.Contains(t, m.View(), "kenkyu console")

	m.input.SetValue("exit")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
