package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) onChange(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "author_abstracts.json")
	if err := writeFile(input, "{}"); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := NewWatcher([]string{input}, rec.onChange, WithDebounce(150*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for i := 0; i < 3; i++ {
		if err := writeFile(input, `{"author_abstracts": {}}`); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	got := rec.snapshot()
	if len(got) != 1 {
		t.Fatalf("expected one settled change, got %v", got)
	}
	if filepath.Base(got[0]) != "author_abstracts.json" {
		t.Errorf("changed path = %q", got[0])
	}
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.json")
	if err := writeFile(input, "{}"); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := NewWatcher([]string{input}, rec.onChange, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := writeFile(filepath.Join(dir, "other.json"), "{}"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("sibling write should not trigger, got %v", got)
	}
}

func TestWatcher_RemovedFileDoesNotFire(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.json")
	if err := writeFile(input, "{}"); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := NewWatcher([]string{input}, rec.onChange, WithDebounce(200*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := writeFile(input, "{ }"); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(input); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)

	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("removed file should not trigger, got %v", got)
	}
}

func TestWatcher_AddRemoveFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.json")
	b := filepath.Join(dir, "b.json")
	if err := writeFile(a, "{}"); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := NewWatcher(nil, rec.onChange)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.AddFile(a, true); err != nil {
		t.Fatal(err)
	}
	if err := w.AddFile(b, false); err != nil {
		t.Fatal(err)
	}
	if err := w.AddFile(a, true); err != nil {
		t.Fatal(err)
	}
	if files := w.Files(); len(files) != 2 {
		t.Errorf("Files() = %v", files)
	}

	time.Sleep(100 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 1 || filepath.Base(got[0]) != "a.json" {
		t.Errorf("sync existing: got %v", got)
	}

	if err := w.RemoveFile(a); err != nil {
		t.Fatal(err)
	}
	if files := w.Files(); len(files) != 1 || filepath.Base(files[0]) != "b.json" {
		t.Errorf("after remove: %v", files)
	}
	// Directory stays watched while b.json still needs it.
	w.mu.Lock()
	refs := w.dirRefs[filepath.Clean(dir)]
	w.mu.Unlock()
	if refs != 1 {
		t.Errorf("dir refs = %d, want 1", refs)
	}
}

func TestWatcher_StartFailsForMissingDirectory(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope", "input.json")
	w := NewWatcher([]string{missing}, nil)
	if err := w.Start(context.Background()); err == nil {
		w.Stop()
		t.Fatal("expected error watching a missing directory")
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
