package embedding

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	c.Set("b", []float32{4, 5})
	if _, ok := c.Get("a"); !ok { // a becomes most recent
		t.Fatal("expected a")
	}
	c.Set("c", []float32{6}) // evicts b
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to remain")
	}
	hits, misses := c.Stats()
	if hits != 2 || misses != 2 {
		t.Errorf("Stats = %d hits, %d misses", hits, misses)
	}
}

func TestEmbeddingCache_ConcurrentGet(t *testing.T) {
	c := NewEmbeddingCache(8)
	c.Set("k", []float32{1})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Get("k")
			}
		}()
	}
	wg.Wait()
}

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, text string, _ Task) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text))}, nil
}
func (c *countingEmbedder) Dimensions() int { return 1 }
func (c *countingEmbedder) Close() error    { return nil }

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.Embed(ctx, "quantum", TaskQuery); err != nil {
			t.Fatal(err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 provider call, got %d", inner.calls)
	}
	if _, err := c.Embed(ctx, "quantum", TaskDocument); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Errorf("task must be part of the cache key, calls = %d", inner.calls)
	}

	failing := NewCachedEmbedder(&countingEmbedder{err: errors.New("boom")}, 10)
	if _, err := failing.Embed(ctx, "x", TaskQuery); err == nil {
		t.Error("expected error")
	}
	if _, ok := failing.Cache().Get(string(TaskQuery) + "\x00x"); ok {
		t.Error("failures must not be cached")
	}
}
