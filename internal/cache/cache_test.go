package cache

import (
	"fmt"
	"sync"
	"testing"
)

func TestCacheGetSet(t *testing.T) {
	t.Parallel()

	cache := New[int]()

	if _, ok := cache.Get("missing"); ok {
		t.Fatalf("expected missing key")
	}

	cache.Set("a", 10)

	got, ok := cache.Get("a")
	if !ok {
		t.Fatalf("expected existing key")
	}

	if got != 10 {
		t.Fatalf("value = %d; want %d", got, 10)
	}
}

func TestCacheConcurrentSet(t *testing.T) {
	t.Parallel()

	cache := New[string]()
	var wg sync.WaitGroup

	for i := range 50 {
		wg.Go(func() {
			key := fmt.Sprintf("k-%d", i)
			value := fmt.Sprintf("v-%d", i)
			cache.Set(key, value)
		})
	}

	wg.Wait()

	for i := range 50 {
		key := fmt.Sprintf("k-%d", i)
		want := fmt.Sprintf("v-%d", i)

		got, ok := cache.Get(key)
		if !ok {
			t.Fatalf("missing key %q", key)
		}

		if got != want {
			t.Fatalf("value for %q = %q; want %q", key, got, want)
		}
	}
}

func TestCacheSetIfAbsent(t *testing.T) {
	t.Parallel()

	cache := New[string]()

	got, stored := cache.SetIfAbsent("robots", "first")
	if !stored || got != "first" {
		t.Fatalf("first SetIfAbsent = (%q, %v); want (%q, true)", got, stored, "first")
	}

	got, stored = cache.SetIfAbsent("robots", "second")
	if stored || got != "first" {
		t.Fatalf("second SetIfAbsent = (%q, %v); want (%q, false)", got, stored, "first")
	}
}

func TestCacheDeleteAndRange(t *testing.T) {
	t.Parallel()

	cache := New[int]()
	cache.Set("a", 1)
	cache.Set("b", 2)
	cache.Set("c", 3)

	if !cache.Delete("b") {
		t.Fatalf("expected delete of existing key to report true")
	}

	if cache.Delete("missing") {
		t.Fatalf("expected delete of missing key to report false")
	}

	if cache.Len() != 2 {
		t.Fatalf("len = %d; want 2", cache.Len())
	}

	sum := 0
	cache.Range(func(_ string, value int) bool {
		sum += value

		return true
	})

	if sum != 4 {
		t.Fatalf("sum = %d; want 4", sum)
	}
}
