package memory

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatalf("OpenStore() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreAddAndRecentHistory(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.Add(ctx, "user-1", "first question", "first answer"); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if err := s.Add(ctx, "user-1", "second question", "second answer"); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	turns, err := s.RecentHistory(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("RecentHistory() error: %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("len(turns) = %d, want 4", len(turns))
	}
	// Chronological order: oldest exchange first.
	if turns[0].Content != "first question" || turns[0].Role != "user" {
		t.Errorf("turns[0] = %+v, want first user question", turns[0])
	}
	if turns[3].Content != "second answer" || turns[3].Role != "assistant" {
		t.Errorf("turns[3] = %+v, want second answer", turns[3])
	}
}

func TestStoreRecentHistoryLimit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for i := 0; i < 5; i++ {
		if err := s.Add(ctx, "user-1", "question", "answer"); err != nil {
			t.Fatal(err)
		}
	}

	turns, err := s.RecentHistory(ctx, "user-1", 2)
	if err != nil {
		t.Fatalf("RecentHistory() error: %v", err)
	}
	if len(turns) != 4 {
		t.Errorf("len(turns) = %d, want 4 (2 interactions)", len(turns))
	}
}

func TestStoreSearch(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_ = s.Add(ctx, "user-1", "what is the price of Tesla stock", "TSLA is at 250")
	_ = s.Add(ctx, "user-1", "write me a poem about rain", "rain falls softly")
	_ = s.Add(ctx, "user-2", "Tesla factory locations", "Austin and Berlin")

	results, err := s.Search(ctx, "user-1", "tell me about Tesla again", 3)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Response != "TSLA is at 250" {
		t.Errorf("result = %+v, want the Tesla interaction", results[0])
	}
}

func TestStoreSearchIsolatesUsers(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_ = s.Add(ctx, "user-2", "Tesla factory locations", "Austin and Berlin")

	results, err := s.Search(ctx, "user-1", "Tesla", 3)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Search() leaked another user's interactions: %v", results)
	}
}

func TestStoreSearchNoSignificantWords(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	_ = s.Add(ctx, "user-1", "something", "stored")

	results, err := s.Search(ctx, "user-1", "the of a", 3)
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("stopword-only query should match nothing, got %v", results)
	}
}

func TestStorePurge(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_ = s.Add(ctx, "user-1", "question", "answer")
	_ = s.Add(ctx, "user-2", "question", "answer")

	if err := s.Purge(ctx, "user-1"); err != nil {
		t.Fatalf("Purge() error: %v", err)
	}

	turns, _ := s.RecentHistory(ctx, "user-1", 10)
	if len(turns) != 0 {
		t.Errorf("user-1 history after Purge = %v, want empty", turns)
	}
	turns, _ = s.RecentHistory(ctx, "user-2", 10)
	if len(turns) != 2 {
		t.Errorf("user-2 history should be untouched, got %d turns", len(turns))
	}
}

func TestSignificantWords(t *testing.T) {
	got := significantWords("What is the price of Tesla stock?")
	want := map[string]bool{"price": true, "tesla": true, "stock": true}
	for _, w := range got {
		if !want[w] {
			t.Errorf("significantWords() included %q", w)
		}
	}
	if len(got) != 3 {
		t.Errorf("significantWords() = %v, want 3 words", got)
	}
}
