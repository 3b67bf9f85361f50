package memory

import "testing"

func TestHistoryStoreAppendAndGet(t *testing.T) {
	s := NewHistoryStore()

	if got := s.History("client-1"); len(got) != 0 {
		t.Errorf("History() for unknown client = %v, want empty", got)
	}

	s.Append("client-1", "hello", "hi there")
	s.Append("client-1", "how are you", "doing well")

	turns := s.History("client-1")
	if len(turns) != 4 {
		t.Fatalf("len(History()) = %d, want 4", len(turns))
	}
	if turns[0].Role != "user" || turns[0].Content != "hello" {
		t.Errorf("turns[0] = %+v, want user hello", turns[0])
	}
	if turns[1].Role != "assistant" || turns[1].Content != "hi there" {
		t.Errorf("turns[1] = %+v, want assistant reply", turns[1])
	}
	if turns[3].Content != "doing well" {
		t.Errorf("turns[3] = %+v", turns[3])
	}
}

func TestHistoryStoreIsolatesClients(t *testing.T) {
	s := NewHistoryStore()
	s.Append("a", "question from a", "answer for a")
	s.Append("b", "question from b", "answer for b")

	if got := s.Len("a"); got != 2 {
		t.Errorf("Len(a) = %d, want 2", got)
	}
	if turns := s.History("b"); turns[0].Content != "question from b" {
		t.Errorf("client b history = %v", turns)
	}
}

func TestHistoryStoreClear(t *testing.T) {
	s := NewHistoryStore()
	s.Append("client-1", "q", "r")

	s.Clear("client-1")
	if got := s.Len("client-1"); got != 0 {
		t.Errorf("Len() after Clear = %d, want 0", got)
	}

	// Clearing again is a no-op.
	s.Clear("client-1")
	s.Clear("never-existed")
}

func TestHistoryStoreReturnsCopy(t *testing.T) {
	s := NewHistoryStore()
	s.Append("client-1", "q", "r")

	turns := s.History("client-1")
	turns[0].Content = "mutated"

	if got := s.History("client-1"); got[0].Content != "q" {
		t.Error("History() should return a copy, not the backing slice")
	}
}
