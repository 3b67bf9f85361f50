package memory

import (
	"reflect"
	"testing"
)

func TestExtractTopics(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"tell me about machine learning", []string{"technology"}},
		{"what is the stock market doing", []string{"business"}},
		{"write me a poem", []string{"creative"}},
		{"ai investment analysis", []string{"technology", "business"}},
		{"what time is it", []string{"general"}},
	}

	for _, tt := range tests {
		if got := ExtractTopics(tt.text); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ExtractTopics(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestAnalyzeSentiment(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"this is great, I love it", "positive"},
		{"this is terrible and awful", "negative"},
		{"what is the capital of France", "neutral"},
		{"good but also bad", "neutral"},
	}

	for _, tt := range tests {
		if got := AnalyzeSentiment(tt.text); got != tt.want {
			t.Errorf("AnalyzeSentiment(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestAssessComplexity(t *testing.T) {
	simple := AssessComplexity("hi")
	if simple != 1 {
		t.Errorf("AssessComplexity(short) = %d, want 1", simple)
	}

	complexQuery := "Please analyze and compare the algorithm implementations, then explain how to optimize them? What are the tradeoffs?"
	got := AssessComplexity(complexQuery)
	if got <= simple {
		t.Errorf("complex query scored %d, should exceed simple score %d", got, simple)
	}
	if got > 10 {
		t.Errorf("AssessComplexity() = %d, must be capped at 10", got)
	}
}

func TestManagerLearnsPreferences(t *testing.T) {
	m := NewManager()

	m.AddTurn("user-1", "how is the stock market today", "it is up")
	m.AddTurn("user-1", "best investment strategies", "diversify")

	prefs := m.Preferences("user-1")
	if prefs == nil {
		t.Fatal("Preferences() = nil after turns")
	}
	if prefs.PreferredTopics["business"] != 2 {
		t.Errorf("business topic count = %d, want 2", prefs.PreferredTopics["business"])
	}
}

func TestContextForQueryNewUser(t *testing.T) {
	m := NewManager()
	ctx := m.ContextForQuery("nobody", "hello")
	if !ctx.NewUser {
		t.Error("NewUser = false for unknown user")
	}
	if ctx.SuggestedApproach != "standard" {
		t.Errorf("SuggestedApproach = %q, want standard", ctx.SuggestedApproach)
	}
}

func TestContextForQueryPersonalized(t *testing.T) {
	m := NewManager()
	m.AddTurn("user-1", "stock market update", "up today")

	ctx := m.ContextForQuery("user-1", "finance news")
	if ctx.SuggestedApproach != "personalized" {
		t.Errorf("SuggestedApproach = %q, want personalized for a preferred topic", ctx.SuggestedApproach)
	}

	ctx = m.ContextForQuery("user-1", "write me a poem")
	if ctx.SuggestedApproach != "standard" {
		t.Errorf("SuggestedApproach = %q, want standard for a new topic", ctx.SuggestedApproach)
	}
}

func TestContextForQueryLimitsRecentTurns(t *testing.T) {
	m := NewManager()
	for i := 0; i < 8; i++ {
		m.AddTurn("user-1", "question about technology and ai", "answer")
	}

	ctx := m.ContextForQuery("user-1", "more ai")
	if len(ctx.RecentTurns) != 5 {
		t.Errorf("len(RecentTurns) = %d, want 5", len(ctx.RecentTurns))
	}
	if len(ctx.RecentTopics) != 5 {
		t.Errorf("len(RecentTopics) = %d, want 5", len(ctx.RecentTopics))
	}
}

func TestManagerForget(t *testing.T) {
	m := NewManager()
	m.AddTurn("user-1", "stock tips", "buy low")

	m.Forget("user-1")
	if m.Preferences("user-1") != nil {
		t.Error("Preferences() should be nil after Forget")
	}
	if ctx := m.ContextForQuery("user-1", "hi"); !ctx.NewUser {
		t.Error("user should look new after Forget")
	}
}
