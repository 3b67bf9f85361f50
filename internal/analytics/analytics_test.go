package analytics

import (
	"strings"
	"testing"
	"time"
)

func TestAnalyzeUnknownUser(t *testing.T) {
	e := NewEngine()
	report := e.Analyze("nobody")
	if report.Status != "insufficient_data" {
		t.Errorf("Status = %q, want insufficient_data", report.Status)
	}
}

func TestAnalyzeNeedsFiveRecentInteractions(t *testing.T) {
	e := NewEngine()
	for i := 0; i < 4; i++ {
		e.Track("user-1", Interaction{AgentUsed: "research", Complexity: 2})
	}

	report := e.Analyze("user-1")
	if report.Status != "insufficient_recent_data" {
		t.Errorf("Status = %q, want insufficient_recent_data", report.Status)
	}
}

func TestAnalyzeReport(t *testing.T) {
	e := NewEngine()
	for i := 0; i < 6; i++ {
		e.Track("user-1", Interaction{
			AgentUsed:      "research",
			Complexity:     4,
			ProcessingTime: 2 * time.Second,
		})
	}
	e.Track("user-1", Interaction{AgentUsed: "creative", Complexity: 4, ProcessingTime: 2 * time.Second})

	report := e.Analyze("user-1")
	if report.Status != "" {
		t.Fatalf("Status = %q, want empty", report.Status)
	}
	if report.TotalInteractions != 7 {
		t.Errorf("TotalInteractions = %d, want 7", report.TotalInteractions)
	}
	if report.AvgComplexity != 4 {
		t.Errorf("AvgComplexity = %v, want 4", report.AvgComplexity)
	}
	if report.MostUsedAgent != "research" {
		t.Errorf("MostUsedAgent = %q, want research", report.MostUsedAgent)
	}
	if report.Trends == nil || report.Trends.InteractionFrequency != "regular" {
		t.Errorf("Trends = %+v, want regular frequency", report.Trends)
	}
}

func TestComplexityTrend(t *testing.T) {
	e := NewEngine()
	for i := 0; i < 5; i++ {
		e.Track("user-1", Interaction{Complexity: i + 1, ProcessingTime: time.Second})
	}

	report := e.Analyze("user-1")
	if report.Trends.ComplexityTrend != "increasing" {
		t.Errorf("ComplexityTrend = %q, want increasing", report.Trends.ComplexityTrend)
	}
}

func TestPerformanceTrendDegrading(t *testing.T) {
	e := NewEngine()
	times := []time.Duration{time.Second, time.Second, time.Second, 3 * time.Second, 3 * time.Second, 3 * time.Second}
	for _, d := range times {
		e.Track("user-1", Interaction{Complexity: 5, ProcessingTime: d})
	}

	report := e.Analyze("user-1")
	if report.Trends.PerformanceTrend != "degrading" {
		t.Errorf("PerformanceTrend = %q, want degrading", report.Trends.PerformanceTrend)
	}
}

func TestRecommendationsSingleAgentDominance(t *testing.T) {
	e := NewEngine()
	for i := 0; i < 10; i++ {
		e.Track("user-1", Interaction{AgentUsed: "research", Complexity: 8})
	}

	report := e.Analyze("user-1")
	found := false
	for _, rec := range report.Recommendations {
		if strings.Contains(rec, "research") {
			found = true
		}
	}
	if !found {
		t.Errorf("Recommendations = %v, want one about agent variety", report.Recommendations)
	}
}

func TestRecommendationsLowComplexity(t *testing.T) {
	e := NewEngine()
	for i := 0; i < 3; i++ {
		e.Track("user-1", Interaction{AgentUsed: "research", Complexity: 1})
		e.Track("user-1", Interaction{AgentUsed: "creative", Complexity: 1})
	}

	report := e.Analyze("user-1")
	found := false
	for _, rec := range report.Recommendations {
		if strings.Contains(rec, "complex") {
			found = true
		}
	}
	if !found {
		t.Errorf("Recommendations = %v, want one about query complexity", report.Recommendations)
	}
}

func TestTrackBoundsPatternWindow(t *testing.T) {
	e := NewEngine()
	for i := 0; i < 150; i++ {
		e.Track("user-1", Interaction{AgentUsed: "research", Complexity: 5})
	}

	e.mu.RLock()
	got := len(e.users["user-1"].patterns)
	e.mu.RUnlock()
	if got != maxPatterns {
		t.Errorf("pattern window = %d, want %d", got, maxPatterns)
	}

	report := e.Analyze("user-1")
	if report.TotalInteractions != 150 {
		t.Errorf("TotalInteractions = %d, want 150", report.TotalInteractions)
	}
}
