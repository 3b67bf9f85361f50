// Package analytics tracks per-user interaction patterns and derives
// trends and recommendations from them.
package analytics

import (
	"fmt"
	"sync"
	"time"
)

// maxPatterns bounds the per-user interaction window.
const maxPatterns = 100

// Interaction is one tracked exchange.
type Interaction struct {
	Timestamp      time.Time
	AgentUsed      string
	Complexity     int
	ProcessingTime time.Duration
}

// Trends summarizes recent interaction history.
type Trends struct {
	ComplexityTrend      string `json:"complexity_trend"`
	PerformanceTrend     string `json:"performance_trend"`
	InteractionFrequency string `json:"interaction_frequency"`
}

// Report is the per-user analytics summary. Status is empty when
// enough data exists; otherwise it names the reason no analysis was
// produced.
type Report struct {
	Status            string         `json:"status,omitempty"`
	TotalInteractions int            `json:"total_interactions,omitempty"`
	AvgComplexity     float64        `json:"avg_complexity,omitempty"`
	AvgResponseTime   time.Duration  `json:"avg_response_time,omitempty"`
	MostUsedAgent     string         `json:"most_used_agent,omitempty"`
	Trends            *Trends        `json:"trend_analysis,omitempty"`
	Recommendations   []string       `json:"recommendations,omitempty"`
	AgentUsage        map[string]int `json:"agent_usage,omitempty"`
}

type userAnalytics struct {
	totalInteractions int
	preferredAgents   map[string]int
	patterns          []Interaction
}

// Engine tracks interactions and produces per-user reports.
type Engine struct {
	mu    sync.RWMutex
	users map[string]*userAnalytics
}

// NewEngine creates an empty analytics engine.
func NewEngine() *Engine {
	return &Engine{users: make(map[string]*userAnalytics)}
}

// Track records one interaction, keeping only the last 100 per user.
func (e *Engine) Track(userID string, in Interaction) {
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now().UTC()
	}
	if in.AgentUsed == "" {
		in.AgentUsed = "unknown"
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ua, ok := e.users[userID]
	if !ok {
		ua = &userAnalytics{preferredAgents: make(map[string]int)}
		e.users[userID] = ua
	}

	ua.totalInteractions++
	ua.preferredAgents[in.AgentUsed]++
	ua.patterns = append(ua.patterns, in)
	if len(ua.patterns) > maxPatterns {
		ua.patterns = ua.patterns[len(ua.patterns)-maxPatterns:]
	}
}

// Analyze produces the analytics report for a user. Users with no data
// or fewer than five recent interactions get a status-only report.
func (e *Engine) Analyze(userID string) Report {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ua, ok := e.users[userID]
	if !ok {
		return Report{Status: "insufficient_data"}
	}

	recent := ua.patterns
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	if len(recent) < 5 {
		return Report{Status: "insufficient_recent_data"}
	}

	var complexitySum int
	var timeSum time.Duration
	for _, in := range recent {
		complexitySum += in.Complexity
		timeSum += in.ProcessingTime
	}

	usage := make(map[string]int, len(ua.preferredAgents))
	for agent, count := range ua.preferredAgents {
		usage[agent] = count
	}

	return Report{
		TotalInteractions: ua.totalInteractions,
		AvgComplexity:     float64(complexitySum) / float64(len(recent)),
		AvgResponseTime:   timeSum / time.Duration(len(recent)),
		MostUsedAgent:     mostUsedAgent(ua.preferredAgents),
		Trends:            analyzeTrends(recent),
		Recommendations:   recommendations(ua),
		AgentUsage:        usage,
	}
}

func mostUsedAgent(agents map[string]int) string {
	best := "unknown"
	bestCount := -1
	for agent, count := range agents {
		if count > bestCount || (count == bestCount && agent < best) {
			best = agent
			bestCount = count
		}
	}
	return best
}

func analyzeTrends(interactions []Interaction) *Trends {
	if len(interactions) < 3 {
		return &Trends{ComplexityTrend: "insufficient_data"}
	}

	t := &Trends{}

	first := interactions[0].Complexity
	last := interactions[len(interactions)-1].Complexity
	switch {
	case last > first:
		t.ComplexityTrend = "increasing"
	case last < first:
		t.ComplexityTrend = "decreasing"
	default:
		t.ComplexityTrend = "stable"
	}

	var older, newer time.Duration
	for _, in := range interactions[:3] {
		older += in.ProcessingTime
	}
	for _, in := range interactions[len(interactions)-3:] {
		newer += in.ProcessingTime
	}
	avgOlder := older / 3
	avgNewer := newer / 3

	switch {
	case float64(avgNewer) > float64(avgOlder)*1.2:
		t.PerformanceTrend = "degrading"
	case float64(avgNewer) < float64(avgOlder)*0.8:
		t.PerformanceTrend = "improving"
	default:
		t.PerformanceTrend = "stable"
	}

	if len(interactions) >= 5 {
		t.InteractionFrequency = "regular"
	} else {
		t.InteractionFrequency = "occasional"
	}

	return t
}

func recommendations(ua *userAnalytics) []string {
	var recs []string

	if len(ua.preferredAgents) > 0 {
		agent := mostUsedAgent(ua.preferredAgents)
		if float64(ua.preferredAgents[agent]) > float64(ua.totalInteractions)*0.7 {
			recs = append(recs, fmt.Sprintf("Consider exploring other agents beyond %s for variety", agent))
		}
	}

	recent := ua.patterns
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	if len(recent) > 0 {
		var sum int
		for _, in := range recent {
			sum += in.Complexity
		}
		if float64(sum)/float64(len(recent)) < 3 {
			recs = append(recs, "Try more complex queries to unlock advanced features")
		}
	}

	return recs
}
