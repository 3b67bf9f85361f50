package agent

import (
	"strings"

	"github.com/sibylchat/sibyl/internal/memory"
)

// Suggestion is a proactive task suggestion derived from conversation
// patterns.
type Suggestion struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

var proactiveResearchWords = []string{"research", "find", "tell me about", "what is"}
var timeSensitiveWords = []string{"today", "latest", "recent", "current"}

// AnalyzeForSuggestions inspects the recent conversation for patterns
// worth acting on: repeated similar queries, research-heavy sessions,
// and time-sensitive topics.
func AnalyzeForSuggestions(history []memory.Turn) []Suggestion {
	var suggestions []Suggestion

	if len(history) < 2 {
		return suggestions
	}

	recent := recentUserQueries(history, 3)

	if detectRepeatedPattern(recent) {
		suggestions = append(suggestions, Suggestion{
			Type:        "automation",
			Title:       "Create Automated Workflow",
			Description: "I notice you're asking similar questions. Would you like me to create an automated workflow?",
			Priority:    "medium",
		})
	}

	researchCount := 0
	for _, q := range recent {
		if matchesAny(q, proactiveResearchWords) {
			researchCount++
		}
	}
	if researchCount >= 2 {
		suggestions = append(suggestions, Suggestion{
			Type:        "knowledge_base",
			Title:       "Personal Knowledge Base",
			Description: "Would you like me to compile your research into a personal knowledge base?",
			Priority:    "low",
		})
	}

	if matchesAny(strings.Join(recent, " "), timeSensitiveWords) {
		suggestions = append(suggestions, Suggestion{
			Type:        "monitoring",
			Title:       "Set Up Monitoring",
			Description: "I can monitor these topics and notify you of updates automatically.",
			Priority:    "high",
		})
	}

	return suggestions
}

// recentUserQueries returns the last n user messages, oldest first.
func recentUserQueries(history []memory.Turn, n int) []string {
	var queries []string
	for _, turn := range history {
		if turn.Role == "user" {
			queries = append(queries, turn.Content)
		}
	}
	if len(queries) > n {
		queries = queries[len(queries)-n:]
	}
	return queries
}

// detectRepeatedPattern reports whether consecutive queries share more
// than half their words (Jaccard similarity above 0.5).
func detectRepeatedPattern(queries []string) bool {
	for i := 0; i+1 < len(queries); i++ {
		a := wordSet(queries[i])
		b := wordSet(queries[i+1])
		if len(a) == 0 || len(b) == 0 {
			continue
		}

		intersection := 0
		for w := range a {
			if b[w] {
				intersection++
			}
		}
		union := len(a) + len(b) - intersection
		if union > 0 && float64(intersection)/float64(union) > 0.5 {
			return true
		}
	}
	return false
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}
