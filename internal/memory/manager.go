package memory

import (
	"strings"
	"sync"
	"time"
)

// Topic keyword lists used for lightweight topic extraction.
var (
	techKeywords     = []string{"ai", "machine learning", "python", "go", "data", "programming", "technology"}
	businessKeywords = []string{"market", "stock", "finance", "business", "economy", "investment"}
	creativeKeywords = []string{"story", "creative", "write", "art", "design", "poem"}
)

var (
	positiveWords  = []string{"good", "great", "excellent", "amazing", "love", "like", "awesome"}
	negativeWords  = []string{"bad", "terrible", "hate", "awful", "worst", "horrible"}
	technicalTerms = []string{"analyze", "compare", "explain", "implement", "algorithm", "optimize"}
)

// TurnRecord is a conversation turn enriched with derived metadata.
type TurnRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	Query      string    `json:"query"`
	Response   string    `json:"response"`
	Topics     []string  `json:"topics"`
	Sentiment  string    `json:"sentiment"`
	Complexity int       `json:"complexity"`
}

// Preferences holds learned per-user preferences.
type Preferences struct {
	PreferredTopics map[string]int `json:"preferred_topics"`
}

// QueryContext is the context the manager assembles for a new query.
type QueryContext struct {
	NewUser           bool         `json:"new_user"`
	RecentTopics      [][]string   `json:"recent_topics,omitempty"`
	Preferences       *Preferences `json:"user_preferences,omitempty"`
	RecentTurns       []TurnRecord `json:"conversation_flow,omitempty"`
	SuggestedApproach string       `json:"suggested_approach,omitempty"`
}

// Manager tracks conversation patterns and user preferences across a
// session. It complements the persistent Store with derived metadata
// that only matters while the process runs.
type Manager struct {
	mu          sync.RWMutex
	turns       map[string][]TurnRecord
	preferences map[string]*Preferences
}

// NewManager creates an empty conversation memory manager.
func NewManager() *Manager {
	return &Manager{
		turns:       make(map[string][]TurnRecord),
		preferences: make(map[string]*Preferences),
	}
}

// AddTurn records a completed exchange with derived topics, sentiment,
// and complexity, and updates the user's topic preferences.
func (m *Manager) AddTurn(userID, query, response string) TurnRecord {
	record := TurnRecord{
		Timestamp:  time.Now().UTC(),
		Query:      query,
		Response:   response,
		Topics:     ExtractTopics(query),
		Sentiment:  AnalyzeSentiment(query),
		Complexity: AssessComplexity(query),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.turns[userID] = append(m.turns[userID], record)

	prefs, ok := m.preferences[userID]
	if !ok {
		prefs = &Preferences{PreferredTopics: make(map[string]int)}
		m.preferences[userID] = prefs
	}
	for _, topic := range record.Topics {
		prefs.PreferredTopics[topic]++
	}

	return record
}

// ContextForQuery assembles the context relevant to a new query: the
// last five turns, learned preferences, and a suggested approach.
func (m *Manager) ContextForQuery(userID, query string) QueryContext {
	m.mu.RLock()
	defer m.mu.RUnlock()

	turns, ok := m.turns[userID]
	if !ok {
		return QueryContext{NewUser: true, SuggestedApproach: "standard"}
	}

	recent := turns
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	recentCopy := make([]TurnRecord, len(recent))
	copy(recentCopy, recent)

	topics := make([][]string, len(recentCopy))
	for i, turn := range recentCopy {
		topics[i] = turn.Topics
	}

	prefs := m.preferences[userID]
	approach := "standard"
	if prefs != nil {
		for _, topic := range ExtractTopics(query) {
			if prefs.PreferredTopics[topic] > 0 {
				approach = "personalized"
				break
			}
		}
	}

	return QueryContext{
		RecentTopics:      topics,
		Preferences:       prefs,
		RecentTurns:       recentCopy,
		SuggestedApproach: approach,
	}
}

// Preferences returns the learned preferences for a user, or nil.
func (m *Manager) Preferences(userID string) *Preferences {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.preferences[userID]
}

// Forget drops everything learned about a user.
func (m *Manager) Forget(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.turns, userID)
	delete(m.preferences, userID)
}

// ExtractTopics classifies text into coarse topic labels.
func ExtractTopics(text string) []string {
	lower := strings.ToLower(text)

	var topics []string
	if containsAny(lower, techKeywords) {
		topics = append(topics, "technology")
	}
	if containsAny(lower, businessKeywords) {
		topics = append(topics, "business")
	}
	if containsAny(lower, creativeKeywords) {
		topics = append(topics, "creative")
	}
	if len(topics) == 0 {
		topics = []string{"general"}
	}
	return topics
}

// AnalyzeSentiment does keyword-count sentiment classification.
func AnalyzeSentiment(text string) string {
	lower := strings.ToLower(text)

	var positive, negative int
	for _, word := range positiveWords {
		if strings.Contains(lower, word) {
			positive++
		}
	}
	for _, word := range negativeWords {
		if strings.Contains(lower, word) {
			negative++
		}
	}

	switch {
	case positive > negative:
		return "positive"
	case negative > positive:
		return "negative"
	default:
		return "neutral"
	}
}

// AssessComplexity scores query complexity on a 1-10 scale from length,
// technical vocabulary, and question count.
func AssessComplexity(text string) int {
	score := 1

	switch {
	case len(text) > 100:
		score += 2
	case len(text) > 50:
		score++
	}

	lower := strings.ToLower(text)
	for _, term := range technicalTerms {
		if strings.Contains(lower, term) {
			score++
		}
	}

	if questions := strings.Count(text, "?"); questions > 0 {
		score += min(questions, 3)
	}

	return min(score, 10)
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
