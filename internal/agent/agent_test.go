package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sibylchat/sibyl/internal/analytics"
	"github.com/sibylchat/sibyl/internal/cache"
	"github.com/sibylchat/sibyl/internal/groq"
	"github.com/sibylchat/sibyl/internal/memory"
	"github.com/sibylchat/sibyl/internal/tools"
)

// scriptedModel serves canned completions in order, one per request.
type scriptedModel struct {
	mu        sync.Mutex
	responses []string
	requests  []string
}

func (m *scriptedModel) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		m.mu.Lock()
		if len(body.Messages) > 0 {
			m.requests = append(m.requests, body.Messages[len(body.Messages)-1].Content)
		}
		content := "ok"
		if len(m.responses) > 0 {
			content = m.responses[0]
			m.responses = m.responses[1:]
		}
		m.mu.Unlock()

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}
}

type stubTool struct {
	name   string
	output *tools.Output
	err    error

	mu      sync.Mutex
	queries []string
}

func (t *stubTool) Name() string        { return t.name }
func (t *stubTool) Description() string { return "stub" }

func (t *stubTool) Execute(_ context.Context, query string) (*tools.Output, error) {
	t.mu.Lock()
	t.queries = append(t.queries, query)
	t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	return t.output, nil
}

func newTestAgent(t *testing.T, model *scriptedModel, registry *tools.Registry) *Agent {
	t.Helper()

	srv := httptest.NewServer(model.handler())
	t.Cleanup(srv.Close)

	if registry == nil {
		registry = tools.NewRegistry()
	}
	client := groq.NewClient("test-key", groq.WithBaseURL(srv.URL))

	return New(Config{
		Client:    client,
		Model:     "big-model",
		FastModel: "fast-model",
		Registry:  registry,
		Cache:     cache.NewMemoryCache(100),
		Memory:    memory.NewManager(),
		Analytics: analytics.NewEngine(),
	})
}

func TestRunCasualQuery(t *testing.T) {
	model := &scriptedModel{responses: []string{
		"CASUAL",                    // classification
		"Hi there! How can I help?", // casual response
	}}
	a := newTestAgent(t, model, nil)

	var statuses []string
	result := a.Run(context.Background(), "client-1", "hello", nil, func(msg string) {
		statuses = append(statuses, msg)
	})

	if result.Response != "Hi there! How can I help?" {
		t.Errorf("Response = %q, want %q", result.Response, "Hi there! How can I help?")
	}
	if result.Confidence != 95 {
		t.Errorf("Confidence = %d, want 95", result.Confidence)
	}
	if result.Method != "Casual Chat" {
		t.Errorf("Method = %q, want %q", result.Method, "Casual Chat")
	}
	if result.ToolsUsed != 0 {
		t.Errorf("ToolsUsed = %d, want 0", result.ToolsUsed)
	}
	if result.FromCache {
		t.Error("FromCache = true for first run")
	}
	if len(statuses) == 0 || statuses[0] != "Analyzing your query..." {
		t.Errorf("first status = %v, want Analyzing your query...", statuses)
	}
}

func TestRunWebSearchQuery(t *testing.T) {
	web := &stubTool{
		name: "web_search",
		output: &tools.Output{
			Text: "1. Go 1.25 released\n   Source: golang.org",
			Sources: []tools.Source{
				{Title: "Go 1.25 released", URL: "https://golang.org/blog"},
			},
		},
	}
	registry := tools.NewRegistry()
	registry.Register(web)

	model := &scriptedModel{responses: []string{
		"GENERAL_WEB",                    // classification
		"Go 1.25 is the newest release.", // synthesis
	}}
	a := newTestAgent(t, model, registry)

	var statuses []string
	result := a.Run(context.Background(), "client-1", "what does the go 1.25 changelog say", nil, func(msg string) {
		statuses = append(statuses, msg)
	})

	if result.Response != "Go 1.25 is the newest release." {
		t.Errorf("Response = %q, want synthesis output", result.Response)
	}
	if result.Confidence != 85 {
		t.Errorf("Confidence = %d, want 85", result.Confidence)
	}
	if result.Method != "Enhanced Search: web_search" {
		t.Errorf("Method = %q, want %q", result.Method, "Enhanced Search: web_search")
	}
	if result.ToolsUsed != 1 {
		t.Errorf("ToolsUsed = %d, want 1", result.ToolsUsed)
	}
	if len(result.Sources) != 1 || result.Sources[0].URL != "https://golang.org/blog" {
		t.Errorf("Sources = %+v, want the web result", result.Sources)
	}
	if len(web.queries) != 1 {
		t.Fatalf("tool executed %d times, want 1", len(web.queries))
	}

	found := false
	for _, s := range statuses {
		if s == "Running web_search (1/1)..." {
			found = true
		}
	}
	if !found {
		t.Errorf("statuses missing tool execution message: %v", statuses)
	}
}

func TestRunServesCachedResult(t *testing.T) {
	model := &scriptedModel{responses: []string{
		"CASUAL", "First answer.",
	}}
	a := newTestAgent(t, model, nil)

	first := a.Run(context.Background(), "client-1", "hello", nil, func(string) {})
	if first.FromCache {
		t.Fatal("first run served from cache")
	}

	var statuses []string
	second := a.Run(context.Background(), "client-1", "hello", nil, func(msg string) {
		statuses = append(statuses, msg)
	})
	if !second.FromCache {
		t.Error("second run not served from cache")
	}
	if second.Response != first.Response {
		t.Errorf("cached Response = %q, want %q", second.Response, first.Response)
	}
	if len(statuses) != 1 || statuses[0] != "Found cached response" {
		t.Errorf("cached statuses = %v, want only the cache message", statuses)
	}
}

func TestRunCacheIsPerUser(t *testing.T) {
	model := &scriptedModel{responses: []string{
		"CASUAL", "Answer for one.",
		"CASUAL", "Answer for two.",
	}}
	a := newTestAgent(t, model, nil)

	a.Run(context.Background(), "client-1", "hello", nil, func(string) {})
	other := a.Run(context.Background(), "client-2", "hello", nil, func(string) {})

	if other.FromCache {
		t.Error("different user served another user's cached response")
	}
	if other.Response != "Answer for two." {
		t.Errorf("Response = %q, want %q", other.Response, "Answer for two.")
	}
}

func TestRunToolFailureLowersConfidence(t *testing.T) {
	registry := tools.NewRegistry()
	registry.Register(&stubTool{name: "web_search", err: context.DeadlineExceeded})

	model := &scriptedModel{responses: []string{
		"GENERAL_WEB",
		"I could not find current results for that.",
	}}
	a := newTestAgent(t, model, registry)

	result := a.Run(context.Background(), "client-1", "search for obscure thing", nil, func(string) {})

	if result.Confidence != 60 {
		t.Errorf("Confidence = %d, want 60", result.Confidence)
	}
	if len(result.Sources) != 0 {
		t.Errorf("Sources = %+v, want none", result.Sources)
	}
}

func TestRunSpecialistPath(t *testing.T) {
	web := &stubTool{
		name: "web_search",
		output: &tools.Output{
			Text:    "1. Quantum computing overview",
			Sources: []tools.Source{{Title: "Quantum computing overview", URL: "https://example.com/qc"}},
		},
	}
	registry := tools.NewRegistry()
	registry.Register(web)

	model := &scriptedModel{responses: []string{
		"Synthesized specialist answer.",  // orchestrator synthesis
		"Personalized specialist answer.", // adaptive pass
	}}
	a := newTestAgent(t, model, registry)

	var statuses []string
	result := a.Run(context.Background(), "client-1", "research quantum computing trends", nil, func(msg string) {
		statuses = append(statuses, msg)
	})

	if result.Confidence != 95 {
		t.Errorf("Confidence = %d, want 95", result.Confidence)
	}
	if result.Method != "Multi-Agent: ResearchAgent" {
		t.Errorf("Method = %q, want %q", result.Method, "Multi-Agent: ResearchAgent")
	}
	if result.Response != "Personalized specialist answer." {
		t.Errorf("Response = %q, want adapted output", result.Response)
	}
	if !result.PersonalizationApplied {
		t.Error("PersonalizationApplied = false")
	}

	found := false
	for _, s := range statuses {
		if s == "Processed by ResearchAgent" {
			found = true
		}
	}
	if !found {
		t.Errorf("statuses missing specialist message: %v", statuses)
	}
}

func TestRunAttachesAnalytics(t *testing.T) {
	model := &scriptedModel{responses: []string{"CASUAL", "Hello."}}
	a := newTestAgent(t, model, nil)

	result := a.Run(context.Background(), "client-1", "hello", nil, func(string) {})
	if result.Analytics == nil {
		t.Fatal("Analytics = nil")
	}
	if result.Analytics.UserPatterns.Status == "" && result.Analytics.UserPatterns.TotalInteractions == 0 {
		t.Error("UserPatterns missing both status and interaction count")
	}
}

func TestClearForgetsUser(t *testing.T) {
	model := &scriptedModel{responses: []string{"CASUAL", "Hello."}}
	a := newTestAgent(t, model, nil)

	a.Run(context.Background(), "client-1", "hello", nil, func(string) {})
	if err := a.Clear(context.Background(), "client-1"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	ctx := a.memory.ContextForQuery("client-1", "hello again")
	if !ctx.NewUser {
		t.Error("ContextForQuery.NewUser = false after Clear")
	}
}

func TestSystemHealth(t *testing.T) {
	registry := tools.NewRegistry()
	registry.Register(&stubTool{name: "web_search"})
	registry.Register(&stubTool{name: "news_search"})

	model := &scriptedModel{}
	a := newTestAgent(t, model, registry)

	h := a.SystemHealth(context.Background())
	if h.Status != "healthy" {
		t.Errorf("Status = %q, want %q", h.Status, "healthy")
	}
	if len(h.RegisteredTools) != 2 {
		t.Errorf("RegisteredTools = %v, want 2 entries", h.RegisteredTools)
	}
}

func TestCacheKeyNormalizesQuery(t *testing.T) {
	if cacheKey("u1", "Hello World") != cacheKey("u1", "  hello world ") {
		t.Error("cacheKey not normalized for case and whitespace")
	}
	if cacheKey("u1", "hello") == cacheKey("u2", "hello") {
		t.Error("cacheKey identical across users")
	}
}

func TestStandardMethodNames(t *testing.T) {
	tests := []struct {
		name string
		plan *Plan
		want string
	}{
		{"casual", &Plan{Category: CategoryCasual}, "Casual Chat"},
		{"no tools", &Plan{Category: CategoryMemory}, "Direct Answer"},
		{"single tool", &Plan{Category: CategoryGeneralWeb, ToolCalls: []ToolCall{{Name: "web_search"}}}, "Enhanced Search: web_search"},
		{"two tools", &Plan{Category: CategoryNews, ToolCalls: []ToolCall{{Name: "news_search"}, {Name: "web_search"}}}, "Enhanced Search: news_search, web_search"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := standardMethod(tt.plan); got != tt.want {
				t.Errorf("standardMethod() = %q, want %q", got, tt.want)
			}
		})
	}
}
