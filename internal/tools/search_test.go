package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func searchServer(t *testing.T, results []searchResult) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q, want /search", r.URL.Path)
		}
		if r.URL.Query().Get("format") != "json" {
			t.Errorf("format = %q, want json", r.URL.Query().Get("format"))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(searchResponse{Results: results})
	}))
}

func TestWebSearchExecute(t *testing.T) {
	srv := searchServer(t, []searchResult{
		{Title: "Go programming language", URL: "https://go.dev", Content: "Build simple, secure, scalable systems"},
		{Title: "Go tutorial", URL: "https://go.dev/tour", Content: "An interactive introduction"},
	})
	defer srv.Close()

	tool := NewWebSearchTool(WithSearchBaseURL(srv.URL))
	out, err := tool.Execute(context.Background(), "go programming")
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if !strings.Contains(out.Text, "Go programming language") {
		t.Errorf("output missing result title: %s", out.Text)
	}
	if len(out.Sources) != 2 {
		t.Errorf("len(Sources) = %d, want 2", len(out.Sources))
	}
	if out.Sources[0].URL != "https://go.dev" {
		t.Errorf("first source = %q", out.Sources[0].URL)
	}
}

func TestWebSearchDeduplicates(t *testing.T) {
	// The same URL comes back from every query variant.
	srv := searchServer(t, []searchResult{
		{Title: "Single result", URL: "https://example.com/one", Content: "only entry"},
	})
	defer srv.Close()

	tool := NewWebSearchTool(WithSearchBaseURL(srv.URL))
	out, err := tool.Execute(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(out.Sources) != 1 {
		t.Errorf("len(Sources) = %d, want 1 after dedup", len(out.Sources))
	}
}

func TestWebSearchNoResults(t *testing.T) {
	srv := searchServer(t, nil)
	defer srv.Close()

	tool := NewWebSearchTool(WithSearchBaseURL(srv.URL))
	_, err := tool.Execute(context.Background(), "obscure query")
	if err == nil {
		t.Fatal("Execute() should fail when no results are found")
	}
}

func TestFilterEnglish(t *testing.T) {
	results := []searchResult{
		{Title: "English title", Content: "plain English snippet", URL: "https://a.test"},
		{Title: "日本語のタイトル", Content: "日本語のコンテンツです", URL: "https://b.test"},
		{Title: "", Content: "", URL: "https://c.test"},
	}

	got := filterEnglish(results)
	if len(got) != 1 {
		t.Fatalf("filterEnglish() kept %d results, want 1", len(got))
	}
	if got[0].URL != "https://a.test" {
		t.Errorf("kept %q, want the English result", got[0].URL)
	}
}

func TestEnhanceQuery(t *testing.T) {
	tests := []struct {
		query    string
		category string
		contains string
	}{
		{"TSLA stock", "general", "today current"},
		{"election results", "news", "latest breaking"},
		{"most liked photo", "social media", "official statistics"},
		{"capital of France", "general", "official"},
	}

	for _, tt := range tests {
		variants := enhanceQuery(tt.query, tt.category)
		if len(variants) == 0 || variants[0] != tt.query {
			t.Errorf("enhanceQuery(%q) first variant = %v, want original query", tt.query, variants)
		}
		if len(variants) > 3 {
			t.Errorf("enhanceQuery(%q) returned %d variants, want at most 3", tt.query, len(variants))
		}
		found := false
		for _, v := range variants {
			if strings.Contains(v, tt.contains) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("enhanceQuery(%q, %q) = %v, want a variant containing %q",
				tt.query, tt.category, variants, tt.contains)
		}
	}
}

func TestRelevanceScorePrefersOfficialSources(t *testing.T) {
	official := searchResult{Title: "stats", URL: "https://instagram.com/p/x", Content: ""}
	other := searchResult{Title: "stats", URL: "https://randomblog.test/x", Content: ""}

	if relevanceScore(official, "stats") <= relevanceScore(other, "stats") {
		t.Error("official source should outscore a random blog")
	}
}

func TestRelevanceScoreExactTitleMatch(t *testing.T) {
	exact := searchResult{Title: "tesla stock price", URL: "https://a.test", Content: ""}
	partial := searchResult{Title: "tesla factory news", URL: "https://b.test", Content: ""}

	if relevanceScore(exact, "tesla stock price") <= relevanceScore(partial, "tesla stock price") {
		t.Error("exact title match should outscore a partial match")
	}
}
