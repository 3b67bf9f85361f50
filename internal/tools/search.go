package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/sibylchat/sibyl/internal/logging"
)

// DefaultSearchBaseURL is the default SearxNG-compatible search endpoint.
const DefaultSearchBaseURL = "https://searx.be"

// searchResult is one entry from the search endpoint's JSON response.
type searchResult struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Content       string `json:"content"`
	PublishedDate string `json:"publishedDate"`
	Engine        string `json:"engine"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

// SearchTool performs web, news, or social media searches against a
// SearxNG-compatible JSON endpoint.
type SearchTool struct {
	name        string
	description string
	category    string // searx category: "general", "news", "social media"
	maxResults  int
	baseURL     string
	httpClient  *http.Client
}

// SearchOption configures a search tool.
type SearchOption func(*SearchTool)

// WithSearchBaseURL overrides the search endpoint. Tests point this at
// an httptest server.
func WithSearchBaseURL(u string) SearchOption {
	return func(t *SearchTool) {
		if u != "" {
			t.baseURL = u
		}
	}
}

// WithSearchHTTPClient overrides the underlying HTTP client.
func WithSearchHTTPClient(hc *http.Client) SearchOption {
	return func(t *SearchTool) {
		if hc != nil {
			t.httpClient = hc
		}
	}
}

func newSearchTool(name, description, category string, maxResults int, opts []SearchOption) *SearchTool {
	t := &SearchTool{
		name:        name,
		description: description,
		category:    category,
		maxResults:  maxResults,
		baseURL:     DefaultSearchBaseURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewWebSearchTool creates the general web search tool.
func NewWebSearchTool(opts ...SearchOption) *SearchTool {
	return newSearchTool("web_search",
		"Searches the web for information on a given query with multiple search strategies and language filtering.",
		"general", 8, opts)
}

// NewNewsSearchTool creates the news search tool.
func NewNewsSearchTool(opts ...SearchOption) *SearchTool {
	return newSearchTool("news_search",
		"Searches for recent news articles with enhanced filtering and relevance.",
		"news", 5, opts)
}

// NewSocialMediaSearchTool creates the social media search tool.
func NewSocialMediaSearchTool(opts ...SearchOption) *SearchTool {
	return newSearchTool("social_media_search",
		"Searches for social media statistics, trends, and information from platforms like Instagram, Twitter, and TikTok.",
		"social media", 5, opts)
}

func (t *SearchTool) Name() string        { return t.name }
func (t *SearchTool) Description() string { return t.description }

// Execute runs up to three query variants, merges the results, filters
// out non-English entries, deduplicates by URL, and returns the top
// results by relevance.
func (t *SearchTool) Execute(ctx context.Context, query string) (*Output, error) {
	log := logging.Tools()

	var all []searchResult
	for _, q := range enhanceQuery(query, t.category) {
		results, err := t.search(ctx, q)
		if err != nil {
			log.Warn("search variant failed", "tool", t.name, "query", q, "error", err)
			continue
		}
		all = append(all, results...)
	}

	filtered := filterEnglish(all)
	unique := dedupeByURL(filtered)
	sort.SliceStable(unique, func(i, j int) bool {
		return relevanceScore(unique[i], query) > relevanceScore(unique[j], query)
	})
	if len(unique) > t.maxResults {
		unique = unique[:t.maxResults]
	}

	if len(unique) == 0 {
		return nil, fmt.Errorf("no relevant English results found for %q", query)
	}

	log.Debug("search complete", "tool", t.name, "results", len(unique))
	return formatSearchOutput(unique), nil
}

func (t *SearchTool) search(ctx context.Context, query string) ([]searchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("language", "en-US")
	params.Set("safesearch", "1")
	if t.category != "general" {
		params.Set("categories", t.category)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		t.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return parsed.Results, nil
}

// enhanceQuery generates up to three query variants tuned to the kind
// of question being asked.
func enhanceQuery(query, category string) []string {
	variants := []string{query}
	lower := strings.ToLower(query)

	switch {
	case category == "news":
		variants = append(variants,
			query+" latest breaking",
			query+" recent updates")
	case category == "social media":
		variants = append(variants,
			query+" official statistics",
			query+" record")
	case strings.Contains(lower, "stock") || strings.Contains(lower, "price"):
		variants = append(variants,
			query+" today current",
			query+" market data")
	default:
		variants = append(variants,
			query+" latest information",
			`"`+query+`" official`)
	}

	if len(variants) > 3 {
		variants = variants[:3]
	}
	return variants
}

// filterEnglish drops results whose title and snippet are mostly
// non-ASCII letters. A result counts as English when at least 70% of
// its alphabetic characters are ASCII.
func filterEnglish(results []searchResult) []searchResult {
	var out []searchResult
	for _, r := range results {
		text := r.Title + " " + r.Content
		var ascii, total int
		for _, ch := range text {
			if !unicode.IsLetter(ch) {
				continue
			}
			total++
			if ch < 128 {
				ascii++
			}
		}
		if total > 0 && float64(ascii)/float64(total) >= 0.7 {
			out = append(out, r)
		}
	}
	return out
}

func dedupeByURL(results []searchResult) []searchResult {
	seen := make(map[string]bool, len(results))
	var out []searchResult
	for _, r := range results {
		if r.URL == "" || seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		out = append(out, r)
	}
	return out
}

var officialDomains = []string{"instagram.com", "facebook.com", "twitter.com", "linkedin.com"}

// relevanceScore prioritizes official sources, recent content, and
// exact query matches in the title.
func relevanceScore(r searchResult, query string) int {
	score := 0
	title := strings.ToLower(r.Title)
	snippet := strings.ToLower(r.Content)
	u := strings.ToLower(r.URL)

	for _, domain := range officialDomains {
		if strings.Contains(u, domain) {
			score += 10
			break
		}
	}

	for _, year := range []string{"2025", "2026"} {
		if strings.Contains(title, year) || strings.Contains(snippet, year) {
			score += 5
			break
		}
	}

	titleWords := strings.Fields(title)
	matched := true
	for _, word := range strings.Fields(strings.ToLower(query)) {
		found := false
		for _, tw := range titleWords {
			if tw == word {
				found = true
				break
			}
		}
		if !found {
			matched = false
			break
		}
	}
	if matched {
		score += 8
	}

	return score
}

func formatSearchOutput(results []searchResult) *Output {
	var b strings.Builder
	out := &Output{}
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n%s\n", i+1, r.Title, r.Content)
		if r.PublishedDate != "" {
			fmt.Fprintf(&b, "Published: %s\n", r.PublishedDate)
		}
		b.WriteString("\n")
		out.Sources = append(out.Sources, Source{Title: r.Title, URL: r.URL})
	}
	out.Text = strings.TrimSpace(b.String())
	return out
}
