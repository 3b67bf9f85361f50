package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sibylchat/sibyl/internal/groq"
	"github.com/sibylchat/sibyl/internal/logging"
	"github.com/sibylchat/sibyl/internal/tools"
)

// Query categories.
const (
	CategoryCasual      = "CASUAL"
	CategorySocialMedia = "SOCIAL_MEDIA"
	CategoryFinancial   = "FINANCIAL"
	CategoryNews        = "NEWS"
	CategoryGeneralWeb  = "GENERAL_WEB"
	CategoryMemory      = "MEMORY"
)

const classificationPrompt = `Analyze the user's message and classify it into one of these categories:

1. CASUAL - Simple greetings, small talk, acknowledgments
Examples: "hi", "hello", "how are you", "thanks", "goodbye", "ok"

2. SOCIAL_MEDIA - Questions about social media platforms, statistics, trends
Examples: "most liked image on Instagram", "trending on TikTok", "Twitter followers"

3. FINANCIAL - Stock prices, market data, financial information
Examples: "Apple stock price", "TSLA earnings", "market cap of Google"

4. NEWS - Current events, recent news, breaking news
Examples: "latest news about", "what happened with", "recent developments"

5. GENERAL_WEB - General information, facts, explanations
Examples: "what is", "how does", "explain", "tell me about"

6. MEMORY - Questions about the conversation history, past interactions, or user preferences
Examples: "what did I ask first?", "summarize our chat", "do you remember my name?"

Respond with only the category name: CASUAL, SOCIAL_MEDIA, FINANCIAL, NEWS, GENERAL_WEB, or MEMORY`

// ToolCall names a tool to run with a query.
type ToolCall struct {
	Name  string
	Query string
}

// Plan is the classified strategy for answering a query.
type Plan struct {
	Category  string
	ToolCalls []ToolCall
	Log       string
}

// Casual reports whether the plan handles small talk without tools.
func (p *Plan) Casual() bool {
	return p.Category == CategoryCasual
}

// planner classifies queries and maps them to tool calls.
type planner struct {
	client    *groq.Client
	fastModel string
}

// Plan classifies the query and decides which tools to run. On
// classification failure it falls back to a plain web search.
func (p *planner) Plan(ctx context.Context, query string) *Plan {
	log := logging.Agent()

	category, err := p.classify(ctx, query)
	if err != nil {
		log.Warn("classification failed, defaulting to web search", "error", err)
		return &Plan{
			Category:  CategoryGeneralWeb,
			ToolCalls: []ToolCall{{Name: "web_search", Query: query}},
			Log:       "Error during classification, defaulting to web search",
		}
	}

	switch category {
	case CategoryCasual:
		return &Plan{Category: category, Log: "Detected casual conversation - no tools needed"}
	case CategoryMemory:
		return &Plan{Category: category, Log: "Detected memory query - using conversation context"}
	case CategorySocialMedia:
		calls := []ToolCall{
			{Name: "social_media_search", Query: socialQuery(query)},
			{Name: "web_search", Query: query},
		}
		return &Plan{Category: category, ToolCalls: calls, Log: planLog(category, calls)}
	case CategoryFinancial:
		var calls []ToolCall
		if ticker := p.extractTicker(ctx, query); ticker != "" {
			calls = []ToolCall{{Name: "get_stock_info", Query: ticker}}
		} else {
			calls = []ToolCall{{Name: "web_search", Query: query}}
		}
		return &Plan{Category: category, ToolCalls: calls, Log: planLog(category, calls)}
	case CategoryNews:
		calls := []ToolCall{
			{Name: "news_search", Query: query},
			{Name: "web_search", Query: query},
		}
		return &Plan{Category: category, ToolCalls: calls, Log: planLog(category, calls)}
	default:
		calls := []ToolCall{{Name: "web_search", Query: query}}
		return &Plan{Category: CategoryGeneralWeb, ToolCalls: calls, Log: planLog(CategoryGeneralWeb, calls)}
	}
}

func (p *planner) classify(ctx context.Context, query string) (string, error) {
	resp, err := p.client.ChatCompletion(ctx, groq.Request{
		Model: p.fastModel,
		Messages: []groq.Message{
			{Role: groq.RoleSystem, Content: classificationPrompt},
			{Role: groq.RoleUser, Content: query},
		},
		Temperature: 0.0,
		MaxTokens:   20,
	})
	if err != nil {
		return "", err
	}

	answer := strings.ToUpper(strings.TrimSpace(resp.Text()))
	for _, cat := range []string{
		CategoryCasual, CategorySocialMedia, CategoryFinancial,
		CategoryNews, CategoryMemory, CategoryGeneralWeb,
	} {
		if strings.Contains(answer, cat) {
			return cat, nil
		}
	}
	return CategoryGeneralWeb, nil
}

var extractedTickerRe = regexp.MustCompile(`\b[A-Z]{1,5}\b`)

// extractTicker asks the model for the ticker symbol in the query,
// falling back to regex extraction when the model call fails.
func (p *planner) extractTicker(ctx context.Context, query string) string {
	prompt := fmt.Sprintf(`Extract the stock ticker symbol from this query: %q
Return ONLY the ticker symbol (e.g., AAPL, TSLA).
If no specific company/ticker is mentioned, return "NONE".`, query)

	resp, err := p.client.ChatCompletion(ctx, groq.Request{
		Model:       p.fastModel,
		Messages:    []groq.Message{{Role: groq.RoleUser, Content: prompt}},
		Temperature: 0.0,
		MaxTokens:   10,
	})
	if err != nil {
		logging.Agent().Warn("ticker extraction failed", "error", err)
		return tools.ExtractTicker(query)
	}

	extracted := strings.ToUpper(strings.TrimSpace(resp.Text()))
	if strings.Contains(extracted, "NONE") {
		return ""
	}
	return extractedTickerRe.FindString(extracted)
}

// socialQuery appends the platform to the query when one is mentioned,
// defaulting to instagram.
func socialQuery(query string) string {
	platform := "instagram"
	lower := strings.ToLower(query)
	switch {
	case strings.Contains(lower, "twitter") || strings.Contains(lower, "x.com"):
		platform = "twitter"
	case strings.Contains(lower, "tiktok"):
		platform = "tiktok"
	case strings.Contains(lower, "facebook"):
		platform = "facebook"
	case strings.Contains(lower, "youtube"):
		platform = "youtube"
	}
	if strings.Contains(lower, platform) {
		return query
	}
	return query + " " + platform
}

func planLog(category string, calls []ToolCall) string {
	names := make([]string, len(calls))
	for i, call := range calls {
		names[i] = call.Name
	}
	return fmt.Sprintf("Classified as %s, using tools: %s", category, strings.Join(names, ", "))
}
