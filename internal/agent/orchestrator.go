package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/sibylchat/sibyl/internal/groq"
	"github.com/sibylchat/sibyl/internal/logging"
	"github.com/sibylchat/sibyl/internal/memory"
	"github.com/sibylchat/sibyl/internal/tools"
)

// Source is a reference returned alongside a response.
type Source struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Type     string `json:"type"`
	Platform string `json:"platform,omitempty"`
}

// SpecialistResult is the output of one specialist agent.
type SpecialistResult struct {
	Agent   string
	Summary string
	Sources []Source
}

// Specialist is a domain-focused processing strategy. CanHandle is a
// cheap keyword check; the first matching specialist wins.
type Specialist interface {
	Name() string
	CanHandle(query string) bool
	Process(ctx context.Context, query string, history []memory.Turn) (*SpecialistResult, error)
}

// OrchestratorResult is a specialist result synthesized into a final
// answer.
type OrchestratorResult struct {
	Content    string
	Specialist string
	Sources    []Source
}

// Orchestrator routes queries to specialist agents and synthesizes
// their output into a user-facing response.
type Orchestrator struct {
	client      *groq.Client
	model       string
	specialists []Specialist
}

// NewOrchestrator creates the orchestrator with the standard
// specialists: research, analysis, and creative.
func NewOrchestrator(client *groq.Client, model, fastModel string, registry *tools.Registry, finance *tools.FinanceTool) *Orchestrator {
	return &Orchestrator{
		client: client,
		model:  model,
		specialists: []Specialist{
			&researchSpecialist{registry: registry},
			&analysisSpecialist{client: client, fastModel: fastModel, finance: finance},
			&creativeSpecialist{client: client, model: model},
		},
	}
}

// ErrNoSpecialist is returned when no specialist claims the query.
var ErrNoSpecialist = fmt.Errorf("no suitable specialist agent found")

// Process selects a specialist for the query and synthesizes its
// results. Returns ErrNoSpecialist when nothing matches, which sends
// the pipeline down the standard path.
func (o *Orchestrator) Process(ctx context.Context, query string, history []memory.Turn) (*OrchestratorResult, error) {
	var selected Specialist
	for _, s := range o.specialists {
		if s.CanHandle(query) {
			selected = s
			break
		}
	}
	if selected == nil {
		return nil, ErrNoSpecialist
	}

	logging.Agent().Debug("specialist selected", "agent", selected.Name(), "query", query)

	result, err := selected.Process(ctx, query, history)
	if err != nil {
		return nil, fmt.Errorf("specialist %s failed: %w", selected.Name(), err)
	}

	prompt := fmt.Sprintf(`A specialist agent (%s) has processed this query: %q

Agent Results:
%s

Synthesize this information into a comprehensive, user-friendly response.
Be informative, well-structured, and directly address the user's query.
Do not include any URLs in your response.`, result.Agent, query, result.Summary)

	resp, err := o.client.ChatCompletion(ctx, groq.Request{
		Model:       o.model,
		Messages:    []groq.Message{{Role: groq.RoleUser, Content: prompt}},
		Temperature: 0.7,
		MaxTokens:   1000,
	})
	if err != nil {
		return nil, fmt.Errorf("specialist synthesis failed: %w", err)
	}

	return &OrchestratorResult{
		Content:    resp.Text(),
		Specialist: result.Agent,
		Sources:    result.Sources,
	}, nil
}

// researchSpecialist gathers information via web and news search.
type researchSpecialist struct {
	registry *tools.Registry
}

var researchKeywords = []string{
	"research", "find information", "tell me about", "what is", "explain",
	"how does", "latest news", "recent developments",
}

func (s *researchSpecialist) Name() string { return "ResearchAgent" }

func (s *researchSpecialist) CanHandle(query string) bool {
	return matchesAny(query, researchKeywords)
}

func (s *researchSpecialist) Process(ctx context.Context, query string, _ []memory.Turn) (*SpecialistResult, error) {
	lower := strings.ToLower(query)
	newsFocused := strings.Contains(lower, "news") || strings.Contains(lower, "recent")

	primaryTool := "web_search"
	if newsFocused {
		primaryTool = "news_search"
	}

	primary, err := s.registry.Execute(ctx, primaryTool, query)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Primary results (%s):\n%s\n", primaryTool, primary.Text)
	sources := numberSources(primary.Sources, "research", 1)

	if newsFocused {
		if secondary, err := s.registry.Execute(ctx, "web_search", query); err == nil {
			fmt.Fprintf(&b, "\nSecondary results (web_search):\n%s\n", secondary.Text)
			sources = append(sources, numberSources(secondary.Sources, "research_secondary", len(sources)+1)...)
		}
	}

	return &SpecialistResult{
		Agent:   s.Name(),
		Summary: b.String(),
		Sources: sources,
	}, nil
}

// analysisSpecialist handles data and financial analysis.
type analysisSpecialist struct {
	client    *groq.Client
	fastModel string
	finance   *tools.FinanceTool
}

var analysisKeywords = []string{
	"analyze", "compare", "statistics", "data", "trends", "insights",
	"stock", "price", "financial", "market",
}

var financialKeywords = []string{"stock", "price", "financial", "market", "dividend", "earnings"}

func (s *analysisSpecialist) Name() string { return "AnalysisAgent" }

func (s *analysisSpecialist) CanHandle(query string) bool {
	return matchesAny(query, analysisKeywords)
}

func (s *analysisSpecialist) Process(ctx context.Context, query string, _ []memory.Turn) (*SpecialistResult, error) {
	var b strings.Builder
	var sources []Source

	if matchesAny(query, financialKeywords) {
		p := &planner{client: s.client, fastModel: s.fastModel}
		if ticker := p.extractTicker(ctx, query); ticker != "" {
			out, err := s.finance.Execute(ctx, ticker)
			if err != nil {
				logging.Agent().Warn("financial analysis failed", "ticker", ticker, "error", err)
			} else {
				fmt.Fprintf(&b, "Financial analysis:\n%s\n\n", out.Text)
				for _, src := range out.Sources {
					sources = append(sources, Source{
						ID:       len(sources) + 1,
						Title:    src.Title,
						URL:      src.URL,
						Type:     "financial",
						Platform: "yahoo_finance",
					})
				}
			}
		}
	}

	prompt := fmt.Sprintf(`Analyze the following query for key analytical insights:
Query: %s

Provide structured analysis focusing on:
1. Key metrics to consider
2. Comparative analysis approach
3. Trend indicators

Keep response concise and analytical.`, query)

	resp, err := s.client.ChatCompletion(ctx, groq.Request{
		Model:       s.fastModel,
		Messages:    []groq.Message{{Role: groq.RoleUser, Content: prompt}},
		Temperature: 0.3,
		MaxTokens:   300,
	})
	if err != nil {
		if b.Len() == 0 {
			return nil, err
		}
		b.WriteString("Analytical insights temporarily unavailable.")
	} else {
		b.WriteString("Analytical insights:\n" + resp.Text())
	}

	return &SpecialistResult{
		Agent:   s.Name(),
		Summary: b.String(),
		Sources: sources,
	}, nil
}

// creativeSpecialist generates original content.
type creativeSpecialist struct {
	client *groq.Client
	model  string
}

var creativeKeywords = []string{
	"write", "create", "generate", "compose", "draft", "brainstorm",
	"ideas", "creative", "story", "poem", "article",
}

func (s *creativeSpecialist) Name() string { return "CreativeAgent" }

func (s *creativeSpecialist) CanHandle(query string) bool {
	return matchesAny(query, creativeKeywords)
}

func (s *creativeSpecialist) Process(ctx context.Context, query string, _ []memory.Turn) (*SpecialistResult, error) {
	prompt := fmt.Sprintf(`You are a creative AI assistant. The user has requested: %s

Provide creative, original content that directly fulfills their request.
Be imaginative, engaging, and helpful. Structure your response appropriately for the content type requested.`, query)

	resp, err := s.client.ChatCompletion(ctx, groq.Request{
		Model:       s.model,
		Messages:    []groq.Message{{Role: groq.RoleUser, Content: prompt}},
		Temperature: 0.8,
		MaxTokens:   800,
	})
	if err != nil {
		return nil, err
	}

	return &SpecialistResult{
		Agent:   s.Name(),
		Summary: resp.Text(),
	}, nil
}

func matchesAny(query string, keywords []string) bool {
	lower := strings.ToLower(query)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// numberSources converts tool sources into numbered response sources.
func numberSources(in []tools.Source, sourceType string, start int) []Source {
	out := make([]Source, 0, len(in))
	for i, src := range in {
		title := strings.Join(strings.Fields(src.Title), " ")
		if title == "" {
			title = fmt.Sprintf("Source %d", start+i)
		}
		if len(title) > 100 {
			title = title[:97] + "..."
		}
		out = append(out, Source{
			ID:    start + i,
			Title: title,
			URL:   src.URL,
			Type:  sourceType,
		})
	}
	return out
}
