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

// Confidence levels assigned by the synthesizer.
const (
	confidenceCasual  = 95
	confidenceSuccess = 85
	confidenceErrors  = 60
	confidenceFailed  = 20
)

const casualSystemPrompt = `You are a friendly and helpful AI assistant.

If the user's message is casual (greetings, small talk):
- Respond naturally and conversationally, keeping it brief, warm, and friendly.

If the user is asking about the conversation history (e.g., "what did I ask before?", "summarize our chat"):
- Use the provided conversation history to answer accurately.
- Be specific about what was discussed.

Keep responses friendly and helpful.`

const synthesisSystemPrompt = `You are an AI assistant that synthesizes information from various sources to provide a comprehensive, well-structured, and coherent answer to the user's query.

IMPORTANT FORMATTING RULES:
- DO NOT include any URLs or links in your response text
- Focus only on providing the factual information clearly
- Use clean, readable formatting with proper paragraphs
- Use markdown formatting for better readability (bold, headers, lists when appropriate)
- If multiple tools provided similar information, synthesize it coherently
- If there are conflicting results, mention the discrepancy

Your job is to provide clean, informative content. The sources will be handled separately.`

const degradedSystemPrompt = `The search tools couldn't find good results for this query. Provide a helpful response that:
1. Acknowledges the limitation
2. Suggests alternative approaches
3. Offers to help with related questions
4. Provides any general knowledge you might have (but clearly indicate it's general knowledge)

Be honest about limitations while still being helpful.`

// toolRun is the outcome of one executed tool call.
type toolRun struct {
	name   string
	output *tools.Output
	err    error
}

// synthesis is the synthesizer's final answer.
type synthesis struct {
	Content    string
	Confidence int
	Sources    []Source
}

// synthesizer turns tool outputs and history into the final response.
type synthesizer struct {
	client    *groq.Client
	fastModel string
}

// Casual answers small talk and memory questions from conversation
// history alone.
func (s *synthesizer) Casual(ctx context.Context, query string, history []memory.Turn) *synthesis {
	messages := []groq.Message{{Role: groq.RoleSystem, Content: casualSystemPrompt}}
	messages = append(messages, historyMessages(history, 20)...)
	messages = append(messages, groq.Message{Role: groq.RoleUser, Content: query})

	resp, err := s.client.ChatCompletion(ctx, groq.Request{
		Model:       s.fastModel,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   150,
	})
	if err != nil {
		logging.Agent().Warn("casual response generation failed", "error", err)
		return &synthesis{
			Content:    "Hello! How can I assist you today?",
			Confidence: 90,
		}
	}

	return &synthesis{Content: resp.Text(), Confidence: confidenceCasual}
}

// FromTools synthesizes an answer from tool runs. Tool failures lower
// confidence and switch to the degraded prompt.
func (s *synthesizer) FromTools(ctx context.Context, query string, runs []toolRun, history []memory.Turn) *synthesis {
	hasErrors := false
	for _, run := range runs {
		if run.err != nil {
			hasErrors = true
			break
		}
	}

	systemPrompt := synthesisSystemPrompt
	if hasErrors {
		systemPrompt = degradedSystemPrompt
	}

	prompt := fmt.Sprintf(`User Query: %s
Information from Tools:
%s

Based on the above information, provide a clear and comprehensive answer.
Do not include any URLs or source references in your response.`, query, describeRuns(runs))

	messages := []groq.Message{{Role: groq.RoleSystem, Content: systemPrompt}}
	messages = append(messages, historyMessages(history, 20)...)
	messages = append(messages, groq.Message{Role: groq.RoleUser, Content: prompt})

	resp, err := s.client.ChatCompletion(ctx, groq.Request{
		Model:       s.fastModel,
		Messages:    messages,
		Temperature: 0.7,
	})
	if err != nil {
		logging.Agent().Error("response synthesis failed", "error", err)
		return &synthesis{
			Content:    "I apologize, but I encountered an error while processing your request. Please try rephrasing your question or ask something else.",
			Confidence: confidenceFailed,
		}
	}

	confidence := confidenceSuccess
	if hasErrors {
		confidence = confidenceErrors
	}

	return &synthesis{
		Content:    resp.Text(),
		Confidence: confidence,
		Sources:    extractSources(runs),
	}
}

// describeRuns formats tool outputs for the synthesis prompt. URLs are
// deliberately omitted so they cannot leak into the response text.
func describeRuns(runs []toolRun) string {
	var b strings.Builder
	for _, run := range runs {
		fmt.Fprintf(&b, "[%s]\n", run.name)
		if run.err != nil {
			fmt.Fprintf(&b, "error: %v\n\n", run.err)
			continue
		}
		b.WriteString(run.output.Text)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

// extractSources numbers the sources from all successful runs.
func extractSources(runs []toolRun) []Source {
	var sources []Source
	counter := 1
	for _, run := range runs {
		if run.err != nil {
			continue
		}
		for _, src := range run.output.Sources {
			title := strings.Join(strings.Fields(src.Title), " ")
			if title == "" {
				title = fmt.Sprintf("Source %d", counter)
			}
			if len(title) > 100 {
				title = title[:97] + "..."
			}
			sources = append(sources, Source{
				ID:    counter,
				Title: title,
				URL:   src.URL,
				Type:  sourceType(run.name, src.URL),
			})
			counter++
		}
	}
	return sources
}

var socialDomains = []string{"instagram.com", "twitter.com", "facebook.com", "tiktok.com"}

func sourceType(toolName, url string) string {
	switch {
	case strings.Contains(toolName, "stock") || strings.Contains(toolName, "financial"):
		return "financial"
	case strings.Contains(toolName, "news"):
		return "news"
	case strings.Contains(toolName, "social_media"):
		return "social"
	}
	lower := strings.ToLower(url)
	for _, domain := range socialDomains {
		if strings.Contains(lower, domain) {
			return "social"
		}
	}
	return "web"
}

// historyMessages converts the most recent turns into chat messages.
func historyMessages(history []memory.Turn, limit int) []groq.Message {
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]groq.Message, len(history))
	for i, turn := range history {
		out[i] = groq.Message{Role: turn.Role, Content: turn.Content}
	}
	return out
}
