package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sibylchat/sibyl/internal/groq"
	"github.com/sibylchat/sibyl/internal/logging"
	"github.com/sibylchat/sibyl/internal/memory"
)

// adaptiveResult is a base response personalized to the user.
type adaptiveResult struct {
	Response     string
	Personalized bool
}

// adaptiveGenerator rewrites responses using the user's learned context
// and any proactive suggestions. Failures fall back to the base
// response unchanged.
type adaptiveGenerator struct {
	client *groq.Client
	model  string
}

func (g *adaptiveGenerator) Adapt(ctx context.Context, query, base string, userCtx memory.QueryContext, suggestions []Suggestion) *adaptiveResult {
	ctxJSON, _ := json.MarshalIndent(userCtx, "", "  ")
	sugJSON, _ := json.MarshalIndent(suggestions, "", "  ")

	prompt := fmt.Sprintf(`You are an adaptive AI assistant. Customize this response based on the user's context and preferences.

Original Query: %s
Base Response: %s

User Context: %s
Proactive Suggestions: %s

Guidelines:
1. Adapt the tone and complexity based on user's communication style
2. Reference relevant previous conversations when appropriate
3. Include proactive suggestions naturally if they're relevant
4. Maintain the core information while personalizing the delivery

Generate an enhanced, personalized response:`, query, base, ctxJSON, sugJSON)

	resp, err := g.client.ChatCompletion(ctx, groq.Request{
		Model:       g.model,
		Messages:    []groq.Message{{Role: groq.RoleUser, Content: prompt}},
		Temperature: 0.7,
		MaxTokens:   1200,
	})
	if err != nil {
		logging.Agent().Warn("adaptive response generation failed", "error", err)
		return &adaptiveResult{Response: base, Personalized: false}
	}

	return &adaptiveResult{Response: resp.Text(), Personalized: true}
}
