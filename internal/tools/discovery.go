package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sibylchat/sibyl/internal/groq"
	"github.com/sibylchat/sibyl/internal/logging"
)

// NeedAnalysis is the model's judgment on whether the registered tools
// can cover a query.
type NeedAnalysis struct {
	NeedsNewTool      bool     `json:"needs_new_tool"`
	SuggestedToolName string   `json:"suggested_tool_name"`
	ToolDescription   string   `json:"tool_description"`
	ToolCapabilities  []string `json:"tool_capabilities"`
	Priority          string   `json:"priority"`
	Reasoning         string   `json:"reasoning"`
}

// DiscoveredSpec is a tool specification recorded by the discovery
// engine. Specs are tracked for operator review; sibyl does not
// generate executable tools at runtime.
type DiscoveredSpec struct {
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Capabilities []string  `json:"capabilities"`
	Priority     string    `json:"priority"`
	Created      time.Time `json:"created"`
	UsageCount   int       `json:"usage_count"`
}

// Discovery analyzes queries for capability gaps and tracks suggested
// tool specifications.
type Discovery struct {
	client *groq.Client
	model  string

	mu    sync.Mutex
	specs map[string]*DiscoveredSpec
}

// NewDiscovery creates a discovery engine backed by the given model.
func NewDiscovery(client *groq.Client, model string) *Discovery {
	return &Discovery{
		client: client,
		model:  model,
		specs:  make(map[string]*DiscoveredSpec),
	}
}

// AnalyzeNeeds asks the model whether the available tools can handle
// the query. Analysis failures are not fatal: the zero-value analysis
// means no new tool is needed.
func (d *Discovery) AnalyzeNeeds(ctx context.Context, query string, available []string) NeedAnalysis {
	prompt := fmt.Sprintf(`Analyze this user query to determine if new tools or capabilities are needed.

Query: %q
Available Tools: %s

Determine:
1. Can existing tools handle this query effectively?
2. What specific new tool would be most helpful?
3. What would this new tool do?
4. Priority level (low/medium/high)

Respond in JSON format:
{
  "needs_new_tool": boolean,
  "suggested_tool_name": "string",
  "tool_description": "string",
  "tool_capabilities": ["capability1", "capability2"],
  "priority": "low/medium/high",
  "reasoning": "explanation"
}`, query, strings.Join(available, ", "))

	resp, err := d.client.ChatCompletion(ctx, groq.Request{
		Model:       d.model,
		Messages:    []groq.Message{{Role: groq.RoleUser, Content: prompt}},
		Temperature: 0.3,
		MaxTokens:   400,
		JSONMode:    true,
	})
	if err != nil {
		logging.Tools().Warn("tool need analysis failed", "error", err)
		return NeedAnalysis{Reasoning: "analysis failed"}
	}

	var analysis NeedAnalysis
	if err := json.Unmarshal([]byte(resp.Text()), &analysis); err != nil {
		logging.Tools().Warn("tool need analysis returned invalid JSON", "error", err)
		return NeedAnalysis{Reasoning: "analysis failed"}
	}

	if analysis.NeedsNewTool {
		d.record(analysis)
	}
	return analysis
}

// record stores a suggested tool spec, bumping the usage count when the
// same name comes up again.
func (d *Discovery) record(analysis NeedAnalysis) {
	name := strings.ToLower(strings.ReplaceAll(analysis.SuggestedToolName, " ", "_"))
	if name == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if spec, ok := d.specs[name]; ok {
		spec.UsageCount++
		return
	}
	d.specs[name] = &DiscoveredSpec{
		Name:         name,
		Description:  analysis.ToolDescription,
		Capabilities: analysis.ToolCapabilities,
		Priority:     analysis.Priority,
		Created:      time.Now().UTC(),
		UsageCount:   1,
	}
}

// Specs returns the recorded tool specifications.
func (d *Discovery) Specs() []DiscoveredSpec {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]DiscoveredSpec, 0, len(d.specs))
	for _, spec := range d.specs {
		out = append(out, *spec)
	}
	return out
}
