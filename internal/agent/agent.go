// Package agent implements the query processing pipeline: cache
// lookup, tool planning and execution, specialist orchestration,
// response synthesis, and personalization.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/sibylchat/sibyl/internal/analytics"
	"github.com/sibylchat/sibyl/internal/cache"
	"github.com/sibylchat/sibyl/internal/groq"
	"github.com/sibylchat/sibyl/internal/logging"
	"github.com/sibylchat/sibyl/internal/memory"
	"github.com/sibylchat/sibyl/internal/tools"
)

// StatusFunc receives progress messages during query processing. It
// must not block; the web layer forwards these as status updates.
type StatusFunc func(message string)

// Result is the final response payload for one query.
type Result struct {
	Response               string             `json:"response"`
	Confidence             int                `json:"confidence"`
	Sources                []Source           `json:"sources"`
	ProcessingTime         float64            `json:"processing_time"`
	Method                 string             `json:"method"`
	ToolsUsed              int                `json:"tools_used"`
	SourcesFound           int                `json:"sources_found"`
	PersonalizationApplied bool               `json:"personalization_applied"`
	ProactiveSuggestions   []Suggestion       `json:"proactive_suggestions"`
	Analytics              *AnalyticsSnapshot `json:"analytics,omitempty"`
	FromCache              bool               `json:"from_cache,omitempty"`
}

// AnalyticsSnapshot is the analytics section attached to responses.
type AnalyticsSnapshot struct {
	CachePerformance cache.Stats      `json:"cache_performance"`
	UserPatterns     analytics.Report `json:"user_patterns"`
}

// Health reports pipeline health for the health endpoint.
type Health struct {
	Status           string      `json:"status"`
	CachePerformance cache.Stats `json:"cache_performance"`
	DiscoveredTools  int         `json:"discovered_tools"`
	RegisteredTools  []string    `json:"registered_tools"`
}

// Config wires the pipeline's collaborators.
type Config struct {
	Client    *groq.Client
	Model     string
	FastModel string

	Registry  *tools.Registry
	Finance   *tools.FinanceTool
	Discovery *tools.Discovery

	Cache     cache.Cache
	Memory    *memory.Manager
	Store     *memory.Store // optional persistent memory
	Analytics *analytics.Engine

	// HistoryWindow caps the turns loaded from persistent memory.
	HistoryWindow int
}

// Agent runs the full query pipeline.
type Agent struct {
	client    *groq.Client
	model     string
	fastModel string

	registry  *tools.Registry
	discovery *tools.Discovery

	orchestrator *Orchestrator
	planner      *planner
	synthesizer  *synthesizer
	adaptive     *adaptiveGenerator

	cache     cache.Cache
	memory    *memory.Manager
	store     *memory.Store
	analytics *analytics.Engine

	historyWindow int
}

// New creates the pipeline from its configuration.
func New(cfg Config) *Agent {
	historyWindow := cfg.HistoryWindow
	if historyWindow <= 0 {
		historyWindow = 10
	}
	return &Agent{
		client:        cfg.Client,
		model:         cfg.Model,
		fastModel:     cfg.FastModel,
		registry:      cfg.Registry,
		discovery:     cfg.Discovery,
		orchestrator:  NewOrchestrator(cfg.Client, cfg.Model, cfg.FastModel, cfg.Registry, cfg.Finance),
		planner:       &planner{client: cfg.Client, fastModel: cfg.FastModel},
		synthesizer:   &synthesizer{client: cfg.Client, fastModel: cfg.FastModel},
		adaptive:      &adaptiveGenerator{client: cfg.Client, model: cfg.Model},
		cache:         cfg.Cache,
		memory:        cfg.Memory,
		store:         cfg.Store,
		analytics:     cfg.Analytics,
		historyWindow: historyWindow,
	}
}

// Run processes one query end to end. Status messages are sent through
// status as processing progresses. Run always produces a Result; hard
// failures surface as a low-confidence apology rather than an error so
// the client still receives a terminal response.
func (a *Agent) Run(ctx context.Context, userID, query string, history []memory.Turn, status StatusFunc) *Result {
	log := logging.Agent()
	start := time.Now()

	// Reload persistent history after a restart.
	if len(history) == 0 && a.store != nil {
		if persisted, err := a.store.RecentHistory(ctx, userID, a.historyWindow); err == nil && len(persisted) > 0 {
			history = persisted
			log.Debug("loaded persistent history", "user_id", userID, "turns", len(history))
		}
	}

	cacheKey := cacheKey(userID, query)
	if cached, ok := a.cachedResult(ctx, cacheKey); ok {
		log.Info("serving cached response", "user_id", userID)
		status("Found cached response")
		cached.FromCache = true
		return cached
	}

	status("Analyzing your query...")

	// Capability gap analysis is advisory only.
	if a.discovery != nil {
		analysis := a.discovery.AnalyzeNeeds(ctx, query, a.registry.Names())
		if analysis.NeedsNewTool && (analysis.Priority == "high" || analysis.Priority == "medium") {
			status(fmt.Sprintf("Recorded tool suggestion: %s", analysis.SuggestedToolName))
		}
	}

	status("Loading your personalized context...")
	userCtx := a.memory.ContextForQuery(userID, query)
	suggestions := AnalyzeForSuggestions(history)
	if len(suggestions) > 0 {
		status(fmt.Sprintf("Found %d proactive suggestions", len(suggestions)))
	}

	status("Selecting specialist agent...")
	if result := a.runSpecialist(ctx, userID, query, history, userCtx, suggestions, start, status); result != nil {
		a.finish(ctx, userID, query, result, cacheKey, cache.DefaultTTL)
		return result
	}

	result := a.runStandard(ctx, userID, query, history, suggestions, start, status)
	a.finish(ctx, userID, query, result, cacheKey, cache.FinancialTTL)
	return result
}

// runSpecialist tries the multi-agent path. A nil return falls back to
// standard processing.
func (a *Agent) runSpecialist(ctx context.Context, userID, query string, history []memory.Turn,
	userCtx memory.QueryContext, suggestions []Suggestion, start time.Time, status StatusFunc) *Result {

	orch, err := a.orchestrator.Process(ctx, query, history)
	if err != nil {
		if err != ErrNoSpecialist {
			logging.Agent().Warn("specialist processing failed, falling back", "error", err)
			status("Switching to standard processing...")
		}
		return nil
	}

	status(fmt.Sprintf("Processed by %s", orch.Specialist))
	status("Personalizing your response...")

	adapted := a.adaptive.Adapt(ctx, query, orch.Content, userCtx, suggestions)
	elapsed := time.Since(start)

	result := &Result{
		Response:               adapted.Response,
		Confidence:             95,
		Sources:                orch.Sources,
		ProcessingTime:         roundSeconds(elapsed),
		Method:                 "Multi-Agent: " + orch.Specialist,
		ToolsUsed:              1,
		SourcesFound:           len(orch.Sources),
		PersonalizationApplied: adapted.Personalized,
		ProactiveSuggestions:   suggestions,
	}

	a.track(userID, orch.Specialist, query, elapsed)
	result.Analytics = a.snapshot(ctx, userID)
	return result
}

// runStandard is the classification-and-tools path.
func (a *Agent) runStandard(ctx context.Context, userID, query string, history []memory.Turn,
	suggestions []Suggestion, start time.Time, status StatusFunc) *Result {

	plan := a.planner.Plan(ctx, query)
	status(plan.Log)

	var runs []toolRun
	if len(plan.ToolCalls) > 0 {
		status(fmt.Sprintf("Executing %d tool(s)...", len(plan.ToolCalls)))
		for i, call := range plan.ToolCalls {
			status(fmt.Sprintf("Running %s (%d/%d)...", call.Name, i+1, len(plan.ToolCalls)))
			out, err := a.registry.Execute(ctx, call.Name, call.Query)
			runs = append(runs, toolRun{name: call.Name, output: out, err: err})
			switch {
			case err != nil:
				logging.Agent().Warn("tool execution failed", "tool", call.Name, "error", err)
				status(fmt.Sprintf("%s encountered an error", call.Name))
			case len(out.Sources) > 0:
				status(fmt.Sprintf("%s found %d results", call.Name, len(out.Sources)))
			default:
				status(fmt.Sprintf("%s completed successfully", call.Name))
			}
		}
	}

	var syn *synthesis
	if plan.Casual() || len(runs) == 0 {
		status("Generating your response...")
		syn = a.synthesizer.Casual(ctx, query, history)
	} else {
		status("Synthesizing information...")
		syn = a.synthesizer.FromTools(ctx, query, runs, history)
	}

	elapsed := time.Since(start)
	result := &Result{
		Response:             syn.Content,
		Confidence:           syn.Confidence,
		Sources:              syn.Sources,
		ProcessingTime:       roundSeconds(elapsed),
		Method:               standardMethod(plan),
		ToolsUsed:            len(plan.ToolCalls),
		SourcesFound:         len(syn.Sources),
		ProactiveSuggestions: suggestions,
	}

	a.track(userID, "fallback_processing", query, elapsed)
	result.Analytics = a.snapshot(ctx, userID)
	return result
}

// finish records the exchange and caches the result.
func (a *Agent) finish(ctx context.Context, userID, query string, result *Result, key string, ttl time.Duration) {
	a.memory.AddTurn(userID, query, result.Response)

	if a.store != nil {
		// Persist outside the request path.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := a.store.Add(ctx, userID, query, result.Response); err != nil {
				logging.Memory().Warn("persisting interaction failed", "error", err)
			}
		}()
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, key, string(payload), ttl); err != nil {
		logging.Cache().Warn("caching response failed", "error", err)
	}
}

// Clear drops everything the pipeline remembers about a user.
func (a *Agent) Clear(ctx context.Context, userID string) error {
	a.memory.Forget(userID)
	if a.store != nil {
		return a.store.Purge(ctx, userID)
	}
	return nil
}

// SystemHealth reports pipeline health.
func (a *Agent) SystemHealth(ctx context.Context) Health {
	stats, err := a.cache.Stats(ctx)
	status := "healthy"
	if err != nil {
		status = "degraded"
		logging.Cache().Warn("cache stats unavailable", "error", err)
	}

	discovered := 0
	if a.discovery != nil {
		discovered = len(a.discovery.Specs())
	}

	return Health{
		Status:           status,
		CachePerformance: stats,
		DiscoveredTools:  discovered,
		RegisteredTools:  a.registry.Names(),
	}
}

func (a *Agent) cachedResult(ctx context.Context, key string) (*Result, bool) {
	payload, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		logging.Cache().Warn("cache lookup failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var result Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		logging.Cache().Warn("cached payload corrupt", "error", err)
		return nil, false
	}
	return &result, true
}

func (a *Agent) track(userID, agentUsed, query string, elapsed time.Duration) {
	a.analytics.Track(userID, analytics.Interaction{
		AgentUsed:      agentUsed,
		Complexity:     memory.AssessComplexity(query),
		ProcessingTime: elapsed,
	})
}

func (a *Agent) snapshot(ctx context.Context, userID string) *AnalyticsSnapshot {
	stats, err := a.cache.Stats(ctx)
	if err != nil {
		return nil
	}
	return &AnalyticsSnapshot{
		CachePerformance: stats,
		UserPatterns:     a.analytics.Analyze(userID),
	}
}

func standardMethod(plan *Plan) string {
	switch {
	case plan.Casual():
		return "Casual Chat"
	case len(plan.ToolCalls) == 0:
		return "Direct Answer"
	default:
		names := make([]string, len(plan.ToolCalls))
		for i, call := range plan.ToolCalls {
			names[i] = call.Name
		}
		return "Enhanced Search: " + strings.Join(names, ", ")
	}
}

// cacheKey derives a stable key from the user and normalized query.
func cacheKey(userID, query string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(query))))
	return fmt.Sprintf("%s:%x", userID, h.Sum64())
}

func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
