// Package tools provides the external data tools the agent pipeline can
// call: web search, news search, social media search, and stock quotes.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Source is a reference backing a tool result.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Output is the result of a tool execution: text to feed the model plus
// the sources that produced it.
type Output struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources,omitempty"`
}

// Tool is a single capability the agent can invoke with a query.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, query string) (*Output, error)
}

// Registry holds the available tools and tracks how often each is used.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
	usage map[string]int
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
		usage: make(map[string]int),
	}
}

// Register adds a tool. Registering the same name twice replaces the
// earlier tool.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool %q not registered", name)
	}
	return t, nil
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Execute runs the named tool and records the use.
func (r *Registry) Execute(ctx context.Context, name, query string) (*Output, error) {
	t, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	out, err := t.Execute(ctx, query)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.usage[name]++
	r.mu.Unlock()

	return out, nil
}

// UsageCount returns how many times the named tool ran successfully.
func (r *Registry) UsageCount(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.usage[name]
}

// UsageStats returns tool names with their usage counts, most used first.
func (r *Registry) UsageStats() []UsageStat {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make([]UsageStat, 0, len(r.order))
	for _, name := range r.order {
		stats = append(stats, UsageStat{Name: name, Count: r.usage[name]})
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Count > stats[j].Count
	})
	return stats
}

// UsageStat is a tool name with its usage count.
type UsageStat struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
