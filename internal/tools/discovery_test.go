package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sibylchat/sibyl/internal/groq"
)

func discoveryServer(t *testing.T, analysis string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": analysis}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestAnalyzeNeedsRecordsSpec(t *testing.T) {
	srv := discoveryServer(t, `{
		"needs_new_tool": true,
		"suggested_tool_name": "Weather Lookup",
		"tool_description": "Fetches current weather",
		"tool_capabilities": ["current conditions", "forecast"],
		"priority": "medium",
		"reasoning": "no weather tool available"
	}`)
	defer srv.Close()

	client := groq.NewClient("gsk_test", groq.WithBaseURL(srv.URL))
	d := NewDiscovery(client, "llama-3.1-8b-instant")

	analysis := d.AnalyzeNeeds(context.Background(), "weather in Paris", []string{"web_search"})
	if !analysis.NeedsNewTool {
		t.Fatal("NeedsNewTool = false, want true")
	}

	specs := d.Specs()
	if len(specs) != 1 {
		t.Fatalf("len(Specs()) = %d, want 1", len(specs))
	}
	if specs[0].Name != "weather_lookup" {
		t.Errorf("spec name = %q, want weather_lookup", specs[0].Name)
	}
	if specs[0].UsageCount != 1 {
		t.Errorf("UsageCount = %d, want 1", specs[0].UsageCount)
	}

	// The same suggestion again bumps the count instead of duplicating.
	d.AnalyzeNeeds(context.Background(), "weather in Rome", []string{"web_search"})
	specs = d.Specs()
	if len(specs) != 1 || specs[0].UsageCount != 2 {
		t.Errorf("after repeat: specs = %+v, want one spec with count 2", specs)
	}
}

func TestAnalyzeNeedsToolsSufficient(t *testing.T) {
	srv := discoveryServer(t, `{"needs_new_tool": false, "reasoning": "web search covers this"}`)
	defer srv.Close()

	client := groq.NewClient("gsk_test", groq.WithBaseURL(srv.URL))
	d := NewDiscovery(client, "llama-3.1-8b-instant")

	analysis := d.AnalyzeNeeds(context.Background(), "capital of France", []string{"web_search"})
	if analysis.NeedsNewTool {
		t.Error("NeedsNewTool = true, want false")
	}
	if len(d.Specs()) != 0 {
		t.Errorf("Specs() = %v, want empty", d.Specs())
	}
}

func TestAnalyzeNeedsFailureIsNonFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"server error"}}`)
	}))
	defer srv.Close()

	client := groq.NewClient("gsk_test", groq.WithBaseURL(srv.URL))
	d := NewDiscovery(client, "llama-3.1-8b-instant")

	analysis := d.AnalyzeNeeds(context.Background(), "anything", nil)
	if analysis.NeedsNewTool {
		t.Error("failed analysis should report no new tool needed")
	}
}
