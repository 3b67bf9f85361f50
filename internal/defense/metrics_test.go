package defense

import (
	"fmt"
	"testing"
	"time"
)

func TestMetricsRecord(t *testing.T) {
	m := NewIPMetrics()

	m.Record("203.0.113.7", Request{Path: "/", StatusCode: 200})
	m.Record("203.0.113.7", Request{Path: "/.env", StatusCode: 404})
	m.Record("203.0.113.7", Request{Path: "/missing", StatusCode: 404})

	s := m.Stats("203.0.113.7")
	if s == nil {
		t.Fatal("Stats returned nil for recorded IP")
	}
	if s.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", s.TotalRequests)
	}
	if s.ErrorRequests != 2 {
		t.Errorf("ErrorRequests = %d, want 2", s.ErrorRequests)
	}
	if s.ProbeHits != 1 {
		t.Errorf("ProbeHits = %d, want 1", s.ProbeHits)
	}

	if m.Stats("203.0.113.99") != nil {
		t.Error("Stats returned data for unseen IP")
	}
}

func TestBlockReasonRateLimit(t *testing.T) {
	m := NewIPMetrics()
	config := DefaultConfig()
	config.RateLimit = 5

	for i := 0; i < 6; i++ {
		m.Record("203.0.113.7", Request{Path: "/", StatusCode: 200})
	}

	if got := m.BlockReason("203.0.113.7", config); got != "rate limit exceeded" {
		t.Errorf("BlockReason = %q, want %q", got, "rate limit exceeded")
	}
}

func TestBlockReasonErrorRate(t *testing.T) {
	m := NewIPMetrics()
	config := DefaultConfig()
	config.MinRequestsForAnalysis = 10
	config.ErrorRateThreshold = 0.9

	// Nine errors: below the minimum request count, no block yet.
	for i := 0; i < 9; i++ {
		m.Record("203.0.113.7", Request{Path: fmt.Sprintf("/missing-%d", i), StatusCode: 404})
	}
	if got := m.BlockReason("203.0.113.7", config); got != "" {
		t.Errorf("BlockReason below minimum = %q, want empty", got)
	}

	m.Record("203.0.113.7", Request{Path: "/missing-9", StatusCode: 404})
	if got := m.BlockReason("203.0.113.7", config); got != "high error rate" {
		t.Errorf("BlockReason = %q, want %q", got, "high error rate")
	}
}

func TestBlockReasonProbePaths(t *testing.T) {
	m := NewIPMetrics()
	config := DefaultConfig()
	config.SuspiciousPathThreshold = 3

	m.Record("203.0.113.7", Request{Path: "/.env", StatusCode: 404})
	m.Record("203.0.113.7", Request{Path: "/wp-admin", StatusCode: 404})
	if got := m.BlockReason("203.0.113.7", config); got != "" {
		t.Errorf("BlockReason below threshold = %q, want empty", got)
	}

	m.Record("203.0.113.7", Request{Path: "/phpmyadmin", StatusCode: 404})
	if got := m.BlockReason("203.0.113.7", config); got != "probing for vulnerabilities" {
		t.Errorf("BlockReason = %q, want %q", got, "probing for vulnerabilities")
	}
}

func TestBlockReasonScannerAgent(t *testing.T) {
	m := NewIPMetrics()
	m.Record("203.0.113.7", Request{Path: "/", StatusCode: 200, UserAgent: "sqlmap/1.7"})

	if got := m.BlockReason("203.0.113.7", DefaultConfig()); got != "scanner user agent" {
		t.Errorf("BlockReason = %q, want %q", got, "scanner user agent")
	}
}

func TestRemoveStale(t *testing.T) {
	m := NewIPMetrics()
	m.Record("203.0.113.7", Request{Path: "/", StatusCode: 200, Timestamp: time.Now().Add(-2 * time.Hour)})
	m.Record("203.0.113.8", Request{Path: "/", StatusCode: 200})

	if got := m.RemoveStale(time.Hour); got != 1 {
		t.Errorf("RemoveStale() = %d, want 1", got)
	}
	if m.Stats("203.0.113.7") != nil {
		t.Error("stale IP still tracked")
	}
	if m.Stats("203.0.113.8") == nil {
		t.Error("fresh IP was removed")
	}
}
