package defense

import (
	"sync"
	"time"
)

// maxRecentRequests bounds the per-IP request window kept for rate
// analysis.
const maxRecentRequests = 200

// Request describes one served request.
type Request struct {
	Path       string
	Method     string
	StatusCode int
	UserAgent  string
	Timestamp  time.Time
}

// IPStats aggregates the requests seen from a single IP.
type IPStats struct {
	FirstSeen     time.Time
	LastSeen      time.Time
	TotalRequests int
	ErrorRequests int // 4xx/5xx responses
	ProbeHits     int // requests to probe paths
	ScannerAgent  bool
	recent        []Request
}

// IPMetrics tracks request statistics per IP address.
type IPMetrics struct {
	mu    sync.Mutex
	stats map[string]*IPStats
}

// NewIPMetrics creates an empty metrics tracker.
func NewIPMetrics() *IPMetrics {
	return &IPMetrics{stats: make(map[string]*IPStats)}
}

// Record adds a request to the per-IP statistics.
func (m *IPMetrics) Record(ip string, req Request) {
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stats[ip]
	if !ok {
		s = &IPStats{FirstSeen: req.Timestamp}
		m.stats[ip] = s
	}

	s.LastSeen = req.Timestamp
	s.TotalRequests++
	if req.StatusCode >= 400 {
		s.ErrorRequests++
	}
	if IsProbePath(req.Path) {
		s.ProbeHits++
	}
	if IsScannerUserAgent(req.UserAgent) {
		s.ScannerAgent = true
	}

	if len(s.recent) >= maxRecentRequests {
		s.recent = s.recent[1:]
	}
	s.recent = append(s.recent, req)
}

// Stats returns a copy of the statistics for an IP, or nil when the
// IP has not been seen.
func (m *IPMetrics) Stats(ip string) *IPStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stats[ip]
	if !ok {
		return nil
	}
	out := *s
	out.recent = append([]Request(nil), s.recent...)
	return &out
}

// BlockReason analyzes an IP against the configured thresholds and
// returns the reason it should be blocked, or "" when it should not.
func (m *IPMetrics) BlockReason(ip string, config Config) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stats[ip]
	if !ok {
		return ""
	}

	windowStart := time.Now().Add(-config.RateWindow)
	recentCount := 0
	for _, req := range s.recent {
		if req.Timestamp.After(windowStart) {
			recentCount++
		}
	}
	if recentCount > config.RateLimit {
		return "rate limit exceeded"
	}

	if s.ScannerAgent {
		return "scanner user agent"
	}

	if s.TotalRequests >= config.MinRequestsForAnalysis {
		errorRate := float64(s.ErrorRequests) / float64(s.TotalRequests)
		if errorRate >= config.ErrorRateThreshold {
			return "high error rate"
		}
	}

	if s.ProbeHits >= config.SuspiciousPathThreshold {
		return "probing for vulnerabilities"
	}

	return ""
}

// RemoveStale drops statistics for IPs not seen within maxAge and
// returns the number removed.
func (m *IPMetrics) RemoveStale(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for ip, s := range m.stats {
		if s.LastSeen.Before(cutoff) {
			delete(m.stats, ip)
			removed++
		}
	}
	return removed
}
