// Package defense blocks abusive clients before they reach the chat
// server. It tracks per-IP request patterns, blocks IPs that behave
// like vulnerability scanners, and rejects their connections at the
// listener.
package defense

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sibylchat/sibyl/internal/logging"
)

// cleanupInterval is how often expired blocks and stale metrics are
// swept.
const cleanupInterval = 5 * time.Minute

// metricsMaxAge is how long metrics are kept for IPs that have not
// been seen.
const metricsMaxAge = 1 * time.Hour

// Guard coordinates detection and blocking of abusive IPs.
type Guard struct {
	mu        sync.Mutex
	config    Config
	blocklist *Blocklist
	metrics   *IPMetrics
	logger    *slog.Logger
	stopCh    chan struct{}
	wg        sync.WaitGroup
	stopped   bool
}

// New creates a guard, loading the persisted blocklist when a persist
// path is configured, and starts the background sweep.
func New(config Config, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = logging.WithComponent("defense")
	}

	blocklist := NewBlocklist(config.Whitelist)
	if config.PersistPath != "" {
		if err := blocklist.Load(config.PersistPath); err != nil {
			logger.Warn("failed to load blocklist", "path", config.PersistPath, "error", err)
		} else if n := blocklist.Count(); n > 0 {
			logger.Info("blocklist loaded", "entries", n, "path", config.PersistPath)
		}
	}

	g := &Guard{
		config:    config,
		blocklist: blocklist,
		metrics:   NewIPMetrics(),
		logger:    logger,
		stopCh:    make(chan struct{}),
	}

	g.wg.Add(1)
	go g.sweepLoop()

	return g
}

// IsBlocked reports whether an IP is currently blocked. Called per
// connection, so it must stay cheap.
func (g *Guard) IsBlocked(ip string) bool {
	if !g.config.Enabled {
		return false
	}
	return g.blocklist.Contains(ip)
}

// BlockReason returns why an IP is blocked, or "" when it is not.
func (g *Guard) BlockReason(ip string) string {
	if !g.config.Enabled {
		return ""
	}
	return g.blocklist.Reason(ip)
}

// Observe records a served request and blocks the IP if its pattern
// crosses a threshold. Whitelisted IPs are never tracked.
func (g *Guard) Observe(ip string, req Request) {
	if !g.config.Enabled {
		return
	}
	if g.blocklist.IsWhitelisted(ip) {
		return
	}

	g.metrics.Record(ip, req)

	if reason := g.metrics.BlockReason(ip, g.config); reason != "" {
		g.block(ip, reason)
	}
}

func (g *Guard) block(ip, reason string) {
	stats := g.metrics.Stats(ip)
	requestCount := 0
	if stats != nil {
		requestCount = stats.TotalRequests
	}

	g.blocklist.Add(&BlockEntry{
		IP:           ip,
		BlockedAt:    time.Now(),
		ExpiresAt:    time.Now().Add(g.config.BlockDuration),
		Reason:       reason,
		RequestCount: requestCount,
	})

	g.logger.Warn("blocked abusive client",
		"ip", ip,
		"reason", reason,
		"requests", requestCount,
		"block_duration", g.config.BlockDuration,
	)

	g.persist()
}

func (g *Guard) persist() {
	if g.config.PersistPath == "" {
		return
	}
	if err := g.blocklist.Save(g.config.PersistPath); err != nil {
		g.logger.Warn("failed to save blocklist", "path", g.config.PersistPath, "error", err)
	}
}

func (g *Guard) sweepLoop() {
	defer g.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.sweep()
		case <-g.stopCh:
			return
		}
	}
}

func (g *Guard) sweep() {
	if removed := g.blocklist.RemoveExpired(); removed > 0 {
		g.logger.Debug("expired blocks removed", "count", removed)
		g.persist()
	}
	g.metrics.RemoveStale(metricsMaxAge)
}

// BlockedCount returns the number of currently blocked IPs.
func (g *Guard) BlockedCount() int {
	return g.blocklist.Count()
}

// Close stops the background sweep and persists the blocklist.
func (g *Guard) Close() error {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return nil
	}
	g.stopped = true
	close(g.stopCh)
	g.mu.Unlock()

	g.wg.Wait()
	g.persist()
	return nil
}
