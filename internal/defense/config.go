package defense

import "time"

// Config holds the thresholds that turn request metrics into blocks.
type Config struct {
	// Enabled controls whether the guard is active. When false every
	// check is a no-op.
	Enabled bool

	// RateLimit is the maximum number of requests per RateWindow
	// before an IP is blocked.
	RateLimit int

	// RateWindow is the time window for the rate limit.
	RateWindow time.Duration

	// ErrorRateThreshold is the 4xx/5xx rate (0.0-1.0) above which an
	// IP is blocked.
	ErrorRateThreshold float64

	// MinRequestsForAnalysis is the number of requests an IP must make
	// before its error rate is analyzed. Prevents blocking clients
	// after one or two mistakes.
	MinRequestsForAnalysis int

	// SuspiciousPathThreshold is the number of probe-path hits that
	// trigger a block.
	SuspiciousPathThreshold int

	// BlockDuration is how long an IP remains blocked.
	BlockDuration time.Duration

	// Whitelist contains CIDR ranges that are never blocked.
	Whitelist []string

	// PersistPath is the blocklist persistence file. Empty disables
	// persistence.
	PersistPath string
}

// DefaultConfig returns the standard guard thresholds. The guard is
// disabled until explicitly enabled.
func DefaultConfig() Config {
	return Config{
		Enabled:                 false,
		RateLimit:               100,
		RateWindow:              time.Minute,
		ErrorRateThreshold:      0.9,
		MinRequestsForAnalysis:  10,
		SuspiciousPathThreshold: 5,
		BlockDuration:           24 * time.Hour,
		Whitelist:               []string{"127.0.0.0/8", "::1/128"},
	}
}
