package defense

import (
	"net"
	"os"
	"sync"
	"time"

	"github.com/sibylchat/sibyl/internal/fileutil"
)

// BlockEntry records one blocked IP.
type BlockEntry struct {
	IP           string    `json:"ip"`
	BlockedAt    time.Time `json:"blocked_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	Reason       string    `json:"reason"`
	RequestCount int       `json:"request_count"`
}

// Blocklist holds blocked IPs with expiry and a whitelist of ranges
// that are never blocked.
type Blocklist struct {
	mu      sync.RWMutex
	entries map[string]*BlockEntry
	cidrs   []*net.IPNet
}

// NewBlocklist creates a blocklist. Whitelist entries may be CIDR
// ranges or single IPs.
func NewBlocklist(whitelist []string) *Blocklist {
	b := &Blocklist{entries: make(map[string]*BlockEntry)}

	for _, entry := range whitelist {
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			ip := net.ParseIP(entry)
			if ip == nil {
				continue
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			ipNet = &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}
		}
		b.cidrs = append(b.cidrs, ipNet)
	}

	return b
}

// IsWhitelisted reports whether an IP falls in a whitelisted range.
func (b *Blocklist) IsWhitelisted(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, cidr := range b.cidrs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// Contains reports whether an IP is blocked. Whitelisted and expired
// entries are never blocked.
func (b *Blocklist) Contains(ip string) bool {
	if b.IsWhitelisted(ip) {
		return false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	entry, ok := b.entries[ip]
	if !ok {
		return false
	}
	return time.Now().Before(entry.ExpiresAt)
}

// Add blocks an IP. Whitelisted IPs are ignored.
func (b *Blocklist) Add(entry *BlockEntry) {
	if b.IsWhitelisted(entry.IP) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[entry.IP] = entry
}

// Remove unblocks an IP.
func (b *Blocklist) Remove(ip string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, ip)
}

// Reason returns the block reason, or "" when the IP is not blocked.
func (b *Blocklist) Reason(ip string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entry, ok := b.entries[ip]
	if !ok || time.Now().After(entry.ExpiresAt) {
		return ""
	}
	return entry.Reason
}

// RemoveExpired drops expired entries and returns how many were
// removed.
func (b *Blocklist) RemoveExpired() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	removed := 0
	for ip, entry := range b.entries {
		if now.After(entry.ExpiresAt) {
			delete(b.entries, ip)
			removed++
		}
	}
	return removed
}

// Entries returns a copy of all current entries.
func (b *Blocklist) Entries() []*BlockEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*BlockEntry, 0, len(b.entries))
	for _, entry := range b.entries {
		out = append(out, entry)
	}
	return out
}

// Count returns the number of blocked IPs.
func (b *Blocklist) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Load reads persisted entries from a JSON file, skipping any that
// have expired. A missing file is not an error.
func (b *Blocklist) Load(path string) error {
	var entries []*BlockEntry
	if err := fileutil.ReadJSON(path, &entries); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	for _, entry := range entries {
		if now.Before(entry.ExpiresAt) {
			b.entries[entry.IP] = entry
		}
	}
	return nil
}

// Save persists the blocklist to a JSON file atomically.
func (b *Blocklist) Save(path string) error {
	return fileutil.WriteJSONAtomic(path, b.Entries(), 0644)
}
