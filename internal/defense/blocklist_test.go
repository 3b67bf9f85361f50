package defense

import (
	"path/filepath"
	"testing"
	"time"
)

func TestBlocklistAddContains(t *testing.T) {
	b := NewBlocklist(nil)

	b.Add(&BlockEntry{
		IP:        "203.0.113.7",
		BlockedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
		Reason:    "probing for vulnerabilities",
	})

	if !b.Contains("203.0.113.7") {
		t.Error("Contains(blocked IP) = false, want true")
	}
	if b.Contains("203.0.113.8") {
		t.Error("Contains(unblocked IP) = true, want false")
	}
	if got := b.Reason("203.0.113.7"); got != "probing for vulnerabilities" {
		t.Errorf("Reason = %q, want %q", got, "probing for vulnerabilities")
	}
}

func TestBlocklistExpiry(t *testing.T) {
	b := NewBlocklist(nil)

	b.Add(&BlockEntry{
		IP:        "203.0.113.7",
		BlockedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour),
	})

	if b.Contains("203.0.113.7") {
		t.Error("expired entry still reported as blocked")
	}
	if got := b.RemoveExpired(); got != 1 {
		t.Errorf("RemoveExpired() = %d, want 1", got)
	}
	if got := b.Count(); got != 0 {
		t.Errorf("Count() after cleanup = %d, want 0", got)
	}
}

func TestBlocklistWhitelist(t *testing.T) {
	b := NewBlocklist([]string{"127.0.0.0/8", "192.0.2.50"})

	tests := []struct {
		ip   string
		want bool
	}{
		{"127.0.0.1", true},
		{"127.255.255.255", true},
		{"192.0.2.50", true}, // single IP entry
		{"192.0.2.51", false},
		{"203.0.113.7", false},
	}

	for _, tt := range tests {
		if got := b.IsWhitelisted(tt.ip); got != tt.want {
			t.Errorf("IsWhitelisted(%q) = %v, want %v", tt.ip, got, tt.want)
		}
	}

	// Whitelisted IPs are never blocked, even if added.
	b.Add(&BlockEntry{IP: "127.0.0.1", ExpiresAt: time.Now().Add(time.Hour)})
	if b.Contains("127.0.0.1") {
		t.Error("whitelisted IP reported as blocked")
	}
}

func TestBlocklistSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocklist.json")

	b := NewBlocklist(nil)
	b.Add(&BlockEntry{
		IP:        "203.0.113.7",
		BlockedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
		Reason:    "rate limit exceeded",
	})
	b.Add(&BlockEntry{
		IP:        "203.0.113.8",
		BlockedAt: time.Now().Add(-2 * time.Hour),
		ExpiresAt: time.Now().Add(-time.Hour), // expired, dropped on load
	})

	if err := b.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded := NewBlocklist(nil)
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !loaded.Contains("203.0.113.7") {
		t.Error("loaded blocklist lost an active entry")
	}
	if loaded.Contains("203.0.113.8") {
		t.Error("loaded blocklist kept an expired entry")
	}
	if got := loaded.Reason("203.0.113.7"); got != "rate limit exceeded" {
		t.Errorf("Reason after load = %q, want %q", got, "rate limit exceeded")
	}
}

func TestBlocklistLoadMissingFile(t *testing.T) {
	b := NewBlocklist(nil)
	if err := b.Load(filepath.Join(t.TempDir(), "missing.json")); err != nil {
		t.Errorf("Load(missing) error = %v, want nil", err)
	}
}
