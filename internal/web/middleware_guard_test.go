package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sibylchat/sibyl/internal/defense"
)

func newGuardedTestServer(t *testing.T, probeThreshold int) (*httptest.Server, *defense.Guard) {
	t.Helper()

	guardConfig := defense.DefaultConfig()
	guardConfig.Enabled = true
	guardConfig.SuspiciousPathThreshold = probeThreshold
	guardConfig.Whitelist = nil // httptest clients dial from localhost
	guard := defense.New(guardConfig, nil)
	t.Cleanup(func() { guard.Close() })

	srv := NewServer(Options{
		Host:      "127.0.0.1",
		Agent:     &fakeAgent{response: "ok"},
		StaticDir: t.TempDir(),
		Guard:     guard,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, guard
}

func TestGuardMiddlewareBlocksProbes(t *testing.T) {
	ts, guard := newGuardedTestServer(t, 2)

	// Two probe requests cross the threshold.
	for _, path := range []string{"/.env", "/wp-admin"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		resp.Body.Close()
	}

	if !guard.IsBlocked("127.0.0.1") {
		t.Fatal("guard did not block after probe requests")
	}

	// Requests on the existing connection now get 403.
	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status after block = %d, want 403", resp.StatusCode)
	}
}

func TestGuardMiddlewareAllowsNormalTraffic(t *testing.T) {
	ts, guard := newGuardedTestServer(t, 2)

	for i := 0; i < 5; i++ {
		resp, err := http.Get(ts.URL + "/api/health")
		if err != nil {
			t.Fatalf("GET /api/health failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
	}

	if guard.IsBlocked("127.0.0.1") {
		t.Error("guard blocked normal traffic")
	}
}
