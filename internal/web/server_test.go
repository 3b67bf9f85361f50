package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, &fakeAgent{response: "ok"})

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Status            string   `json:"status"`
		Version           string   `json:"version"`
		Features          []string `json:"features"`
		ActiveConnections int      `json:"active_connections"`
		RegisteredTools   []string `json:"registered_tools"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding health response: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("status = %q, want %q", body.Status, "healthy")
	}
	if body.Version != Version {
		t.Errorf("version = %q, want %q", body.Version, Version)
	}
	if len(body.Features) == 0 {
		t.Error("features list is empty")
	}
	if len(body.RegisteredTools) != 1 || body.RegisteredTools[0] != "web_search" {
		t.Errorf("registered_tools = %v, want [web_search]", body.RegisteredTools)
	}
}

func TestHealthEndpointRejectsPost(t *testing.T) {
	ts := newTestServer(t, &fakeAgent{response: "ok"})

	resp, err := http.Post(ts.URL+"/api/health", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/health failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestStaticDirOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>sibyl</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := NewServer(Options{
		Agent:          &fakeAgent{response: "ok"},
		AllowedOrigins: []string{"*"},
		StaticDir:      dir,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET / failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	missing, err := http.Get(ts.URL + "/does-not-exist.js")
	if err != nil {
		t.Fatalf("GET missing file failed: %v", err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("missing file status = %d, want 404", missing.StatusCode)
	}
}

func TestSecurityHeaders(t *testing.T) {
	ts := newTestServer(t, &fakeAgent{response: "ok"})

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := resp.Header.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
	if resp.Header.Get("Content-Security-Policy") == "" {
		t.Error("Content-Security-Policy header missing")
	}
}
