package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestWriteAndReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.json")

	in := sample{Name: "sibyl", Count: 3}
	if err := WriteJSONAtomic(path, in, 0644); err != nil {
		t.Fatalf("WriteJSONAtomic() error: %v", err)
	}

	var out sample
	if err := ReadJSON(path, &out); err != nil {
		t.Fatalf("ReadJSON() error: %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}

	// No temp file left behind.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file was not cleaned up")
	}
}

func TestReadJSONMissingFile(t *testing.T) {
	var out sample
	err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &out)
	if !os.IsNotExist(err) {
		t.Errorf("error = %v, want os.IsNotExist", err)
	}
}

func TestReadJSONInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	var out sample
	if err := ReadJSON(path, &out); err == nil {
		t.Error("ReadJSON(invalid) error = nil, want parse error")
	}
}

func TestWriteJSONAtomicOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.json")

	if err := WriteJSONAtomic(path, sample{Name: "first"}, 0644); err != nil {
		t.Fatalf("first write error: %v", err)
	}
	if err := WriteJSONAtomic(path, sample{Name: "second"}, 0644); err != nil {
		t.Fatalf("second write error: %v", err)
	}

	var out sample
	if err := ReadJSON(path, &out); err != nil {
		t.Fatalf("ReadJSON() error: %v", err)
	}
	if out.Name != "second" {
		t.Errorf("Name = %q, want %q", out.Name, "second")
	}
}
