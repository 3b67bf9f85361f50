// Package appdir resolves the directory where sibyl keeps its data:
// conversation memory, logs, and the default configuration file.
package appdir

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// EnvOverride is the environment variable that overrides the data directory.
const EnvOverride = "SIBYL_DIR"

var (
	mu       sync.RWMutex
	resolved string
)

// Dir returns the sibyl data directory. The first call resolves and
// caches the path; later calls return the cached value.
func Dir() (string, error) {
	mu.RLock()
	if resolved != "" {
		dir := resolved
		mu.RUnlock()
		return dir, nil
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if resolved != "" {
		return resolved, nil
	}
	dir, err := resolveDir()
	if err != nil {
		return "", err
	}
	resolved = dir
	return dir, nil
}

// EnsureDir returns the data directory, creating it if necessary.
func EnsureDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating data directory %s: %w", dir, err)
	}
	return dir, nil
}

// Reset clears the cached directory. Tests use it together with
// EnvOverride to point sibyl at a temporary directory.
func Reset() {
	mu.Lock()
	resolved = ""
	mu.Unlock()
}

func resolveDir() (string, error) {
	if dir := os.Getenv(EnvOverride); dir != "" {
		return dir, nil
	}

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support", "sibyl"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "sibyl"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, "AppData", "Roaming", "sibyl"), nil
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "sibyl"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, ".local", "share", "sibyl"), nil
	}
}
