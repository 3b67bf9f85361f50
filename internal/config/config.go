// Package config handles configuration loading and management for sibyl.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Default values applied when the config file omits a setting.
const (
	DefaultHost          = "127.0.0.1"
	DefaultPort          = 8080
	DefaultModel         = "llama-3.3-70b-versatile"
	DefaultFastModel     = "llama-3.1-8b-instant"
	DefaultCacheBackend  = "memory"
	DefaultRedisAddr     = "localhost:6379"
	DefaultHistoryWindow = 10
)

// GroqConfig holds settings for the Groq chat completion backend.
type GroqConfig struct {
	// APIKey authenticates against the Groq API.
	// The GROQ_API_KEY environment variable takes precedence.
	APIKey string
	// Model is the model used for response generation.
	Model string
	// FastModel is the cheaper model used for classification and
	// other internal calls.
	FastModel string
	// BaseURL overrides the API endpoint (used in tests).
	BaseURL string
}

// WebConfig represents web interface configuration.
type WebConfig struct {
	// Host is the HTTP server host/IP address (default: 127.0.0.1)
	// Use "0.0.0.0" to listen on all interfaces
	Host string
	// Port is the HTTP server port (default: 8080)
	Port int
	// StaticDir is an optional directory to serve static files from instead
	// of embedded assets. When set, files are served from this directory,
	// enabling hot-reloading during development.
	StaticDir string
	// AllowedOrigins restricts WebSocket upgrades to the listed origins.
	// Empty means same-origin only.
	AllowedOrigins []string
	// DefenseEnabled turns on scanner defense: IPs that probe for
	// vulnerabilities are blocked at the listener.
	DefenseEnabled bool
}

// CacheConfig selects and configures the response cache backend.
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend string
	// RedisAddr is the redis host:port (redis backend only).
	RedisAddr string
	// RedisPassword is the redis password (redis backend only).
	RedisPassword string
	// RedisDB is the redis database number (redis backend only).
	RedisDB int
}

// ToolsConfig configures the external data tools.
type ToolsConfig struct {
	// SearchBaseURL overrides the web search endpoint (used in tests).
	SearchBaseURL string
	// FinanceBaseURL overrides the stock quote endpoint (used in tests).
	FinanceBaseURL string
}

// LoggingConfig holds the logging section of the config file.
type LoggingConfig struct {
	// Level is the minimum console log level (debug, info, warn, error).
	Level string
	// File is an optional log file path; empty logs to the data directory.
	File string
	// Components limits logging to the named components (empty means all).
	Components []string
}

// Config represents the complete sibyl configuration.
type Config struct {
	Groq    GroqConfig
	Web     WebConfig
	Cache   CacheConfig
	Tools   ToolsConfig
	Logging LoggingConfig
	// HistoryWindow is the number of prior exchanges included as
	// model context per request.
	HistoryWindow int
}

// rawConfig mirrors the YAML layout of the config file.
type rawConfig struct {
	Groq struct {
		APIKey    string `yaml:"api_key"`
		Model     string `yaml:"model"`
		FastModel string `yaml:"fast_model"`
		BaseURL   string `yaml:"base_url"`
	} `yaml:"groq"`
	Web struct {
		Host           string   `yaml:"host"`
		Port           int      `yaml:"port"`
		StaticDir      string   `yaml:"static_dir"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		DefenseEnabled bool     `yaml:"defense_enabled"`
	} `yaml:"web"`
	Cache struct {
		Backend       string `yaml:"backend"`
		RedisAddr     string `yaml:"redis_addr"`
		RedisPassword string `yaml:"redis_password"`
		RedisDB       int    `yaml:"redis_db"`
	} `yaml:"cache"`
	Tools struct {
		SearchBaseURL  string `yaml:"search_base_url"`
		FinanceBaseURL string `yaml:"finance_base_url"`
	} `yaml:"tools"`
	Logging struct {
		Level      string   `yaml:"level"`
		File       string   `yaml:"file"`
		Components []string `yaml:"components"`
	} `yaml:"logging"`
	HistoryWindow int `yaml:"history_window"`
}

// DefaultConfigPath returns the default configuration file path for the current platform.
func DefaultConfigPath() string {
	// Check for environment variable override first
	if envPath := os.Getenv("SIBYLRC"); envPath != "" {
		return envPath
	}

	var configDir string
	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, _ := os.UserHomeDir()
		configDir = home // macOS traditionally uses ~/.sibylrc
	default: // linux and others
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = xdgConfig
		} else {
			home, _ := os.UserHomeDir()
			configDir = home
		}
	}

	return filepath.Join(configDir, ".sibylrc")
}

// Load reads and parses the configuration file from the given path.
// A missing file is not an error: defaults plus environment variables
// are enough to run.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return applyEnv(defaults()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse parses YAML configuration data into a Config struct.
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := defaults()

	if raw.Groq.APIKey != "" {
		cfg.Groq.APIKey = raw.Groq.APIKey
	}
	if raw.Groq.Model != "" {
		cfg.Groq.Model = raw.Groq.Model
	}
	if raw.Groq.FastModel != "" {
		cfg.Groq.FastModel = raw.Groq.FastModel
	}
	cfg.Groq.BaseURL = raw.Groq.BaseURL

	if raw.Web.Host != "" {
		cfg.Web.Host = raw.Web.Host
	}
	if raw.Web.Port != 0 {
		cfg.Web.Port = raw.Web.Port
	}
	cfg.Web.StaticDir = raw.Web.StaticDir
	cfg.Web.AllowedOrigins = raw.Web.AllowedOrigins
	cfg.Web.DefenseEnabled = raw.Web.DefenseEnabled

	if raw.Cache.Backend != "" {
		cfg.Cache.Backend = raw.Cache.Backend
	}
	if raw.Cache.RedisAddr != "" {
		cfg.Cache.RedisAddr = raw.Cache.RedisAddr
	}
	cfg.Cache.RedisPassword = raw.Cache.RedisPassword
	cfg.Cache.RedisDB = raw.Cache.RedisDB

	cfg.Tools.SearchBaseURL = raw.Tools.SearchBaseURL
	cfg.Tools.FinanceBaseURL = raw.Tools.FinanceBaseURL

	if raw.Logging.Level != "" {
		cfg.Logging.Level = raw.Logging.Level
	}
	cfg.Logging.File = raw.Logging.File
	cfg.Logging.Components = raw.Logging.Components

	if raw.HistoryWindow > 0 {
		cfg.HistoryWindow = raw.HistoryWindow
	}

	switch cfg.Cache.Backend {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}

	return applyEnv(cfg), nil
}

// Validate checks that the configuration is complete enough to start
// the web server.
func (c *Config) Validate() error {
	if c.Groq.APIKey == "" {
		return fmt.Errorf("no Groq API key configured (set GROQ_API_KEY or groq.api_key)")
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("invalid web port %d", c.Web.Port)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Groq: GroqConfig{
			Model:     DefaultModel,
			FastModel: DefaultFastModel,
		},
		Web: WebConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Cache: CacheConfig{
			Backend:   DefaultCacheBackend,
			RedisAddr: DefaultRedisAddr,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		HistoryWindow: DefaultHistoryWindow,
	}
}

// applyEnv overlays environment variables on the loaded config.
func applyEnv(cfg *Config) *Config {
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		cfg.Groq.APIKey = key
	}
	return cfg
}
